/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package catalog

import "invoicestudio/internal/domain"

// Identifiers of the built-in templates.
const (
	DefaultID         = "default"
	MinimalID         = "minimal"
	ClassicReceiptID  = "classic-receipt"
	CorporateBannerID = "corporate-banner"
	ElegantID         = "elegant"
	BoldEstimateID    = "bold-estimate"
)

func standardColumns() []domain.ColumnSpec {
	return []domain.ColumnSpec{
		{Header: "Description", Field: "description", Width: 4, Type: domain.ColumnText},
		{Header: "Qty", Field: "quantity", Width: 1, Type: domain.ColumnNumber},
		{Header: "Rate", Field: "rate", Width: 2, Type: domain.ColumnCurrency},
		{Header: "Amount", Field: "amount", Width: 2, Type: domain.ColumnCurrency},
	}
}

func sampleRows() []domain.Row {
	return []domain.Row{
		{"description": "Website Design", "quantity": 1.0, "rate": 1500.0, "amount": 1500.0},
		{"description": "Hosting (12 months)", "quantity": 12.0, "rate": 25.0, "amount": 300.0},
	}
}

func sampleSummary(currency string) domain.SummarySection {
	return domain.SummarySection{
		Subtotal: domain.Float(1800),
		Total:    domain.Float(1800),
		Currency: currency,
	}
}

func builtins() []domain.CatalogEntry {
	return []domain.CatalogEntry{
		{Builtin: true, TemplateDocument: domain.TemplateDocument{
			ID:          DefaultID,
			Name:        "Default",
			Description: "Clean layout with an indigo accent.",
			Category:    domain.CategoryInvoice,
			IsPublic:    true,
			Tags:        []string{"simple", "business"},
			Content: domain.Content{
				Header:  domain.HeaderSection{Title: "INVOICE", CompanyName: "Your Company"},
				Client:  domain.ClientSection{Label: "Bill To"},
				Items:   domain.ItemsSection{Columns: standardColumns(), Data: sampleRows()},
				Summary: sampleSummary("USD"),
				Footer:  domain.FooterSection{Text: "Thank you for your business!"},
				Styles:  domain.StyleSet{},
			},
		}},
		{Builtin: true, TemplateDocument: domain.TemplateDocument{
			ID:          MinimalID,
			Name:        "Minimal",
			Description: "Monochrome, generous whitespace.",
			Category:    domain.CategoryInvoice,
			IsPublic:    true,
			Tags:        []string{"minimal", "monochrome"},
			Content: domain.Content{
				Header:  domain.HeaderSection{Title: "Invoice"},
				Client:  domain.ClientSection{Label: "Billed to"},
				Items:   domain.ItemsSection{Columns: standardColumns(), Data: sampleRows()},
				Summary: sampleSummary("USD"),
				Footer:  domain.FooterSection{Text: "Thank you."},
				Styles: domain.StyleSet{
					"primaryColor":   "#111827",
					"secondaryColor": "#9CA3AF",
					"borderColor":    "#F3F4F6",
					"headerBg":       "#FFFFFF",
					"footerBg":       "#FFFFFF",
					"fontFamily":     "Helvetica, Arial, sans-serif",
					"fontSize":       "14px",
					"padding":        28.0,
					"borderRadius":   0.0,
				},
			},
		}},
		{Builtin: true, TemplateDocument: domain.TemplateDocument{
			ID:          ClassicReceiptID,
			Name:        "Classic Receipt",
			Description: "Narrow receipt with a paid-in-full footer.",
			Category:    domain.CategoryReceipt,
			IsPublic:    true,
			Tags:        []string{"receipt", "classic"},
			Content: domain.Content{
				Header: domain.HeaderSection{Title: "RECEIPT"},
				Client: domain.ClientSection{Label: "Received From"},
				Items: domain.ItemsSection{
					Columns: []domain.ColumnSpec{
						{Header: "Item", Field: "description", Width: 3, Type: domain.ColumnText},
						{Header: "Qty", Field: "quantity", Width: 1, Type: domain.ColumnNumber},
						{Header: "Total", Field: "amount", Width: 2, Type: domain.ColumnCurrency},
					},
					Data: sampleRows(),
				},
				Summary: sampleSummary("USD"),
				Footer:  domain.FooterSection{Text: "Paid in full. Keep this receipt for your records."},
				Styles: domain.StyleSet{
					"primaryColor": "#374151",
					"fontFamily":   "Courier New, monospace",
					"fontSize":     "13px",
					"lineHeight":   "1.4",
					"padding":      16.0,
				},
			},
		}},
		{Builtin: true, TemplateDocument: domain.TemplateDocument{
			ID:          CorporateBannerID,
			Name:        "Corporate Banner",
			Description: "Full-width colored header banner with white heading.",
			Category:    domain.CategoryInvoice,
			IsPublic:    true,
			IsPremium:   true,
			Tags:        []string{"corporate", "banner", "premium"},
			Content: domain.Content{
				Header: domain.HeaderSection{Title: "INVOICE", CompanyName: "Your Company Ltd.", CompanyAddress: "1 Corporate Plaza"},
				Client: domain.ClientSection{Label: "Invoice To"},
				Items: domain.ItemsSection{
					Columns: []domain.ColumnSpec{
						{Header: "Description", Field: "description", Width: 4, Type: domain.ColumnText},
						{Header: "Qty", Field: "quantity", Width: 1, Type: domain.ColumnNumber},
						{Header: "Unit Price", Field: "rate", Width: 2, Type: domain.ColumnCurrency},
						{Header: "Tax", Field: "taxPercent", Width: 1, Type: domain.ColumnPercent},
						{Header: "Amount", Field: "amount", Width: 2, Type: domain.ColumnCurrency},
					},
					Data: sampleRows(),
				},
				Summary: domain.SummarySection{
					Subtotal: domain.Float(1800),
					Tax:      &domain.TaxLine{Label: "VAT", Rate: 16, Amount: 288},
					Total:    domain.Float(2088),
					Currency: "USD",
				},
				Footer: domain.FooterSection{Text: "Thank you for your business!", Terms: "Payment due within 30 days."},
				Styles: domain.StyleSet{
					"primaryColor": "#1E40AF",
					"headerBg":     "#1E40AF",
					"footerBg":     "#EFF6FF",
					"borderColor":  "#BFDBFE",
					"fontFamily":   "Inter, Arial, sans-serif",
				},
			},
		}},
		{Builtin: true, TemplateDocument: domain.TemplateDocument{
			ID:          ElegantID,
			Name:        "Elegant",
			Description: "Serif typography with warm accents.",
			Category:    domain.CategoryProposal,
			IsPublic:    true,
			IsPremium:   true,
			Tags:        []string{"elegant", "serif", "premium"},
			Content: domain.Content{
				Header:  domain.HeaderSection{Title: "Proposal"},
				Client:  domain.ClientSection{Label: "Prepared For"},
				Items:   domain.ItemsSection{Columns: standardColumns(), Data: sampleRows()},
				Summary: sampleSummary("EUR"),
				Footer:  domain.FooterSection{Text: "With gratitude.", Notes: "Valid for 14 days."},
				Styles: domain.StyleSet{
					"primaryColor":    "#92400E",
					"secondaryColor":  "#A16207",
					"backgroundColor": "#FFFBEB",
					"borderColor":     "#FDE68A",
					"headerBg":        "#FEF3C7",
					"footerBg":        "#FEF3C7",
					"fontFamily":      "Georgia, 'Times New Roman', serif",
					"lineHeight":      "1.7",
					"borderRadius":    8.0,
				},
			},
		}},
		{Builtin: true, TemplateDocument: domain.TemplateDocument{
			ID:          BoldEstimateID,
			Name:        "Bold Estimate",
			Description: "High-contrast estimate with a dark banner.",
			Category:    domain.CategoryEstimate,
			IsPublic:    true,
			IsPremium:   true,
			Tags:        []string{"bold", "estimate", "premium"},
			Content: domain.Content{
				Header: domain.HeaderSection{Title: "ESTIMATE"},
				Client: domain.ClientSection{Label: "Prepared For"},
				Items: domain.ItemsSection{
					Columns: standardColumns(),
					Data:    sampleRows(),
				},
				Summary: domain.SummarySection{
					Subtotal: domain.Float(1800),
					Discount: domain.Float(100),
					Total:    domain.Float(1700),
					Currency: "USD",
				},
				Footer: domain.FooterSection{Text: "Estimate valid for 30 days.", Terms: "50% deposit required to start."},
				Styles: domain.StyleSet{
					"primaryColor": "#DC2626",
					"headerBg":     "#DC2626",
					"footerBg":     "#FEE2E2",
					"fontSize":     "15px",
					"borderRadius": 2.0,
				},
			},
		}},
	}
}
