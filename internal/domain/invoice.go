/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceData is the invoice content supplied by the invoice forms. The renderer only
// displays it; arithmetic belongs to the owner (see Recompute and RecomputeTotals).
type InvoiceData struct {
	Title         string         `json:"title,omitempty"`
	InvoiceNumber string         `json:"invoiceNumber,omitempty"`
	IssueDate     time.Time      `json:"issueDate,omitempty"`
	DueDate       time.Time      `json:"dueDate,omitempty"`
	Client        ClientInfo     `json:"client"`
	Items         []LineItem     `json:"items"`
	Summary       InvoiceSummary `json:"summary"`
	Terms         string         `json:"terms,omitempty"`
	Notes         string         `json:"notes,omitempty"`
}

type ClientInfo struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// LineItem is one billed line. Amount must equal Quantity*Rate.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
	Amount      float64 `json:"amount"`
	TaxPercent  float64 `json:"taxPercent,omitempty"`
}

// InvoiceSummary carries totals; Tax and Discount are optional lines.
type InvoiceSummary struct {
	Subtotal float64  `json:"subtotal"`
	Tax      *float64 `json:"tax,omitempty"`
	Discount *float64 `json:"discount,omitempty"`
	Total    float64  `json:"total"`
	Currency string   `json:"currency,omitempty"`
}

// Recompute sets Amount to Quantity*Rate rounded to cents.
func (li *LineItem) Recompute() {
	amt := dec(li.Quantity).Mul(dec(li.Rate)).Round(2)
	li.Amount = amt.InexactFloat64()
}

// Row converts the item into a keyed record as used by template rows.
func (li LineItem) Row() Row {
	r := Row{
		"description": li.Description,
		"quantity":    li.Quantity,
		"rate":        li.Rate,
		"amount":      li.Amount,
	}
	if li.TaxPercent != 0 {
		r["taxPercent"] = li.TaxPercent
	}
	return r
}

// RecomputeTotals recomputes every line amount, then subtotal, tax and total.
// Tax is the sum of per-line taxPercent; the tax line is dropped when zero.
func (inv *InvoiceData) RecomputeTotals() {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for i := range inv.Items {
		inv.Items[i].Recompute()
		amt := dec(inv.Items[i].Amount)
		subtotal = subtotal.Add(amt)
		if p := inv.Items[i].TaxPercent; p != 0 {
			tax = tax.Add(amt.Mul(dec(p)).Div(decimal.NewFromInt(100)))
		}
	}
	subtotal = subtotal.Round(2)
	tax = tax.Round(2)
	total := subtotal.Add(tax)
	if inv.Summary.Discount != nil {
		total = total.Sub(dec(*inv.Summary.Discount))
	}
	inv.Summary.Subtotal = subtotal.InexactFloat64()
	if tax.IsZero() {
		inv.Summary.Tax = nil
	} else {
		v := tax.InexactFloat64()
		inv.Summary.Tax = &v
	}
	inv.Summary.Total = total.Round(2).InexactFloat64()
}

// dec treats NaN and infinities as zero.
func dec(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
