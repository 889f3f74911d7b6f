/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the template document model: the declarative description of an
// invoice's layout (content sections) and styling (style dictionary). Documents
// serialize to human-readable JSON and are the unit of persistence and editing.

// Category classifies a template. The set is closed; see ParseCategory.
type Category string

const (
	CategoryInvoice  Category = "invoice"
	CategoryProposal Category = "proposal"
	CategoryContract Category = "contract"
	CategoryReceipt  Category = "receipt"
	CategoryEstimate Category = "estimate"
	CategoryOther    Category = "other"
)

// Categories lists all categories in display order.
func Categories() []Category {
	return []Category{CategoryInvoice, CategoryProposal, CategoryContract, CategoryReceipt, CategoryEstimate, CategoryOther}
}

// ParseCategory returns the category for s and false if s is not a known category.
// The empty string maps to CategoryInvoice.
func ParseCategory(s string) (Category, bool) {
	if s == "" {
		return CategoryInvoice, true
	}
	for _, c := range Categories() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// StyleSet maps style property names (primaryColor, fontSize, ...) to values.
// Values are strings or numbers; nothing is statically enforced.
type StyleSet map[string]any

// TemplateDocument is a persisted invoice template.
type TemplateDocument struct {
	ID          string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Category    Category `json:"category,omitempty" yaml:"category,omitempty"`
	IsPublic    bool     `json:"isPublic" yaml:"isPublic"`
	IsPremium   bool     `json:"isPremium" yaml:"isPremium"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Content     Content  `json:"content" yaml:"content"`
}

// Content holds the structured sections of a template plus its style dictionary.
type Content struct {
	Header  HeaderSection  `json:"header" yaml:"header"`
	Client  ClientSection  `json:"client" yaml:"client"`
	Items   ItemsSection   `json:"items" yaml:"items"`
	Summary SummarySection `json:"summary" yaml:"summary"`
	Footer  FooterSection  `json:"footer" yaml:"footer"`
	Styles  StyleSet       `json:"styles" yaml:"styles"`
}

type HeaderSection struct {
	Title          string `json:"title,omitempty" yaml:"title,omitempty"`
	InvoiceNumber  string `json:"invoiceNumber,omitempty" yaml:"invoiceNumber,omitempty"`
	Date           string `json:"date,omitempty" yaml:"date,omitempty"`
	DueDate        string `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`
	Logo           string `json:"logo,omitempty" yaml:"logo,omitempty"`
	CompanyName    string `json:"companyName,omitempty" yaml:"companyName,omitempty"`
	CompanyAddress string `json:"companyAddress,omitempty" yaml:"companyAddress,omitempty"`
}

// ClientSection is the "Bill To" block.
type ClientSection struct {
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Email   string `json:"email,omitempty" yaml:"email,omitempty"`
	Phone   string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
}

// Column types understood by the renderer.
const (
	ColumnText     = "text"
	ColumnNumber   = "number"
	ColumnCurrency = "currency"
	ColumnPercent  = "percent"
)

// ColumnSpec describes presentation of one line-item column. Field names the key
// looked up in each data row.
type ColumnSpec struct {
	Header string  `json:"header" yaml:"header"`
	Field  string  `json:"field" yaml:"field"`
	Width  float64 `json:"width,omitempty" yaml:"width,omitempty"` // relative weight
	Type   string  `json:"type,omitempty" yaml:"type,omitempty"`
}

// Row is a plain keyed line-item record. Rows and columns are independent.
type Row map[string]any

type ItemsSection struct {
	Columns []ColumnSpec `json:"columns" yaml:"columns"`
	Data    []Row        `json:"data" yaml:"data"`
}

// TaxLine is rendered only when present on the summary.
type TaxLine struct {
	Label  string  `json:"label,omitempty" yaml:"label,omitempty"`
	Rate   float64 `json:"rate,omitempty" yaml:"rate,omitempty"`
	Amount float64 `json:"amount" yaml:"amount"`
}

// SummarySection holds totals. Nil pointers mean "not provided".
type SummarySection struct {
	Subtotal *float64 `json:"subtotal,omitempty" yaml:"subtotal,omitempty"`
	Tax      *TaxLine `json:"tax,omitempty" yaml:"tax,omitempty"`
	Discount *float64 `json:"discount,omitempty" yaml:"discount,omitempty"`
	Total    *float64 `json:"total,omitempty" yaml:"total,omitempty"`
	Currency string   `json:"currency,omitempty" yaml:"currency,omitempty"`
}

type FooterSection struct {
	Text  string `json:"text,omitempty" yaml:"text,omitempty"`
	Terms string `json:"terms,omitempty" yaml:"terms,omitempty"`
	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// CatalogEntry is a template document offered by the catalog. Builtin entries ship
// with the binary; others come from public storage.
type CatalogEntry struct {
	TemplateDocument `yaml:",inline"`
	Builtin          bool `json:"builtin,omitempty" yaml:"builtin,omitempty"`
}

// Clone returns a deep copy of the entry.
func (e CatalogEntry) Clone() CatalogEntry {
	return CatalogEntry{TemplateDocument: e.TemplateDocument.Clone(), Builtin: e.Builtin}
}

// Clone returns a deep copy of the document, including nested rows and styles.
func (d TemplateDocument) Clone() TemplateDocument {
	cp := d
	if d.Tags != nil {
		cp.Tags = append([]string(nil), d.Tags...)
	}
	cp.Content = d.Content.Clone()
	return cp
}

// Clone returns a deep copy of the content.
func (c Content) Clone() Content {
	cp := c
	if c.Items.Columns != nil {
		cp.Items.Columns = append([]ColumnSpec(nil), c.Items.Columns...)
	}
	if c.Items.Data != nil {
		cp.Items.Data = make([]Row, len(c.Items.Data))
		for i, r := range c.Items.Data {
			cp.Items.Data[i] = Row(cloneMap(r))
		}
	}
	cp.Summary = c.Summary.clone()
	if c.Styles != nil {
		cp.Styles = StyleSet(cloneMap(c.Styles))
	}
	return cp
}

func (s SummarySection) clone() SummarySection {
	cp := s
	if s.Subtotal != nil {
		v := *s.Subtotal
		cp.Subtotal = &v
	}
	if s.Discount != nil {
		v := *s.Discount
		cp.Discount = &v
	}
	if s.Total != nil {
		v := *s.Total
		cp.Total = &v
	}
	if s.Tax != nil {
		t := *s.Tax
		cp.Tax = &t
	}
	return cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Float returns a pointer to v. Handy for building summaries in code.
func Float(v float64) *float64 { return &v }
