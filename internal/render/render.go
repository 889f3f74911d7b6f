/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render turns a template document plus optional invoice data into a
// styled render tree. Rendering is total: missing data falls back to
// placeholders, missing styles to the resolved defaults. It is pure apart from
// the clock used for placeholder dates.
package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"invoicestudio/internal/domain"
	"invoicestudio/internal/style"
)

// Placeholder values used when neither invoice data nor the template supply one.
const (
	DefaultTitle         = "INVOICE"
	DefaultInvoiceNumber = "INV-0001"
	DefaultClientName    = "Client Name"
	DefaultClientEmail   = "client@example.com"
	DefaultClientPhone   = "+1 (555) 000-0000"
	DefaultClientAddress = "123 Client Street, City"
	DefaultClientLabel   = "Bill To"
	DefaultFooterText    = "Thank you for your business!"
	DateLayout           = "2006-01-02"
	DefaultDueDays       = 30
)

// DefaultColumns are used when a template defines no columns.
func DefaultColumns() []domain.ColumnSpec {
	return []domain.ColumnSpec{
		{Header: "Description", Field: "description", Width: 4, Type: domain.ColumnText},
		{Header: "Qty", Field: "quantity", Width: 1, Type: domain.ColumnNumber},
		{Header: "Rate", Field: "rate", Width: 2, Type: domain.ColumnCurrency},
		{Header: "Amount", Field: "amount", Width: 2, Type: domain.ColumnCurrency},
	}
}

// PlaceholderRows are shown when there are no line items at all.
func PlaceholderRows() []domain.Row {
	return []domain.Row{
		{"description": "Website Design", "quantity": 1.0, "rate": 1500.0, "amount": 1500.0},
		{"description": "Hosting (12 months)", "quantity": 12.0, "rate": 25.0, "amount": 300.0},
	}
}

type options struct {
	now     func() time.Time
	dueDays int
}

// Option configures Render.
type Option func(*options)

// WithClock sets the clock used for placeholder dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDueDays sets how many days after the issue date the placeholder due date falls.
func WithDueDays(days int) Option {
	return func(o *options) {
		if days > 0 {
			o.dueDays = days
		}
	}
}

// Render builds the render tree for tpl. inv may be nil; when given, its values
// take precedence over the template content.
func Render(tpl domain.TemplateDocument, inv *domain.InvoiceData, opts ...Option) *Tree {
	o := options{now: time.Now, dueDays: DefaultDueDays}
	for _, fn := range opts {
		fn(&o)
	}
	st := style.Resolve(tpl.Content.Styles)
	r := renderer{tpl: tpl.Content, inv: inv, st: st, opt: o}

	root := &Node{
		Kind: KindContainer,
		Role: "invoice",
		Style: map[string]string{
			"background-color": style.Color(st, style.BackgroundColor).Hex(),
			"color":            style.Color(st, style.TextColor).Hex(),
			"font-family":      style.String(st, style.FontFamily),
			"font-size":        style.String(st, style.FontSize),
			"line-height":      style.String(st, style.LineHeight),
			"padding":          style.String(st, style.Padding),
			"border-radius":    style.String(st, style.BorderRadius),
		},
	}
	root.Children = []*Node{r.header(), r.client(), r.items(), r.summary(), r.footer()}
	return &Tree{Root: root, Styles: flatten(st)}
}

type renderer struct {
	tpl domain.Content
	inv *domain.InvoiceData
	st  domain.StyleSet
	opt options
}

func (r renderer) text(role, label, value string, extra map[string]string) *Node {
	s := map[string]string{"color": style.Color(r.st, style.TextColor).Hex()}
	for k, v := range extra {
		s[k] = v
	}
	return &Node{Kind: KindText, Role: role, Label: label, Text: value, Style: s}
}

func (r renderer) header() *Node {
	h := r.tpl.Header
	headerText := style.Color(r.st, style.HeaderText).Hex()
	onBanner := map[string]string{"color": headerText}

	n := &Node{
		Kind: KindContainer,
		Role: "header",
		Style: map[string]string{
			"background-color": style.Color(r.st, style.HeaderBg).Hex(),
			"color":            headerText,
			"padding":          style.String(r.st, style.Padding),
			"border-radius":    style.String(r.st, style.BorderRadius),
		},
	}
	if h.Logo != "" {
		n.Children = append(n.Children, &Node{Kind: KindImage, Role: "header.logo", Src: h.Logo, Style: map[string]string{"max-height": "64px"}})
	}
	if h.CompanyName != "" {
		n.Children = append(n.Children, r.text("header.company", "", h.CompanyName, map[string]string{"color": headerText, "font-weight": "bold"}))
	}
	if h.CompanyAddress != "" {
		n.Children = append(n.Children, r.text("header.companyAddress", "", h.CompanyAddress, onBanner))
	}

	var title, number, date, due string
	now := r.opt.now()
	if r.inv != nil {
		title = r.inv.Title
		number = r.inv.InvoiceNumber
		if !r.inv.IssueDate.IsZero() {
			date = r.inv.IssueDate.Format(DateLayout)
			now = r.inv.IssueDate
		}
		if !r.inv.DueDate.IsZero() {
			due = r.inv.DueDate.Format(DateLayout)
		}
	}
	title = first(title, h.Title, DefaultTitle)
	number = first(number, h.InvoiceNumber, DefaultInvoiceNumber)
	date = first(date, h.Date, now.Format(DateLayout))
	due = first(due, h.DueDate, now.AddDate(0, 0, r.opt.dueDays).Format(DateLayout))

	titleSize := fmt.Sprintf("%gpx", style.Length(r.st, style.FontSize)*1.75)
	n.Children = append(n.Children,
		r.text("header.title", "", title, map[string]string{"color": headerText, "font-size": titleSize, "font-weight": "bold"}),
		r.text("header.number", "Invoice #", number, onBanner),
		r.text("header.date", "Date", date, onBanner),
		r.text("header.dueDate", "Due Date", due, onBanner),
	)
	return n
}

func (r renderer) client() *Node {
	c := r.tpl.Client
	var ic domain.ClientInfo
	if r.inv != nil {
		ic = r.inv.Client
	}
	secondary := map[string]string{"color": style.Color(r.st, style.SecondaryColor).Hex()}
	return &Node{
		Kind:  KindContainer,
		Role:  "client",
		Style: map[string]string{"margin": style.String(r.st, style.Margin)},
		Children: []*Node{
			r.text("client.label", "", first(c.Label, DefaultClientLabel), map[string]string{
				"color":       style.Color(r.st, style.PrimaryColor).Hex(),
				"font-weight": "bold",
			}),
			r.text("client.name", "", first(ic.Name, c.Name, DefaultClientName), nil),
			r.text("client.email", "", first(ic.Email, c.Email, DefaultClientEmail), secondary),
			r.text("client.phone", "", first(ic.Phone, c.Phone, DefaultClientPhone), secondary),
			r.text("client.address", "", first(ic.Address, c.Address, DefaultClientAddress), secondary),
		},
	}
}

func (r renderer) currency() string {
	if r.inv != nil && strings.TrimSpace(r.inv.Summary.Currency) != "" {
		return strings.ToUpper(strings.TrimSpace(r.inv.Summary.Currency))
	}
	if c := strings.TrimSpace(r.tpl.Summary.Currency); c != "" {
		return strings.ToUpper(c)
	}
	return DefaultCurrency
}

func (r renderer) items() *Node {
	specs := r.tpl.Items.Columns
	if len(specs) == 0 {
		specs = DefaultColumns()
	}
	// A Caser keeps state between calls; each render gets its own.
	titler := cases.Title(language.English)
	cols := make([]Column, len(specs))
	for i, s := range specs {
		c := Column{Header: s.Header, Field: s.Field, Width: s.Width, Type: s.Type, Align: "left"}
		if c.Header == "" {
			c.Header = titler.String(s.Field)
		}
		if c.Width <= 0 {
			c.Width = 1
		}
		if c.Type == domain.ColumnNumber || c.Type == domain.ColumnCurrency || c.Type == domain.ColumnPercent {
			c.Align = "right"
		}
		cols[i] = c
	}

	var data []domain.Row
	switch {
	case r.inv != nil && len(r.inv.Items) > 0:
		data = make([]domain.Row, len(r.inv.Items))
		for i, li := range r.inv.Items {
			data[i] = li.Row()
		}
	case len(r.tpl.Items.Data) > 0:
		data = r.tpl.Items.Data
	default:
		data = PlaceholderRows()
	}

	cur := r.currency()
	rows := make([][]string, len(data))
	for i, row := range data {
		cells := make([]string, len(cols))
		for j, c := range cols {
			cells[j] = cell(row[c.Field], c.Type, cur)
		}
		rows[i] = cells
	}
	return &Node{
		Kind:    KindTable,
		Role:    "items",
		Columns: cols,
		Rows:    rows,
		Style: map[string]string{
			"border-color":            style.Color(r.st, style.BorderColor).Hex(),
			"header-background-color": style.Color(r.st, style.PrimaryColor).Hex(),
			"header-color":            style.Light,
			"color":                   style.Color(r.st, style.TextColor).Hex(),
			"border-radius":           style.String(r.st, style.BorderRadius),
		},
	}
}

// cell formats one table value. Missing values render as "".
func cell(v any, typ, currency string) string {
	if v == nil {
		return ""
	}
	f, isNum := toFloat(v)
	switch typ {
	case domain.ColumnCurrency:
		if isNum {
			return Money(f, currency)
		}
	case domain.ColumnPercent:
		if isNum {
			return Percent(f)
		}
	case domain.ColumnNumber:
		if isNum {
			return Number(f)
		}
	}
	if isNum {
		if _, ok := v.(string); !ok {
			return Number(f)
		}
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, finite(t)
	case float32:
		return float64(t), finite(float64(t))
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, true
		}
		return 0, false
	}
	return 0, false
}

func (r renderer) summary() *Node {
	s := r.tpl.Summary
	cur := r.currency()

	var subtotal, total float64
	tax := s.Tax
	discount := s.Discount
	if s.Subtotal != nil {
		subtotal = *s.Subtotal
	}
	if s.Total != nil {
		total = *s.Total
	}
	if r.inv != nil {
		subtotal = r.inv.Summary.Subtotal
		total = r.inv.Summary.Total
		if r.inv.Summary.Tax != nil {
			tax = &domain.TaxLine{Amount: *r.inv.Summary.Tax}
			if s.Tax != nil {
				tax.Label, tax.Rate = s.Tax.Label, s.Tax.Rate
			}
		}
		if r.inv.Summary.Discount != nil {
			discount = r.inv.Summary.Discount
		}
	}

	n := &Node{
		Kind:  KindContainer,
		Role:  "summary",
		Style: map[string]string{"text-align": "right", "margin": style.String(r.st, style.Margin)},
	}
	n.Children = append(n.Children, r.text("summary.subtotal", "Subtotal", Money(subtotal, cur), nil))
	if tax != nil {
		label := first(tax.Label, "Tax")
		if tax.Rate != 0 {
			label = fmt.Sprintf("%s (%s)", label, Percent(tax.Rate))
		}
		n.Children = append(n.Children, r.text("summary.tax", label, Money(tax.Amount, cur), nil))
	}
	if discount != nil {
		d := *discount
		if d > 0 {
			d = -d
		}
		n.Children = append(n.Children, r.text("summary.discount", "Discount", Money(d, cur), nil))
	}
	n.Children = append(n.Children, r.text("summary.total", "Total", Money(total, cur), map[string]string{
		"color":       style.Color(r.st, style.PrimaryColor).Hex(),
		"font-weight": "bold",
	}))
	return n
}

func (r renderer) footer() *Node {
	f := r.tpl.Footer
	n := &Node{
		Kind: KindContainer,
		Role: "footer",
		Style: map[string]string{
			"background-color": style.Color(r.st, style.FooterBg).Hex(),
			"color":            style.Color(r.st, style.SecondaryColor).Hex(),
			"padding":          style.String(r.st, style.Padding),
			"border-color":     style.Color(r.st, style.BorderColor).Hex(),
		},
	}
	n.Children = append(n.Children, r.text("footer.text", "", first(f.Text, DefaultFooterText), nil))
	var terms, notes string
	if r.inv != nil {
		terms, notes = r.inv.Terms, r.inv.Notes
	}
	if t := first(terms, f.Terms); t != "" {
		n.Children = append(n.Children, r.text("footer.terms", "Terms", t, map[string]string{"font-size": "smaller"}))
	}
	if nt := first(notes, f.Notes); nt != "" {
		n.Children = append(n.Children, r.text("footer.notes", "Notes", nt, map[string]string{"font-size": "smaller"}))
	}
	return n
}

// first returns the first non-blank value.
func first(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func flatten(st domain.StyleSet) map[string]string {
	out := make(map[string]string, len(st))
	for k, v := range st {
		if _, known := style.Default(k); known || k == style.HeaderText {
			out[k] = style.String(st, k)
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
