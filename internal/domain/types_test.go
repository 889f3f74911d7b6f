/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestTemplateJSONRoundTrip(t *testing.T) {
	d := TemplateDocument{
		ID:       "t1",
		Name:     "RoundTrip",
		Category: CategoryReceipt,
		Tags:     []string{"a", "b"},
		Content: Content{
			Items: ItemsSection{
				Columns: []ColumnSpec{{Header: "Description", Field: "description"}},
				Data:    []Row{{"description": "X", "quantity": 1.0}},
			},
			Summary: SummarySection{Total: Float(10), Currency: "EUR"},
			Styles:  StyleSet{"primaryColor": "#000000"},
		},
	}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got TemplateDocument
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Name != d.Name || got.Category != CategoryReceipt {
		t.Fatalf("metadata mismatch: %+v", got)
	}
	if got.Content.Summary.Total == nil || *got.Content.Summary.Total != 10 {
		t.Fatalf("total lost in round trip: %+v", got.Content.Summary)
	}
	if len(got.Content.Items.Data) != 1 || got.Content.Items.Data[0]["description"] != "X" {
		t.Fatalf("unexpected rows: %+v", got.Content.Items.Data)
	}
}

func TestCloneIsDeep(t *testing.T) {
	d := TemplateDocument{
		Tags: []string{"x"},
		Content: Content{
			Items:   ItemsSection{Data: []Row{{"nested": map[string]any{"k": "v"}}}},
			Summary: SummarySection{Subtotal: Float(1)},
			Styles:  StyleSet{"primaryColor": "#111111"},
		},
	}
	cp := d.Clone()
	cp.Tags[0] = "y"
	cp.Content.Styles["primaryColor"] = "#222222"
	cp.Content.Items.Data[0]["nested"].(map[string]any)["k"] = "changed"
	*cp.Content.Summary.Subtotal = 2

	if d.Tags[0] != "x" {
		t.Fatalf("tags shared between clone and original")
	}
	if d.Content.Styles["primaryColor"] != "#111111" {
		t.Fatalf("styles shared between clone and original")
	}
	if d.Content.Items.Data[0]["nested"].(map[string]any)["k"] != "v" {
		t.Fatalf("nested row values shared between clone and original")
	}
	if *d.Content.Summary.Subtotal != 1 {
		t.Fatalf("summary pointer shared between clone and original")
	}
}

func TestParseCategory(t *testing.T) {
	cases := map[string]bool{"invoice": true, "estimate": true, "": true, "poster": false, "Invoice": false}
	for in, ok := range cases {
		if _, got := ParseCategory(in); got != ok {
			t.Errorf("ParseCategory(%q) ok=%v, want %v", in, got, ok)
		}
	}
}

func TestRecomputeTotals(t *testing.T) {
	inv := InvoiceData{
		Items: []LineItem{
			{Description: "Design", Quantity: 3, Rate: 33.33, TaxPercent: 10},
			{Description: "Hosting", Quantity: 12, Rate: 25},
		},
		Summary: InvoiceSummary{Discount: Float(10), Currency: "USD"},
	}
	inv.RecomputeTotals()
	if got := inv.Items[0].Amount; got != 99.99 {
		t.Fatalf("line amount = %v, want 99.99", got)
	}
	if inv.Summary.Subtotal != 399.99 {
		t.Fatalf("subtotal = %v, want 399.99", inv.Summary.Subtotal)
	}
	if inv.Summary.Tax == nil || *inv.Summary.Tax != 10 {
		t.Fatalf("tax = %v, want 10", inv.Summary.Tax)
	}
	if inv.Summary.Total != 399.99 {
		t.Fatalf("total = %v, want 399.99", inv.Summary.Total)
	}
}

func TestRecomputeDropsZeroTax(t *testing.T) {
	inv := InvoiceData{Items: []LineItem{{Quantity: 2, Rate: 5}}, Summary: InvoiceSummary{Tax: Float(3)}}
	inv.RecomputeTotals()
	if inv.Summary.Tax != nil {
		t.Fatalf("expected tax line to be dropped, got %v", *inv.Summary.Tax)
	}
	if inv.Summary.Total != 10 {
		t.Fatalf("total = %v, want 10", inv.Summary.Total)
	}
}

func TestRecomputeIgnoresNonFinite(t *testing.T) {
	inv := InvoiceData{
		Items: []LineItem{
			{Quantity: math.NaN(), Rate: 10},
			{Quantity: 2, Rate: 5, TaxPercent: math.Inf(1)},
		},
		Summary: InvoiceSummary{Discount: Float(math.Inf(-1))},
	}
	inv.RecomputeTotals()
	if inv.Items[0].Amount != 0 {
		t.Fatalf("NaN line amount = %v, want 0", inv.Items[0].Amount)
	}
	if inv.Summary.Subtotal != 10 || inv.Summary.Total != 10 {
		t.Fatalf("subtotal/total = %v/%v, want 10/10", inv.Summary.Subtotal, inv.Summary.Total)
	}
	if inv.Summary.Tax != nil {
		t.Fatalf("infinite tax percent should count as zero, got %v", *inv.Summary.Tax)
	}
}

func TestErrorHelpers(t *testing.T) {
	pe := fmt.Errorf("wrap: %w", &ParseError{Msg: "bad", Line: 2, Column: 5})
	if !IsParseError(pe) || IsNotFound(pe) {
		t.Fatalf("ParseError classification wrong")
	}
	nf := &NotFound{ID: "abc"}
	if got := Persistence("get", "abc", nf); got != error(nf) {
		t.Fatalf("NotFound must not be wrapped as persistence failure")
	}
	io := errors.New("connection refused")
	wrapped := Persistence("save", "abc", io)
	if !IsPersistenceFailure(wrapped) || !errors.Is(wrapped, io) {
		t.Fatalf("expected persistence failure wrapping the cause, got %v", wrapped)
	}
	if Persistence("save", "", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
}
