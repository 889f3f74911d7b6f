/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package document

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicestudio/internal/domain"
)

func TestValidateEmptyContent(t *testing.T) {
	doc, err := Validate(map[string]any{"name": "Blank", "content": map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, "Blank", doc.Name)
	assert.Equal(t, domain.CategoryInvoice, doc.Category)
	assert.NotNil(t, doc.Content.Items.Columns)
	assert.Empty(t, doc.Content.Items.Columns)
	assert.NotNil(t, doc.Content.Items.Data)
	assert.NotNil(t, doc.Content.Styles)
	assert.Empty(t, doc.Content.Header.Title)
}

func TestValidateMissingContent(t *testing.T) {
	_, err := Validate(map[string]any{"name": "x"})
	var pe *domain.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Msg, "content")

	_, err = Validate(map[string]any{"content": "nope"})
	require.True(t, domain.IsParseError(err))

	_, err = Validate(nil)
	require.True(t, domain.IsParseError(err))
}

func TestValidateShapeErrors(t *testing.T) {
	cases := map[string]map[string]any{
		"header not object": {"content": map[string]any{"header": "x"}},
		"bad column type":   {"content": map[string]any{"items": map[string]any{"columns": []any{map[string]any{"type": "money"}}}}},
		"row not object":    {"content": map[string]any{"items": map[string]any{"data": []any{1}}}},
		"total not number":  {"content": map[string]any{"summary": map[string]any{"total": "ten"}}},
		"unknown category":  {"category": "invoice-ish", "content": map[string]any{}},
		"tags not strings":  {"tags": []any{1, 2}, "content": map[string]any{}},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Validate(raw)
			var pe *domain.ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.NotEmpty(t, pe.Details)
		})
	}
}

func TestValidateKeepsPassthroughStyles(t *testing.T) {
	doc, err := Validate(map[string]any{"content": map[string]any{
		"styles": map[string]any{"primaryColor": "#000000", "customShadow": "0 1px 2px"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "#000000", doc.Content.Styles["primaryColor"])
	assert.Equal(t, "0 1px 2px", doc.Content.Styles["customShadow"])
}

func TestParseSyntaxErrorHasPosition(t *testing.T) {
	_, err := Parse([]byte("{\n  \"content\": {\n    \"header\": {,}\n  }\n}"))
	var pe *domain.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 3, pe.Line)
	assert.Greater(t, pe.Column, 1)
	assert.Contains(t, pe.Error(), "line 3")
}

func TestParseRejectsNonObject(t *testing.T) {
	for _, in := range []string{"", "   ", "[]", "42", `"content"`} {
		_, err := Parse([]byte(in))
		assert.True(t, domain.IsParseError(err), "input %q", in)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	raw := map[string]any{
		"id":        "tpl-1",
		"name":      "Round Trip",
		"category":  "estimate",
		"isPublic":  true,
		"isPremium": true,
		"tags":      []any{"b", "a", "b"},
		"content": map[string]any{
			"header": map[string]any{"title": "ESTIMATE", "logo": "https://example.com/l.png"},
			"client": map[string]any{"name": "ACME"},
			"items": map[string]any{
				"columns": []any{map[string]any{"header": "Item", "field": "description", "width": 3}},
				"data":    []any{map[string]any{"description": "Work", "quantity": 2, "meta": map[string]any{"k": []any{1, "x"}}}},
			},
			"summary": map[string]any{"subtotal": 10, "tax": map[string]any{"label": "VAT", "rate": 16, "amount": 1.6}, "currency": "KES"},
			"footer":  map[string]any{"terms": "Net 30"},
			"styles":  map[string]any{"primaryColor": "#112233", "padding": 12},
		},
	}
	doc, err := Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, doc.Tags)

	text, err := Serialize(doc)
	require.NoError(t, err)
	again, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, doc, again)

	text2, err := Serialize(again)
	require.NoError(t, err)
	assert.JSONEq(t, string(text), string(text2))
}

func TestNewDocument(t *testing.T) {
	a := New("Mine", "")
	b := New("Mine", domain.CategoryReceipt)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, domain.CategoryInvoice, a.Category)
	assert.Equal(t, domain.CategoryReceipt, b.Category)

	text, err := Serialize(a)
	require.NoError(t, err)
	back, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, a, back)
}

func TestToRaw(t *testing.T) {
	raw, err := ToRaw(New("x", domain.CategoryOther))
	require.NoError(t, err)
	_, ok := raw["content"].(map[string]any)
	assert.True(t, ok)
	b, _ := json.Marshal(raw)
	_, err = Parse(b)
	assert.NoError(t, err)
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"x", "y"}, NormalizeTags([]string{" x", "y", "x", ""}))
	assert.Nil(t, NormalizeTags(nil))
	assert.Nil(t, NormalizeTags([]string{" "}))
}
