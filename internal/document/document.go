/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package document validates, parses and serializes template documents.
//
// The raw form of a template is a JSON object. Validate checks its shape against
// the embedded JSON Schema (template.schema.json) and fills in absent sections so
// that every document leaving this package has non-nil sections, an explicit
// category and deduplicated tags.
package document

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	gojsonschema "github.com/xeipuuv/gojsonschema"

	"invoicestudio/internal/domain"
)

//go:embed template.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiled() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

// Validate turns a decoded JSON object into a TemplateDocument. It fails with a
// *domain.ParseError when content is missing or not an object, or when any field
// has the wrong shape.
func Validate(raw map[string]any) (domain.TemplateDocument, error) {
	if raw == nil {
		return domain.TemplateDocument{}, &domain.ParseError{Msg: "template is empty"}
	}
	content, ok := raw["content"]
	if !ok {
		return domain.TemplateDocument{}, &domain.ParseError{Msg: "missing content"}
	}
	if _, ok := content.(map[string]any); !ok {
		return domain.TemplateDocument{}, &domain.ParseError{Msg: "content must be an object"}
	}

	s, err := compiled()
	if err != nil {
		return domain.TemplateDocument{}, fmt.Errorf("load template schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return domain.TemplateDocument{}, &domain.ParseError{Msg: "invalid template", Err: err}
	}
	if !res.Valid() {
		details := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			details = append(details, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
		}
		return domain.TemplateDocument{}, &domain.ParseError{Msg: "invalid template", Details: details}
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return domain.TemplateDocument{}, &domain.ParseError{Msg: "invalid template", Err: err}
	}
	var doc domain.TemplateDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return domain.TemplateDocument{}, &domain.ParseError{Msg: "invalid template", Err: err, Details: []string{err.Error()}}
	}
	cat, ok := domain.ParseCategory(string(doc.Category))
	if !ok {
		return domain.TemplateDocument{}, &domain.ParseError{Msg: "unknown category", Details: []string{string(doc.Category)}}
	}
	doc.Category = cat
	return Normalize(doc), nil
}

// Parse decodes JSON text and validates it. Syntax errors carry a line and column.
func Parse(text []byte) (domain.TemplateDocument, error) {
	trimmed := bytes.TrimSpace(text)
	if len(trimmed) == 0 {
		return domain.TemplateDocument{}, &domain.ParseError{Msg: "template is empty"}
	}
	var v any
	if err := json.Unmarshal(text, &v); err != nil {
		pe := &domain.ParseError{Msg: "invalid JSON", Err: err}
		var se *json.SyntaxError
		if errors.As(err, &se) {
			pe.Line, pe.Column = position(text, se.Offset)
			pe.Details = []string{se.Error()}
		}
		return domain.TemplateDocument{}, pe
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return domain.TemplateDocument{}, &domain.ParseError{Msg: "template must be a JSON object"}
	}
	return Validate(raw)
}

// ParseString is Parse for editor text.
func ParseString(text string) (domain.TemplateDocument, error) { return Parse([]byte(text)) }

// Serialize renders doc as indented JSON. Parse(Serialize(d)) yields d for any
// document produced by Validate.
func Serialize(doc domain.TemplateDocument) ([]byte, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize template %q: %w", doc.ID, err)
	}
	return append(b, '\n'), nil
}

// ToRaw converts doc to its generic JSON object form.
func ToRaw(doc domain.TemplateDocument) (map[string]any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// New returns an empty document with a fresh id.
func New(name string, category domain.Category) domain.TemplateDocument {
	if category == "" {
		category = domain.CategoryInvoice
	}
	return Normalize(domain.TemplateDocument{
		ID:       uuid.NewString(),
		Name:     name,
		Category: category,
	})
}

// Normalize fills absent sections with empty values and deduplicates tags.
// It returns a copy; doc is not modified.
func Normalize(doc domain.TemplateDocument) domain.TemplateDocument {
	out := doc.Clone()
	if out.Category == "" {
		out.Category = domain.CategoryInvoice
	}
	out.Tags = NormalizeTags(out.Tags)
	if out.Content.Items.Columns == nil {
		out.Content.Items.Columns = []domain.ColumnSpec{}
	}
	if out.Content.Items.Data == nil {
		out.Content.Items.Data = []domain.Row{}
	}
	for i, r := range out.Content.Items.Data {
		if r == nil {
			out.Content.Items.Data[i] = domain.Row{}
		}
	}
	if out.Content.Styles == nil {
		out.Content.Styles = domain.StyleSet{}
	}
	return out
}

// NormalizeTags trims tags, drops blanks and duplicates, and keeps first-seen
// order. It returns nil when nothing is left.
func NormalizeTags(tags []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// position converts a byte offset into a 1-based line and column.
func position(text []byte, offset int64) (line, col int) {
	if offset > int64(len(text)) {
		offset = int64(len(text))
	}
	line, col = 1, 1
	for _, c := range text[:offset] {
		if c == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
