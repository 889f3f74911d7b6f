/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package style resolves partial style dictionaries into complete, render-ready
// style sets. Resolution never fails: absent or malformed values fall back to the
// built-in defaults.
package style

import (
	"strings"

	"invoicestudio/internal/domain"
)

// Recognized style keys.
const (
	PrimaryColor    = "primaryColor"
	SecondaryColor  = "secondaryColor"
	BackgroundColor = "backgroundColor"
	BorderColor     = "borderColor"
	TextColor       = "textColor"
	FontFamily      = "fontFamily"
	FontSize        = "fontSize"
	LineHeight      = "lineHeight"
	Padding         = "padding"
	Margin          = "margin"
	BorderRadius    = "borderRadius"
	HeaderBg        = "headerBg"
	FooterBg        = "footerBg"
	HeaderText      = "headerText"
)

// Light is used for header text on colored banners.
const Light = "#FFFFFF"

// Dark is the default text color.
const Dark = "#1F2937"

type entry struct {
	key string
	def any
}

// defaults in documented order. headerText is derived, see Resolve.
var defaults = []entry{
	{PrimaryColor, "#4F46E5"},
	{SecondaryColor, "#6B7280"},
	{BackgroundColor, "#FFFFFF"},
	{BorderColor, "#E5E7EB"},
	{FontFamily, "Arial, sans-serif"},
	{FontSize, "16px"},
	{LineHeight, "1.5"},
	{Padding, 20.0},
	{Margin, 10.0},
	{BorderRadius, 4.0},
	{HeaderBg, "#F9FAFB"},
	{FooterBg, "#F9FAFB"},
	{TextColor, Dark},
}

// Keys lists the keys that always carry a value after Resolve, in table order,
// followed by the derived headerText.
func Keys() []string {
	out := make([]string, 0, len(defaults)+1)
	for _, e := range defaults {
		out = append(out, e.key)
	}
	return append(out, HeaderText)
}

// Default returns the built-in default for key and false for unrecognized keys.
func Default(key string) (any, bool) {
	for _, e := range defaults {
		if e.key == key {
			return e.def, true
		}
	}
	return nil, false
}

// Resolve merges partial with the defaults. Supplied non-empty values win,
// unrecognized keys pass through unchanged, and headerText is derived when absent:
// white on a banner whose background equals primaryColor, otherwise textColor.
// The input is not modified.
func Resolve(partial domain.StyleSet) domain.StyleSet {
	out := make(domain.StyleSet, len(defaults)+len(partial)+1)
	for k, v := range partial {
		out[k] = v
	}
	for _, e := range defaults {
		if !present(out[e.key]) {
			out[e.key] = e.def
		}
	}
	if !present(out[HeaderText]) {
		if sameColor(out[HeaderBg], out[PrimaryColor]) {
			out[HeaderText] = Light
		} else {
			out[HeaderText] = out[TextColor]
		}
	}
	return out
}

// Merge layers style sets; later layers override earlier ones for non-empty values.
// It is used to put a theme snapshot beneath a template's own styles.
func Merge(layers ...domain.StyleSet) domain.StyleSet {
	out := domain.StyleSet{}
	for _, l := range layers {
		for k, v := range l {
			if present(v) {
				out[k] = v
			}
		}
	}
	return out
}

// present reports whether v is a usable style value: a non-blank string or a number.
func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case float64, float32, int, int64, int32, uint, uint32, uint64:
		return true
	default:
		return false
	}
}

func sameColor(a, b any) bool {
	as, ok1 := a.(string)
	bs, ok2 := b.(string)
	if !ok1 || !ok2 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(as), strings.TrimSpace(bs))
}
