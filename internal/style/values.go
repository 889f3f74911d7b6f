/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package style

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"invoicestudio/internal/domain"
)

// RGB is an 8-bit color.
type RGB struct{ R, G, B uint8 }

// Hex formats the color as #RRGGBB.
func (c RGB) Hex() string { return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B) }

// ParseHex parses "#RGB", "#RRGGBB" (leading # optional). The second result is
// false for anything else.
func ParseHex(s string) (RGB, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	default:
		return RGB{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
}

// Color returns the color stored under key. Malformed or absent values fall back to
// the key's default, and to Dark for keys without a color default.
func Color(set domain.StyleSet, key string) RGB {
	if s, ok := set[key].(string); ok {
		if c, ok := ParseHex(s); ok {
			return c
		}
	}
	if key == HeaderText {
		// derived key: recompute from a resolved set
		if s, ok := Resolve(withoutKey(set, HeaderText))[HeaderText].(string); ok {
			if c, ok := ParseHex(s); ok {
				return c
			}
		}
	}
	if d, ok := Default(key); ok {
		if s, ok := d.(string); ok {
			if c, ok := ParseHex(s); ok {
				return c
			}
		}
	}
	c, _ := ParseHex(Dark)
	return c
}

// Length returns a length in pixels. Accepts numbers and strings such as "16",
// "16px" or "12pt" (points are converted at 96dpi). Malformed, negative or
// non-finite values fall back to the default for key, and 0 for keys without a default.
func Length(set domain.StyleSet, key string) float64 {
	if v, ok := parseLength(set[key]); ok {
		return v
	}
	if d, ok := Default(key); ok {
		if v, ok := parseLength(d); ok {
			return v
		}
	}
	return 0
}

// Number returns a unitless number (e.g. lineHeight) with the same fallback rules as Length.
func Number(set domain.StyleSet, key string) float64 { return Length(set, key) }

// String returns the value under key formatted for display or CSS. Numeric
// lengths get a px suffix; lineHeight stays unitless.
func String(set domain.StyleSet, key string) string {
	v := set[key]
	if !present(v) {
		if d, ok := Default(key); ok {
			v = d
		} else {
			return ""
		}
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	default:
		n := Length(set, key)
		num := strconv.FormatFloat(n, 'f', -1, 64)
		if key == LineHeight {
			return num
		}
		return num + "px"
	}
}

// ParseValue converts form or command-line text into a style value. Numbers stay
// numeric so fontSize=14 is stored as 14, everything else as trimmed text.
func ParseValue(text string) any {
	t := strings.TrimSpace(text)
	if f, err := strconv.ParseFloat(t, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return t
}

// FontStack splits a CSS font-family list into family names without quotes.
func FontStack(set domain.StyleSet) []string {
	raw := String(set, FontFamily)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		p := strings.Trim(strings.TrimSpace(part), `"'`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseLength accepts finite, non-negative values only.
func parseLength(v any) (float64, bool) {
	f, ok := rawLength(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

func rawLength(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		scale := 1.0
		switch {
		case strings.HasSuffix(s, "px"):
			s = strings.TrimSuffix(s, "px")
		case strings.HasSuffix(s, "pt"):
			s = strings.TrimSuffix(s, "pt")
			scale = 96.0 / 72.0
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		return f * scale, true
	}
	return 0, false
}

func withoutKey(set domain.StyleSet, key string) domain.StyleSet {
	out := make(domain.StyleSet, len(set))
	for k, v := range set {
		if k != key {
			out[k] = v
		}
	}
	return out
}
