/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"math"
	"strings"

	"invoicestudio/internal/domain"
	"invoicestudio/internal/render"
	"invoicestudio/internal/style"
)

// Upper bounds keep a hostile style set from sizing the page raster.
const (
	maxFontPx     = 96
	maxLineHeight = 4
)

// span is a run of text placed between fractions x0 and x1 of the content width.
type span struct {
	text  string
	color style.RGB
	bold  bool
	align string // L, C or R
	x0    float64
	x1    float64
	image string
}

type line struct {
	spans []span
	fill  *style.RGB
	scale float64
	rule  bool
	wrap  bool
}

// block is a vertical section of the page, painted top to bottom.
type block struct {
	role   string
	fill   *style.RGB
	border *style.RGB
	lines  []line
}

// page is the device-independent layout shared by the PDF and PNG writers.
type page struct {
	styles     domain.StyleSet
	background style.RGB
	text       style.RGB
	fontPx     float64
	lineHeight float64
	padPx      float64
	blocks     []block
}

func styleSet(t *render.Tree) domain.StyleSet {
	out := make(domain.StyleSet, len(t.Styles))
	for k, v := range t.Styles {
		out[k] = v
	}
	return out
}

// nodeColor reads a hex color property of n, falling back to fb.
func nodeColor(n *render.Node, prop string, fb style.RGB) style.RGB {
	if n == nil {
		return fb
	}
	if c, ok := style.ParseHex(n.Style[prop]); ok {
		return c
	}
	return fb
}

func ptr(c style.RGB) *style.RGB { return &c }

func layout(t *render.Tree) page {
	st := styleSet(t)
	p := page{
		styles:     st,
		background: style.Color(st, style.BackgroundColor),
		text:       style.Color(st, style.TextColor),
		fontPx:     style.Length(st, style.FontSize),
		lineHeight: style.Number(st, style.LineHeight),
		padPx:      style.Length(st, style.Padding),
	}
	if p.fontPx <= 0 {
		p.fontPx = 16
	}
	p.fontPx = math.Min(p.fontPx, maxFontPx)
	if p.lineHeight <= 0 {
		p.lineHeight = 1.5
	}
	p.lineHeight = math.Min(p.lineHeight, maxLineHeight)
	if t == nil || t.Root == nil {
		return p
	}
	for _, sec := range t.Root.Children {
		switch sec.Role {
		case "header":
			p.blocks = append(p.blocks, headerBlock(sec, p.text))
		case "client":
			p.blocks = append(p.blocks, listBlock(sec, p.text, "L"))
		case "items":
			p.blocks = append(p.blocks, tableBlock(sec, p.text))
		case "summary":
			p.blocks = append(p.blocks, summaryBlock(sec, p.text))
		case "footer":
			b := listBlock(sec, p.text, "C")
			b.fill = ptr(nodeColor(sec, "background-color", style.RGB{R: 0xF9, G: 0xFA, B: 0xFB}))
			b.border = ptr(nodeColor(sec, "border-color", style.RGB{R: 0xE5, G: 0xE7, B: 0xEB}))
			p.blocks = append(p.blocks, b)
		}
	}
	return p
}

func isBold(n *render.Node) bool { return n.Style["font-weight"] == "bold" }

func headerBlock(sec *render.Node, text style.RGB) block {
	b := block{role: sec.Role, fill: ptr(nodeColor(sec, "background-color", style.RGB{R: 0xF9, G: 0xFA, B: 0xFB}))}
	var left, right []span
	for _, n := range sec.Children {
		c := nodeColor(n, "color", text)
		switch {
		case n.Kind == render.KindImage:
			b.lines = append(b.lines, line{scale: 2.5, spans: []span{{image: n.Src, x0: 0, x1: 0.3, align: "L"}}})
		case n.Role == "header.title":
			b.lines = append(b.lines, line{scale: 1.6, spans: []span{{text: n.Text, color: c, bold: true, align: "L", x0: 0, x1: 1}}})
		case strings.HasPrefix(n.Role, "header.company"):
			left = append(left, span{text: n.Text, color: c, bold: isBold(n), align: "L", x0: 0, x1: 0.55})
		default:
			right = append(right, span{text: n.Display(), color: c, align: "R", x0: 0.55, x1: 1})
		}
	}
	for i := 0; i < len(left) || i < len(right); i++ {
		var l line
		l.scale = 1
		if i < len(left) {
			l.spans = append(l.spans, left[i])
		}
		if i < len(right) {
			l.spans = append(l.spans, right[i])
		}
		b.lines = append(b.lines, l)
	}
	return b
}

func listBlock(sec *render.Node, text style.RGB, align string) block {
	b := block{role: sec.Role}
	for _, n := range sec.Children {
		if n.Kind != render.KindText {
			continue
		}
		scale := 1.0
		if n.Style["font-size"] == "smaller" {
			scale = 0.85
		}
		b.lines = append(b.lines, line{scale: scale, wrap: true, spans: []span{{
			text: n.Display(), color: nodeColor(n, "color", text), bold: isBold(n), align: align, x0: 0, x1: 1,
		}}})
	}
	return b
}

func tableBlock(sec *render.Node, text style.RGB) block {
	b := block{role: sec.Role, border: ptr(nodeColor(sec, "border-color", style.RGB{R: 0xE5, G: 0xE7, B: 0xEB}))}
	var total float64
	for _, c := range sec.Columns {
		total += c.Width
	}
	if total <= 0 {
		return b
	}
	bounds := make([][2]float64, len(sec.Columns))
	var acc float64
	for i, c := range sec.Columns {
		bounds[i] = [2]float64{acc / total, (acc + c.Width) / total}
		acc += c.Width
	}
	align := func(i int) string {
		if sec.Columns[i].Align == "right" {
			return "R"
		}
		return "L"
	}
	headColor := nodeColor(sec, "header-color", style.RGB{R: 255, G: 255, B: 255})
	head := line{scale: 1, fill: ptr(nodeColor(sec, "header-background-color", style.RGB{R: 0x4F, G: 0x46, B: 0xE5}))}
	for i, c := range sec.Columns {
		head.spans = append(head.spans, span{text: c.Header, color: headColor, bold: true, align: align(i), x0: bounds[i][0], x1: bounds[i][1]})
	}
	b.lines = append(b.lines, head)
	cellColor := nodeColor(sec, "color", text)
	for _, row := range sec.Rows {
		l := line{scale: 1, rule: true}
		for i, cell := range row {
			if i >= len(bounds) {
				break
			}
			l.spans = append(l.spans, span{text: cell, color: cellColor, align: align(i), x0: bounds[i][0], x1: bounds[i][1]})
		}
		b.lines = append(b.lines, l)
	}
	return b
}

func summaryBlock(sec *render.Node, text style.RGB) block {
	b := block{role: sec.Role}
	for _, n := range sec.Children {
		c := nodeColor(n, "color", text)
		bold := isBold(n)
		b.lines = append(b.lines, line{scale: 1, spans: []span{
			{text: n.Label, color: c, bold: bold, align: "R", x0: 0.45, x1: 0.75},
			{text: n.Text, color: c, bold: bold, align: "R", x0: 0.75, x1: 1},
		}})
	}
	return b
}
