/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"invoicestudio/internal/render"
	"invoicestudio/internal/style"
	"invoicestudio/internal/version"
)

// PDFOptions controls PDF export. Units are millimetres.
type PDFOptions struct {
	PageSize string // "A4" (default), "Letter" or "Legal"
	MarginMm float64
	Title    string
	Author   string
}

const (
	pxToMm = 25.4 / 96
	pxToPt = 0.75
	ptToMm = 25.4 / 72
)

// ExportPDF draws the render tree on one or more pages with the built-in core
// fonts. Sections are painted as bands using the resolved header and footer
// backgrounds; table rows are separated by hairlines in the border color.
func ExportPDF(t *render.Tree, w io.Writer, opt PDFOptions) error {
	if t == nil || t.Root == nil {
		return errors.New("export pdf: empty render tree")
	}
	p := layout(t)
	size := opt.PageSize
	if size == "" {
		size = "A4"
	}
	margin := opt.MarginMm
	if margin <= 0 {
		margin = 15
	}

	pdf := gofpdf.New("P", "mm", size, "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetTitle(firstNonEmpty(opt.Title, "Invoice"), true)
	pdf.SetAuthor(firstNonEmpty(opt.Author, "Invoice Studio"), true)
	pdf.SetCreator(version.String(), true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, pageH := pdf.GetPageSize()
	if p.background != (style.RGB{R: 255, G: 255, B: 255}) {
		pdf.SetHeaderFunc(func() {
			fill(pdf, p.background)
			pdf.Rect(0, 0, pageW, pageH, "F")
		})
	}
	pdf.AddPage()

	family := pdfFamily(style.FontStack(p.styles))
	basePt := p.fontPx * pxToPt
	lineMm := basePt * p.lineHeight * ptToMm
	padMm := min(p.padPx*pxToMm, 8)
	contentW := pageW - 2*margin
	bottom := pageH - margin
	y := margin

	for _, b := range p.blocks {
		padX := 0.0
		if b.fill != nil {
			padX = padMm
		}
		innerW := contentW - 2*padX
		band := func(h float64) {
			if b.fill != nil {
				fill(pdf, *b.fill)
				pdf.Rect(margin, y, contentW, h, "F")
			}
		}
		if b.fill != nil {
			if y+padMm > bottom {
				pdf.AddPage()
				y = margin
			}
			band(padMm)
			if b.border != nil {
				draw(pdf, *b.border)
				pdf.SetLineWidth(0.2)
				pdf.Line(margin, y, margin+contentW, y)
			}
			y += padMm
		}
		for _, ln := range b.lines {
			sizePt := basePt * ln.scale
			h := lineMm * ln.scale
			if ln.wrap && len(ln.spans) == 1 {
				pdf.SetFont(family, fontStyle(ln.spans[0].bold), sizePt)
				w := (ln.spans[0].x1 - ln.spans[0].x0) * innerW
				if n := len(pdf.SplitLines([]byte(tr(ln.spans[0].text)), w)); n > 1 {
					h *= float64(n)
				}
			}
			if y+h > bottom {
				pdf.AddPage()
				y = margin
			}
			band(h)
			if ln.fill != nil {
				fill(pdf, *ln.fill)
				pdf.Rect(margin+padX, y, innerW, h, "F")
			}
			for _, s := range ln.spans {
				x := margin + padX + s.x0*innerW
				w := (s.x1 - s.x0) * innerW
				if s.image != "" {
					if imageType(s.image) != "" {
						pdf.ImageOptions(s.image, x, y, 0, h*0.9, false, gofpdf.ImageOptions{ImageType: imageType(s.image)}, 0, "")
					}
					continue
				}
				pdf.SetFont(family, fontStyle(s.bold), sizePt)
				pdf.SetTextColor(int(s.color.R), int(s.color.G), int(s.color.B))
				pdf.SetXY(x, y)
				if ln.wrap {
					pdf.MultiCell(w, lineMm*ln.scale, tr(s.text), "", s.align, false)
				} else {
					pdf.CellFormat(w, h, tr(s.text), "", 0, s.align, false, 0, "")
				}
			}
			if ln.rule && b.border != nil {
				draw(pdf, *b.border)
				pdf.SetLineWidth(0.2)
				pdf.Line(margin, y+h, margin+contentW, y+h)
			}
			y += h
		}
		if b.fill != nil {
			band(padMm)
			y += padMm
		}
		y += lineMm * 0.6
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// ExportPDFFile writes the PDF to path, creating parent directories.
func ExportPDFFile(t *render.Tree, path string, opt PDFOptions) error {
	return writeFile(path, func(w io.Writer) error { return ExportPDF(t, w, opt) })
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func fill(pdf *gofpdf.Fpdf, c style.RGB) { pdf.SetFillColor(int(c.R), int(c.G), int(c.B)) }

func draw(pdf *gofpdf.Fpdf, c style.RGB) { pdf.SetDrawColor(int(c.R), int(c.G), int(c.B)) }

func fontStyle(bold bool) string {
	if bold {
		return "B"
	}
	return ""
}

// pdfFamily maps a CSS font stack onto one of the PDF core fonts.
func pdfFamily(stack []string) string {
	for _, f := range stack {
		switch lf := strings.ToLower(f); {
		case strings.Contains(lf, "times"), strings.Contains(lf, "georgia"), lf == "serif":
			return "Times"
		case strings.Contains(lf, "courier"), lf == "monospace":
			return "Courier"
		case strings.Contains(lf, "arial"), strings.Contains(lf, "helvetica"), lf == "sans-serif":
			return "Helvetica"
		}
	}
	return "Helvetica"
}

// imageType returns the gofpdf image type for a readable local raster file, or "".
func imageType(src string) string {
	f, err := os.Open(src)
	if err != nil {
		return ""
	}
	defer f.Close()
	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return ""
	}
	switch format {
	case "png", "gif":
		return strings.ToUpper(format)
	case "jpeg":
		return "JPG"
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
