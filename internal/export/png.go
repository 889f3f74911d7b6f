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
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"invoicestudio/internal/render"
	"invoicestudio/internal/style"
)

// PNGOptions controls the raster preview.
//   - Width: output width in pixels, default 794 (A4 at 96 dpi)
//   - Fonts: optional library; without it the fixed basic font is used
type PNGOptions struct {
	Width int
	Fonts *FontLibrary
}

// ExportPNG paints a low-fidelity preview of the tree. The image height grows
// with the content. Text that does not fit its column is clipped with "...".
func ExportPNG(t *render.Tree, w io.Writer, opt PNGOptions) error {
	img, err := RenderImage(t, opt)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// RenderImage paints the same preview as ExportPNG without encoding it.
func RenderImage(t *render.Tree, opt PNGOptions) (*image.RGBA, error) {
	if t == nil || t.Root == nil {
		return nil, errors.New("export png: empty render tree")
	}
	return rasterize(layout(t), opt), nil
}

// ExportPNGFile writes the preview to path, creating parent directories.
func ExportPNGFile(t *render.Tree, path string, opt PNGOptions) error {
	return writeFile(path, func(w io.Writer) error { return ExportPNG(t, w, opt) })
}

type raster struct {
	p      page
	opt    PNGOptions
	stack  []string
	margin int
	pad    int
	width  int
}

func (r *raster) face(bold bool, scale float64) (font.Face, bool) {
	return r.opt.Fonts.Face(r.stack, bold, r.p.fontPx*scale)
}

func (r *raster) lineHeight(scale float64) int {
	f, _ := r.face(false, scale)
	h := float64(f.Metrics().Height.Ceil()) * r.p.lineHeight
	return int(math.Ceil(h))
}

func (r *raster) height() int {
	h := 2 * r.margin
	for _, b := range r.p.blocks {
		if b.fill != nil {
			h += 2 * r.pad
		}
		for _, ln := range b.lines {
			h += r.lineHeight(ln.scale)
		}
		h += r.lineHeight(1) / 2
	}
	return h
}

func rasterize(p page, opt PNGOptions) *image.RGBA {
	if opt.Width <= 0 {
		opt.Width = 794
	}
	r := &raster{p: p, opt: opt, stack: style.FontStack(p.styles), width: opt.Width}
	r.margin = opt.Width / 20
	r.pad = int(math.Min(p.padPx, 24))

	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height()))
	fillRect(img, img.Bounds(), p.background)
	contentW := r.width - 2*r.margin
	y := r.margin
	for _, b := range p.blocks {
		padX := 0
		if b.fill != nil {
			padX = r.pad
			total := 2 * r.pad
			for _, ln := range b.lines {
				total += r.lineHeight(ln.scale)
			}
			fillRect(img, image.Rect(r.margin, y, r.margin+contentW, y+total), *b.fill)
			if b.border != nil {
				fillRect(img, image.Rect(r.margin, y, r.margin+contentW, y+1), *b.border)
			}
			y += r.pad
		}
		innerW := contentW - 2*padX
		for _, ln := range b.lines {
			lh := r.lineHeight(ln.scale)
			if ln.fill != nil {
				fillRect(img, image.Rect(r.margin+padX, y, r.margin+padX+innerW, y+lh), *ln.fill)
			}
			for _, s := range ln.spans {
				x0 := r.margin + padX + int(s.x0*float64(innerW))
				x1 := r.margin + padX + int(s.x1*float64(innerW))
				if s.image != "" {
					r.drawImage(img, s.image, image.Rect(x0, y, x1, y+lh), b.border)
					continue
				}
				r.drawText(img, s, x0+2, x1-2, y, lh, ln.scale)
			}
			if ln.rule && b.border != nil {
				fillRect(img, image.Rect(r.margin, y+lh-1, r.margin+contentW, y+lh), *b.border)
			}
			y += lh
		}
		if b.fill != nil {
			y += r.pad
		}
		y += r.lineHeight(1) / 2
	}
	return img
}

func (r *raster) drawText(img *image.RGBA, s span, x0, x1, y, lh int, scale float64) {
	face, hasFont := r.face(s.bold, scale)
	text := fit(face, s.text, x1-x0)
	width := font.MeasureString(face, text).Ceil()
	x := x0
	switch s.align {
	case "R":
		x = x1 - width
	case "C":
		x = x0 + (x1-x0-width)/2
	}
	m := face.Metrics()
	baseline := y + (lh-m.Height.Ceil())/2 + m.Ascent.Ceil()
	d := &font.Drawer{Dst: img, Src: image.NewUniform(rgba(s.color)), Face: face, Dot: fixed.P(x, baseline)}
	d.DrawString(text)
	if s.bold && !hasFont {
		d.Dot = fixed.P(x+1, baseline)
		d.DrawString(text)
	}
}

// drawImage scales a local raster logo into box, or outlines the box when the
// source cannot be read.
func (r *raster) drawImage(img *image.RGBA, src string, box image.Rectangle, outline *style.RGB) {
	f, err := os.Open(src)
	if err == nil {
		defer f.Close()
		if logo, _, derr := image.Decode(f); derr == nil {
			sb := logo.Bounds()
			if sb.Dy() > 0 {
				w := sb.Dx() * box.Dy() / sb.Dy()
				if w > box.Dx() {
					w = box.Dx()
				}
				dst := image.Rect(box.Min.X, box.Min.Y, box.Min.X+w, box.Max.Y)
				xdraw.BiLinear.Scale(img, dst, logo, sb, xdraw.Over, nil)
				return
			}
		}
	}
	c := style.RGB{R: 0xE5, G: 0xE7, B: 0xEB}
	if outline != nil {
		c = *outline
	}
	side := box.Dy()
	strokeRect(img, image.Rect(box.Min.X, box.Min.Y, box.Min.X+side, box.Max.Y), c)
}

// fit clips s with "..." so that it measures at most width pixels.
func fit(face font.Face, s string, width int) string {
	if width <= 0 {
		return ""
	}
	if font.MeasureString(face, s).Ceil() <= width {
		return s
	}
	runes := []rune(s)
	for n := len(runes) - 1; n > 0; n-- {
		c := string(runes[:n]) + "..."
		if font.MeasureString(face, c).Ceil() <= width {
			return c
		}
	}
	return ""
}

func rgba(c style.RGB) color.RGBA { return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255} }

func fillRect(img *image.RGBA, r image.Rectangle, c style.RGB) {
	xdraw.Draw(img, r, image.NewUniform(rgba(c)), image.Point{}, xdraw.Src)
}

// strokeRect draws a 1px border inside r.
func strokeRect(img *image.RGBA, r image.Rectangle, c style.RGB) {
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), c)
	fillRect(img, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), c)
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), c)
	fillRect(img, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), c)
}
