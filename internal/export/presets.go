/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	applog "invoicestudio/internal/log"
	"invoicestudio/internal/render"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// Formats understood by Batch.
const (
	FormatPDF  = "pdf"
	FormatPNG  = "png"
	FormatHTML = "html"
	FormatText = "txt"
)

// BatchOptions controls a multi-format export of one rendered tree.
//
// Files are named <Name>.<format> inside OutDir/<preset>. Formats overrides the
// preset defaults when set.
type BatchOptions struct {
	Preset  PresetName
	Formats []string
	OutDir  string
	Name    string
	Title   string
	Fonts   *FontLibrary
}

// Batch writes the tree in every format of the preset and returns the written paths.
func Batch(t *render.Tree, opt BatchOptions) ([]string, error) {
	l := applog.WithOperation(applog.WithComponent("export"), "batch")
	formats := opt.Formats
	if len(formats) == 0 {
		formats = PresetFormats(opt.Preset)
	}
	preset := string(opt.Preset)
	if preset == "" {
		preset = "default"
	}
	base := filepath.Join(opt.OutDir, preset)
	name := firstNonEmpty(opt.Name, "invoice")

	var written []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		out := filepath.Join(base, name+"."+f)
		if err := ExportFile(t, out, f, opt.Title, opt.Fonts); err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
		l.Debug("exported", slog.String("format", f), slog.String("path", out))
		written = append(written, out)
	}
	return written, nil
}

// ExportFile writes t to path in format (pdf, png, html or txt).
func ExportFile(t *render.Tree, path, format, title string, fonts *FontLibrary) error {
	switch format {
	case FormatPDF:
		return ExportPDFFile(t, path, PDFOptions{Title: title})
	case FormatPNG:
		return ExportPNGFile(t, path, PNGOptions{Fonts: fonts})
	case FormatHTML:
		return ExportHTMLFile(t, path, HTMLOptions{Title: title})
	case FormatText:
		return writeFile(path, func(w io.Writer) error {
			_, err := io.WriteString(w, t.Text())
			return err
		})
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// FormatFromPath maps a file extension onto an export format.
func FormatFromPath(path string) (string, bool) {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case FormatPDF, FormatPNG, FormatHTML, FormatText:
		return ext, true
	case "htm":
		return FormatHTML, true
	}
	return "", false
}

// PresetFormats returns the default formats of a preset.
func PresetFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{FormatHTML, FormatPNG}
	case PresetPrint:
		return []string{FormatPDF}
	default:
		return []string{FormatPDF}
	}
}
