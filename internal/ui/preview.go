/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strings"

	"invoicestudio/internal/editor"
	"invoicestudio/internal/export"
	applog "invoicestudio/internal/log"
	"invoicestudio/internal/style"
)

// DefaultPreviewWidth matches an A4 page at 96 dpi.
const DefaultPreviewWidth = 794

// Previewer is the toolkit-independent half of the preview window. It paints
// the session preview and turns form input into style edits.
type Previewer struct {
	Session *editor.Session
	Width   int
	Fonts   *export.FontLibrary

	log *slog.Logger
}

func NewPreviewer(s *editor.Session) *Previewer {
	return &Previewer{Session: s, Width: DefaultPreviewWidth, log: applog.WithComponent("ui")}
}

// Image paints the current preview.
func (p *Previewer) Image() (*image.RGBA, error) {
	return export.RenderImage(p.Session.Preview(), export.PNGOptions{Width: p.Width, Fonts: p.Fonts})
}

// StyleKeys lists the editable style properties in form order.
func (p *Previewer) StyleKeys() []string { return style.Keys() }

// StyleText is the effective value of key as shown in the form.
func (p *Previewer) StyleText(key string) string {
	if key == "" {
		return ""
	}
	return style.String(style.Resolve(p.Session.Document().Content.Styles), key)
}

// Apply sets key from form text. Blank text removes the override so the
// default applies again.
func (p *Previewer) Apply(key, text string) error {
	if !slices.Contains(style.Keys(), key) {
		return fmt.Errorf("unknown style property %q", key)
	}
	if strings.TrimSpace(text) == "" {
		p.Session.ApplyStyleChange(key, nil)
	} else {
		p.Session.ApplyStyleChange(key, style.ParseValue(text))
	}
	p.log.Debug("style changed", slog.String("op", "apply"), slog.String("key", key))
	return nil
}

// Save persists the session document.
func (p *Previewer) Save(ctx context.Context) error {
	if err := p.Session.Save(ctx); err != nil {
		p.log.Error("save from preview failed", slog.Any("err", err))
		return err
	}
	return nil
}

// Status is the one-line summary shown under the preview.
func (p *Previewer) Status() string {
	doc := p.Session.Document()
	name := doc.Name
	if name == "" {
		name = "untitled"
	}
	msg := fmt.Sprintf("%s: %s", name, p.Session.State())
	if err := p.Session.LastError(); err != nil {
		msg += " (" + err.Error() + ")"
	}
	return msg
}
