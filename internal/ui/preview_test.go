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
	"errors"
	"strings"
	"testing"
	"time"

	"invoicestudio/internal/document"
	"invoicestudio/internal/domain"
	"invoicestudio/internal/editor"
	"invoicestudio/internal/store"
	"invoicestudio/internal/style"
)

func clock() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

func newPreviewer(t *testing.T, saver store.Saver) *Previewer {
	t.Helper()
	doc := document.New("Preview", domain.CategoryInvoice)
	sess := editor.NewSession(doc, saver, editor.WithClock(clock))
	t.Cleanup(sess.Close)
	return NewPreviewer(sess)
}

func TestPreviewerImageFollowsStyleEdits(t *testing.T) {
	p := newPreviewer(t, nil)
	img, err := p.Image()
	if err != nil {
		t.Fatalf("image: %v", err)
	}
	if got := img.Bounds().Dx(); got != DefaultPreviewWidth {
		t.Fatalf("width = %d, want %d", got, DefaultPreviewWidth)
	}

	if err := p.Apply(style.BackgroundColor, "#000000"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	img, err = p.Image()
	if err != nil {
		t.Fatalf("image: %v", err)
	}
	if r, g, b, _ := img.At(1, 1).RGBA(); r != 0 || g != 0 || b != 0 {
		t.Fatalf("background not repainted: %d %d %d", r>>8, g>>8, b>>8)
	}
	if p.Session.State() != editor.Dirty {
		t.Fatalf("state = %s, want dirty", p.Session.State())
	}
}

func TestPreviewerApplyParsesFormText(t *testing.T) {
	p := newPreviewer(t, nil)
	if err := p.Apply(style.FontSize, " 14 "); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := p.Session.Document().Content.Styles[style.FontSize]; got != 14.0 {
		t.Fatalf("fontSize = %#v, want 14", got)
	}
	if got := p.StyleText(style.FontSize); got != "14px" {
		t.Fatalf("StyleText = %q, want 14px", got)
	}

	if err := p.Apply(style.FontSize, "  "); err != nil {
		t.Fatalf("apply blank: %v", err)
	}
	if _, ok := p.Session.Document().Content.Styles[style.FontSize]; ok {
		t.Fatalf("blank text should remove the override")
	}
	if got := p.StyleText(style.FontSize); got != "16px" {
		t.Fatalf("StyleText after reset = %q, want 16px", got)
	}

	if err := p.Apply("fontSise", "12"); err == nil {
		t.Fatalf("expected error for unknown property")
	}
	if p.StyleText("") != "" {
		t.Fatalf("empty key should have no text")
	}
}

func TestPreviewerSaveAndStatus(t *testing.T) {
	fail := true
	saver := store.SaverFunc(func(_ context.Context, doc domain.TemplateDocument) (domain.TemplateDocument, error) {
		if fail {
			return domain.TemplateDocument{}, errors.New("disk full")
		}
		return doc, nil
	})
	p := newPreviewer(t, saver)
	if err := p.Apply(style.PrimaryColor, "#FF0000"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := p.Save(context.Background()); !domain.IsPersistenceFailure(err) {
		t.Fatalf("save err = %v, want persistence failure", err)
	}
	if got := p.Status(); got != "Preview: dirty" {
		t.Fatalf("status = %q", got)
	}

	fail = false
	if err := p.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := p.Status(); got != "Preview: clean" {
		t.Fatalf("status = %q", got)
	}

	if err := p.Session.ApplyRawEdit("{broken"); err == nil {
		t.Fatalf("expected parse error")
	}
	if got := p.Status(); !strings.HasPrefix(got, "Preview: error (") {
		t.Fatalf("status = %q", got)
	}
}
