//go:build fyne && cgo

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
	"log/slog"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"invoicestudio/internal/editor"
	applog "invoicestudio/internal/log"
)

// Run opens a preview window for sess and blocks until it closes. Style edits
// go through the session and the preview repaints after each one.
func Run(sess *editor.Session, title string) error {
	l := applog.WithComponent("ui")
	l.Info("starting preview", slog.String("template", sess.Document().ID))

	a := app.NewWithID("invoicestudio")
	w := a.NewWindow("Invoice Studio - " + title)
	prefs := a.Preferences()
	winW := prefs.IntWithFallback("preview.width", 1100)
	winH := prefs.IntWithFallback("preview.height", 900)
	if winW < 700 {
		winW = 700
	}
	if winH < 500 {
		winH = 500
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	content, _ := buildContent(w, NewPreviewer(sess))
	w.SetContent(content)

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("preview.width", int(sz.Width))
		prefs.SetInt("preview.height", int(sz.Height))
		if sess.State() != editor.Dirty {
			w.Close()
			return
		}
		dialog.ShowConfirm("Unsaved changes", "Close without saving?", func(ok bool) {
			if ok {
				w.Close()
			}
		}, w)
	})
	w.ShowAndRun()
	return nil
}

// buildContent lays out the style form beside the page image.
func buildContent(w fyne.Window, p *Previewer) (fyne.CanvasObject, *canvas.Image) {
	page := canvas.NewImageFromImage(nil)
	page.FillMode = canvas.ImageFillOriginal
	status := widget.NewLabel("Ready")

	repaint := func() {
		img, err := p.Image()
		if err != nil {
			status.SetText("Preview failed: " + err.Error())
			return
		}
		page.Image = img
		page.Refresh()
		status.SetText(p.Status())
	}

	value := widget.NewEntry()
	keys := widget.NewSelect(p.StyleKeys(), func(k string) { value.SetText(p.StyleText(k)) })
	apply := func() {
		if err := p.Apply(keys.Selected, value.Text); err != nil {
			dialog.ShowError(err, w)
			return
		}
		repaint()
	}
	value.OnSubmitted = func(string) { apply() }

	afterHistory := func(ok bool) {
		if !ok {
			return
		}
		value.SetText(p.StyleText(keys.Selected))
		repaint()
	}
	undoBtn := widget.NewButton("Undo", func() { afterHistory(p.Session.Undo()) })
	redoBtn := widget.NewButton("Redo", func() { afterHistory(p.Session.Redo()) })
	revertBtn := widget.NewButton("Revert", func() {
		p.Session.Revert()
		afterHistory(true)
	})
	saveBtn := widget.NewButton("Save", func() {
		status.SetText("Saving...")
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			err := p.Save(ctx)
			fyne.Do(func() {
				if err != nil {
					dialog.ShowError(err, w)
				}
				status.SetText(p.Status())
			})
		}()
	})

	form := container.NewVBox(
		widget.NewLabel("Style"),
		keys,
		value,
		widget.NewButton("Apply", apply),
		widget.NewSeparator(),
		container.NewGridWithColumns(2, undoBtn, redoBtn),
		revertBtn,
		saveBtn,
	)
	if opts := p.StyleKeys(); len(opts) > 0 {
		keys.SetSelected(opts[0])
	}
	repaint()
	return container.NewBorder(nil, status, form, nil, container.NewScroll(page)), page
}
