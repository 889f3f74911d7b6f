/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor implements the template editing session: a small state machine
// over one template document with live preview, raw-text editing, undo history
// and save coalescing.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"invoicestudio/internal/document"
	"invoicestudio/internal/domain"
	applog "invoicestudio/internal/log"
	"invoicestudio/internal/render"
	"invoicestudio/internal/store"
	"invoicestudio/internal/telemetry"
	"invoicestudio/internal/undo"
)

// State of a session.
type State int

const (
	// Clean: the document matches the last saved or loaded state.
	Clean State = iota
	// Dirty: there are edits not yet persisted.
	Dirty
	// Saving: a save is in flight.
	Saving
	// Error: the last raw-text edit failed to parse. The document is unchanged.
	Error
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	case Error:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrSaveInProgress is returned by Save while another save is in flight.
	ErrSaveInProgress = errors.New("editor: save already in progress")
	// ErrNoSaver is returned by Save when the session has no persistence collaborator.
	ErrNoSaver = errors.New("editor: no saver configured")
)

// Option configures a Session.
type Option func(*Session)

// WithInvoice renders the preview with inv instead of placeholders.
func WithInvoice(inv *domain.InvoiceData) Option { return func(s *Session) { s.inv = inv } }

// WithClock sets the clock used for history timestamps and placeholder dates.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRenderOptions adds options passed to every preview render.
func WithRenderOptions(opts ...render.Option) Option {
	return func(s *Session) { s.renderOpts = append(s.renderOpts, opts...) }
}

// WithHistory configures the undo history.
func WithHistory(cfg undo.Config) Option { return func(s *Session) { s.history = undo.NewManager(cfg) } }

// WithRawEditDebounce delays ApplyRawEditDebounced parsing until d passes without
// a newer raw edit.
func WithRawEditDebounce(d time.Duration) Option { return func(s *Session) { s.debounce = d } }

// WithEvents sends template_saved / template_save_failed events to r.
func WithEvents(r telemetry.Recorder) Option { return func(s *Session) { s.events = r } }

// Session edits one template document. All methods are safe for concurrent use
// and edits apply in call order.
type Session struct {
	mu sync.Mutex

	doc     domain.TemplateDocument
	saved   domain.TemplateDocument
	preview *render.Tree
	inv     *domain.InvoiceData

	rev      uint64 // bumped on every applied edit
	savedRev uint64
	saving   bool
	failed   bool // last save failed
	lastErr  error

	saver      store.Saver
	renderOpts []render.Option
	now        func() time.Time
	history    *undo.Manager
	histKey    string
	events     telemetry.Recorder

	debounce time.Duration
	pending  *string
	timer    *time.Timer

	log *slog.Logger
}

// NewSession opens doc for editing. saver may be nil for read-only previews.
func NewSession(doc domain.TemplateDocument, saver store.Saver, opts ...Option) *Session {
	s := &Session{
		saver:  saver,
		now:    time.Now,
		events: telemetry.Nop{},
		log:    applog.WithComponent("editor"),
	}
	for _, o := range opts {
		o(s)
	}
	if s.history == nil {
		s.history = undo.NewManager(undo.Config{MaxPerKey: 100, MinInterval: 500 * time.Millisecond})
	}
	s.doc = document.Normalize(doc)
	s.saved = s.doc.Clone()
	s.histKey = s.doc.ID
	s.renderOpts = append([]render.Option{render.WithClock(s.now)}, s.renderOpts...)
	s.rerenderLocked()
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case s.saving:
		return Saving
	case s.lastErr != nil:
		return Error
	case s.rev != s.savedRev || s.failed:
		return Dirty
	default:
		return Clean
	}
}

// LastError returns the parse error of the last failed raw edit, or nil.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Document returns a copy of the current document.
func (s *Session) Document() domain.TemplateDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	return s.doc.Clone()
}

// Saved returns a copy of the last saved (or loaded) document.
func (s *Session) Saved() domain.TemplateDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved.Clone()
}

// Preview returns the render tree of the last valid document.
func (s *Session) Preview() *render.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	return s.preview
}

// Text returns the current document as editable JSON text.
func (s *Session) Text() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	b, err := document.Serialize(s.doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SetInvoice replaces the invoice data used for the preview.
func (s *Session) SetInvoice(inv *domain.InvoiceData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inv = inv
	s.rerenderLocked()
}

// ApplyStyleChange sets one style property. A nil value removes the key. Values
// are not validated.
func (s *Session) ApplyStyleChange(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	s.recordLocked("style:" + key)
	if s.doc.Content.Styles == nil {
		s.doc.Content.Styles = domain.StyleSet{}
	}
	if value == nil {
		delete(s.doc.Content.Styles, key)
	} else {
		s.doc.Content.Styles[key] = value
	}
	s.commitLocked()
}

// ApplyEdit applies a structured edit to a copy of the document.
func (s *Session) ApplyEdit(fn func(doc *domain.TemplateDocument)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	next := s.doc.Clone()
	fn(&next)
	s.recordLocked("edit")
	s.replaceLocked(document.Normalize(next))
	s.commitLocked()
}

// ApplyRawEdit parses text and, when valid, replaces the whole document. On a
// parse failure the document and preview stay as they were, the session enters
// Error and the *domain.ParseError is returned.
func (s *Session) ApplyRawEdit(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
	}
	return s.applyRawLocked(text)
}

// ApplyRawEditDebounced schedules text to be parsed once the debounce interval
// passes without another raw edit. Any other call on the session applies a
// pending raw edit first. Without a debounce interval it behaves like ApplyRawEdit.
func (s *Session) ApplyRawEditDebounced(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debounce <= 0 {
		_ = s.applyRawLocked(text)
		return
	}
	s.pending = &text
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.fire)
		return
	}
	s.timer.Reset(s.debounce)
}

func (s *Session) fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

// Flush applies a pending debounced raw edit immediately.
func (s *Session) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Session) flushLocked() {
	if s.pending == nil {
		return
	}
	text := *s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
	}
	_ = s.applyRawLocked(text)
}

func (s *Session) applyRawLocked(text string) error {
	doc, err := document.ParseString(text)
	if err != nil {
		s.lastErr = err
		s.log.Debug("raw edit rejected", slog.String("op", "raw_edit"), slog.Any("err", err))
		return err
	}
	s.recordLocked("raw")
	s.replaceLocked(doc)
	s.commitLocked()
	return nil
}

// Revert discards unsaved edits and restores the last saved document. While a
// save is in flight the restored document is the one saved before it, so the
// session stays Dirty once that save lands.
func (s *Session) Revert() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.recordLocked("revert")
	s.replaceLocked(s.saved.Clone())
	s.lastErr = nil
	s.rev++
	if !s.saving {
		s.failed = false
		s.savedRev = s.rev
	}
	s.rerenderLocked()
}

// Undo restores the state before the last edit. It reports false when there is
// no history.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	cur, err := s.snapshotLocked("undo")
	if err != nil {
		return false
	}
	prev, ok := s.history.Undo(cur)
	if !ok {
		return false
	}
	return s.restoreLocked(prev)
}

// Redo reapplies the last undone edit.
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	cur, err := s.snapshotLocked("redo")
	if err != nil {
		return false
	}
	next, ok := s.history.Redo(cur)
	if !ok {
		return false
	}
	return s.restoreLocked(next)
}

func (s *Session) restoreLocked(snap undo.Snapshot) bool {
	doc, err := document.Parse(snap.Blob)
	if err != nil {
		s.log.Error("history snapshot unreadable", slog.Any("err", err))
		return false
	}
	if doc.ID == "" {
		// ids assigned by the store are not undone
		doc.ID = s.doc.ID
	}
	s.replaceLocked(doc)
	s.commitLocked()
	return true
}

// Save persists the document as it is at call time. Edits arriving while the
// save is in flight are not included and leave the session Dirty afterwards.
// A concurrent Save returns ErrSaveInProgress without writing. Failures are
// returned as *domain.PersistenceFailure and keep the document.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	s.flushLocked()
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	if s.saver == nil {
		s.mu.Unlock()
		return ErrNoSaver
	}
	snapshot := s.doc.Clone()
	startRev := s.rev
	s.saving = true
	s.mu.Unlock()

	l := applog.WithOperation(s.log, "save").With(slog.String("template", snapshot.ID))
	start := time.Now()
	stored, err := s.saver.Save(ctx, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	if err != nil {
		s.failed = true
		l.Warn("save failed", slog.Any("err", err))
		s.events.Event(telemetry.EventSaveFailed, map[string]any{"template": snapshot.ID})
		return domain.Persistence("save", snapshot.ID, err)
	}

	if stored.ID != "" && stored.ID != snapshot.ID {
		// adopt the store-assigned id unless the user changed it meanwhile
		if s.doc.ID == snapshot.ID {
			s.doc.ID = stored.ID
		}
		snapshot.ID = stored.ID
		s.history.Rekey(s.histKey, s.doc.ID)
		s.histKey = s.doc.ID
	}
	s.saved = snapshot
	s.failed = false
	if s.rev == startRev {
		s.savedRev = s.rev
	}
	l.Info("template saved", slog.Duration("took", time.Since(start)), slog.Bool("pending_edits", s.rev != startRev))
	s.events.Event(telemetry.EventTemplateSaved, map[string]any{"template": snapshot.ID})
	return nil
}

// Close stops a pending debounce timer. A pending raw edit is dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *Session) snapshotLocked(label string) (undo.Snapshot, error) {
	b, err := document.Serialize(s.doc)
	if err != nil {
		return undo.Snapshot{}, err
	}
	return undo.Snapshot{Key: s.histKey, Label: label, Blob: b, TS: s.now()}, nil
}

func (s *Session) recordLocked(label string) {
	snap, err := s.snapshotLocked(label)
	if err != nil {
		s.log.Warn("history snapshot failed", slog.Any("err", err))
		return
	}
	s.history.Record(snap)
}

// replaceLocked swaps the document, moving history when the id changed.
func (s *Session) replaceLocked(doc domain.TemplateDocument) {
	if doc.ID != s.histKey {
		s.history.Rekey(s.histKey, doc.ID)
		s.histKey = doc.ID
	}
	s.doc = doc
}

func (s *Session) commitLocked() {
	s.rev++
	s.lastErr = nil
	s.rerenderLocked()
}

func (s *Session) rerenderLocked() {
	s.preview = render.Render(s.doc, s.inv, s.renderOpts...)
}
