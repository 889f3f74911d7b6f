/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend serves templates over a small authenticated REST API backed by
// PostgreSQL, and provides the matching HTTP client.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/lo"

	"invoicestudio/internal/catalog"
	"invoicestudio/internal/document"
	"invoicestudio/internal/domain"
	"invoicestudio/internal/gating"
	applog "invoicestudio/internal/log"
	"invoicestudio/internal/store"
	"invoicestudio/internal/telemetry"
	"invoicestudio/internal/version"
)

// maxBody bounds request bodies.
const maxBody = 1 << 20

// Options configures a Server.
type Options struct {
	// Secret verifies bearer tokens. Required.
	Secret string
	// PremiumSubjects are token subjects entitled to premium templates.
	PremiumSubjects []string
	// Entitlements overrides PremiumSubjects when set.
	Entitlements gating.Entitlements
	Events       telemetry.Recorder
}

// Pinger is implemented by stores that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type tagLister interface {
	ListByTag(ctx context.Context, tag string) ([]domain.TemplateDocument, error)
}

// Server exposes a store.Store over HTTP.
type Server struct {
	store  store.Store
	opt    Options
	ent    gating.Entitlements
	events telemetry.Recorder
	log    *slog.Logger
}

// subjects is an Entitlements backed by a fixed set of token subjects.
type subjects map[string]bool

func (s subjects) IsPremium(_ context.Context, userID string) (bool, error) { return s[userID], nil }

func NewServer(st store.Store, opt Options) *Server {
	s := &Server{store: st, opt: opt, events: opt.Events, log: applog.WithComponent("backend")}
	s.ent = opt.Entitlements
	if s.ent == nil {
		s.ent = subjects(lo.SliceToMap(opt.PremiumSubjects, func(sub string) (string, bool) { return sub, true }))
	}
	if s.events == nil {
		s.events = telemetry.Nop{}
	}
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.ready)
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(version.String()))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(requireAuth(s.opt.Secret))
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.listTemplates)
			r.Post("/", s.createTemplate)
			r.Get("/{id}", s.getTemplate)
			r.Put("/{id}", s.putTemplate)
			r.Delete("/{id}", s.deleteTemplate)
		})
		r.Get("/catalog", s.listCatalog)
		r.Post("/catalog/{id}/select", s.selectTemplate)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if s.opt.Secret == "" {
		return errors.New("server secret is required")
	}
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", slog.String("addr", addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("took", time.Since(start)),
			slog.String("req_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db not ready"))
			return
		}
	}
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	var (
		docs []domain.TemplateDocument
		err  error
	)
	q := r.URL.Query()
	switch {
	case q.Get("category") != "":
		cat, ok := domain.ParseCategory(q.Get("category"))
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown category %q", q.Get("category")))
			return
		}
		docs, err = s.store.ListByCategory(r.Context(), cat)
	case q.Get("tag") != "":
		tag := q.Get("tag")
		if tl, ok := s.store.(tagLister); ok {
			docs, err = tl.ListByTag(r.Context(), tag)
		} else if docs, err = s.store.List(r.Context()); err == nil {
			docs = lo.Filter(docs, func(d domain.TemplateDocument, _ int) bool { return lo.Contains(d.Tags, tag) })
		}
	default:
		docs, err = s.store.List(r.Context())
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) createTemplate(w http.ResponseWriter, r *http.Request) {
	doc, err := readDocument(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	if doc.ID != "" {
		if _, err := s.store.GetByID(r.Context(), doc.ID); err == nil {
			writeError(w, http.StatusConflict, fmt.Errorf("template %q already exists", doc.ID))
			return
		} else if !domain.IsNotFound(err) {
			s.fail(w, err)
			return
		}
	}
	s.save(w, r, doc, http.StatusCreated)
}

func (s *Server) putTemplate(w http.ResponseWriter, r *http.Request) {
	doc, err := readDocument(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	doc.ID = chi.URLParam(r, "id")
	s.save(w, r, doc, http.StatusOK)
}

func (s *Server) save(w http.ResponseWriter, r *http.Request, doc domain.TemplateDocument, status int) {
	saved, err := s.store.Save(r.Context(), doc)
	if err != nil {
		s.events.Event(telemetry.EventSaveFailed, map[string]any{"template": doc.ID})
		s.fail(w, err)
		return
	}
	s.events.Event(telemetry.EventTemplateSaved, map[string]any{"template": saved.ID})
	writeJSON(w, status, saved)
}

func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCatalog(w http.ResponseWriter, r *http.Request) {
	c := catalog.LoadPublic(r.Context(), s.store)
	entries := c.List()
	if v := r.URL.Query().Get("category"); v != "" {
		cat, ok := domain.ParseCategory(v)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown category %q", v))
			return
		}
		entries = c.ByCategory(cat)
	}
	writeJSON(w, http.StatusOK, entries)
}

// Selection is the wire form of a selection result.
type Selection struct {
	Outcome    gating.Outcome           `json:"outcome"`
	TemplateID string                   `json:"templateId"`
	Reason     string                   `json:"reason,omitempty"`
	Document   *domain.TemplateDocument `json:"document,omitempty"`
}

func (s *Server) selectTemplate(w http.ResponseWriter, r *http.Request) {
	sub, _ := Subject(r.Context())
	sel := &gating.Selector{Catalog: catalog.LoadPublic(r.Context(), s.store), Entitlements: s.ent, Events: s.events}
	res := sel.Select(r.Context(), sub, chi.URLParam(r, "id"))
	out := Selection{Outcome: res.Outcome, TemplateID: res.TemplateID, Reason: res.Reason}
	if res.Applied() {
		out.Document = &res.Document
	}
	writeJSON(w, http.StatusOK, out)
}

func readDocument(r *http.Request) (domain.TemplateDocument, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		return domain.TemplateDocument{}, &domain.ParseError{Msg: "read body", Err: err}
	}
	if len(body) > maxBody {
		return domain.TemplateDocument{}, &domain.ParseError{Msg: "request body too large"}
	}
	return document.Parse(body)
}

// fail maps domain errors onto HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var pe *domain.ParseError
	switch {
	case errors.As(err, &pe):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: pe.Error(), Details: pe.Details})
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.log.Error("request failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// bearer normalizes a token for the Authorization header.
func bearer(token string) string {
	return "Bearer " + strings.TrimSpace(token)
}
