/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"invoicestudio/internal/catalog"
	"invoicestudio/internal/domain"
	"invoicestudio/internal/gating"
	"invoicestudio/internal/store"
	"invoicestudio/internal/telemetry"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T, st store.Store, opt Options) (*httptest.Server, *telemetry.Memory) {
	t.Helper()
	mem := &telemetry.Memory{}
	opt.Secret = testSecret
	if opt.Events == nil {
		opt.Events = mem
	}
	ts := httptest.NewServer(NewServer(st, opt).Handler())
	t.Cleanup(ts.Close)
	return ts, mem
}

func tokenFor(t *testing.T, sub string) string {
	t.Helper()
	tok, _, err := IssueToken(testSecret, sub, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func sampleDoc(id, name string, cat domain.Category, public bool, tags ...string) domain.TemplateDocument {
	return domain.TemplateDocument{
		ID:       id,
		Name:     name,
		Category: cat,
		IsPublic: public,
		Tags:     tags,
		Content: domain.Content{
			Styles: domain.StyleSet{"primaryColor": "#112233"},
		},
	}
}

func request(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", bearer(token))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthReadyVersionAreOpen(t *testing.T) {
	ts, _ := newTestServer(t, store.NewMemoryStore(), Options{})
	for _, p := range []string{"/healthz", "/readyz", "/version"} {
		if resp := request(t, http.MethodGet, ts.URL+p, "", ""); resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s = %d", p, resp.StatusCode)
		}
	}
}

type downStore struct{ *store.MemoryStore }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyReportsPingFailure(t *testing.T) {
	ts, _ := newTestServer(t, downStore{store.NewMemoryStore()}, Options{})
	if resp := request(t, http.MethodGet, ts.URL+"/readyz", "", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("GET /readyz = %d, want 503", resp.StatusCode)
	}
}

func TestAPIRequiresValidToken(t *testing.T) {
	ts, _ := newTestServer(t, store.NewMemoryStore(), Options{})
	if resp := request(t, http.MethodGet, ts.URL+"/api/templates", "", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: %d", resp.StatusCode)
	}
	bad, _, _ := IssueToken("other-secret", "alice", time.Hour)
	if resp := request(t, http.MethodGet, ts.URL+"/api/templates", bad, ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("foreign token: %d", resp.StatusCode)
	}
	if resp := request(t, http.MethodGet, ts.URL+"/api/templates", tokenFor(t, "alice"), ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("valid token: %d", resp.StatusCode)
	}
}

func TestTemplateCRUD(t *testing.T) {
	st := store.NewMemoryStore()
	ts, mem := newTestServer(t, st, Options{})
	c := NewClient(ts.URL+"/", tokenFor(t, "alice"))
	ctx := context.Background()

	created, err := c.Save(ctx, sampleDoc("", "Fresh", domain.CategoryReceipt, false, "a", "a", "b"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("server did not assign an id")
	}
	if len(created.Tags) != 2 {
		t.Fatalf("tags not normalized: %v", created.Tags)
	}

	got, err := c.GetByID(ctx, created.ID)
	if err != nil || got.Name != "Fresh" || got.Category != domain.CategoryReceipt {
		t.Fatalf("get: %+v, %v", got, err)
	}
	if got.Content.Styles["primaryColor"] != "#112233" {
		t.Fatalf("styles lost: %v", got.Content.Styles)
	}

	got.Name = "Renamed"
	if _, err := c.Save(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, _ := st.GetByID(ctx, created.ID)
	if stored.Name != "Renamed" {
		t.Fatalf("update not persisted: %q", stored.Name)
	}

	if err := c.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.GetByID(ctx, created.ID); !domain.IsNotFound(err) {
		t.Fatalf("get after delete: %v, want NotFound", err)
	}
	if err := c.Delete(ctx, created.ID); !domain.IsNotFound(err) {
		t.Fatalf("second delete: %v, want NotFound", err)
	}

	names := mem.Names()
	if len(names) != 2 || names[0] != telemetry.EventTemplateSaved || names[1] != telemetry.EventTemplateSaved {
		t.Fatalf("events = %v", names)
	}
}

func TestListFilters(t *testing.T) {
	st := store.NewMemoryStore(
		sampleDoc("r1", "Receipt", domain.CategoryReceipt, false, "pos"),
		sampleDoc("i1", "Invoice", domain.CategoryInvoice, false, "pos", "retail"),
		sampleDoc("i2", "Invoice 2", domain.CategoryInvoice, false),
	)
	ts, _ := newTestServer(t, st, Options{})
	c := NewClient(ts.URL, tokenFor(t, "alice"))
	ctx := context.Background()

	all, err := c.List(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("list: %d, %v", len(all), err)
	}
	inv, err := c.ListByCategory(ctx, domain.CategoryInvoice)
	if err != nil || len(inv) != 2 {
		t.Fatalf("by category: %d, %v", len(inv), err)
	}
	pos, err := c.ListByTag(ctx, "pos")
	if err != nil || len(pos) != 2 {
		t.Fatalf("by tag: %d, %v", len(pos), err)
	}
	if resp := request(t, http.MethodGet, ts.URL+"/api/templates?category=nope", tokenFor(t, "alice"), ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown category: %d", resp.StatusCode)
	}
}

func TestCreateConflictAndInvalidBody(t *testing.T) {
	st := store.NewMemoryStore(sampleDoc("taken", "Taken", domain.CategoryInvoice, false))
	ts, _ := newTestServer(t, st, Options{})
	tok := tokenFor(t, "alice")

	resp := request(t, http.MethodPost, ts.URL+"/api/templates", tok, `{"id":"taken","name":"x","content":{}}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate create: %d", resp.StatusCode)
	}

	resp = request(t, http.MethodPost, ts.URL+"/api/templates", tok, `{"name":"x","content":{"styles":"red"}}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid body: %d", resp.StatusCode)
	}
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error == "" || len(body.Details) == 0 {
		t.Fatalf("error body lacks details: %+v", body)
	}

	if resp := request(t, http.MethodPut, ts.URL+"/api/templates/x", tok, `{not json`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed JSON: %d", resp.StatusCode)
	}
}

func TestClientMapsParseErrors(t *testing.T) {
	ts, _ := newTestServer(t, store.NewMemoryStore(), Options{})
	c := NewClient(ts.URL, tokenFor(t, "alice"))
	doc := sampleDoc("x", "Bad", "weird", false)
	_, err := c.Save(context.Background(), doc)
	if !domain.IsParseError(err) {
		t.Fatalf("got %v, want ParseError", err)
	}
}

func TestStoreFailureIs500AndClientPersistenceFailure(t *testing.T) {
	st := store.NewMemoryStore()
	st.FailWith = errors.New("disk on fire")
	ts, mem := newTestServer(t, st, Options{})
	c := NewClient(ts.URL, tokenFor(t, "alice"))
	_, err := c.Save(context.Background(), sampleDoc("", "x", domain.CategoryInvoice, false))
	if !domain.IsPersistenceFailure(err) {
		t.Fatalf("got %v, want PersistenceFailure", err)
	}
	if names := mem.Names(); len(names) != 1 || names[0] != telemetry.EventSaveFailed {
		t.Fatalf("events = %v", names)
	}
}

func TestCatalogIncludesPublicTemplates(t *testing.T) {
	st := store.NewMemoryStore(
		sampleDoc("shared", "Shared", domain.CategoryProposal, true),
		sampleDoc("private", "Private", domain.CategoryProposal, false),
	)
	ts, _ := newTestServer(t, st, Options{})
	c := NewClient(ts.URL, tokenFor(t, "alice"))
	entries, err := c.Catalog(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ids := map[string]bool{}
	for _, e := range entries {
		ids[e.ID] = true
	}
	if !ids[catalog.DefaultID] || !ids["shared"] || ids["private"] {
		t.Fatalf("catalog ids = %v", ids)
	}

	resp := request(t, http.MethodGet, ts.URL+"/api/catalog?category=proposal", tokenFor(t, "alice"), "")
	var props []domain.CatalogEntry
	if err := json.NewDecoder(resp.Body).Decode(&props); err != nil {
		t.Fatal(err)
	}
	for _, e := range props {
		if e.Category != domain.CategoryProposal {
			t.Fatalf("entry %q has category %q", e.ID, e.Category)
		}
	}
}

func TestSelectGatesPremiumForFreeSubjects(t *testing.T) {
	ts, mem := newTestServer(t, store.NewMemoryStore(), Options{PremiumSubjects: []string{"alice"}})
	ctx := context.Background()

	free := NewClient(ts.URL, tokenFor(t, "bob"))
	sel, err := free.Select(ctx, catalog.CorporateBannerID)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Outcome != gating.Gated || sel.Document != nil || sel.Reason == "" {
		t.Fatalf("free subject selection = %+v", sel)
	}

	paid := NewClient(ts.URL, tokenFor(t, "alice"))
	sel, err = paid.Select(ctx, catalog.CorporateBannerID)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Outcome != gating.Applied || sel.Document == nil || sel.Document.ID != catalog.CorporateBannerID {
		t.Fatalf("premium subject selection = %+v", sel)
	}

	sel, err = free.Select(ctx, "no-such-template")
	if err != nil {
		t.Fatal(err)
	}
	if sel.Outcome != gating.Applied || sel.TemplateID != catalog.DefaultID {
		t.Fatalf("unknown id selection = %+v", sel)
	}

	names := mem.Names()
	want := []string{telemetry.EventTemplateGated, telemetry.EventTemplateSelected, telemetry.EventTemplateSelected}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", names, want)
	}
}

func TestEntitlementsOverridePremiumSubjects(t *testing.T) {
	ts, _ := newTestServer(t, store.NewMemoryStore(), Options{
		PremiumSubjects: []string{"alice"},
		Entitlements:    gating.Static(false),
	})
	sel, err := NewClient(ts.URL, tokenFor(t, "alice")).Select(context.Background(), catalog.CorporateBannerID)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Outcome != gating.Gated {
		t.Fatalf("outcome = %q, want gated", sel.Outcome)
	}
}

func TestListenAndServeRequiresSecret(t *testing.T) {
	s := NewServer(store.NewMemoryStore(), Options{})
	if err := s.ListenAndServe(context.Background(), "127.0.0.1:0"); err == nil {
		t.Fatal("expected error without secret")
	}
}
