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
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"invoicestudio/internal/domain"
)

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("migrations/002_template_indexes.sql")
	if err != nil || v != 2 {
		t.Fatalf("parseVersion = %d, %v", v, err)
	}
	if _, err := parseVersion("indexes.sql"); err == nil {
		t.Fatal("expected error for name without version prefix")
	}
	if _, err := parseVersion("x1_bad.sql"); err == nil {
		t.Fatal("expected error for non-numeric prefix")
	}
}

func TestClientReportsPlainTextErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer ts.Close()
	c := NewClient(ts.URL, "tok", WithTimeout(2*time.Second))
	_, err := c.List(context.Background())
	if !domain.IsPersistenceFailure(err) {
		t.Fatalf("got %v, want PersistenceFailure", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("Ping succeeded against failing server")
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("[]"))
	}))
	defer ts.Close()
	if _, err := NewClient(ts.URL, " tok ").List(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got != "Bearer tok" {
		t.Fatalf("Authorization = %q", got)
	}
}

func openPGForTest(t *testing.T) *PGStore {
	t.Helper()
	dsn := os.Getenv("INVS_PG_DSN")
	if dsn == "" {
		t.Skip("INVS_PG_DSN not set; skipping PostgreSQL tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := OpenPG(ctx, dsn)
	if err != nil {
		t.Fatalf("open pg: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPGStoreRoundTrip(t *testing.T) {
	st := openPGForTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc := sampleDoc("pg-roundtrip", "PG", domain.CategoryEstimate, true, "pg-tag")
	t.Cleanup(func() { _ = st.Delete(context.Background(), doc.ID) })
	if _, err := st.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := st.GetByID(ctx, doc.ID)
	if err != nil || got.Name != "PG" || got.Category != domain.CategoryEstimate {
		t.Fatalf("get: %+v, %v", got, err)
	}
	tagged, err := st.ListByTag(ctx, "pg-tag")
	if err != nil || len(tagged) == 0 {
		t.Fatalf("by tag: %d, %v", len(tagged), err)
	}
	public, err := st.ListPublic(ctx)
	if err != nil || len(public) == 0 {
		t.Fatalf("public: %d, %v", len(public), err)
	}
	if err := st.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.GetByID(ctx, doc.ID); !domain.IsNotFound(err) {
		t.Fatalf("get after delete: %v", err)
	}
}
