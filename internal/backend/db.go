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
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"invoicestudio/internal/document"
	"invoicestudio/internal/domain"
	applog "invoicestudio/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PGStore keeps templates in PostgreSQL. The full document is stored as JSONB;
// name, category and flags are duplicated into columns for filtering.
type PGStore struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenPG connects through the pgx stdlib driver, pings and applies embedded migrations.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &PGStore{db: db, log: applog.WithComponent("backend").With(slog.String("driver", "postgres"))}
	if err := s.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PGStore) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable.
func (s *PGStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// applyMigrations applies embedded SQL migrations in filename order and records
// each in schema_migrations.
func (s *PGStore) applyMigrations(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied := map[int64]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		s.log.Info("migration applied", slog.String("file", fname))
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	prefix, _, ok := strings.Cut(path.Base(name), "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

const selectDocs = `SELECT document FROM templates`

func (s *PGStore) List(ctx context.Context) ([]domain.TemplateDocument, error) {
	docs, err := s.query(ctx, selectDocs+` ORDER BY created_at, id`)
	return docs, domain.Persistence("list", "", err)
}

func (s *PGStore) ListByCategory(ctx context.Context, cat domain.Category) ([]domain.TemplateDocument, error) {
	docs, err := s.query(ctx, selectDocs+` WHERE category = $1 ORDER BY created_at, id`, string(cat))
	return docs, domain.Persistence("list", "", err)
}

// ListPublic returns only public templates.
func (s *PGStore) ListPublic(ctx context.Context) ([]domain.TemplateDocument, error) {
	docs, err := s.query(ctx, selectDocs+` WHERE is_public ORDER BY created_at, id`)
	return docs, domain.Persistence("list", "", err)
}

// ListByTag returns templates carrying tag.
func (s *PGStore) ListByTag(ctx context.Context, tag string) ([]domain.TemplateDocument, error) {
	docs, err := s.query(ctx, selectDocs+` WHERE document -> 'tags' ? $1 ORDER BY created_at, id`, tag)
	return docs, domain.Persistence("list", "", err)
}

func (s *PGStore) query(ctx context.Context, q string, args ...any) ([]domain.TemplateDocument, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.TemplateDocument{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc, err := document.Parse(raw)
		if err != nil {
			s.log.Warn("skipping unreadable template row", slog.Any("err", err))
			continue
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PGStore) GetByID(ctx context.Context, id string) (domain.TemplateDocument, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, selectDocs+` WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TemplateDocument{}, &domain.NotFound{Kind: "template", ID: id}
	}
	if err != nil {
		return domain.TemplateDocument{}, domain.Persistence("get", id, err)
	}
	doc, err := document.Parse(raw)
	if err != nil {
		return domain.TemplateDocument{}, domain.Persistence("get", id, err)
	}
	return doc, nil
}

// Save inserts a new template (assigning an id when empty) or replaces an existing one.
func (s *PGStore) Save(ctx context.Context, doc domain.TemplateDocument) (domain.TemplateDocument, error) {
	doc = document.Normalize(doc)
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	body, err := document.Serialize(doc)
	if err != nil {
		return domain.TemplateDocument{}, domain.Persistence("save", doc.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO templates (id, name, category, is_public, is_premium, document)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, category = EXCLUDED.category, is_public = EXCLUDED.is_public,
			is_premium = EXCLUDED.is_premium, document = EXCLUDED.document, updated_at = now()`,
		doc.ID, doc.Name, string(doc.Category), doc.IsPublic, doc.IsPremium, string(body))
	if err != nil {
		return domain.TemplateDocument{}, domain.Persistence("save", doc.ID, err)
	}
	return doc, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return domain.Persistence("delete", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &domain.NotFound{Kind: "template", ID: id}
	}
	return nil
}
