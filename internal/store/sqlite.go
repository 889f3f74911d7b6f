/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"invoicestudio/internal/document"
	"invoicestudio/internal/domain"
	applog "invoicestudio/internal/log"
	"invoicestudio/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// DBFileName is the default local database file name.
	DBFileName = "templates.sqlite"

	// schemaVersion tracks the local schema. Bump it and add a migration step for
	// breaking changes.
	schemaVersion = 2
)

// SQLiteStore persists templates in a local SQLite database. The full document is
// stored as JSON; list-relevant fields are duplicated into columns.
type SQLiteStore struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path, enables WAL and
// brings the schema up to date.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	l := applog.WithOperation(applog.WithComponent("store"), "sqlite_open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create database dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Info("template database ready")
	return &SQLiteStore{db: db, path: path, log: applog.WithComponent("store").With(slog.String("driver", "sqlite"))}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// SchemaVersion returns the schema version recorded in the database.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh databases start at 1 and migrate forward
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	q := `CREATE TABLE IF NOT EXISTS templates (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		category    TEXT NOT NULL DEFAULT 'invoice',
		is_public   INTEGER NOT NULL DEFAULT 0,
		is_premium  INTEGER NOT NULL DEFAULT 0,
		tags        TEXT NOT NULL DEFAULT '[]',
		document    TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);`
	if _, err := db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create templates table: %w", err)
	}
	return nil
}

// runMigrations applies incremental steps up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_templates_category ON templates(category);`,
				`CREATE INDEX IF NOT EXISTS idx_templates_public ON templates(is_public);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

const selectDocs = `SELECT document FROM templates`

func (s *SQLiteStore) List(ctx context.Context) ([]domain.TemplateDocument, error) {
	docs, err := s.query(ctx, selectDocs+` ORDER BY created_at, id`)
	return docs, domain.Persistence("list", "", err)
}

func (s *SQLiteStore) ListByCategory(ctx context.Context, cat domain.Category) ([]domain.TemplateDocument, error) {
	docs, err := s.query(ctx, selectDocs+` WHERE category = ? ORDER BY created_at, id`, string(cat))
	return docs, domain.Persistence("list", "", err)
}

// ListPublic returns only public templates.
func (s *SQLiteStore) ListPublic(ctx context.Context) ([]domain.TemplateDocument, error) {
	docs, err := s.query(ctx, selectDocs+` WHERE is_public = 1 ORDER BY created_at, id`)
	return docs, domain.Persistence("list", "", err)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]domain.TemplateDocument, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.TemplateDocument{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc, err := document.Parse([]byte(raw))
		if err != nil {
			s.log.Warn("skipping unreadable template row", slog.Any("err", err))
			continue
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.TemplateDocument, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, selectDocs+` WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TemplateDocument{}, &domain.NotFound{Kind: "template", ID: id}
	}
	if err != nil {
		return domain.TemplateDocument{}, domain.Persistence("get", id, err)
	}
	doc, err := document.Parse([]byte(raw))
	if err != nil {
		return domain.TemplateDocument{}, domain.Persistence("get", id, err)
	}
	return doc, nil
}

// Save inserts a new template (assigning an id when empty) or replaces an existing one.
func (s *SQLiteStore) Save(ctx context.Context, doc domain.TemplateDocument) (domain.TemplateDocument, error) {
	doc = document.Normalize(doc)
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	body, err := document.Serialize(doc)
	if err != nil {
		return domain.TemplateDocument{}, domain.Persistence("save", doc.ID, err)
	}
	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return domain.TemplateDocument{}, domain.Persistence("save", doc.ID, err)
	}
	if doc.Tags == nil {
		tags = []byte("[]")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `INSERT INTO templates (id, name, category, is_public, is_premium, tags, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, category=excluded.category, is_public=excluded.is_public,
			is_premium=excluded.is_premium, tags=excluded.tags, document=excluded.document,
			updated_at=excluded.updated_at`,
		doc.ID, doc.Name, string(doc.Category), boolInt(doc.IsPublic), boolInt(doc.IsPremium), string(tags), string(body), now, now)
	if err != nil {
		return domain.TemplateDocument{}, domain.Persistence("save", doc.ID, err)
	}
	return doc, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return domain.Persistence("delete", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &domain.NotFound{Kind: "template", ID: id}
	}
	return nil
}

// SetMeta stores a key/value pair in the meta table.
func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return domain.Persistence("meta", key, err)
}

// Meta reads a value from the meta table; missing keys yield "".
func (s *SQLiteStore) Meta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, domain.Persistence("meta", key, err)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
