/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package stylepack bundles template documents into a zip of YAML files and
// installs such packs into a template store.
package stylepack

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"invoicestudio/internal/document"
	"invoicestudio/internal/domain"
	applog "invoicestudio/internal/log"
	"invoicestudio/internal/store"
	"invoicestudio/internal/version"
)

const (
	// ManifestName is the manifest entry at the archive root.
	ManifestName = "manifest.yaml"
	templatesDir = "templates/"
	// maxEntrySize bounds a single decompressed template.
	maxEntrySize = 4 << 20
)

// Manifest describes a pack. Templates lists the files in archive order.
type Manifest struct {
	Name      string          `yaml:"name"`
	Created   time.Time       `yaml:"created"`
	Generator string          `yaml:"generator"`
	Templates []ManifestEntry `yaml:"templates"`
}

type ManifestEntry struct {
	ID       string          `yaml:"id"`
	Name     string          `yaml:"name"`
	Category domain.Category `yaml:"category"`
	File     string          `yaml:"file"`
}

// Result reports what Install did.
type Result struct {
	Installed []string
	Skipped   []string
}

// Target is where packs are installed.
type Target interface {
	store.Saver
	GetByID(ctx context.Context, id string) (domain.TemplateDocument, error)
}

// Export writes docs as a pack to w. Documents without an id get a fresh one so
// that installs are idempotent.
func Export(w io.Writer, name string, docs []domain.TemplateDocument) error {
	l := applog.WithOperation(applog.WithComponent("stylepack"), "export")
	zw := zip.NewWriter(w)
	m := Manifest{Name: name, Created: time.Now().UTC().Truncate(time.Second), Generator: version.String()}
	seen := map[string]bool{}
	for _, doc := range docs {
		if doc.ID == "" {
			doc.ID = document.New(doc.Name, doc.Category).ID
		}
		if seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true
		raw, err := document.ToRaw(document.Normalize(doc))
		if err != nil {
			return fmt.Errorf("encode template %q: %w", doc.ID, err)
		}
		data, err := yaml.Marshal(raw)
		if err != nil {
			return fmt.Errorf("encode template %q: %w", doc.ID, err)
		}
		file := templatesDir + doc.ID + ".yaml"
		fw, err := zw.Create(file)
		if err != nil {
			return fmt.Errorf("add %s: %w", file, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", file, err)
		}
		m.Templates = append(m.Templates, ManifestEntry{ID: doc.ID, Name: doc.Name, Category: doc.Category, File: file})
	}
	mdata, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	fw, err := zw.Create(ManifestName)
	if err != nil {
		return fmt.Errorf("add manifest: %w", err)
	}
	if _, err := fw.Write(mdata); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	l.Info("template pack exported", slog.String("pack", name), slog.Int("templates", len(m.Templates)))
	return nil
}

// ExportFile writes a pack of every template in l to destZipPath.
func ExportFile(ctx context.Context, l store.Lister, name, destZipPath string) error {
	if strings.TrimSpace(destZipPath) == "" {
		return errors.New("destZipPath is required")
	}
	docs, err := l.List(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destZipPath), 0o755); err != nil {
		return fmt.Errorf("ensure zip dir: %w", err)
	}
	var buf bytes.Buffer
	if err := Export(&buf, name, docs); err != nil {
		return err
	}
	return os.WriteFile(destZipPath, buf.Bytes(), 0o644)
}

// ReadManifest returns the manifest of a pack.
func ReadManifest(r io.ReaderAt, size int64) (Manifest, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Manifest{}, fmt.Errorf("open pack: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != ManifestName {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return Manifest{}, err
		}
		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return Manifest{}, fmt.Errorf("parse manifest: %w", err)
		}
		return m, nil
	}
	return Manifest{}, errors.New("pack has no manifest")
}

// Install validates every template of the pack and saves those whose id is not
// yet in dst. Existing templates are never overwritten. An invalid template
// aborts the install before anything is written.
func Install(ctx context.Context, dst Target, r io.ReaderAt, size int64) (Result, error) {
	l := applog.WithOperation(applog.WithComponent("stylepack"), "install")
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Result{}, fmt.Errorf("open pack: %w", err)
	}
	var docs []domain.TemplateDocument
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, templatesDir) || f.FileInfo().IsDir() {
			continue
		}
		if ext := path.Ext(f.Name); ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return Result{}, err
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Result{}, fmt.Errorf("%s: %w", f.Name, err)
		}
		doc, err := document.Validate(raw)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", f.Name, err)
		}
		docs = append(docs, doc)
	}

	var res Result
	for _, doc := range docs {
		if doc.ID != "" {
			_, err := dst.GetByID(ctx, doc.ID)
			switch {
			case err == nil:
				l.Warn("skip existing template", slog.String("template", doc.ID))
				res.Skipped = append(res.Skipped, doc.ID)
				continue
			case !domain.IsNotFound(err):
				return res, err
			}
		}
		saved, err := dst.Save(ctx, doc)
		if err != nil {
			return res, err
		}
		res.Installed = append(res.Installed, saved.ID)
	}
	l.Info("template pack installed", slog.Int("installed", len(res.Installed)), slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

// InstallFile is Install for a pack on disk.
func InstallFile(ctx context.Context, dst Target, packZipPath string) (Result, error) {
	f, err := os.Open(packZipPath)
	if err != nil {
		return Result{}, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		return Result{}, err
	}
	return Install(ctx, dst, f, st.Size())
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if len(data) > maxEntrySize {
		return nil, fmt.Errorf("%s: entry too large", f.Name)
	}
	return data, nil
}
