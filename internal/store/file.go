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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"invoicestudio/internal/document"
	"invoicestudio/internal/domain"
	applog "invoicestudio/internal/log"
)

const (
	TemplatesDirName = "templates"
	BackupsDirName   = "backups"
	templateExt      = ".json"
	backupStamp      = "20060102-150405.000000000"
	// DefaultKeepBackups is how many backups per template FileStore retains.
	DefaultKeepBackups = 5
)

var safeID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ErrInvalidID is returned for ids that cannot be used as file names.
var ErrInvalidID = errors.New("invalid template id")

// FileStore keeps one human-readable JSON file per template under Root/templates.
// Writes go to a temp file that is renamed over the target; the previous version
// is copied to Root/backups first. Unreadable files are recovered from their
// latest backup.
type FileStore struct {
	Root        string
	KeepBackups int

	mu  sync.Mutex
	log *slog.Logger
}

// OpenFileStore creates the directory layout under root if needed.
func OpenFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("store root is required")
	}
	for _, d := range []string{TemplatesDirName, BackupsDirName} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", d, err)
		}
	}
	return &FileStore{
		Root:        root,
		KeepBackups: DefaultKeepBackups,
		log:         applog.WithComponent("store").With(slog.String("driver", "file"), slog.String("root", root)),
	}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.Root, TemplatesDirName, id+templateExt)
}

func (s *FileStore) List(ctx context.Context) ([]domain.TemplateDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Persistence("list", "", err)
	}
	ents, err := os.ReadDir(filepath.Join(s.Root, TemplatesDirName))
	if err != nil {
		return nil, domain.Persistence("list", "", err)
	}
	var ids []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, templateExt) || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, templateExt))
	}
	sort.Strings(ids)
	out := make([]domain.TemplateDocument, 0, len(ids))
	for _, id := range ids {
		d, err := s.read(id)
		if err != nil {
			s.log.Warn("skipping unreadable template", slog.String("template", id), slog.Any("err", err))
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *FileStore) ListByCategory(ctx context.Context, cat domain.Category) ([]domain.TemplateDocument, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterCategory(all, cat), nil
}

func (s *FileStore) GetByID(ctx context.Context, id string) (domain.TemplateDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.TemplateDocument{}, domain.Persistence("get", id, err)
	}
	if !safeID.MatchString(id) {
		return domain.TemplateDocument{}, &domain.NotFound{Kind: "template", ID: id}
	}
	d, err := s.read(id)
	if err != nil {
		return domain.TemplateDocument{}, domain.Persistence("get", id, err)
	}
	return d, nil
}

// read loads a template. A file that exists but cannot be read or parsed is
// recovered from its latest backup.
func (s *FileStore) read(id string) (domain.TemplateDocument, error) {
	b, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return domain.TemplateDocument{}, &domain.NotFound{Kind: "template", ID: id}
	}
	if err == nil {
		doc, perr := document.Parse(b)
		if perr == nil {
			return doc, nil
		}
		err = perr
	}
	doc, berr := s.latestBackup(id)
	if berr != nil {
		return domain.TemplateDocument{}, fmt.Errorf("%w; backup attempt: %v", err, berr)
	}
	s.log.Warn("recovered template from backup", slog.String("template", id), slog.Any("err", err))
	return doc, nil
}

func (s *FileStore) Save(ctx context.Context, doc domain.TemplateDocument) (domain.TemplateDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.TemplateDocument{}, domain.Persistence("save", doc.ID, err)
	}
	doc = document.Normalize(doc)
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if !safeID.MatchString(doc.ID) {
		return domain.TemplateDocument{}, domain.Persistence("save", doc.ID, ErrInvalidID)
	}
	data, err := document.Serialize(doc)
	if err != nil {
		return domain.TemplateDocument{}, domain.Persistence("save", doc.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.path(doc.ID)
	if _, statErr := os.Stat(target); statErr == nil {
		stamp := time.Now().UTC().Format(backupStamp)
		bpath := filepath.Join(s.Root, BackupsDirName, fmt.Sprintf("%s%s.%s.bak", doc.ID, templateExt, stamp))
		if cerr := copyFile(target, bpath); cerr != nil {
			return domain.TemplateDocument{}, domain.Persistence("save", doc.ID, fmt.Errorf("backup current version: %w", cerr))
		}
		s.pruneBackups(doc.ID)
	}
	temp := filepath.Join(filepath.Dir(target), fmt.Sprintf(".%s.tmp-%d-%d", doc.ID, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		_ = os.Remove(temp)
		return domain.TemplateDocument{}, domain.Persistence("save", doc.ID, fmt.Errorf("write temp file: %w", werr))
	}
	if rerr := os.Rename(temp, target); rerr != nil {
		_ = os.Remove(temp)
		return domain.TemplateDocument{}, domain.Persistence("save", doc.ID, fmt.Errorf("replace template file: %w", rerr))
	}
	s.log.Debug("template written", slog.String("template", doc.ID))
	return doc, nil
}

// Delete removes the template file. Backups are kept.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return domain.Persistence("delete", id, err)
	}
	if !safeID.MatchString(id) {
		return &domain.NotFound{Kind: "template", ID: id}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return &domain.NotFound{Kind: "template", ID: id}
	}
	return domain.Persistence("delete", id, err)
}

func (s *FileStore) backups(id string) []string {
	bdir := filepath.Join(s.Root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil
	}
	prefix := id + templateExt + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".bak") {
			continue
		}
		// "a.json.<stamp>.bak" must not match id "a" when it belongs to "a.json.x"
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".bak")
		if _, err := time.Parse(backupStamp, stamp); err != nil {
			continue
		}
		out = append(out, filepath.Join(bdir, name))
	}
	// timestamp in name yields lexicographic order
	sort.Strings(out)
	return out
}

func (s *FileStore) latestBackup(id string) (domain.TemplateDocument, error) {
	candidates := s.backups(id)
	if len(candidates) == 0 {
		return domain.TemplateDocument{}, errors.New("no backups found")
	}
	b, err := os.ReadFile(candidates[len(candidates)-1])
	if err != nil {
		return domain.TemplateDocument{}, fmt.Errorf("read latest backup: %w", err)
	}
	return document.Parse(b)
}

func (s *FileStore) pruneBackups(id string) {
	keep := s.KeepBackups
	if keep <= 0 {
		return
	}
	all := s.backups(id)
	for len(all) > keep {
		_ = os.Remove(all[0])
		all = all[1:]
	}
}

// writeFileSync writes data and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
