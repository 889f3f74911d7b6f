/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package catalog offers the fixed set of built-in templates, optionally extended
// with public templates fetched from storage. A Catalog is immutable after
// construction and safe for concurrent readers.
package catalog

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"invoicestudio/internal/document"
	"invoicestudio/internal/domain"
	applog "invoicestudio/internal/log"
	"invoicestudio/internal/store"
)

// Catalog is an ordered, read-only list of template entries. Built-ins come first.
type Catalog struct {
	entries []domain.CatalogEntry
	byID    map[string]int
}

// New builds a catalog of the built-ins plus extra. Extra entries whose id is
// empty or already taken are skipped; built-ins win on conflicts.
func New(extra ...domain.CatalogEntry) *Catalog {
	all := builtins()
	for _, e := range extra {
		if e.ID == "" {
			continue
		}
		e = e.Clone()
		e.Builtin = false
		e.TemplateDocument = document.Normalize(e.TemplateDocument)
		all = append(all, e)
	}
	all = lo.UniqBy(all, func(e domain.CatalogEntry) string { return e.ID })
	c := &Catalog{entries: all, byID: make(map[string]int, len(all))}
	for i, e := range all {
		c.byID[e.ID] = i
	}
	return c
}

// LoadPublic builds a catalog from the built-ins and every public template the
// lister returns. A listing failure is logged and yields the built-ins only.
func LoadPublic(ctx context.Context, l store.Lister) *Catalog {
	logger := applog.WithOperation(applog.WithComponent("catalog"), "load_public")
	if l == nil {
		return New()
	}
	docs, err := l.List(ctx)
	if err != nil {
		logger.Warn("listing public templates failed; using built-ins", slog.Any("err", err))
		return New()
	}
	public := lo.FilterMap(docs, func(d domain.TemplateDocument, _ int) (domain.CatalogEntry, bool) {
		return domain.CatalogEntry{TemplateDocument: d}, d.IsPublic
	})
	c := New(public...)
	logger.Debug("catalog loaded", slog.Int("public", len(public)), slog.Int("entries", c.Len()))
	return c
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// List returns deep copies of all entries in catalog order.
func (c *Catalog) List() []domain.CatalogEntry {
	return lo.Map(c.entries, func(e domain.CatalogEntry, _ int) domain.CatalogEntry { return e.Clone() })
}

// Get returns the entry with id, or the default entry when id is unknown.
func (c *Catalog) Get(id string) domain.CatalogEntry {
	if e, ok := c.Lookup(id); ok {
		return e
	}
	return c.entries[c.byID[DefaultID]].Clone()
}

// Lookup returns the entry with id and whether it exists.
func (c *Catalog) Lookup(id string) (domain.CatalogEntry, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.CatalogEntry{}, false
	}
	return c.entries[i].Clone(), true
}

// Default returns the default entry.
func (c *Catalog) Default() domain.CatalogEntry { return c.Get(DefaultID) }

// ByCategory returns the entries of one category.
func (c *Catalog) ByCategory(cat domain.Category) []domain.CatalogEntry {
	return c.filter(func(e domain.CatalogEntry) bool { return e.Category == cat })
}

// Premium returns the premium entries.
func (c *Catalog) Premium() []domain.CatalogEntry {
	return c.filter(func(e domain.CatalogEntry) bool { return e.IsPremium })
}

// Free returns the entries available to every user.
func (c *Catalog) Free() []domain.CatalogEntry {
	return c.filter(func(e domain.CatalogEntry) bool { return !e.IsPremium })
}

// IDs returns the entry ids in catalog order.
func (c *Catalog) IDs() []string {
	return lo.Map(c.entries, func(e domain.CatalogEntry, _ int) string { return e.ID })
}

func (c *Catalog) filter(keep func(domain.CatalogEntry) bool) []domain.CatalogEntry {
	return lo.FilterMap(c.entries, func(e domain.CatalogEntry, _ int) (domain.CatalogEntry, bool) {
		if !keep(e) {
			return domain.CatalogEntry{}, false
		}
		return e.Clone(), true
	})
}
