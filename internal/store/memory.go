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
	"sync"

	"github.com/google/uuid"

	"invoicestudio/internal/document"
	"invoicestudio/internal/domain"
)

// MemoryStore keeps templates in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]domain.TemplateDocument
	order []string
	// FailWith, when set, is returned (wrapped) by every operation.
	FailWith error
}

func NewMemoryStore(seed ...domain.TemplateDocument) *MemoryStore {
	m := &MemoryStore{docs: make(map[string]domain.TemplateDocument)}
	for _, d := range seed {
		_, _ = m.Save(context.Background(), d)
	}
	return m
}

func (m *MemoryStore) List(ctx context.Context) ([]domain.TemplateDocument, error) {
	if err := m.check(ctx, "list", ""); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.TemplateDocument, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.docs[id].Clone())
	}
	return out, nil
}

func (m *MemoryStore) ListByCategory(ctx context.Context, cat domain.Category) ([]domain.TemplateDocument, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterCategory(all, cat), nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (domain.TemplateDocument, error) {
	if err := m.check(ctx, "get", id); err != nil {
		return domain.TemplateDocument{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return domain.TemplateDocument{}, &domain.NotFound{Kind: "template", ID: id}
	}
	return d.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, doc domain.TemplateDocument) (domain.TemplateDocument, error) {
	if err := m.check(ctx, "save", doc.ID); err != nil {
		return domain.TemplateDocument{}, err
	}
	doc = document.Normalize(doc)
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.ID]; !exists {
		m.order = append(m.order, doc.ID)
	}
	m.docs[doc.ID] = doc.Clone()
	return doc, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := m.check(ctx, "delete", id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return &domain.NotFound{Kind: "template", ID: id}
	}
	delete(m.docs, id)
	for j, v := range m.order {
		if v == id {
			m.order = append(m.order[:j], m.order[j+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) check(ctx context.Context, op, id string) error {
	if err := ctx.Err(); err != nil {
		return domain.Persistence(op, id, err)
	}
	if m.FailWith != nil {
		return domain.Persistence(op, id, m.FailWith)
	}
	return nil
}
