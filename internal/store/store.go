/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package store persists template documents. The core packages only depend on the
// small interfaces below; SQLiteStore, FileStore, MemoryStore and the backend
// client implement them.
package store

import (
	"context"
	"errors"

	"invoicestudio/internal/domain"
)

// Lister lists stored templates.
type Lister interface {
	List(ctx context.Context) ([]domain.TemplateDocument, error)
	ListByCategory(ctx context.Context, cat domain.Category) ([]domain.TemplateDocument, error)
}

// Saver persists a document. A document without an id is created and the returned
// copy carries the assigned id; otherwise the stored record is replaced.
type Saver interface {
	Save(ctx context.Context, doc domain.TemplateDocument) (domain.TemplateDocument, error)
}

// Store is the full persistence collaborator.
type Store interface {
	Lister
	Saver
	GetByID(ctx context.Context, id string) (domain.TemplateDocument, error)
	Delete(ctx context.Context, id string) error
}

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("store closed")

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, doc domain.TemplateDocument) (domain.TemplateDocument, error)

func (f SaverFunc) Save(ctx context.Context, doc domain.TemplateDocument) (domain.TemplateDocument, error) {
	return f(ctx, doc)
}

func filterCategory(docs []domain.TemplateDocument, cat domain.Category) []domain.TemplateDocument {
	out := make([]domain.TemplateDocument, 0, len(docs))
	for _, d := range docs {
		if d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}
