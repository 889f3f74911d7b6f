/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package gating decides whether a user may apply a catalog template. Premium
// templates require a premium user; everything else is always selectable.
// Rejection is a normal outcome, not an error.
package gating

import (
	"context"
	"log/slog"

	"invoicestudio/internal/catalog"
	"invoicestudio/internal/domain"
	applog "invoicestudio/internal/log"
	"invoicestudio/internal/telemetry"
)

// Outcome of a selection attempt.
type Outcome string

const (
	Applied Outcome = "applied"
	Gated   Outcome = "gated"
)

// UpsellReason is attached to gated results.
const UpsellReason = "premium template: upgrade to use it"

// SelectionResult reports a selection. Document is set only when Applied and is a
// copy the caller may edit.
type SelectionResult struct {
	Outcome    Outcome
	TemplateID string
	Document   domain.TemplateDocument
	Reason     string
}

// Applied reports whether the template was applied.
func (r SelectionResult) Applied() bool { return r.Outcome == Applied }

// CanSelect reports whether a user may apply entry.
func CanSelect(entry domain.CatalogEntry, isPremiumUser bool) bool {
	return !entry.IsPremium || isPremiumUser
}

// SelectOrGate applies entry when CanSelect allows it and reports a gated outcome
// otherwise.
func SelectOrGate(entry domain.CatalogEntry, isPremiumUser bool) SelectionResult {
	if !CanSelect(entry, isPremiumUser) {
		return SelectionResult{Outcome: Gated, TemplateID: entry.ID, Reason: UpsellReason}
	}
	return SelectionResult{Outcome: Applied, TemplateID: entry.ID, Document: entry.TemplateDocument.Clone()}
}

// Entitlements answers whether a user holds a premium subscription.
type Entitlements interface {
	IsPremium(ctx context.Context, userID string) (bool, error)
}

// Static is an Entitlements with a fixed answer.
type Static bool

func (s Static) IsPremium(context.Context, string) (bool, error) { return bool(s), nil }

// Selector combines a catalog, an entitlement source and telemetry.
type Selector struct {
	Catalog      *catalog.Catalog
	Entitlements Entitlements
	Events       telemetry.Recorder
}

// Select looks up id (unknown ids fall back to the default template) and applies
// or gates it for userID. Entitlement lookup failures count as a free user.
func (s *Selector) Select(ctx context.Context, userID, id string) SelectionResult {
	l := applog.WithOperation(applog.WithComponent("gating"), "select")
	cat := s.Catalog
	if cat == nil {
		cat = catalog.New()
	}
	entry := cat.Get(id)

	premium := false
	if entry.IsPremium && s.Entitlements != nil {
		ok, err := s.Entitlements.IsPremium(ctx, userID)
		if err != nil {
			l.Warn("entitlement lookup failed; treating user as free", slog.String("template", entry.ID), slog.Any("err", err))
		} else {
			premium = ok
		}
	}

	res := SelectOrGate(entry, premium)
	if s.Events != nil {
		name := telemetry.EventTemplateSelected
		if !res.Applied() {
			name = telemetry.EventTemplateGated
		}
		s.Events.Event(name, map[string]any{"template": entry.ID, "premium": entry.IsPremium})
	}
	l.Debug("template selection", slog.String("template", entry.ID), slog.String("outcome", string(res.Outcome)))
	return res
}
