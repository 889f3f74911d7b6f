/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError reports raw template text that does not describe a well-formed
// TemplateDocument. Line and Column are 1-based and zero when unknown.
type ParseError struct {
	Msg     string
	Line    int
	Column  int
	Details []string
	Err     error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse template: ")
	b.WriteString(e.Msg)
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d, column %d)", e.Line, e.Column)
	}
	if len(e.Details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Details, "; "))
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// NotFound reports a missing template (or other resource kind) by id.
type NotFound struct {
	Kind string
	ID   string
}

func (e *NotFound) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "template"
	}
	return fmt.Sprintf("%s %q not found", kind, e.ID)
}

// PersistenceFailure wraps errors from the storage collaborator. The core never
// retries; callers keep their in-memory state so the user can retry.
type PersistenceFailure struct {
	Op  string // list, get, save, delete
	ID  string
	Err error
}

func (e *PersistenceFailure) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *PersistenceFailure) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceFailure unless it is nil, already one, or a NotFound.
func Persistence(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var pf *PersistenceFailure
	if errors.As(err, &pf) {
		return err
	}
	var nf *NotFound
	if errors.As(err, &nf) {
		return err
	}
	return &PersistenceFailure{Op: op, ID: id, Err: err}
}

func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func IsNotFound(err error) bool {
	var nf *NotFound
	return errors.As(err, &nf)
}

func IsPersistenceFailure(err error) bool {
	var pf *PersistenceFailure
	return errors.As(err, &pf)
}
