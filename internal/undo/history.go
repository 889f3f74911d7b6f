/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps bounded undo/redo histories of serialized documents.
package undo

import (
	"sync"
	"time"
)

// Snapshot is a serialized document state. Blob is opaque to the manager; its
// size is len(Blob). TS is when the state was left.
type Snapshot struct {
	Key   string
	Label string
	Blob  []byte
	TS    time.Time
}

// Config controls memory and depth caps and coalescing.
type Config struct {
	// MaxBytes is a soft cap; the oldest entries are pruned when exceeded.
	MaxBytes int
	// MaxPerKey limits the undo depth per document (0 means unlimited).
	MaxPerKey int
	// MinInterval merges records that arrive within the interval into one step,
	// keeping the state from before the burst.
	MinInterval time.Duration
}

// Manager holds per-document undo and redo stacks. It is safe for concurrent use.
type Manager struct {
	cfg        Config
	mu         sync.Mutex
	undo       map[string][]Snapshot
	redo       map[string][]Snapshot
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 8 * 1024 * 1024
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	return &Manager{cfg: cfg, undo: make(map[string][]Snapshot), redo: make(map[string][]Snapshot)}
}

// Record stores the state a document had before an edit. Redo history is
// discarded. Records within MinInterval of the previous one extend that step.
func (m *Manager) Record(before Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropRedoLocked(before.Key)
	stack := m.undo[before.Key]
	if n := len(stack); n > 0 && m.cfg.MinInterval > 0 {
		last := stack[n-1]
		if before.TS.Sub(last.TS) < m.cfg.MinInterval {
			last.TS = before.TS
			stack[n-1] = last
			return
		}
	}
	m.undo[before.Key] = append(stack, before)
	m.totalBytes += len(before.Blob)
	m.enforceCapsLocked(before.Key)
}

// Undo swaps current for the most recent recorded state. current goes onto the
// redo stack.
func (m *Manager) Undo(current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[current.Key]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[current.Key] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	m.redo[current.Key] = append(m.redo[current.Key], current)
	m.totalBytes += len(current.Blob)
	return s, true
}

// Redo reverses the last Undo. current goes back onto the undo stack.
func (m *Manager) Redo(current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[current.Key]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[current.Key] = r[:len(r)-1]
	m.totalBytes -= len(s.Blob)
	// restored step must not coalesce with the next edit
	current.TS = time.Time{}
	m.undo[current.Key] = append(m.undo[current.Key], current)
	m.totalBytes += len(current.Blob)
	m.enforceCapsLocked(current.Key)
	return s, true
}

// CanUndo reports whether key has undo history.
func (m *Manager) CanUndo(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[key]) > 0
}

// CanRedo reports whether key has redo history.
func (m *Manager) CanRedo(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[key]) > 0
}

// Rekey moves history from one key to another, e.g. after a store assigned an id.
func (m *Manager) Rekey(from, to string) {
	if from == to {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.undo[from]; ok {
		for i := range s {
			s[i].Key = to
		}
		m.undo[to] = append(m.undo[to], s...)
		delete(m.undo, from)
	}
	if s, ok := m.redo[from]; ok {
		for i := range s {
			s[i].Key = to
		}
		m.redo[to] = append(m.redo[to], s...)
		delete(m.redo, from)
	}
}

// Clear drops all history for key.
func (m *Manager) Clear(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[key] {
		m.totalBytes -= len(s.Blob)
	}
	m.dropRedoLocked(key)
	delete(m.undo, key)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, keys int, undoDepth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys = len(m.undo)
	for _, v := range m.undo {
		undoDepth += len(v)
	}
	return m.totalBytes, keys, undoDepth
}

func (m *Manager) dropRedoLocked(key string) {
	for _, s := range m.redo[key] {
		m.totalBytes -= len(s.Blob)
	}
	delete(m.redo, key)
}

func (m *Manager) enforceCapsLocked(key string) {
	if m.cfg.MaxPerKey > 0 {
		stack := m.undo[key]
		if len(stack) > m.cfg.MaxPerKey {
			drop := len(stack) - m.cfg.MaxPerKey
			for i := 0; i < drop; i++ {
				m.totalBytes -= len(stack[i].Blob)
			}
			m.undo[key] = append([]Snapshot{}, stack[drop:]...)
		}
	}
	// global cap: prune the oldest step of the deepest history first
	for m.totalBytes > m.cfg.MaxBytes {
		victim := ""
		depth := 0
		for k, stack := range m.undo {
			if len(stack) > depth || (len(stack) == depth && k < victim) {
				victim, depth = k, len(stack)
			}
		}
		if depth == 0 {
			break
		}
		stack := m.undo[victim]
		m.totalBytes -= len(stack[0].Blob)
		m.undo[victim] = stack[1:]
		if len(m.undo[victim]) == 0 {
			delete(m.undo, victim)
		}
	}
}
