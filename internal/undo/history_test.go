/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func snap(key, blob string, ts time.Time) Snapshot {
	return Snapshot{Key: key, Blob: []byte(blob), TS: ts}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024, MinInterval: 10 * time.Millisecond})
	t0 := time.Now()
	m.Record(snap("doc", "v1", t0))
	m.Record(snap("doc", "v2", t0.Add(time.Second)))

	prev, ok := m.Undo(snap("doc", "v3", t0.Add(2*time.Second)))
	if !ok || string(prev.Blob) != "v2" {
		t.Fatalf("undo expected v2, got ok=%v blob=%q", ok, prev.Blob)
	}
	prev, ok = m.Undo(prev)
	if !ok || string(prev.Blob) != "v1" {
		t.Fatalf("undo expected v1, got ok=%v blob=%q", ok, prev.Blob)
	}
	if _, ok := m.Undo(prev); ok {
		t.Fatalf("expected empty undo stack")
	}
	next, ok := m.Redo(prev)
	if !ok || string(next.Blob) != "v2" {
		t.Fatalf("redo expected v2, got ok=%v blob=%q", ok, next.Blob)
	}
	next, ok = m.Redo(next)
	if !ok || string(next.Blob) != "v3" {
		t.Fatalf("redo expected v3, got ok=%v blob=%q", ok, next.Blob)
	}
	if m.CanRedo("doc") {
		t.Fatalf("redo stack should be empty")
	}
}

func TestRecordCoalescesBursts(t *testing.T) {
	m := NewManager(Config{MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	m.Record(snap("d", "before", t0))
	m.Record(snap("d", "typing1", t0.Add(10*time.Millisecond)))
	m.Record(snap("d", "typing2", t0.Add(40*time.Millisecond)))
	if _, _, depth := m.Stats(); depth != 1 {
		t.Fatalf("expected one coalesced step, got %d", depth)
	}
	s, _ := m.Undo(snap("d", "now", t0.Add(time.Second)))
	if string(s.Blob) != "before" {
		t.Fatalf("expected state before the burst, got %q", s.Blob)
	}
}

func TestRecordClearsRedo(t *testing.T) {
	m := NewManager(Config{})
	m.Record(snap("d", "a", time.Now()))
	m.Undo(snap("d", "b", time.Now()))
	if !m.CanRedo("d") {
		t.Fatalf("expected redo after undo")
	}
	m.Record(snap("d", "a", time.Now()))
	if m.CanRedo("d") {
		t.Fatalf("new edit must clear redo")
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 20, MaxPerKey: 2})
	t0 := time.Now()
	for i := 0; i < 10; i++ {
		m.Record(snap("d", "xxxxx", t0.Add(time.Duration(i)*time.Second)))
	}
	if _, _, depth := m.Stats(); depth > 2 {
		t.Fatalf("expected MaxPerKey cap to limit to 2, got %d", depth)
	}
	for i := 0; i < 10; i++ {
		m.Record(snap("e", "yyyyyyyy", t0.Add(time.Duration(i)*time.Second)))
	}
	if total, _, _ := m.Stats(); total > 20 {
		t.Fatalf("expected byte cap 20, got %d", total)
	}
}

func TestRekeyAndClear(t *testing.T) {
	m := NewManager(Config{})
	m.Record(snap("", "draft", time.Now()))
	m.Rekey("", "id-1")
	if m.CanUndo("") || !m.CanUndo("id-1") {
		t.Fatalf("history not moved")
	}
	m.Clear("id-1")
	if total, keys, _ := m.Stats(); total != 0 || keys != 0 {
		t.Fatalf("expected empty manager, got total=%d keys=%d", total, keys)
	}
}
