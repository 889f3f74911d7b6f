/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"invoicestudio/internal/document"
	"invoicestudio/internal/domain"
	"invoicestudio/internal/editor"
	"invoicestudio/internal/store"
)

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "Invoice Studio Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func silenceStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w
	done := make(chan struct{})
	go func() { _, _ = io.Copy(io.Discard, r); close(done) }()
	t.Cleanup(func() {
		_ = w.Close()
		<-done
		os.Stderr = old
	})
}

func TestRecoverWritesReportAndAutosave(t *testing.T) {
	silenceStderr(t)
	code := 0
	oldExit := exitFn
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { exitFn = oldExit })

	dir := t.TempDir()
	doc := document.New("Crashy", domain.CategoryInvoice)
	sess := editor.NewSession(doc, nil)
	t.Cleanup(sess.Close)
	sess.ApplyStyleChange("primaryColor", "#123456")

	func() {
		defer Recover(&Target{Session: sess, Dir: dir})
		panic("boom")
	}()

	if code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "crash-*.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one crash report, got %v", matches)
	}
	b, _ := os.ReadFile(matches[0])
	if !strings.Contains(string(b), "Panic: boom") || !strings.Contains(string(b), "EditorState: dirty") {
		t.Fatalf("unexpected report: %s", b)
	}

	fs, err := store.OpenFileStore(filepath.Join(dir, AutosaveDirName))
	if err != nil {
		t.Fatal(err)
	}
	got, err := fs.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("autosave missing: %v", err)
	}
	if got.Content.Styles["primaryColor"] != "#123456" {
		t.Fatalf("autosave did not capture working copy: %#v", got.Content.Styles)
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	called := false
	oldExit := exitFn
	exitFn = func(int) { called = true }
	t.Cleanup(func() { exitFn = oldExit })
	func() {
		defer Recover(nil)
	}()
	if called {
		t.Fatalf("exit called without a panic")
	}
}
