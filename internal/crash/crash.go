/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns panics into a crash report plus an autosave of the open template.
package crash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"invoicestudio/internal/editor"
	applog "invoicestudio/internal/log"
	"invoicestudio/internal/store"
	"invoicestudio/internal/telemetry"
	"invoicestudio/internal/version"
)

// AutosaveDirName is the FileStore root under Target.Dir that receives crash autosaves.
const AutosaveDirName = "autosave"

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Target is what a crash should preserve. Dir holds reports and the autosave
// store; the OS temp dir is used when it is empty.
type Target struct {
	Session *editor.Session
	Dir     string
}

func (t *Target) dir() string {
	if t == nil || t.Dir == "" {
		return os.TempDir()
	}
	return t.Dir
}

// Recover captures a panic, logs it with its stack, writes a report file and
// autosaves the working document of the session (if any).
//
// Usage: defer crash.Recover(target)
func Recover(t *Target) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(t, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if t != nil && t.Session != nil {
		if id, err := autosave(t); err != nil {
			l.Error("crash autosave failed", slog.Any("err", err))
		} else {
			l.Info("crash autosave written", slog.String("template", id))
		}
	}

	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

// autosave writes the session's working document into the autosave FileStore.
// Unsaved documents get a time-stamped id.
func autosave(t *Target) (string, error) {
	fs, err := store.OpenFileStore(filepath.Join(t.dir(), AutosaveDirName))
	if err != nil {
		return "", err
	}
	doc := t.Session.Document()
	if doc.ID == "" {
		doc.ID = "unsaved-" + time.Now().UTC().Format("20060102-150405")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	saved, err := fs.Save(ctx, doc)
	if err != nil {
		return doc.ID, err
	}
	return saved.ID, nil
}

func writeReport(t *Target, panicVal any, stack []byte) (string, error) {
	dir := t.dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", now.Format("20060102-150405")))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Invoice Studio Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if t != nil && t.Session != nil {
		doc := t.Session.Document()
		_, _ = fmt.Fprintf(&buf, "Template: %q (%s)\n", doc.Name, doc.ID)
		_, _ = fmt.Fprintf(&buf, "EditorState: %s\n", t.Session.State())
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	telemetry.Default().UploadCrash(buf.Bytes())
	return path, nil
}
