/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Command invoicestudio renders, validates and manages invoice templates, and
// serves the template API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"invoicestudio/internal/backend"
	"invoicestudio/internal/config"
	"invoicestudio/internal/crash"
	applog "invoicestudio/internal/log"
	"invoicestudio/internal/store"
	"invoicestudio/internal/telemetry"
	"invoicestudio/internal/version"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
	exitGated = 3
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Invoice Studio")
	_, _ = fmt.Fprintf(w, "Version: %s\n", version.String())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  invoicestudio version                                   Show version")
	_, _ = fmt.Fprintln(w, "  invoicestudio catalog [category]                        List catalog templates")
	_, _ = fmt.Fprintln(w, "  invoicestudio validate <file>                           Check a template document")
	_, _ = fmt.Fprintln(w, "  invoicestudio render [flags] <id|file>                  Render a template (--invoice, --out, --premium)")
	_, _ = fmt.Fprintln(w, "  invoicestudio export [flags] <id|file>                  Batch export (--preset web|print, --dir)")
	_, _ = fmt.Fprintln(w, "  invoicestudio style <id> key=value...                   Change styles of a stored template")
	_, _ = fmt.Fprintln(w, "  invoicestudio preview [flags] <id|file>                 Edit styles in a preview window (-tags fyne)")
	_, _ = fmt.Fprintln(w, "  invoicestudio save <file>                               Store a template document")
	_, _ = fmt.Fprintln(w, "  invoicestudio list [category]                           List stored templates")
	_, _ = fmt.Fprintln(w, "  invoicestudio delete <id>                               Delete a stored template")
	_, _ = fmt.Fprintln(w, "  invoicestudio pack export <name> <out.zip>              Write stored templates to a pack")
	_, _ = fmt.Fprintln(w, "  invoicestudio pack install <pack.zip>                   Install a pack into the store")
	_, _ = fmt.Fprintln(w, "  invoicestudio serve                                     Run the template API")
	_, _ = fmt.Fprintln(w, "  invoicestudio token [--ttl 24h] <subject>               Issue an API bearer token")
	_, _ = fmt.Fprintln(w, "  invoicestudio login <token> | logout                    Keep or forget the API token")
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// app carries what every command needs.
type app struct {
	cfg    config.AppConfig
	token  string
	out    io.Writer
	errOut io.Writer
	log    *slog.Logger
	target *crash.Target
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, token, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return exitError
	}
	logOpts := cfg.LogOptions()
	logOpts.Output = stderr
	applog.Init(logOpts)

	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	tel := telemetry.New(tcfg)
	telemetry.SetDefault(tel)
	defer tel.Flush(context.Background())

	a := &app{cfg: cfg, token: token, out: stdout, errOut: stderr, log: applog.WithComponent("cli")}
	a.target = &crash.Target{Dir: crashDir()}
	defer crash.Recover(a.target)

	a.log.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		usage(stdout)
		return exitUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(stdout, "Invoice Studio")
		_, _ = fmt.Fprintln(stdout, version.String())
		return exitOK
	case "help", "--help", "-h":
		usage(stdout)
		return exitOK
	case "catalog":
		return a.catalog(ctx, rest)
	case "validate":
		return a.validate(rest)
	case "render":
		return a.render(ctx, rest)
	case "export":
		return a.export(ctx, rest)
	case "style":
		return a.style(ctx, rest)
	case "preview":
		return a.preview(ctx, rest)
	case "save":
		return a.save(ctx, rest)
	case "list":
		return a.list(ctx, rest)
	case "delete":
		return a.delete(ctx, rest)
	case "pack":
		return a.pack(ctx, rest)
	case "serve":
		return a.serve(ctx, rest)
	case "token":
		return a.issueToken(rest)
	case "login":
		return a.login(rest)
	case "logout":
		return a.logout()
	}
	_, _ = fmt.Fprintf(stderr, "unknown command %q\n", cmd)
	usage(stderr)
	return exitUsage
}

// crashDir keeps crash reports beside the config file.
func crashDir() string {
	p, err := config.ConfigPath()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(p), "crash")
}

// openStore opens the store selected by the storage section. The returned
// close func is never nil.
func (a *app) openStore(ctx context.Context) (store.Store, func(), error) {
	noop := func() {}
	switch a.cfg.Storage.Driver {
	case config.DriverRemote:
		opts := []backend.ClientOption{backend.WithTimeout(a.cfg.Backend.Timeout())}
		if a.cfg.Backend.TLSInsecure {
			opts = append(opts, backend.WithInsecureTLS())
		}
		return backend.NewClient(a.cfg.Backend.BaseURL, a.token, opts...), noop, nil
	case config.DriverFile:
		root, err := a.cfg.StoragePath()
		if err != nil {
			return nil, noop, err
		}
		fs, err := store.OpenFileStore(root)
		if err != nil {
			return nil, noop, err
		}
		return fs, noop, nil
	case config.DriverSQLite, "":
		path, err := a.cfg.StoragePath()
		if err != nil {
			return nil, noop, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, noop, err
		}
		db, err := store.OpenSQLite(ctx, path)
		if err != nil {
			return nil, noop, err
		}
		return db, func() { _ = db.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
}

// fail reports err and returns the matching exit code.
func (a *app) fail(op string, err error) int {
	a.log.Error(op+" failed", slog.Any("err", err))
	_, _ = fmt.Fprintln(a.errOut, "Error:", err)
	var ue usageError
	if errors.As(err, &ue) {
		return exitUsage
	}
	return exitError
}

type usageError string

func (e usageError) Error() string { return string(e) }
