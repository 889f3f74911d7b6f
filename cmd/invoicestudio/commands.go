/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"

	"invoicestudio/internal/backend"
	"invoicestudio/internal/catalog"
	"invoicestudio/internal/config"
	"invoicestudio/internal/document"
	"invoicestudio/internal/domain"
	"invoicestudio/internal/editor"
	"invoicestudio/internal/export"
	"invoicestudio/internal/gating"
	"invoicestudio/internal/render"
	"invoicestudio/internal/store"
	"invoicestudio/internal/style"
	"invoicestudio/internal/stylepack"
	"invoicestudio/internal/telemetry"
	"invoicestudio/internal/ui"
)

func newFlags(name string, w io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(w)
	return fs
}

func parseCategoryArg(args []string) (domain.Category, bool, error) {
	if len(args) == 0 {
		return "", false, nil
	}
	cat, ok := domain.ParseCategory(args[0])
	if !ok {
		return "", false, usageError(fmt.Sprintf("unknown category %q", args[0]))
	}
	return cat, true, nil
}

func (a *app) catalog(ctx context.Context, args []string) int {
	cat, filtered, err := parseCategoryArg(args)
	if err != nil {
		return a.fail("catalog", err)
	}
	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		a.log.Warn("store unavailable; listing built-ins only", slog.Any("err", err))
	}
	defer closeStore()
	c := catalog.LoadPublic(ctx, st)
	entries := c.List()
	if filtered {
		entries = c.ByCategory(cat)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPREMIUM")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Name, e.Category, lo.Ternary(e.IsPremium, "yes", ""))
	}
	_ = tw.Flush()
	return exitOK
}

func (a *app) validate(args []string) int {
	if len(args) != 1 {
		return a.fail("validate", usageError("validate requires <file>"))
	}
	doc, err := readTemplateFile(args[0])
	if err != nil {
		return a.fail("validate", err)
	}
	_, _ = fmt.Fprintf(a.out, "ok: %q (%s)\n", doc.Name, doc.Category)
	return exitOK
}

func readTemplateFile(path string) (domain.TemplateDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.TemplateDocument{}, err
	}
	return document.Parse(data)
}

func readInvoiceFile(path string) (*domain.InvoiceData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var inv domain.InvoiceData
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("invoice %s: %w", path, err)
	}
	return &inv, nil
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// errGated carries the upsell reason of a gated selection.
type errGated struct{ reason string }

func (e errGated) Error() string { return e.reason }

// resolveTemplate turns a file path, stored id or catalog id into a document.
// Catalog ids go through gating; files and the user's own templates do not.
func (a *app) resolveTemplate(ctx context.Context, st store.Store, ref string, premium bool) (domain.TemplateDocument, error) {
	if isFile(ref) {
		return readTemplateFile(ref)
	}
	if st != nil {
		doc, err := st.GetByID(ctx, ref)
		if err == nil {
			return doc, nil
		}
		if !domain.IsNotFound(err) {
			a.log.Warn("store lookup failed; trying the catalog", slog.String("template", ref), slog.Any("err", err))
		}
	}
	sel := &gating.Selector{
		Catalog:      catalog.LoadPublic(ctx, st),
		Entitlements: gating.Static(premium || a.cfg.General.PremiumUser),
		Events:       telemetry.Default(),
	}
	res := sel.Select(ctx, a.cfg.General.UserID, ref)
	if !res.Applied() {
		return domain.TemplateDocument{}, errGated{reason: fmt.Sprintf("%s: %s", res.TemplateID, res.Reason)}
	}
	return res.Document, nil
}

type renderFlags struct {
	invoice string
	premium bool
}

func (f *renderFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.invoice, "invoice", "", "invoice data JSON file")
	fs.BoolVar(&f.premium, "premium", false, "treat the user as premium")
}

// tree renders ref with the invoice named by the flags.
func (a *app) tree(ctx context.Context, ref string, f renderFlags) (domain.TemplateDocument, *render.Tree, error) {
	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		a.log.Warn("store unavailable; using files and built-ins", slog.Any("err", err))
	}
	defer closeStore()
	doc, err := a.resolveTemplate(ctx, st, ref, f.premium)
	if err != nil {
		return domain.TemplateDocument{}, nil, err
	}
	var inv *domain.InvoiceData
	if f.invoice != "" {
		if inv, err = readInvoiceFile(f.invoice); err != nil {
			return domain.TemplateDocument{}, nil, err
		}
		if inv.Summary.Currency == "" {
			inv.Summary.Currency = a.cfg.Render.Currency
		}
	}
	return doc, render.Render(doc, inv, render.WithDueDays(a.cfg.Render.DueDays)), nil
}

func (a *app) failRender(op string, err error) int {
	var g errGated
	if errors.As(err, &g) {
		_, _ = fmt.Fprintln(a.errOut, "Premium template:", g.reason)
		return exitGated
	}
	return a.fail(op, err)
}

func (a *app) render(ctx context.Context, args []string) int {
	fs := newFlags("render", a.errOut)
	var rf renderFlags
	rf.register(fs)
	out := fs.String("out", "", "output file (.pdf, .png, .html or .txt); stdout text when empty")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		return a.fail("render", usageError("render requires <id|file>"))
	}
	doc, tree, err := a.tree(ctx, fs.Arg(0), rf)
	if err != nil {
		return a.failRender("render", err)
	}
	if *out == "" {
		_, _ = io.WriteString(a.out, tree.Text())
		return exitOK
	}
	format, ok := export.FormatFromPath(*out)
	if !ok {
		return a.fail("render", usageError("unsupported output extension: "+*out))
	}
	if err := export.ExportFile(tree, *out, format, doc.Name, nil); err != nil {
		return a.fail("render", err)
	}
	telemetry.Default().Event(telemetry.EventExported, map[string]any{"template": doc.ID, "format": format})
	_, _ = fmt.Fprintln(a.out, "Wrote", *out)
	return exitOK
}

func (a *app) export(ctx context.Context, args []string) int {
	fs := newFlags("export", a.errOut)
	var rf renderFlags
	rf.register(fs)
	preset := fs.String("preset", string(export.PresetWeb), "preset: web or print")
	dir := fs.String("dir", ".", "output directory")
	formats := fs.String("formats", "", "comma-separated formats overriding the preset")
	name := fs.String("name", "", "output base name; defaults to the template id")
	fonts := fs.String("fonts", "", "TrueType fonts for PNG output as family=path, comma-separated")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		return a.fail("export", usageError("export requires <id|file>"))
	}
	doc, tree, err := a.tree(ctx, fs.Arg(0), rf)
	if err != nil {
		return a.failRender("export", err)
	}
	opt := export.BatchOptions{
		Preset: export.PresetName(*preset),
		OutDir: *dir,
		Name:   *name,
		Title:  doc.Name,
	}
	if opt.Name == "" {
		opt.Name = lo.Ternary(doc.ID != "", doc.ID, "invoice")
	}
	if *formats != "" {
		opt.Formats = lo.Map(strings.Split(*formats, ","), func(s string, _ int) string { return strings.TrimSpace(s) })
	}
	if *fonts != "" {
		lib := export.NewFontLibrary()
		for _, spec := range strings.Split(*fonts, ",") {
			family, path, ok := strings.Cut(strings.TrimSpace(spec), "=")
			if !ok {
				return a.fail("export", usageError("font must be family=path: "+spec))
			}
			if err := lib.LoadTTF(family, false, path); err != nil {
				return a.fail("export", err)
			}
		}
		opt.Fonts = lib
	}
	written, err := export.Batch(tree, opt)
	if err != nil {
		return a.fail("export", err)
	}
	for _, p := range written {
		telemetry.Default().Event(telemetry.EventExported, map[string]any{"template": doc.ID, "path": p})
		_, _ = fmt.Fprintln(a.out, "Wrote", p)
	}
	return exitOK
}

func (a *app) style(ctx context.Context, args []string) int {
	if len(args) < 2 {
		return a.fail("style", usageError("style requires <id> and at least one key=value"))
	}
	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return a.fail("style", err)
	}
	defer closeStore()
	doc, err := st.GetByID(ctx, args[0])
	if err != nil {
		return a.fail("style", err)
	}
	sess := editor.NewSession(doc, st, editor.WithEvents(telemetry.Default()))
	defer sess.Close()
	a.target.Session = sess
	defer func() { a.target.Session = nil }()

	for _, kv := range args[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return a.fail("style", usageError(fmt.Sprintf("expected key=value, got %q", kv)))
		}
		sess.ApplyStyleChange(strings.TrimSpace(k), style.ParseValue(v))
	}
	if err := sess.Save(ctx); err != nil {
		return a.fail("style", err)
	}
	_, _ = fmt.Fprintf(a.out, "Updated %s (%s)\n", sess.Document().ID, sess.State())
	return exitOK
}

// preview opens the template in the preview window. Edits are saved to the
// configured store when one is available.
func (a *app) preview(ctx context.Context, args []string) int {
	fs := newFlags("preview", a.errOut)
	var rf renderFlags
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		return a.fail("preview", usageError("preview requires <id|file>"))
	}
	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		a.log.Warn("store unavailable; edits cannot be saved", slog.Any("err", err))
	}
	defer closeStore()
	doc, err := a.resolveTemplate(ctx, st, fs.Arg(0), rf.premium)
	if err != nil {
		return a.failRender("preview", err)
	}
	opts := []editor.Option{
		editor.WithEvents(telemetry.Default()),
		editor.WithRenderOptions(render.WithDueDays(a.cfg.Render.DueDays)),
	}
	if rf.invoice != "" {
		inv, err := readInvoiceFile(rf.invoice)
		if err != nil {
			return a.fail("preview", err)
		}
		if inv.Summary.Currency == "" {
			inv.Summary.Currency = a.cfg.Render.Currency
		}
		opts = append(opts, editor.WithInvoice(inv))
	}
	sess := editor.NewSession(doc, st, opts...)
	defer sess.Close()
	a.target.Session = sess
	defer func() { a.target.Session = nil }()

	if err := ui.Run(sess, lo.Ternary(doc.Name != "", doc.Name, fs.Arg(0))); err != nil {
		return a.fail("preview", err)
	}
	return exitOK
}

func (a *app) save(ctx context.Context, args []string) int {
	if len(args) != 1 {
		return a.fail("save", usageError("save requires <file>"))
	}
	doc, err := readTemplateFile(args[0])
	if err != nil {
		return a.fail("save", err)
	}
	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return a.fail("save", err)
	}
	defer closeStore()
	saved, err := st.Save(ctx, doc)
	if err != nil {
		telemetry.Default().Event(telemetry.EventSaveFailed, map[string]any{"template": doc.ID})
		return a.fail("save", err)
	}
	telemetry.Default().Event(telemetry.EventTemplateSaved, map[string]any{"template": saved.ID})
	_, _ = fmt.Fprintln(a.out, saved.ID)
	return exitOK
}

func (a *app) list(ctx context.Context, args []string) int {
	cat, filtered, err := parseCategoryArg(args)
	if err != nil {
		return a.fail("list", err)
	}
	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return a.fail("list", err)
	}
	defer closeStore()
	var docs []domain.TemplateDocument
	if filtered {
		docs, err = st.ListByCategory(ctx, cat)
	} else {
		docs, err = st.List(ctx)
	}
	if err != nil {
		return a.fail("list", err)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPUBLIC")
	for _, d := range docs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Category, lo.Ternary(d.IsPublic, "yes", ""))
	}
	_ = tw.Flush()
	return exitOK
}

func (a *app) delete(ctx context.Context, args []string) int {
	if len(args) != 1 {
		return a.fail("delete", usageError("delete requires <id>"))
	}
	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return a.fail("delete", err)
	}
	defer closeStore()
	if err := st.Delete(ctx, args[0]); err != nil {
		return a.fail("delete", err)
	}
	_, _ = fmt.Fprintln(a.out, "Deleted", args[0])
	return exitOK
}

func (a *app) pack(ctx context.Context, args []string) int {
	if len(args) == 0 {
		return a.fail("pack", usageError("pack requires export or install"))
	}
	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return a.fail("pack", err)
	}
	defer closeStore()
	switch args[0] {
	case "export":
		if len(args) != 3 {
			return a.fail("pack", usageError("pack export requires <name> <out.zip>"))
		}
		if err := stylepack.ExportFile(ctx, st, args[1], args[2]); err != nil {
			return a.fail("pack", err)
		}
		_, _ = fmt.Fprintln(a.out, "Wrote", args[2])
	case "install":
		if len(args) != 2 {
			return a.fail("pack", usageError("pack install requires <pack.zip>"))
		}
		res, err := stylepack.InstallFile(ctx, st, args[1])
		if err != nil {
			return a.fail("pack", err)
		}
		_, _ = fmt.Fprintf(a.out, "Installed %d, skipped %d\n", len(res.Installed), len(res.Skipped))
	default:
		return a.fail("pack", usageError("unknown pack command "+args[0]))
	}
	return exitOK
}

func (a *app) serve(ctx context.Context, args []string) int {
	fs := newFlags("serve", a.errOut)
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	premium := fs.String("premium-subjects", "", "comma-separated token subjects entitled to premium templates")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if a.cfg.Server.Secret == "" {
		return a.fail("serve", usageError("set "+config.EnvServerSecret+" to sign API tokens"))
	}

	var (
		st         store.Store
		closeStore = func() {}
	)
	if a.cfg.Server.DBURL != "" {
		pg, err := backend.OpenPG(ctx, a.cfg.Server.DBURL)
		if err != nil {
			return a.fail("serve", err)
		}
		st, closeStore = pg, func() { _ = pg.Close() }
	} else {
		if a.cfg.Storage.Driver == config.DriverRemote {
			return a.fail("serve", usageError("serve needs a database URL or a local storage driver"))
		}
		a.log.Warn("no database URL configured; serving the local store")
		var err error
		if st, closeStore, err = a.openStore(ctx); err != nil {
			return a.fail("serve", err)
		}
	}
	defer closeStore()

	var subjects []string
	if *premium != "" {
		subjects = lo.Compact(lo.Map(strings.Split(*premium, ","), func(s string, _ int) string { return strings.TrimSpace(s) }))
	}
	srv := backend.NewServer(st, backend.Options{
		Secret:          a.cfg.Server.Secret,
		PremiumSubjects: subjects,
		Events:          telemetry.Default(),
	})
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.ListenAndServe(ctx, *addr); err != nil && !errors.Is(err, context.Canceled) {
		return a.fail("serve", err)
	}
	return exitOK
}

func (a *app) issueToken(args []string) int {
	fs := newFlags("token", a.errOut)
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		return a.fail("token", usageError("token requires <subject>"))
	}
	tok, exp, err := backend.IssueToken(a.cfg.Server.Secret, fs.Arg(0), *ttl)
	if err != nil {
		return a.fail("token", err)
	}
	_, _ = fmt.Fprintln(a.out, tok)
	_, _ = fmt.Fprintln(a.errOut, "expires", exp.UTC().Format(time.RFC3339))
	return exitOK
}

func (a *app) login(args []string) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return a.fail("login", usageError("login requires <token>"))
	}
	if err := config.Save(a.cfg, strings.TrimSpace(args[0])); err != nil {
		return a.fail("login", err)
	}
	_, _ = fmt.Fprintln(a.out, "Token stored in the OS keychain.")
	return exitOK
}

func (a *app) logout() int {
	if err := config.ClearToken(); err != nil {
		return a.fail("logout", err)
	}
	_, _ = fmt.Fprintln(a.out, "Token removed.")
	return exitOK
}
