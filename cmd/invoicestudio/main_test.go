/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicestudio/internal/backend"
	"invoicestudio/internal/catalog"
	"invoicestudio/internal/config"
	"invoicestudio/internal/store"
)

type memTokens map[string]string

func (m memTokens) Get(service, key string) (string, error) { return m[service+"/"+key], nil }
func (m memTokens) Set(service, key, value string) error   { m[service+"/"+key] = value; return nil }
func (m memTokens) Delete(service, key string) error       { delete(m, service+"/"+key); return nil }

// env points config and storage at a temp dir and returns the file store root.
func env(t *testing.T) (dir, storeRoot string) {
	t.Helper()
	dir = t.TempDir()
	storeRoot = filepath.Join(dir, "templates")
	t.Setenv(config.EnvConfigPath, filepath.Join(dir, "config.yaml"))
	t.Setenv(config.EnvStorageDriver, config.DriverFile)
	t.Setenv(config.EnvStoragePath, storeRoot)
	t.Setenv(config.EnvServerSecret, "")
	t.Setenv(config.EnvPremiumUser, "")
	t.Setenv(config.EnvLogLevel, "error")
	prev := config.SetTokenStore(memTokens{})
	t.Cleanup(func() { config.SetTokenStore(prev) })
	return dir, storeRoot
}

func cli(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeTemplate(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

const mineJSON = `{"id":"mine","name":"Mine","category":"receipt","content":{"styles":{"primaryColor":"#111111"}}}`

func TestVersionAndUsage(t *testing.T) {
	env(t)
	code, out, _ := cli(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "Invoice Studio")

	code, _, _ = cli(t)
	assert.Equal(t, exitUsage, code)

	code, _, errOut := cli(t, "frobnicate")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "unknown command")
}

func TestValidate(t *testing.T) {
	dir, _ := env(t)
	good := writeTemplate(t, dir, "good.json", mineJSON)
	bad := writeTemplate(t, dir, "bad.json", `{"name":"x","content":{"styles":"red"}}`)

	code, out, _ := cli(t, "validate", good)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, `"Mine"`)

	code, _, errOut := cli(t, "validate", bad)
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "parse template")

	code, _, _ = cli(t, "validate")
	assert.Equal(t, exitUsage, code)
}

func TestSaveListRenderDelete(t *testing.T) {
	dir, _ := env(t)
	file := writeTemplate(t, dir, "mine.json", mineJSON)

	code, out, _ := cli(t, "save", file)
	require.Equal(t, exitOK, code)
	assert.Equal(t, "mine", strings.TrimSpace(out))

	code, out, _ = cli(t, "list", "receipt")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "mine")
	_, out, _ = cli(t, "list", "invoice")
	assert.NotContains(t, out, "mine")

	code, out, _ = cli(t, "render", "mine")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "INVOICE")

	html := filepath.Join(dir, "out", "mine.html")
	code, _, _ = cli(t, "render", "--out", html, "mine")
	require.Equal(t, exitOK, code)
	data, err := os.ReadFile(html)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<html")

	code, _, _ = cli(t, "render", "--out", filepath.Join(dir, "mine.docx"), "mine")
	assert.Equal(t, exitUsage, code)

	code, _, _ = cli(t, "delete", "mine")
	assert.Equal(t, exitOK, code)
	code, _, _ = cli(t, "delete", "mine")
	assert.Equal(t, exitError, code)
}

func TestRenderWithInvoiceData(t *testing.T) {
	dir, _ := env(t)
	inv := writeTemplate(t, dir, "inv.json", `{
		"invoiceNumber": "INV-4242",
		"client": {"name": "Acme Ltd"},
		"items": [{"description": "Consulting", "quantity": 2, "rate": 100, "amount": 200}],
		"summary": {"subtotal": 200, "total": 200, "currency": "EUR"}
	}`)
	code, out, _ := cli(t, "render", "--invoice", inv, catalog.DefaultID)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "INV-4242")
	assert.Contains(t, out, "Acme Ltd")
	assert.Contains(t, out, "€200.00")
}

func TestRenderGatesPremiumCatalogTemplates(t *testing.T) {
	env(t)
	code, _, errOut := cli(t, "render", catalog.CorporateBannerID)
	assert.Equal(t, exitGated, code)
	assert.Contains(t, errOut, "Premium template")

	code, _, _ = cli(t, "render", "--premium", catalog.CorporateBannerID)
	assert.Equal(t, exitOK, code)
}

func TestCatalogListsBuiltinsAndPublicTemplates(t *testing.T) {
	dir, _ := env(t)
	shared := writeTemplate(t, dir, "shared.json", `{"id":"shared","name":"Shared","category":"proposal","isPublic":true,"content":{}}`)
	code, _, _ := cli(t, "save", shared)
	require.Equal(t, exitOK, code)

	code, out, _ := cli(t, "catalog")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, catalog.DefaultID)
	assert.Contains(t, out, "shared")

	_, out, _ = cli(t, "catalog", "proposal")
	assert.Contains(t, out, "shared")
	assert.NotContains(t, out, catalog.CorporateBannerID)

	code, _, _ = cli(t, "catalog", "nonsense")
	assert.Equal(t, exitUsage, code)
}

func TestStyleUpdatesStoredTemplate(t *testing.T) {
	dir, root := env(t)
	file := writeTemplate(t, dir, "mine.json", mineJSON)
	code, _, _ := cli(t, "save", file)
	require.Equal(t, exitOK, code)

	code, out, _ := cli(t, "style", "mine", "primaryColor=#FF0000", "fontSize=14")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "clean")

	fs, err := store.OpenFileStore(root)
	require.NoError(t, err)
	doc, err := fs.GetByID(context.Background(), "mine")
	require.NoError(t, err)
	assert.Equal(t, "#FF0000", doc.Content.Styles["primaryColor"])
	assert.EqualValues(t, 14, doc.Content.Styles["fontSize"])

	code, _, _ = cli(t, "style", "mine", "oops")
	assert.Equal(t, exitUsage, code)
}

func TestExportPresets(t *testing.T) {
	dir, _ := env(t)
	outDir := filepath.Join(dir, "exports")
	code, out, _ := cli(t, "export", "--preset", "print", "--dir", outDir, catalog.DefaultID)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, filepath.Join(outDir, "print", catalog.DefaultID+".pdf"))

	code, _, _ = cli(t, "export", "--dir", outDir, "--formats", "txt,html", "--name", "sample", catalog.DefaultID)
	require.Equal(t, exitOK, code)
	for _, ext := range []string{"txt", "html"} {
		_, err := os.Stat(filepath.Join(outDir, "web", "sample."+ext))
		assert.NoError(t, err, ext)
	}
}

func TestPackExportAndInstall(t *testing.T) {
	dir, _ := env(t)
	file := writeTemplate(t, dir, "mine.json", mineJSON)
	code, _, _ := cli(t, "save", file)
	require.Equal(t, exitOK, code)
	zip := filepath.Join(dir, "pack.zip")
	code, _, _ = cli(t, "pack", "export", "Mine pack", zip)
	require.Equal(t, exitOK, code)

	t.Setenv(config.EnvStoragePath, filepath.Join(dir, "other"))
	code, out, _ := cli(t, "pack", "install", zip)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Installed 1, skipped 0")

	code, out, _ = cli(t, "pack", "install", zip)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Installed 0, skipped 1")

	code, _, _ = cli(t, "pack", "unpack")
	assert.Equal(t, exitUsage, code)
}

func TestTokenNeedsSecret(t *testing.T) {
	env(t)
	code, _, _ := cli(t, "token", "alice")
	assert.Equal(t, exitError, code)
	code, _, _ = cli(t, "serve")
	assert.Equal(t, exitUsage, code, "serve without secret")

	t.Setenv(config.EnvServerSecret, "shh")
	code, out, _ := cli(t, "token", "--ttl", "1h", "alice")
	require.Equal(t, exitOK, code)
	sub, err := backend.VerifyToken("shh", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
}

func TestLoginLogout(t *testing.T) {
	env(t)
	tokens := memTokens{}
	config.SetTokenStore(tokens)
	code, _, _ := cli(t, "login", "abc")
	require.Equal(t, exitOK, code)
	_, tok, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	code, _, _ = cli(t, "logout")
	require.Equal(t, exitOK, code)
	_, tok, _ = config.Load()
	assert.Empty(t, tok)
}
