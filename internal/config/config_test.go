/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

type memTokens map[string]string

func (m memTokens) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}

func (m memTokens) Set(service, key, value string) error {
	m[service+"/"+key] = value
	return nil
}

func (m memTokens) Delete(service, key string) error {
	if _, ok := m[service+"/"+key]; !ok {
		return keyring.ErrNotFound
	}
	delete(m, service+"/"+key)
	return nil
}

func isolate(t *testing.T) (string, memTokens) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, path)
	toks := memTokens{}
	prev := SetTokenStore(toks)
	t.Cleanup(func() { SetTokenStore(prev) })
	return path, toks
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	isolate(t)
	cfg, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "" {
		t.Fatalf("token = %q, want empty", tok)
	}
	want := Defaults()
	if cfg.Render.Currency != want.Render.Currency || cfg.Storage.Driver != DriverSQLite || cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	_, toks := isolate(t)
	cfg := Defaults()
	cfg.General.PremiumUser = true
	cfg.Render.Currency = "EUR"
	cfg.Render.DueDays = 14
	cfg.Storage.Driver = DriverFile
	cfg.Server.Secret = "not-persisted"
	if err := Save(cfg, "tok-123"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if toks[keyringService+"/"+keyringToken] != "tok-123" {
		t.Fatalf("token not stored in keyring: %#v", toks)
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "tok-123" {
		t.Fatalf("token = %q", tok)
	}
	if !got.General.PremiumUser || got.Render.Currency != "EUR" || got.Render.DueDays != 14 || got.Storage.Driver != DriverFile {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if got.Server.Secret != "" {
		t.Fatalf("secret must not be written to disk")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path, _ := isolate(t)
	if err := os.WriteFile(path, []byte("general: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBackendURL, "https://example.test:8443")
	t.Setenv(EnvTelemetryOptIn, "true")
	t.Setenv(EnvCurrency, "kes")
	t.Setenv(EnvDueDays, "7")
	t.Setenv(EnvLogLevel, "ERROR")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvServerSecret, "s3cret")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backend.BaseURL != "https://example.test:8443" {
		t.Fatalf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("TelemetryOptIn expected true from env override")
	}
	if cfg.Render.Currency != "KES" || cfg.Render.DueDays != 7 {
		t.Fatalf("render overrides not applied: %#v", cfg.Render)
	}
	if cfg.Logging.Level != "error" || !cfg.Logging.Source {
		t.Fatalf("logging overrides not applied: %#v", cfg.Logging)
	}
	if cfg.Server.Secret != "s3cret" {
		t.Fatalf("secret override not applied")
	}
}

func TestEnvOverrideFor(t *testing.T) {
	isolate(t)
	t.Setenv(EnvStorageDriver, "file")
	if env, ok := EnvOverrideFor("storage.driver"); !ok || env != EnvStorageDriver {
		t.Fatalf("EnvOverrideFor(storage.driver) = %q, %v", env, ok)
	}
	if _, ok := EnvOverrideFor("render.currency"); ok {
		t.Fatalf("render.currency should not be overridden")
	}
	if _, ok := EnvOverrideFor("no.such.key"); ok {
		t.Fatalf("unknown key reported as overridden")
	}
}

func TestMergeKeepsDefaultsForBlankFields(t *testing.T) {
	dst := Defaults()
	src := AppConfig{Logging: LoggingConfig{Level: " Debug ", Source: true}}
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "console" || !dst.Logging.Source {
		t.Fatalf("logging merge: %#v", dst.Logging)
	}
	if dst.Render.Currency != "USD" || dst.Render.DueDays != 30 || dst.Backend.TimeoutMs != 15000 {
		t.Fatalf("defaults lost in merge: %#v", dst)
	}
}

func TestBackendTimeout(t *testing.T) {
	if got := (BackendConfig{TimeoutMs: 250}).Timeout(); got != 250*time.Millisecond {
		t.Fatalf("Timeout() = %v", got)
	}
	if got := (BackendConfig{}).Timeout(); got != 15*time.Second {
		t.Fatalf("Timeout() default = %v", got)
	}
}

func TestStoragePathDefaults(t *testing.T) {
	path, _ := isolate(t)
	cfg := Defaults()
	p, err := cfg.StoragePath()
	if err != nil {
		t.Fatal(err)
	}
	if p != filepath.Join(filepath.Dir(path), "templates.db") {
		t.Fatalf("sqlite path = %q", p)
	}
	cfg.Storage.Driver = DriverFile
	p, _ = cfg.StoragePath()
	if p != filepath.Join(filepath.Dir(path), "templates") {
		t.Fatalf("file path = %q", p)
	}
	cfg.Storage.Path = "/explicit"
	if p, _ = cfg.StoragePath(); p != "/explicit" {
		t.Fatalf("explicit path = %q", p)
	}
}

func TestClearToken(t *testing.T) {
	_, toks := isolate(t)
	if err := ClearToken(); err != nil {
		t.Fatalf("ClearToken on empty keyring: %v", err)
	}
	toks[keyringService+"/"+keyringToken] = "x"
	if err := ClearToken(); err != nil {
		t.Fatal(err)
	}
	if _, err := toks.Get(keyringService, keyringToken); !errors.Is(err, keyring.ErrNotFound) {
		t.Fatalf("token still present")
	}
}
