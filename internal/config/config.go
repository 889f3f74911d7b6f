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
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "invoicestudio/internal/log"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables are read-only overrides applied at load time.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Backend       BackendConfig `yaml:"backend"`
	Storage       StorageConfig `yaml:"storage"`
	Render        RenderConfig  `yaml:"render"`
	Logging       LoggingConfig `yaml:"logging"`
	Server        ServerConfig  `yaml:"server"`
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
	// PremiumUser grants premium templates to the local CLI user.
	PremiumUser bool   `yaml:"premium_user"`
	UserID      string `yaml:"user_id"`
}

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// Token is not stored on disk; it lives in the OS keychain.
}

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverRemote = "remote"
)

type StorageConfig struct {
	Driver string `yaml:"driver"`
	// Path is the sqlite database file or the file store root. Empty means
	// a location next to the config file.
	Path string `yaml:"path"`
}

type RenderConfig struct {
	Currency string `yaml:"currency"`
	DueDays  int    `yaml:"due_days"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type ServerConfig struct {
	Addr  string `yaml:"addr"`
	DBURL string `yaml:"db_url"`
	// Secret signs bearer tokens. Only taken from the environment.
	Secret string `yaml:"-"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{UserID: "local"},
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000},
		Storage:       StorageConfig{Driver: DriverSQLite},
		Render:        RenderConfig{Currency: "USD", DueDays: 30},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
		Server:        ServerConfig{Addr: ":8080"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "INVS_CONFIG"
	EnvBackendURL       = "INVS_BACKEND_URL"
	EnvBackendTimeoutMs = "INVS_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "INVS_TLS_INSECURE"
	EnvTelemetryOptIn   = "INVS_TELEMETRY_OPT_IN"
	EnvPremiumUser      = "INVS_PREMIUM"
	EnvUserID           = "INVS_USER_ID"
	EnvStorageDriver    = "INVS_STORAGE_DRIVER"
	EnvStoragePath      = "INVS_STORAGE_PATH"
	EnvCurrency         = "INVS_CURRENCY"
	EnvDueDays          = "INVS_DUE_DAYS"
	EnvLogLevel         = "INVS_LOG_LEVEL"
	EnvLogFormat        = "INVS_LOG_FORMAT"
	EnvLogSource        = "INVS_LOG_SOURCE"
	EnvLogFile          = "INVS_LOG_FILE"
	EnvServerAddr       = "INVS_SERVER_ADDR"
	EnvDatabaseURL      = "INVS_DATABASE_URL"
	EnvServerSecret     = "INVS_SERVER_SECRET"
)

type envBinding struct {
	key   string
	env   string
	apply func(cfg *AppConfig, v string)
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func atoi(dst *int) func(string) {
	return func(v string) {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

var bindings = []envBinding{
	{"backend.base_url", EnvBackendURL, func(c *AppConfig, v string) { c.Backend.BaseURL = v }},
	{"backend.timeout_ms", EnvBackendTimeoutMs, func(c *AppConfig, v string) { atoi(&c.Backend.TimeoutMs)(v) }},
	{"backend.tls_insecure", EnvBackendTLSInsec, func(c *AppConfig, v string) { c.Backend.TLSInsecure = truthy(v) }},
	{"general.telemetry_opt_in", EnvTelemetryOptIn, func(c *AppConfig, v string) { c.General.TelemetryOptIn = truthy(v) }},
	{"general.premium_user", EnvPremiumUser, func(c *AppConfig, v string) { c.General.PremiumUser = truthy(v) }},
	{"general.user_id", EnvUserID, func(c *AppConfig, v string) { c.General.UserID = v }},
	{"storage.driver", EnvStorageDriver, func(c *AppConfig, v string) { c.Storage.Driver = strings.ToLower(v) }},
	{"storage.path", EnvStoragePath, func(c *AppConfig, v string) { c.Storage.Path = v }},
	{"render.currency", EnvCurrency, func(c *AppConfig, v string) { c.Render.Currency = strings.ToUpper(v) }},
	{"render.due_days", EnvDueDays, func(c *AppConfig, v string) { atoi(&c.Render.DueDays)(v) }},
	{"logging.level", EnvLogLevel, func(c *AppConfig, v string) { c.Logging.Level = strings.ToLower(v) }},
	{"logging.format", EnvLogFormat, func(c *AppConfig, v string) { c.Logging.Format = strings.ToLower(v) }},
	{"logging.source", EnvLogSource, func(c *AppConfig, v string) { c.Logging.Source = truthy(v) }},
	{"logging.file", EnvLogFile, func(c *AppConfig, v string) { c.Logging.File = v }},
	{"server.addr", EnvServerAddr, func(c *AppConfig, v string) { c.Server.Addr = v }},
	{"server.db_url", EnvDatabaseURL, func(c *AppConfig, v string) { c.Server.DBURL = v }},
	{"server.secret", EnvServerSecret, func(c *AppConfig, v string) { c.Server.Secret = v }},
}

// ConfigPath returns the per-user config file path. INVS_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "InvoiceStudio")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "InvoiceStudio")
	default:
		home := os.Getenv("HOME")
		if home == "" {
			return "", errors.New("cannot resolve config directory")
		}
		base = filepath.Join(home, ".config", "invoicestudio")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults and merges
// environment overrides. The backend token comes from the keyring and is
// returned separately.
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return cfg, "", err
	}
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// LoadFrom is Load for an explicit file without the keyring lookup. A missing
// file yields defaults; a malformed one is an error.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the user config YAML and stores the token in the OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from the file so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	dst.General.PremiumUser = src.General.PremiumUser
	if v := strings.TrimSpace(src.General.UserID); v != "" {
		dst.General.UserID = v
	}
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure
	if v := strings.ToLower(strings.TrimSpace(src.Storage.Driver)); v != "" {
		dst.Storage.Driver = v
	}
	if v := strings.TrimSpace(src.Storage.Path); v != "" {
		dst.Storage.Path = v
	}
	if v := strings.ToUpper(strings.TrimSpace(src.Render.Currency)); v != "" {
		dst.Render.Currency = v
	}
	if src.Render.DueDays > 0 {
		dst.Render.DueDays = src.Render.DueDays
	}
	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
	if v := strings.TrimSpace(src.Server.Addr); v != "" {
		dst.Server.Addr = v
	}
	if v := strings.TrimSpace(src.Server.DBURL); v != "" {
		dst.Server.DBURL = v
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	for _, b := range bindings {
		if v := strings.TrimSpace(os.Getenv(b.env)); v != "" {
			b.apply(cfg, v)
		}
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	for _, b := range bindings {
		if b.key == key && os.Getenv(b.env) != "" {
			return b.env, true
		}
	}
	return "", false
}

// Timeout returns the backend timeout, falling back to the default for non-positive values.
func (b BackendConfig) Timeout() time.Duration {
	ms := b.TimeoutMs
	if ms <= 0 {
		ms = Defaults().Backend.TimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// StoragePath resolves Storage.Path, defaulting to a driver-specific location
// beside the config file.
func (c AppConfig) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	p, err := ConfigPath()
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(p)
	if c.Storage.Driver == DriverFile {
		return filepath.Join(dir, "templates"), nil
	}
	return filepath.Join(dir, "templates.db"), nil
}

// LogOptions maps the logging section onto logger options.
func (c AppConfig) LogOptions() applog.Options {
	return applog.Options{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		AddSource: c.Logging.Source,
		File:      c.Logging.File,
	}
}
