// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/calmchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete calmchat configuration.
type Config struct {
	Backend   BackendConfig   `toml:"backend" json:"backend"`
	Keepalive KeepaliveConfig `toml:"keepalive" json:"keepalive"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`
	UI        UIConfig        `toml:"ui" json:"ui"`
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
}

// BackendConfig locates the conversation backend.
type BackendConfig struct {
	// URL is the backend root, e.g. http://127.0.0.1:5000
	URL string `toml:"url" json:"url"`

	// TimeoutSecs bounds each request
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// KeepaliveConfig controls the warm-up pings.
type KeepaliveConfig struct {
	Enabled      bool   `toml:"enabled" json:"enabled"`
	IntervalMins int    `toml:"interval_mins" json:"interval_mins"`
	StartupProbe string `toml:"startup_probe" json:"startup_probe"`
}

// StorageConfig selects where signed-in users' exchanges are saved.
type StorageConfig struct {
	// Driver is sqlite, postgres or none
	Driver string `toml:"driver" json:"driver"`

	// SQLitePath defaults to <state dir>/calmchat.db
	SQLitePath string `toml:"sqlite_path" json:"sqlite_path"`

	// DatabaseURL is the Postgres connection string
	DatabaseURL string `toml:"database_url" json:"database_url"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	// Theme is the initial theme (dark or light) until the user toggles it
	Theme string `toml:"theme" json:"theme"`
}

// TelemetryConfig controls the metrics listener.
type TelemetryConfig struct {
	// MetricsAddr enables /metrics and /healthz when set, e.g. 127.0.0.1:9464
	MetricsAddr string `toml:"metrics_addr" json:"metrics_addr"`
}

// LoggingConfig controls the log file.
type LoggingConfig struct {
	Level string `toml:"level" json:"level"`

	// File defaults to <state dir>/calmchat.log
	File string `toml:"file" json:"file"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	DefaultBackendURL   = "http://127.0.0.1:5000"
	DefaultTimeoutSecs  = 30
	DefaultIntervalMins = 10
)

// Default returns a Config with all default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:         DefaultBackendURL,
			TimeoutSecs: DefaultTimeoutSecs,
		},
		Keepalive: KeepaliveConfig{
			Enabled:      true,
			IntervalMins: DefaultIntervalMins,
			StartupProbe: "warmup",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
		},
		UI: UIConfig{
			Theme: "dark",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// BackendTimeout returns the request timeout as a duration.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSecs) * time.Second
}

// KeepaliveInterval returns the ping interval as a duration.
func (c *Config) KeepaliveInterval() time.Duration {
	return time.Duration(c.Keepalive.IntervalMins) * time.Minute
}

// SQLitePath returns the local database path, resolving the default.
func (c *Config) SQLitePath() (string, error) {
	if c.Storage.SQLitePath != "" {
		return expandHome(c.Storage.SQLitePath)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "calmchat.db"), nil
}

// LogFile returns the log path, resolving the default.
func (c *Config) LogFile() (string, error) {
	if c.Logging.File != "" {
		return expandHome(c.Logging.File)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "calmchat.log"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the calmchat state directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("CALMCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".calmchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// SessionPath returns the signed-in session file path.
func SessionPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// Config files may hold a database URL with credentials, so they are kept 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// CALMCHAT_CONFIG names an explicit file; otherwise TOML is tried first,
// then JSON, then defaults. Environment overrides are applied last.
//
// The returned config is never nil. A file that fails to parse or validate
// is reported alongside a usable default config.
func Load() (*Config, error) {
	if path := os.Getenv("CALMCHAT_CONFIG"); path != "" {
		cfg, err := LoadFromPath(path)
		if err != nil {
			return Default(), err
		}
		return cfg, nil
	}

	var loadErr error

	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			cfg := Default()
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else if cfg, err = finalize(cfg); err == nil {
				return cfg, nil
			} else {
				loadErr = err
			}
		}
	}

	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			cfg := Default()
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = errors.Join(loadErr, fmt.Errorf("failed to load JSON config: %w", err))
			} else if cfg, err = finalize(cfg); err == nil {
				return cfg, loadErr
			} else {
				loadErr = errors.Join(loadErr, err)
			}
		}
	}

	cfg, err := finalize(Default())
	if err != nil {
		return Default(), errors.Join(loadErr, err)
	}
	return cfg, loadErr
}

// finalize applies env overrides, fills defaults and validates.
func finalize(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := fillDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finalize(cfg)
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Backend.URL == "" {
		cfg.Backend.URL = defaults.Backend.URL
	}
	if cfg.Backend.TimeoutSecs == 0 {
		cfg.Backend.TimeoutSecs = defaults.Backend.TimeoutSecs
	}
	if cfg.Keepalive.IntervalMins == 0 {
		cfg.Keepalive.IntervalMins = defaults.Keepalive.IntervalMins
	}
	if cfg.Keepalive.StartupProbe == "" {
		cfg.Keepalive.StartupProbe = defaults.Keepalive.StartupProbe
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = defaults.Storage.Driver
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintln(&b, "# calmchat configuration file")
	fmt.Fprintln(&b, "# Generated by calmchat - edit with care")
	fmt.Fprintln(&b, "")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validDrivers = []string{"sqlite", "postgres", "none"}
	validProbes  = []string{"warmup", "health"}
	validThemes  = []string{"dark", "light"}
	validLevels  = []string{"debug", "info", "warn", "warning", "error"}
)

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Backend.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{Field: "backend.url", Message: fmt.Sprintf("must be an http(s) URL, got %q", c.Backend.URL)})
	}
	if c.Backend.TimeoutSecs <= 0 {
		errs = append(errs, ValidationError{Field: "backend.timeout_secs", Message: "must be positive"})
	}

	if c.Keepalive.IntervalMins <= 0 {
		errs = append(errs, ValidationError{Field: "keepalive.interval_mins", Message: "must be positive"})
	}
	if !oneOf(c.Keepalive.StartupProbe, validProbes) {
		errs = append(errs, ValidationError{Field: "keepalive.startup_probe", Message: fmt.Sprintf("must be one of %v", validProbes)})
	}

	if !oneOf(c.Storage.Driver, validDrivers) {
		errs = append(errs, ValidationError{Field: "storage.driver", Message: fmt.Sprintf("must be one of %v", validDrivers)})
	}
	if c.Storage.Driver == "postgres" && c.Storage.DatabaseURL == "" {
		errs = append(errs, ValidationError{Field: "storage.database_url", Message: "required when driver is postgres"})
	}

	if !oneOf(c.UI.Theme, validThemes) {
		errs = append(errs, ValidationError{Field: "ui.theme", Message: fmt.Sprintf("must be one of %v", validThemes)})
	}

	if !oneOf(strings.ToLower(c.Logging.Level), validLevels) {
		errs = append(errs, ValidationError{Field: "logging.level", Message: fmt.Sprintf("must be one of %v", validLevels)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//   - CALMCHAT_BACKEND_URL: overrides backend.url
//   - CALMCHAT_BACKEND_TIMEOUT: overrides backend.timeout_secs
//   - CALMCHAT_KEEPALIVE: 0/false disables keepalive pings
//   - CALMCHAT_STORAGE_DRIVER: overrides storage.driver
//   - CALMCHAT_DATABASE_URL (or DATABASE_URL): overrides storage.database_url
//   - CALMCHAT_METRICS_ADDR: overrides telemetry.metrics_addr
//   - CALMCHAT_LOG_LEVEL: overrides logging.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CALMCHAT_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}

	if v := os.Getenv("CALMCHAT_BACKEND_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Backend.TimeoutSecs = secs
		}
	}

	if v := os.Getenv("CALMCHAT_KEEPALIVE"); v != "" {
		c.Keepalive.Enabled = parseBool(v)
	}

	if v := os.Getenv("CALMCHAT_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DatabaseURL = v
	}
	if v := os.Getenv("CALMCHAT_DATABASE_URL"); v != "" {
		c.Storage.DatabaseURL = v
	}

	if v := os.Getenv("CALMCHAT_METRICS_ADDR"); v != "" {
		c.Telemetry.MetricsAddr = v
	}

	if v := os.Getenv("CALMCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "backend.url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "backend.url").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if key == "" || len(parts) == 0 {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}

		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}

	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds the struct field whose toml tag is name.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, section.Tag.Get("toml")+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Redacted returns a copy safe to print: the database URL password is masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.Storage.DatabaseURL != "" {
		if u, err := url.Parse(safe.Storage.DatabaseURL); err == nil && u.User != nil {
			if _, has := u.User.Password(); has {
				u.User = url.UserPassword(u.User.Username(), "REDACTED")
			}
			safe.Storage.DatabaseURL = u.String()
		} else {
			safe.Storage.DatabaseURL = "[REDACTED]"
		}
	}
	return safe
}

// String returns a string representation of the config for debugging.
// Secrets are redacted.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
