// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for sagechat.
//
// Settings come from a TOML file, then SAGECHAT_* environment variables,
// then built-in defaults for anything left unset.
//
// Configuration file location:
//   - $SAGECHAT_HOME/config.toml (default ~/.sagechat/config.toml)
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"

	"github.com/jeranaias/sagechat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete sagechat configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Auth    AuthConfig    `toml:"auth"`
	UI      UIConfig      `toml:"ui"`
	Logging LoggingConfig `toml:"logging"`
	History HistoryConfig `toml:"history"`
	Metrics MetricsConfig `toml:"metrics"`
}

// ServerConfig describes how to reach the chat backend.
type ServerConfig struct {
	// BaseURL is the backend origin; API paths are joined under /api/v1.
	BaseURL string `toml:"base_url" env:"SAGECHAT_SERVER_URL"`
	// RequestTimeoutSecs bounds every non-streaming REST call.
	RequestTimeoutSecs int `toml:"request_timeout_secs" env:"SAGECHAT_REQUEST_TIMEOUT_SECS"`
	// StreamIdleTimeoutSecs cancels a reply stream that produced no bytes for
	// this long. 0 disables the watchdog.
	StreamIdleTimeoutSecs int `toml:"stream_idle_timeout_secs" env:"SAGECHAT_STREAM_IDLE_TIMEOUT_SECS"`
	// MaxRetries applies to idempotent GETs only.
	MaxRetries int `toml:"max_retries" env:"SAGECHAT_MAX_RETRIES"`
	// RateLimit is the sustained request rate per second; Burst its bucket size.
	RateLimit float64 `toml:"rate_limit" env:"SAGECHAT_RATE_LIMIT"`
	Burst     int     `toml:"burst" env:"SAGECHAT_RATE_BURST"`
}

// AuthConfig selects where the bearer token comes from.
type AuthConfig struct {
	// Token is a literal bearer token. Never written back to disk.
	Token string `toml:"-" env:"SAGECHAT_TOKEN"`
	// TokenFile holds the token written by `sagechat login`.
	TokenFile string `toml:"token_file" env:"SAGECHAT_TOKEN_FILE"`
	// AuthURL overrides the identity provider base URL published by the server.
	AuthURL string `toml:"auth_url" env:"SAGECHAT_AUTH_URL"`
}

// UIConfig contains terminal UI preferences.
type UIConfig struct {
	// Theme is "auto", "dark" or "light".
	Theme string `toml:"theme" env:"SAGECHAT_THEME"`
	// StartFullscreen opens the TUI in fullscreen mode, with the sidebar.
	StartFullscreen bool `toml:"start_fullscreen" env:"SAGECHAT_FULLSCREEN"`
	// WrapWidth is the markdown wrap width used outside the TUI.
	WrapWidth int `toml:"wrap_width" env:"SAGECHAT_WRAP_WIDTH"`
	// ConfirmDeletes asks before deleting messages or conversations.
	ConfirmDeletes bool `toml:"confirm_deletes" env:"SAGECHAT_CONFIRM_DELETES"`
}

// LoggingConfig configures the file logger.
type LoggingConfig struct {
	Level  string `toml:"level" env:"SAGECHAT_LOG_LEVEL"`
	Format string `toml:"format" env:"SAGECHAT_LOG_FORMAT"`
	// File defaults to $SAGECHAT_HOME/sagechat.log.
	File string `toml:"file" env:"SAGECHAT_LOG_FILE"`
}

// HistoryConfig configures the local prompt history.
type HistoryConfig struct {
	Enabled    bool   `toml:"enabled" env:"SAGECHAT_HISTORY"`
	Path       string `toml:"path" env:"SAGECHAT_HISTORY_PATH"`
	MaxEntries int    `toml:"max_entries" env:"SAGECHAT_HISTORY_MAX"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	// Addr is a listen address such as "127.0.0.1:9464". Empty disables it.
	Addr string `toml:"addr" env:"SAGECHAT_METRICS_ADDR"`
}

// RequestTimeout returns the REST timeout as a duration.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

// StreamIdleTimeout returns the stream watchdog timeout as a duration.
func (s ServerConfig) StreamIdleTimeout() time.Duration {
	return time.Duration(s.StreamIdleTimeoutSecs) * time.Second
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:               "http://localhost:8000",
			RequestTimeoutSecs:    30,
			StreamIdleTimeoutSecs: 120,
			MaxRetries:            3,
			RateLimit:             5,
			Burst:                 10,
		},
		UI: UIConfig{
			Theme:          "auto",
			WrapWidth:      80,
			ConfirmDeletes: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: 500,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the sagechat configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("SAGECHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".sagechat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default path. A missing file is not an
// error; the defaults plus environment overrides are returned.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(statErr) {
		return nil, errors.Wrapf(statErr, "stat %s", path)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.SetDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file on top of cfg.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnvOverrides applies SAGECHAT_* environment variables on top of the
// current values. Unset variables leave fields untouched.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return errors.Wrap(err, "parse environment overrides")
	}
	return nil
}

// SetDefaults fills derived paths that depend on the config directory.
func (c *Config) SetDefaults() error {
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if c.Auth.TokenFile != "" && c.Logging.File != "" && c.History.Path != "" {
		return nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if c.Auth.TokenFile == "" {
		c.Auth.TokenFile = filepath.Join(dir, "token")
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(dir, "sagechat.log")
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(dir, "history.db")
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration with 0600 permissions. The literal
// token is never persisted.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# sagechat configuration file\n")
	buf.WriteString("# Generated by sagechat - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0600); err != nil {
		return errors.Wrap(err, "write config file")
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
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: fmt.Sprintf("must be an absolute http(s) URL, got %q", c.Server.BaseURL),
		})
	}
	if c.Server.RequestTimeoutSecs < 1 || c.Server.RequestTimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "server.request_timeout_secs",
			Message: fmt.Sprintf("must be 1-600, got %d", c.Server.RequestTimeoutSecs),
		})
	}
	if c.Server.StreamIdleTimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.stream_idle_timeout_secs",
			Message: "must be non-negative",
		})
	}
	if c.Server.MaxRetries < 0 || c.Server.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "server.max_retries",
			Message: fmt.Sprintf("must be 0-10, got %d", c.Server.MaxRetries),
		})
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit",
			Message: "must be non-negative",
		})
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		errs = append(errs, ValidationError{
			Field:   "server.burst",
			Message: "must be at least 1 when rate_limit is set",
		})
	}

	validThemes := map[string]bool{"auto": true, "dark": true, "light": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}
	if c.UI.WrapWidth < 20 {
		errs = append(errs, ValidationError{
			Field:   "ui.wrap_width",
			Message: fmt.Sprintf("must be at least 20, got %d", c.UI.WrapWidth),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format '%s', must be text or json", c.Logging.Format),
		})
	}

	if c.History.MaxEntries < 0 {
		errs = append(errs, ValidationError{
			Field:   "history.max_entries",
			Message: "must be non-negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using its TOML key path,
// e.g. "server.base_url".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value from its string form using its TOML key path.
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(err, "%s expects a boolean", key)
		}
		field.SetBool(b)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "%s expects an integer", key)
		}
		field.SetInt(int64(n))
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrapf(err, "%s expects a number", key)
		}
		field.SetFloat(f)
	default:
		return errors.Errorf("cannot set field %s of kind %s", key, field.Kind())
	}
	return nil
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, errors.Errorf("field '%s' is not a section", strings.Join(parts[:i], "."))
		}
		field, ok := fieldByTOMLTag(v, part)
		if !ok {
			return reflect.Value{}, errors.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	if v.Kind() == reflect.Struct {
		return reflect.Value{}, errors.Errorf("%s is a section, not a value", key)
	}
	return v, nil
}

func fieldByTOMLTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag != "" && tag != "-" && tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Keys returns every settable key in dotted form.
func Keys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
			if tag == "" || tag == "-" {
				continue
			}
			if t.Field(i).Type.Kind() == reflect.Struct {
				walk(t.Field(i).Type, prefix+tag+".")
				continue
			}
			keys = append(keys, prefix+tag)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// Clone returns a copy of the configuration. All sections are value types.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a TOML rendering with the token redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Auth.Token != "" {
		safe.Auth.Token = "[REDACTED]"
	}
	var buf bytes.Buffer
	_ = toml.NewEncoder(&buf).Encode(safe)
	return buf.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

// The global instance serves the CLI commands only. Long-lived components
// receive the values they need at construction time.
var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
			_ = cfg.SetDefaults()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
