// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SAGECHAT_HOME", dir)
	return dir
}

// TestConfig_ConcurrentAccess tests that Global() and SetGlobal() can be
// called concurrently. Run with: go test -race ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolateHome(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://localhost:8000", cfg.Server.BaseURL)
	assert.Equal(t, 120, cfg.Server.StreamIdleTimeoutSecs)
	assert.True(t, cfg.UI.ConfirmDeletes)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	home := isolateHome(t)

	cfg, err := LoadFromPath(filepath.Join(home, "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "token"), cfg.Auth.TokenFile)
	assert.Equal(t, filepath.Join(home, "history.db"), cfg.History.Path)
}

func TestLoadFromPath_FileAndEnv(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "config.toml")
	data := `
[server]
base_url = "https://chat.example.com/"
max_retries = 1

[ui]
theme = "dark"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))
	t.Setenv("SAGECHAT_THEME", "light")
	t.Setenv("SAGECHAT_TOKEN", "tok")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com", cfg.Server.BaseURL)
	assert.Equal(t, 1, cfg.Server.MaxRetries)
	assert.Equal(t, "light", cfg.UI.Theme, "env overrides file")
	assert.Equal(t, "tok", cfg.Auth.Token)
	assert.Equal(t, 30, cfg.Server.RequestTimeoutSecs, "unset keys keep defaults")
}

func TestLoadFromPath_Invalid(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nbase_url = \"ftp://x\"\n"), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.base_url")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad timeout", func(c *Config) { c.Server.RequestTimeoutSecs = 0 }, "server.request_timeout_secs"},
		{"negative idle", func(c *Config) { c.Server.StreamIdleTimeoutSecs = -1 }, "server.stream_idle_timeout_secs"},
		{"burst", func(c *Config) { c.Server.Burst = 0 }, "server.burst"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tc.field, verrs[0].Field)
		})
	}
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("server.base_url", "https://a.example"))
	require.NoError(t, cfg.Set("ui.start_fullscreen", "true"))
	require.NoError(t, cfg.Set("server.rate_limit", "2.5"))

	v, err := cfg.Get("server.base_url")
	require.NoError(t, err)
	assert.Equal(t, "https://a.example", v)
	assert.True(t, cfg.UI.StartFullscreen)
	assert.Equal(t, 2.5, cfg.Server.RateLimit)

	assert.Error(t, cfg.Set("ui.start_fullscreen", "maybe"))
	_, err = cfg.Get("server.nope")
	assert.Error(t, err)
	_, err = cfg.Get("server")
	assert.Error(t, err)
	_, err = cfg.Get("auth.token")
	assert.Error(t, err, "literal token is not addressable")
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "server.base_url")
	assert.Contains(t, keys, "metrics.addr")
	assert.NotContains(t, keys, "auth.token")
}

func TestSaveTOML_RoundTripWithoutToken(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "config.toml")

	cfg := Default()
	cfg.Auth.Token = "secret"
	cfg.UI.Theme = "dark"
	require.NoError(t, SaveTOML(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "dark", loaded.UI.Theme)
	assert.Empty(t, loaded.Auth.Token)
}

func TestConfig_StringRedactsToken(t *testing.T) {
	cfg := Default()
	cfg.Auth.Token = "secret"
	assert.NotContains(t, cfg.String(), "secret")
}
