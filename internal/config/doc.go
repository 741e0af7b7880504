// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for sagechat.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: backend URL, timeouts, retries and rate limiting
//   - AuthConfig: token source selection
//   - UIConfig, LoggingConfig, HistoryConfig, MetricsConfig
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (SAGECHAT_*)
//   - $SAGECHAT_HOME/config.toml (default ~/.sagechat/config.toml)
//   - Built-in defaults
//
// The runtime configuration published by the server (model name, payment
// availability) is a separate, read-only model.AppConfig fetched at startup.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := api.NewClient(cfg.Server.BaseURL, api.WithTimeout(cfg.Server.RequestTimeout()))
package config
