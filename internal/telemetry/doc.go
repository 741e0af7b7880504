// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides Prometheus metrics and per-session usage
// tracking for sagechat.
//
// # Key Types
//
//   - Metrics: API, turn, stream and credit collectors on a private registry
//   - UsageTracker: in-memory turn statistics for the /stats command
//
// # Usage
//
//	m := telemetry.NewMetrics()
//	client := api.NewClient(baseURL, api.WithMetrics(m))
//	go m.Serve(ctx, "127.0.0.1:9464", log)
package telemetry
