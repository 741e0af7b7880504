// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes a streamed chat reply and extracts the trailing
// payload that carries the durable message identifiers.
//
// The reply body is plain text followed by a single delimited marker:
//
//	Once upon a time...
//	<!-- FINAL_PAYLOAD:{"userMessageId": 41, "aiMessageId": 42} -->
//
// # States
//
//	Streaming ──marker ok──▶ PayloadFound   (reading stops, prefix is final text)
//	    │  └──marker bad──▶ Streaming       (marker kept as text, logged)
//	    ├──EOF───────────▶ Done             (no payload, optimistic ids stay)
//	    └──read error────▶ Errored          (partial text kept)
//
// # Usage
//
//	res, err := stream.Read(ctx, resp.Body, func(text string) {
//	    entry.SetContent(text)
//	}, stream.Options{IdleTimeout: 2 * time.Minute, Log: log})
package stream
