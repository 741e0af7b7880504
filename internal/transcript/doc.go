// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript holds the visible conversation as an ordered list of
// message entries.
//
// The session controller appends and mutates entries through the handles
// returned here; the TUI draws a Snapshot. Entries carry a local key that
// never changes and an optional server ID that is bound once the server has
// acknowledged the message.
package transcript
