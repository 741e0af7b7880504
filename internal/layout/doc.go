// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package layout keeps the fullscreen flag and the conversation sidebar in
// step. One boolean is the source of truth; Sync derives everything else
// from it.
package layout
