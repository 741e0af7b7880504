// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components renders the pieces of the sagechat TUI: message
// bubbles, the conversation sidebar, the header and the status bar. Each
// component is a plain struct with setters and a View method; none of them
// hold Bubble Tea state.
package components
