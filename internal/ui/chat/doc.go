// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the Bubble Tea program for sagechat.
//
// The session controller does all network work on its own goroutines and
// reports back through a Bridge (input enabled, credits, title, notices).
// The transcript is shared and versioned. Model polls both on a frame tick,
// so no controller code ever runs on the Update goroutine and nothing needs
// to call Program.Send.
//
// Focus moves between three areas with Tab: the input line, the message
// list (copy, delete) and the conversation sidebar, which is only shown in
// fullscreen mode.
package chat
