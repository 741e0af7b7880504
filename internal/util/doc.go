// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the sagechat terminal client.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - TruncateWidth, PadRight: cell-width aware truncation for the sidebar
//   - FirstLine: first non-blank line of a block of text
//
// File Operations:
//   - WriteFileAtomic: crash-safe file writing with fsync
//
// # Usage
//
//	title := util.TruncateWidth(conv.Title, sidebarWidth-2)
//	err := util.WriteFileAtomic(path, data, 0600)
package util
