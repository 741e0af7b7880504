// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the palette and Lip Gloss styles for the sagechat
// TUI. Colors are AdaptiveColor pairs; the theme detects the terminal's
// color profile and background through termenv.
package styles
