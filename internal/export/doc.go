// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a server conversation to a file.
//
// # Supported Formats
//
//   - Markdown: frontmatter, setup context and each turn under a heading
//   - JSON: the conversation as the server returned it
//   - HTML: a standalone page with syntax-highlighted code blocks
//
// # Usage
//
//	exp, err := export.New(export.FormatMarkdown, nil)
//	path, err := export.ToFile(conv, exp, ".")
package export
