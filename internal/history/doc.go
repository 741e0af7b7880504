// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history stores submitted prompts in a local SQLite database for
// Up/Down recall and search. It is not a conversation cache; the server
// remains the source of truth for messages.
package history
