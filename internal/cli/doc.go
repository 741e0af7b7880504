// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the sagechat command line.
//
// Commands:
//
//	sagechat                      Start the full-screen chat
//	sagechat ask "prompt"         One-shot question, markdown output
//	sagechat chat                 Line-mode chat (REPL)
//	sagechat conversations ...    List, show, create, rename, delete
//	sagechat credits              Show the credit balance
//	sagechat buy                  Start a credit purchase
//	sagechat login / logout       Store or remove the access token
//	sagechat config ...           Inspect or change settings
//	sagechat history [query]      Search submitted prompts
package cli
