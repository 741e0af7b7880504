// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth provides bearer-token accessors and the login gate that
// starts and stops the chat session when credentials come and go.
//
// # Token sources
//
//   - StaticToken: a literal token from a flag or SAGECHAT_TOKEN
//   - FileToken: the token file written by `sagechat login`, kept current
//     with fsnotify
//   - OAuth2Token: any golang.org/x/oauth2 source, refreshed explicitly
//   - Chain: first source that has a token wins
//
// JWT-shaped tokens are inspected without verification; an expired exp
// claim makes every source report no token.
//
// # Gate
//
//	gate := auth.NewGate(tokens, controller, log)
//	go gate.Run(ctx, fileToken.Changed(), time.Minute)
package auth
