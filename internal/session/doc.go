// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives one signed-in chat session: loading conversations,
// sending prompts and streaming replies into the transcript, deleting
// messages and keeping the credit balance current.
//
// The Controller is the only writer of the active conversation id and the
// only place that decides how an error is shown to the user. It implements
// auth.Lifecycle so the auth gate can start and stop it, and layout.Source
// so the sidebar can list conversations.
package session
