// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the wire-level domain types shared by the API client,
// the stream decoder and the session controller.
//
// # Key Types
//
//   - ID: opaque server identifier, decoded from JSON numbers or strings
//   - Conversation / ConversationSummary: server-side conversation records
//   - Message: a persisted turn with role and content
//   - Role: user or assistant
//   - Profile, AppConfig: account and runtime configuration
//   - StreamPayload: trailing ids appended to a streamed reply
//
// # Usage
//
//	var conv model.Conversation
//	if err := json.Unmarshal(body, &conv); err != nil {
//	    return err
//	}
//	for _, msg := range conv.Messages {
//	    fmt.Println(msg.Role.DisplayName(), msg.Preview(40))
//	}
package model
