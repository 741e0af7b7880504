// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

const (
	// MaxTitleLength mirrors the server's limit for titles derived from a prompt.
	MaxTitleLength = 50
	// MaxRenameLength is the longest title the server stores on rename.
	MaxRenameLength = 150
)

// =============================================================================
// CONVERSATION TYPES
// =============================================================================

// ConversationSummary is an entry of the conversation list.
type ConversationSummary struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
}

// ConversationContext is the setup metadata attached to a conversation when
// it is created (goal, tone, game system and free-form details).
type ConversationContext map[string]string

// Known context keys accepted by the backend's setup flow.
const (
	ContextGoal       = "goal"
	ContextGenreTone  = "genre_tone"
	ContextGameSystem = "game_system"
	ContextKeyDetails = "key_details"
)

// ContextKeys lists the setup keys in display order.
var ContextKeys = []string{ContextGoal, ContextGenreTone, ContextGameSystem, ContextKeyDetails}

// Merge returns a copy of c with updates applied. An empty update value
// removes that key. The result is nil when nothing is left.
func (c ConversationContext) Merge(updates ConversationContext) ConversationContext {
	out := make(ConversationContext, len(c)+len(updates))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range updates {
		if v = strings.TrimSpace(v); v == "" {
			delete(out, k)
		} else {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Conversation holds a complete conversation as returned by the server.
// The client never caches it beyond the current view.
type Conversation struct {
	ID       ID                  `json:"id"`
	Title    string              `json:"title"`
	Context  ConversationContext `json:"context,omitempty"`
	Messages []Message           `json:"messages"`
}

// UnmarshalJSON accepts both the flat shape
// {"id","title","context","messages"} and the nested shape
// {"conversation":{"id","title","context"},"messages":[...]}.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID           ID              `json:"id"`
		Title        string          `json:"title"`
		Context      json.RawMessage `json:"context"`
		Messages     []Message       `json:"messages"`
		Conversation *struct {
			ID      ID              `json:"id"`
			Title   string          `json:"title"`
			Context json.RawMessage `json:"context"`
		} `json:"conversation"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decode conversation")
	}

	c.ID, c.Title = raw.ID, raw.Title
	ctxData := raw.Context
	if raw.Conversation != nil {
		if c.ID.IsZero() {
			c.ID = raw.Conversation.ID
		}
		if c.Title == "" {
			c.Title = raw.Conversation.Title
		}
		if len(ctxData) == 0 {
			ctxData = raw.Conversation.Context
		}
	}
	c.Context = decodeContext(ctxData)
	c.Messages = raw.Messages
	if c.Messages == nil {
		c.Messages = []Message{}
	}
	return nil
}

// decodeContext keeps string-valued entries only; anything else the server
// stores is opaque to the client.
func decodeContext(data json.RawMessage) ConversationContext {
	if len(data) == 0 {
		return nil
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil || len(generic) == 0 {
		return nil
	}
	out := make(ConversationContext, len(generic))
	for k, v := range generic {
		if s, ok := v.(string); ok && s != "" {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// IsEmpty returns true if the conversation has no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// LastMessage returns the last message or nil.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// TitleFromPrompt derives a default title the way the server does for a
// conversation created implicitly by its first message.
func TitleFromPrompt(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= MaxTitleLength {
		return prompt
	}
	return string(runes[:MaxTitleLength]) + "..."
}
