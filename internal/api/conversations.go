// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/jeranaias/sagechat-tui/internal/model"
)

// =============================================================================
// CONVERSATIONS
// =============================================================================

// ListConversations returns the user's conversations, newest first.
func (c *Client) ListConversations(ctx context.Context, token string) ([]model.ConversationSummary, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	var out []model.ConversationSummary
	if err := c.getJSON(ctx, "list_conversations", c.endpoint("conversations"), token, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.ConversationSummary{}
	}
	return out, nil
}

// GetConversation fetches one conversation with all of its messages.
// A 404 matches ErrNotFound.
func (c *Client) GetConversation(ctx context.Context, id model.ID, token string) (*model.Conversation, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	if id.IsZero() {
		return nil, errors.New("get conversation: empty id")
	}
	var conv model.Conversation
	if err := c.getJSON(ctx, "get_conversation", c.endpoint("conversations", id.String()), token, &conv); err != nil {
		return nil, err
	}
	if conv.ID.IsZero() {
		conv.ID = id
	}
	return &conv, nil
}

// CreateConversation starts an empty conversation, optionally with setup
// context.
func (c *Client) CreateConversation(ctx context.Context, token string, setup model.ConversationContext) (*model.Conversation, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	payload := map[string]any{}
	if len(setup) > 0 {
		payload["context"] = setup
	}
	var conv model.Conversation
	if err := c.sendJSON(ctx, "create_conversation", http.MethodPost, c.endpoint("conversations"), token, payload, &conv); err != nil {
		return nil, err
	}
	if conv.ID.IsZero() {
		return nil, errors.New("create conversation: server returned no id")
	}
	return &conv, nil
}

// RenameConversation sets a conversation's title.
func (c *Client) RenameConversation(ctx context.Context, id model.ID, title, token string) error {
	if err := requireToken(token); err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("rename conversation: title cannot be empty")
	}
	if r := []rune(title); len(r) > model.MaxRenameLength {
		title = string(r[:model.MaxRenameLength])
	}
	payload := map[string]string{"title": title}
	return c.sendJSON(ctx, "rename_conversation", http.MethodPut, c.endpoint("conversations", id.String()), token, payload, nil)
}

// SaveContext replaces a conversation's setup context through the setup
// form endpoint. Keys left out or empty are cleared on the server, which
// answers 204.
func (c *Client) SaveContext(ctx context.Context, id model.ID, setup model.ConversationContext, token string) error {
	const op = "save_context"
	if err := requireToken(token); err != nil {
		return err
	}
	if id.IsZero() {
		return errors.New("save context: empty conversation id")
	}

	form := url.Values{}
	form.Set("conversation_id", id.String())
	for _, k := range model.ContextKeys {
		if v := strings.TrimSpace(setup[k]); v != "" {
			form.Set(k, v)
		}
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("chat", "setup", "save"), token, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.do(c.httpClient, op, req)
	if err != nil {
		return err
	}
	return decodeResponse(op, resp, nil)
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id model.ID, token string) error {
	if err := requireToken(token); err != nil {
		return err
	}
	return c.sendJSON(ctx, "delete_conversation", http.MethodDelete, c.endpoint("conversations", id.String()), token, nil, nil)
}

// DeleteMessage deletes a message and every later message in the same
// conversation. The server decides the extent of the suffix.
func (c *Client) DeleteMessage(ctx context.Context, conversationID, messageID model.ID, token string) error {
	if err := requireToken(token); err != nil {
		return err
	}
	if conversationID.IsZero() || messageID.IsZero() {
		return errors.New("delete message: conversation and message ids are required")
	}
	endpoint := c.endpoint("conversations", conversationID.String(), "messages", messageID.String())
	return c.sendJSON(ctx, "delete_message", http.MethodDelete, endpoint, token, nil, nil)
}
