// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/jeranaias/sagechat-tui/internal/model"
)

// Response headers set by the chat endpoint.
const (
	HeaderConversationID    = "X-Conversation-ID"
	HeaderConversationTitle = "X-Conversation-Title"
	HeaderUserCredits       = "X-User-Credits"
)

// SendRequest is one user turn.
type SendRequest struct {
	Prompt string
	// ConversationID is empty to let the server create a conversation.
	ConversationID model.ID
	Token          string
}

// StreamResponse is an open reply. The caller owns Body and must close it.
type StreamResponse struct {
	Body io.ReadCloser
	// ConversationID and ConversationTitle come from response headers, when
	// the server sets them.
	ConversationID    model.ID
	ConversationTitle string
	// Credits is the post-turn balance if the server reported it.
	Credits *int
}

// SendMessage posts a prompt and returns the streaming reply. Non-2xx
// statuses are read fully and returned as *RequestError; a 402 means the
// account is out of credits.
func (c *Client) SendMessage(ctx context.Context, r SendRequest) (*StreamResponse, error) {
	const op = "send_message"
	if err := requireToken(r.Token); err != nil {
		return nil, err
	}
	prompt := strings.TrimSpace(r.Prompt)
	if prompt == "" {
		return nil, errors.New("send message: empty prompt")
	}

	form := url.Values{}
	form.Set("prompt", prompt)
	if !r.ConversationID.IsZero() {
		form.Set("conversation_id", r.ConversationID.String())
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("chat", "message"), r.Token, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/plain")

	resp, err := c.do(c.streamHTTP, op, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := readResponse(resp)
		return nil, newRequestError(op, resp.StatusCode, body)
	}

	out := &StreamResponse{
		Body:              resp.Body,
		ConversationID:    model.ID(strings.TrimSpace(resp.Header.Get(HeaderConversationID))),
		ConversationTitle: resp.Header.Get(HeaderConversationTitle),
	}
	if v := resp.Header.Get(HeaderUserCredits); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			out.Credits = &n
		}
	}
	return out, nil
}
