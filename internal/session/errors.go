// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/jeranaias/sagechat-tui/internal/api"
	"github.com/jeranaias/sagechat-tui/internal/auth"
	"github.com/jeranaias/sagechat-tui/internal/stream"
)

var (
	// ErrBusy is returned when a send or delete is already running. No
	// request is made.
	ErrBusy = errors.New("another operation is in progress")

	// ErrEmptyPrompt is returned for blank prompts.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrNoConversation is returned by operations that need an active
	// conversation when none is open.
	ErrNoConversation = errors.New("no conversation is open")

	// ErrProvisional is returned when deleting a message the server has not
	// acknowledged yet.
	ErrProvisional = errors.New("message is not saved yet")
)

// User-facing texts.
const (
	MsgLogin       = "Please log in to chat. Run `sagechat login`."
	MsgExpired     = "Your session has expired. Please log in again."
	MsgNoCredits   = "You are out of credits. Run `sagechat buy` to get more."
	MsgStart       = "Start a conversation by sending a message."
	MsgEmpty       = "No messages yet. Say hello."
	MsgWait        = "This message is still being saved. Try again in a moment."
	MsgBusy        = "Wait for the current reply to finish, or press Esc to cancel it."
	MsgCancelled   = "Cancelled."
	MsgStalled     = "The reply stalled and was stopped."
	MsgUntitled    = "Untitled"
	MsgNoContext   = "Open or start a conversation before editing its context."
	msgDeleteFail  = "Could not delete: %s"
	msgListFail    = "Could not load conversations: %s"
	msgLoadFail    = "Could not load conversation: %s"
	msgContextFail = "Could not save context: %s"
	msgNetworkFail = "Network error: %v"
)

// Describe turns an error from the repository or stream into the text shown
// to the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, api.ErrUnauthenticated), errors.Is(err, auth.ErrNoToken):
		return MsgLogin
	case errors.Is(err, context.Canceled):
		return MsgCancelled
	case errors.Is(err, stream.ErrIdleTimeout):
		return MsgStalled
	}

	if reqErr, ok := api.AsRequestError(err); ok {
		switch {
		case reqErr.PaymentRequired():
			return MsgNoCredits
		case reqErr.Unauthorized():
			return MsgExpired
		}
		return reqErr.Message()
	}

	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		return fmt.Sprintf(msgNetworkFail, errors.Cause(netErr.Err))
	}
	var streamErr *stream.Error
	if errors.As(err, &streamErr) {
		return fmt.Sprintf(msgNetworkFail, streamErr.Err)
	}
	return err.Error()
}
