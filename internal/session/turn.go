// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/sagechat-tui/internal/api"
	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/stream"
	"github.com/jeranaias/sagechat-tui/internal/telemetry"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
)

// Submit sends prompt and streams the reply into the transcript. A second
// call while a turn or delete is running returns ErrBusy and sends nothing.
// Errors are shown inside the reply placeholder; the returned error is for
// callers that want to branch on it.
func (c *Controller) Submit(ctx context.Context, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}
	tok, err := c.token()
	if err != nil {
		return err
	}
	if !c.begin(Submitting) {
		return ErrBusy
	}
	defer c.finish()
	return c.runTurn(ctx, prompt, tok)
}

// runTurn performs one send/stream cycle. The caller holds the Submitting
// state.
func (c *Controller) runTurn(ctx context.Context, prompt, tok string) error {
	ctx, cancel := context.WithCancel(ctx)
	release := c.turn.set(cancel)
	defer release()

	started := time.Now()
	convID, stops := c.ConversationID(), c.stopCount()
	log := c.log.WithFields(logrus.Fields{"conversation": convID, "prompt_len": len(prompt)})

	c.tr.RenderMessage(model.RoleUser, prompt, model.NoID, nil, -1)
	placeholder := c.tr.RenderPlaceholder()

	if c.history != nil {
		if err := c.history.Add(ctx, prompt); err != nil {
			log.WithError(err).Debug("prompt history write failed")
		}
	}

	resp, err := c.repo.SendMessage(ctx, api.SendRequest{Prompt: prompt, ConversationID: convID, Token: tok})
	if err != nil {
		log.WithError(err).Warn("send failed")
		placeholder.SetError(Describe(err))
		c.settle(prompt, started, 0, false, err)
		return err
	}

	c.setState(Streaming)
	res, err := stream.Read(ctx, resp.Body, placeholder.SetContent, stream.Options{
		IdleTimeout:    c.idleTimeout,
		Log:            log,
		OnPayloadError: func(error) { c.metrics.IncPayloadErrors() },
	})
	c.metrics.AddStreamBytes(res.Bytes)

	// The server may have created the conversation even if the stream
	// broke, so bind whatever id is known.
	c.bindConversation(stops, convID, res.Payload, resp, prompt)

	if err == nil && res.Text == "" {
		placeholder.SetContent("")
	}
	placeholder.Settle()

	if err != nil {
		log.WithError(err).WithField("state", res.State).Warn("stream failed")
		placeholder.SetError(Describe(err))
		c.settle(prompt, started, utf8.RuneCountInString(res.Text), false, err)
		return err
	}

	c.bindMessageIDs(res.Payload, placeholder)
	if res.Payload == nil {
		log.WithField("state", res.State).Debug("reply ended without payload")
	}

	c.view.ClearInput()
	if resp.Credits != nil {
		c.setCredits(*resp.Credits)
	} else {
		c.FetchAndUpdateCredits(ctx)
	}
	c.settle(prompt, started, utf8.RuneCountInString(res.Text), res.Payload != nil, nil)
	return nil
}

// settle records the turn's outcome.
func (c *Controller) settle(prompt string, started time.Time, runes int, gotPayload bool, err error) {
	d := time.Since(started)
	outcome := telemetry.OutcomeOK
	switch {
	case errors.Is(err, context.Canceled):
		outcome = telemetry.OutcomeCancelled
	case err != nil:
		outcome = telemetry.OutcomeError
	case !gotPayload:
		outcome = telemetry.OutcomeNoPayload
	}
	c.metrics.ObserveTurn(outcome, d)
	c.usage.RecordTurn(telemetry.TurnSample{Prompt: prompt, Duration: d, Runes: runes, Failed: err != nil})
}

// bindConversation adopts the conversation the server used when none was
// active. The payload's conversationId wins over the response header.
// Nothing is bound if Stop ran since stops was read.
func (c *Controller) bindConversation(stops uint64, sent model.ID, p *model.StreamPayload, resp *api.StreamResponse, prompt string) {
	if !sent.IsZero() {
		return
	}
	id := model.NoID
	if p != nil && !p.ConversationID.IsZero() {
		id = p.ConversationID
	} else if !resp.ConversationID.IsZero() {
		id = resp.ConversationID
	}
	if id.IsZero() {
		c.log.Warn("new conversation id not reported by server")
		return
	}
	title := resp.ConversationTitle
	if title == "" {
		title = model.TitleFromPrompt(prompt)
	}
	if !c.bindUnlessStopped(stops, id, title) {
		c.log.WithField("conversation", id).Debug("session stopped before the reply ended; not binding")
	}
}

// bindMessageIDs assigns the acknowledged ids to the last two entries:
// the reply and the prompt before it. Each is checked by role first.
// Without a payload the entries keep their provisional (empty) ids.
func (c *Controller) bindMessageIDs(p *model.StreamPayload, placeholder *transcript.Entry) {
	n := c.tr.Len()
	last, ok := c.tr.At(n - 1)
	if !ok || last.Key != placeholder.Key || last.Role != model.RoleAssistant {
		c.log.Warn("reply entry moved before ids were bound")
		return
	}
	if p != nil {
		placeholder.SetID(p.AIMessageID)
	}
	placeholder.SetOnDelete(c.onDelete)

	prev, ok := c.tr.At(n - 2)
	if !ok || prev.Kind != transcript.KindMessage || prev.Role != model.RoleUser {
		return
	}
	user := c.tr.Handle(n - 2)
	if p != nil {
		user.SetID(p.UserMessageID)
	}
	user.SetOnDelete(c.onDelete)
}

// DeleteFromIndex deletes the message at index and everything after it.
// Deleting a reply whose previous entry is a prompt regenerates the reply
// from that prompt once the server has confirmed the delete. On failure the
// transcript is left untouched.
func (c *Controller) DeleteFromIndex(ctx context.Context, index int) error {
	if !c.begin(Deleting) {
		c.view.Notify(MsgBusy)
		return ErrBusy
	}
	defer c.finish()
	tok, err := c.token()
	if err != nil {
		return err
	}

	// Read the target only once Deleting is held so a load cannot swap
	// the transcript underneath it.
	target, ok := c.tr.At(index)
	if !ok || target.Kind != transcript.KindMessage {
		return errors.Errorf("no message at index %d", index)
	}
	if target.ID.IsZero() {
		c.view.Notify(MsgWait)
		return ErrProvisional
	}
	convID := c.ConversationID()

	var regenerate string
	if target.Role == model.RoleAssistant {
		if prev, ok := c.tr.At(index - 1); ok && prev.Kind == transcript.KindMessage && prev.Role == model.RoleUser {
			regenerate = prev.Content
		}
	}

	if err := c.repo.DeleteMessage(ctx, convID, target.ID, tok); err != nil {
		c.log.WithError(err).WithField("message", target.ID).Warn("delete message failed")
		c.view.Notify(fmt.Sprintf(msgDeleteFail, Describe(err)))
		return err
	}
	c.tr.Truncate(index)
	c.log.WithFields(logrus.Fields{"conversation": convID, "index": index, "regenerate": regenerate != ""}).Info("messages deleted")

	if regenerate == "" {
		if !c.tr.HasMessages() {
			c.tr.Placeholder(MsgEmpty)
		}
		return nil
	}
	c.setState(Submitting)
	if err := c.runTurn(ctx, regenerate, tok); err != nil {
		c.log.WithError(err).Debug("regeneration failed")
	}
	return nil
}
