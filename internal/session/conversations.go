// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/sagechat-tui/internal/api"
	"github.com/jeranaias/sagechat-tui/internal/layout"
	"github.com/jeranaias/sagechat-tui/internal/model"
)

// LoadLatestConversation shows the newest conversation, or the start
// placeholder when there are none.
func (c *Controller) LoadLatestConversation(ctx context.Context) error {
	tok, err := c.token()
	if err != nil {
		return err
	}
	if !c.begin(LoadingList) {
		c.view.Notify(MsgBusy)
		return ErrBusy
	}
	defer c.finish()

	convs, err := c.repo.ListConversations(ctx, tok)
	if err != nil {
		c.log.WithError(err).Warn("list conversations failed")
		c.tr.RenderError(fmt.Sprintf(msgListFail, Describe(err)))
		return err
	}
	if len(convs) == 0 {
		c.reset()
		return nil
	}

	c.setState(LoadingConversation)
	return c.load(ctx, convs[0].ID, tok)
}

// LoadAndDisplayConversation replaces the transcript with conversation id.
// NoID resets to the start placeholder. A conversation that no longer
// exists also resets instead of showing an error.
func (c *Controller) LoadAndDisplayConversation(ctx context.Context, id model.ID) error {
	if id.IsZero() {
		if !c.begin(LoadingConversation) {
			c.view.Notify(MsgBusy)
			return ErrBusy
		}
		defer c.finish()
		c.reset()
		return nil
	}

	tok, err := c.token()
	if err != nil {
		return err
	}
	if !c.begin(LoadingConversation) {
		c.view.Notify(MsgBusy)
		return ErrBusy
	}
	defer c.finish()
	return c.load(ctx, id, tok)
}

func (c *Controller) load(ctx context.Context, id model.ID, tok string) error {
	conv, err := c.repo.GetConversation(ctx, id, tok)
	if errors.Is(err, api.ErrNotFound) {
		c.log.WithField("conversation", id).Info("conversation gone, resetting")
		c.reset()
		return nil
	}
	if err != nil {
		c.log.WithError(err).WithField("conversation", id).Warn("get conversation failed")
		c.tr.RenderError(fmt.Sprintf(msgLoadFail, Describe(err)))
		return err
	}
	c.display(conv)
	return nil
}

// display renders every message with a delete callback bound to its index,
// then makes the conversation active.
func (c *Controller) display(conv *model.Conversation) {
	c.tr.Clear()
	for i, m := range conv.Messages {
		c.tr.RenderMessage(m.Role, m.Content, m.ID, c.onDelete, i)
	}
	if len(conv.Messages) == 0 {
		c.tr.Placeholder(MsgEmpty)
	}
	c.bind(conv.ID, conv.Title)
}

// onDelete is the transcript callback. It runs the delete off the UI
// goroutine.
func (c *Controller) onDelete(index int) {
	c.Go(func(ctx context.Context) {
		if err := c.DeleteFromIndex(ctx, index); err != nil {
			c.log.WithError(err).WithField("index", index).Debug("delete from index failed")
		}
	})
}

func (c *Controller) reset() {
	c.bind(model.NoID, "")
	c.tr.Placeholder(MsgStart)
}

// StartNewConversation clears the active conversation. With setup context
// the conversation is created right away so the context applies to the
// first reply; otherwise the server creates it on the first send.
func (c *Controller) StartNewConversation(ctx context.Context, setup model.ConversationContext) error {
	if len(setup) == 0 {
		return c.LoadAndDisplayConversation(ctx, model.NoID)
	}
	tok, err := c.token()
	if err != nil {
		return err
	}
	if !c.begin(LoadingConversation) {
		c.view.Notify(MsgBusy)
		return ErrBusy
	}
	defer c.finish()

	conv, err := c.repo.CreateConversation(ctx, tok, setup)
	if err != nil {
		c.view.Notify(Describe(err))
		return err
	}
	c.display(conv)
	return nil
}

// RenameConversation sets a conversation's title.
func (c *Controller) RenameConversation(ctx context.Context, id model.ID, title string) error {
	tok, err := c.token()
	if err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	if err := c.repo.RenameConversation(ctx, id, title, tok); err != nil {
		c.view.Notify(Describe(err))
		return err
	}
	if r := []rune(title); len(r) > model.MaxRenameLength {
		title = string(r[:model.MaxRenameLength])
	}
	c.mu.Lock()
	active := c.current == id
	c.mu.Unlock()
	if active {
		c.bind(id, title)
	}
	c.view.Notify("Renamed to " + title)
	return nil
}

// UpdateContext edits the active conversation's setup context. updates is
// merged into the stored context and an empty value clears its key. The
// new context applies from the next reply on.
func (c *Controller) UpdateContext(ctx context.Context, updates model.ConversationContext) error {
	tok, err := c.token()
	if err != nil {
		return err
	}
	id := c.ConversationID()
	if id.IsZero() {
		c.view.Notify(MsgNoContext)
		return ErrNoConversation
	}
	merged, err := c.saveContext(ctx, id, updates, tok)
	if err != nil {
		c.view.Notify(fmt.Sprintf(msgContextFail, Describe(err)))
		return err
	}
	c.log.WithFields(logrus.Fields{"conversation": id, "keys": len(merged)}).Info("context saved")
	c.view.Notify(DescribeContext(merged))
	return nil
}

// saveContext merges updates into the context stored for id and saves the
// result, which it returns.
func (c *Controller) saveContext(ctx context.Context, id model.ID, updates model.ConversationContext, tok string) (model.ConversationContext, error) {
	conv, err := c.repo.GetConversation(ctx, id, tok)
	if err != nil {
		return nil, err
	}
	merged := conv.Context.Merge(updates)
	if err := c.repo.SaveContext(ctx, id, merged, tok); err != nil {
		return nil, err
	}
	return merged, nil
}

// DescribeContext is the one-line summary shown after a context change.
func DescribeContext(setup model.ConversationContext) string {
	if len(setup) == 0 {
		return "Context cleared."
	}
	parts := make([]string, 0, len(setup))
	for _, k := range model.ContextKeys {
		if v, ok := setup[k]; ok {
			parts = append(parts, k+"="+v)
		}
	}
	return "Context saved: " + strings.Join(parts, ", ")
}

// DeleteConversation removes a conversation. Removing the active one loads
// the next latest. The active conversation cannot be removed while a reply
// is streaming into it.
func (c *Controller) DeleteConversation(ctx context.Context, id model.ID) error {
	tok, err := c.token()
	if err != nil {
		return err
	}
	c.mu.Lock()
	active := c.current == id
	busy := c.state != Idle
	c.mu.Unlock()
	if active && busy {
		c.view.Notify(MsgBusy)
		return ErrBusy
	}

	if err := c.repo.DeleteConversation(ctx, id, tok); err != nil {
		c.view.Notify(fmt.Sprintf(msgDeleteFail, Describe(err)))
		return err
	}
	c.view.Notify("Conversation deleted.")
	if active {
		c.bind(model.NoID, "")
		return c.LoadLatestConversation(ctx)
	}
	return nil
}

// ListSidebar lists conversations with the active one marked. Failures
// come back as a single error row.
func (c *Controller) ListSidebar(ctx context.Context) []layout.Item {
	tok, ok := c.tokens.Token()
	if !ok {
		return []layout.Item{{Err: MsgLogin}}
	}
	convs, err := c.repo.ListConversations(ctx, tok)
	if err != nil {
		c.log.WithError(err).Warn("sidebar list failed")
		return []layout.Item{{Err: fmt.Sprintf(msgListFail, Describe(err))}}
	}

	active := c.ConversationID()
	items := make([]layout.Item, 0, len(convs))
	for _, conv := range convs {
		title := conv.Title
		if strings.TrimSpace(title) == "" {
			title = MsgUntitled
		}
		items = append(items, layout.Item{
			ID:     conv.ID,
			Title:  title,
			Active: !active.IsZero() && conv.ID == active,
		})
	}
	return items
}

// SidebarHandlers returns the per-row actions for the layout. Each returns
// once its request has finished; failures are shown through the View.
func (c *Controller) SidebarHandlers() layout.Handlers {
	return layout.Handlers{
		Select: func(ctx context.Context, id model.ID) {
			if err := c.LoadAndDisplayConversation(ctx, id); err != nil {
				c.log.WithError(err).WithField("conversation", id).Debug("sidebar select failed")
			}
		},
		Rename: func(ctx context.Context, id model.ID, title string) {
			_ = c.RenameConversation(ctx, id, title)
		},
		Delete: func(ctx context.Context, id model.ID) {
			_ = c.DeleteConversation(ctx, id)
		},
	}
}
