// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
	"github.com/jeranaias/sagechat-tui/internal/ui/styles"
)

// =============================================================================
// MESSAGE BUBBLE
// =============================================================================

// MessageBubble renders one transcript entry.
type MessageBubble struct {
	Entry        transcript.Entry
	Width        int
	Selected     bool
	ConfirmArmed bool
	SpinnerFrame string
	theme        *styles.Theme
}

// NewMessageBubble creates a bubble for e.
func NewMessageBubble(e transcript.Entry, theme *styles.Theme) *MessageBubble {
	return &MessageBubble{Entry: e, Width: 80, theme: theme}
}

// View renders the bubble.
func (b *MessageBubble) View() string {
	switch b.Entry.Kind {
	case transcript.KindNotice:
		return b.renderNotice()
	case transcript.KindError:
		return b.renderError()
	}
	if b.Entry.Role == model.RoleUser {
		return b.renderMessage(b.theme.UserLabel, b.theme.UserBubble)
	}
	return b.renderMessage(b.theme.AssistantLabel, b.theme.AssistantBubble)
}

func (b *MessageBubble) contentWidth() int {
	return clamp(b.Width-4, 16, 200)
}

func (b *MessageBubble) renderMessage(label, bubble lipgloss.Style) string {
	e := b.Entry
	header := label.Render(e.Role.DisplayName())
	if b.Selected && e.Deletable() {
		header += " " + b.theme.ShortcutDesc.Render("y copy  d delete")
	}

	var body string
	switch {
	case e.Pending:
		frame := b.SpinnerFrame
		if frame == "" {
			frame = transcript.LoadingIndicator
		}
		body = b.theme.Pending.Render(frame + " thinking")
	case e.Role == model.RoleUser:
		body = wordWrap(e.Body, b.contentWidth()-4)
	default:
		body = e.Body
	}
	if e.Err != "" {
		errLine := b.theme.InlineError.Render(styles.Indicators.Error + " " + e.Err)
		if strings.TrimSpace(e.Content) == "" {
			body = errLine
		} else {
			body += "\n\n" + errLine
		}
	}

	rendered := bubble.Width(b.contentWidth()).Render(body)
	if b.Selected {
		rendered = b.theme.Selected.Render(rendered)
	}
	out := header + "\n" + rendered
	if b.ConfirmArmed {
		out += "\n" + b.theme.ConfirmPrompt.Render(
			styles.Indicators.Delete+" Delete this message and everything after it? (y/n)")
	}
	return out
}

func (b *MessageBubble) renderNotice() string {
	box := b.theme.NoticeBox.Render(wordWrap(b.Entry.Body, b.contentWidth()-6))
	return lipgloss.PlaceHorizontal(b.Width, lipgloss.Center, box)
}

func (b *MessageBubble) renderError() string {
	text := styles.Indicators.Error + " " + b.Entry.Body
	return b.theme.ErrorBox.Width(b.contentWidth()).Render(wordWrap(text, b.contentWidth()-6))
}

// =============================================================================
// MESSAGE LIST
// =============================================================================

// MessageList renders a transcript snapshot.
type MessageList struct {
	Entries      []transcript.Entry
	Width        int
	Selected     int
	Armed        int
	SpinnerFrame string
	theme        *styles.Theme
}

// NewMessageList creates an empty list. Selected and Armed start at -1.
func NewMessageList(theme *styles.Theme) *MessageList {
	return &MessageList{Width: 80, Selected: -1, Armed: -1, theme: theme}
}

// View renders every entry separated by a blank line.
func (ml *MessageList) View() string {
	parts := make([]string, 0, len(ml.Entries))
	for i, e := range ml.Entries {
		b := NewMessageBubble(e, ml.theme)
		b.Width = ml.Width
		b.Selected = i == ml.Selected
		b.ConfirmArmed = i == ml.Armed
		b.SpinnerFrame = ml.SpinnerFrame
		parts = append(parts, b.View())
	}
	return strings.Join(parts, "\n\n")
}
