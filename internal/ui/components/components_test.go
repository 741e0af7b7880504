// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/jeranaias/sagechat-tui/internal/layout"
	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
	"github.com/jeranaias/sagechat-tui/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme(styles.ThemeDark)
}

// =============================================================================
// HELPER TESTS
// =============================================================================

func TestWordWrap(t *testing.T) {
	got := wordWrap("one two three four", 8)
	for _, line := range strings.Split(got, "\n") {
		if len(line) > 8 {
			t.Errorf("line %q exceeds width", line)
		}
	}
	if wordWrap("abc", 0) != "abc" {
		t.Error("zero width should leave text alone")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello world", 6); ansi.StringWidth(got) > 6 {
		t.Errorf("truncate() = %q, too wide", got)
	}
	if got := truncate("hi", 6); got != "hi" {
		t.Errorf("truncate() = %q, want %q", got, "hi")
	}
	if got := truncate("hi", 0); got != "" {
		t.Errorf("truncate() = %q, want empty", got)
	}
}

func TestMaxLineWidth(t *testing.T) {
	if got := maxLineWidth("ab\nabcd\na"); got != 4 {
		t.Errorf("maxLineWidth() = %d, want 4", got)
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessageBubble_Roles(t *testing.T) {
	theme := testTheme()
	tests := []struct {
		role  model.Role
		label string
	}{
		{model.RoleUser, "You"},
		{model.RoleAssistant, "Sage"},
	}
	for _, tc := range tests {
		b := NewMessageBubble(transcript.Entry{Kind: transcript.KindMessage, Role: tc.role, Content: "hi", Body: "hi"}, theme)
		out := ansi.Strip(b.View())
		if !strings.Contains(out, tc.label) || !strings.Contains(out, "hi") {
			t.Errorf("%s bubble = %q", tc.role, out)
		}
	}
}

func TestMessageBubble_Pending(t *testing.T) {
	b := NewMessageBubble(transcript.Entry{Kind: transcript.KindMessage, Role: model.RoleAssistant, Pending: true}, testTheme())
	if out := ansi.Strip(b.View()); !strings.Contains(out, transcript.LoadingIndicator) {
		t.Errorf("pending bubble missing indicator: %q", out)
	}
	b.SpinnerFrame = "/"
	if out := ansi.Strip(b.View()); !strings.Contains(out, "/ thinking") {
		t.Errorf("pending bubble missing spinner frame: %q", out)
	}
}

func TestMessageBubble_InlineErrorKeepsPartial(t *testing.T) {
	e := transcript.Entry{Kind: transcript.KindMessage, Role: model.RoleAssistant, Content: "partial", Body: "partial", Err: "Cancelled."}
	out := ansi.Strip(NewMessageBubble(e, testTheme()).View())
	if !strings.Contains(out, "partial") || !strings.Contains(out, "Cancelled.") {
		t.Errorf("bubble = %q", out)
	}
}

func TestMessageBubble_ConfirmPrompt(t *testing.T) {
	e := transcript.Entry{Kind: transcript.KindMessage, Role: model.RoleUser, Content: "q", Body: "q", OnDelete: func(int) {}}
	b := NewMessageBubble(e, testTheme())
	b.Selected = true
	b.ConfirmArmed = true
	out := ansi.Strip(b.View())
	if !strings.Contains(out, "(y/n)") {
		t.Errorf("armed bubble missing prompt: %q", out)
	}
	if !strings.Contains(out, "d delete") {
		t.Errorf("selected deletable bubble missing hint: %q", out)
	}
}

func TestMessageBubble_NoticeAndError(t *testing.T) {
	theme := testTheme()
	notice := NewMessageBubble(transcript.Entry{Kind: transcript.KindNotice, Body: "Start a conversation"}, theme)
	if out := ansi.Strip(notice.View()); !strings.Contains(out, "Start a conversation") {
		t.Errorf("notice = %q", out)
	}
	errb := NewMessageBubble(transcript.Entry{Kind: transcript.KindError, Body: "boom"}, theme)
	if out := ansi.Strip(errb.View()); !strings.Contains(out, "boom") {
		t.Errorf("error = %q", out)
	}
}

func TestMessageList_View(t *testing.T) {
	ml := NewMessageList(testTheme())
	ml.Entries = []transcript.Entry{
		{Kind: transcript.KindMessage, Role: model.RoleUser, Content: "first", Body: "first"},
		{Kind: transcript.KindMessage, Role: model.RoleAssistant, Content: "second", Body: "second"},
	}
	out := ansi.Strip(ml.View())
	if strings.Index(out, "first") > strings.Index(out, "second") {
		t.Errorf("entries out of order: %q", out)
	}
	if strings.Contains(out, "(y/n)") {
		t.Error("nothing is armed")
	}
}

// =============================================================================
// HEADER / STATUS BAR / SIDEBAR TESTS
// =============================================================================

func TestHeader_View(t *testing.T) {
	h := NewHeader(testTheme())
	h.SetTitle("Tavern plans")
	out := ansi.Strip(h.View())
	if !strings.Contains(out, "sagechat") || !strings.Contains(out, "Tavern plans") || !strings.Contains(out, layout.GlyphEnter) {
		t.Errorf("header = %q", out)
	}
	h.SetGlyph(layout.GlyphExit)
	if out := ansi.Strip(h.View()); !strings.Contains(out, layout.GlyphExit) {
		t.Errorf("header glyph not updated: %q", out)
	}
}

func TestStatusBar_Credits(t *testing.T) {
	s := NewStatusBar(testTheme())
	if out := ansi.Strip(s.View()); !strings.Contains(out, "logged out") {
		t.Errorf("status = %q", out)
	}
	s.LoggedIn = true
	if out := ansi.Strip(s.View()); !strings.Contains(out, "credits: -") {
		t.Errorf("status = %q", out)
	}
	s.SetCredits(12)
	if out := ansi.Strip(s.View()); !strings.Contains(out, "credits: 12") {
		t.Errorf("status = %q", out)
	}
}

func TestStatusBar_Widths(t *testing.T) {
	s := NewStatusBar(testTheme())
	s.LoggedIn = true
	s.SetCredits(5)

	s.SetWidth(120)
	if out := ansi.Strip(s.View()); !strings.Contains(out, "Ctrl+C") {
		t.Errorf("wide status missing shortcuts: %q", out)
	}
	s.SetNotice("Renamed")
	if out := ansi.Strip(s.View()); !strings.Contains(out, "Renamed") {
		t.Errorf("notice not shown: %q", out)
	}
	s.SetWidth(40)
	if out := ansi.Strip(s.View()); !strings.Contains(out, "credits: 5") {
		t.Errorf("narrow status = %q", out)
	}
}

func TestSidebar(t *testing.T) {
	sb := NewSidebar(testTheme())
	sb.SetItems([]layout.Item{
		{ID: "1", Title: "First", Active: true},
		{ID: "2", Title: "Second"},
	})
	sb.MoveDown()
	sb.MoveDown()
	if it, ok := sb.Current(); !ok || it.ID != "2" {
		t.Errorf("Current() = %+v, %v", it, ok)
	}
	sb.MoveUp()
	if sb.Cursor != 0 {
		t.Errorf("Cursor = %d, want 0", sb.Cursor)
	}
	out := ansi.Strip(sb.View())
	if !strings.Contains(out, "First") || !strings.Contains(out, "Second") {
		t.Errorf("sidebar = %q", out)
	}

	sb.SetItems(nil)
	if _, ok := sb.Current(); ok {
		t.Error("empty sidebar has no current row")
	}
	if out := ansi.Strip(sb.View()); !strings.Contains(out, "No conversations") {
		t.Errorf("empty sidebar = %q", out)
	}
}
