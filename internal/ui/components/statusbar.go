// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/sagechat-tui/internal/ui/styles"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// Shortcut is a key hint shown in the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar shows credits, the connection state, transient notices and key
// hints. Its layout adapts to the terminal width.
type StatusBar struct {
	Credits    int
	HasCredits bool
	Model      string
	State      string
	Notice     string
	LoggedIn   bool
	Shortcuts  []Shortcut
	Width      int
	theme      *styles.Theme
}

// DefaultShortcuts are the hints shown when nothing else is set.
var DefaultShortcuts = []Shortcut{
	{Key: "Enter", Desc: "send"},
	{Key: "Esc", Desc: "cancel"},
	{Key: "Tab", Desc: "select"},
	{Key: "Ctrl+F", Desc: "sidebar"},
	{Key: "Ctrl+C", Desc: "quit"},
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Shortcuts: DefaultShortcuts,
		Width:     80,
		theme:     theme,
	}
}

// SetWidth updates the width.
func (s *StatusBar) SetWidth(width int) { s.Width = width }

// SetCredits records the balance.
func (s *StatusBar) SetCredits(n int) {
	s.Credits = n
	s.HasCredits = true
}

// SetNotice sets the transient notice. Empty clears it.
func (s *StatusBar) SetNotice(text string) { s.Notice = text }

// View renders the status bar for the current width.
func (s *StatusBar) View() string {
	switch {
	case s.Width < 60:
		return s.viewNarrow()
	case s.Width < 100:
		return s.view(false)
	default:
		return s.view(true)
	}
}

func (s *StatusBar) credits() string {
	if !s.LoggedIn {
		return s.theme.CreditsLow.Render("logged out")
	}
	if !s.HasCredits {
		return s.theme.StatusValue.Render("credits: -")
	}
	style := s.theme.CreditsOK
	if s.Credits <= styles.CreditsLowThreshold {
		style = s.theme.CreditsLow
	}
	return style.Render(fmt.Sprintf("credits: %d", s.Credits))
}

func (s *StatusBar) viewNarrow() string {
	left := s.credits()
	if s.Notice != "" {
		left = s.theme.Notice.Render(truncate(s.Notice, s.Width-lipgloss.Width(left)-3)) + " " + left
	}
	return s.theme.StatusBar.Width(s.Width).Render(left)
}

func (s *StatusBar) view(wide bool) string {
	parts := []string{s.credits()}
	if s.Model != "" {
		parts = append(parts, s.theme.StatusKey.Render("model ")+s.theme.StatusValue.Render(s.Model))
	}
	if s.State != "" && s.State != "idle" {
		parts = append(parts, s.theme.StatusValue.Render(s.State))
	}
	left := strings.Join(parts, "  ")

	right := ""
	if s.Notice != "" {
		right = s.theme.Notice.Render(s.Notice)
	} else if wide {
		right = s.renderShortcuts()
	}

	room := s.Width - lipgloss.Width(left) - 2
	if lipgloss.Width(right) > room {
		right = truncate(ansiPlain(right), room)
	}
	gap := s.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return s.theme.StatusBar.Width(s.Width).Render(left + strings.Repeat(" ", gap) + right)
}

func (s *StatusBar) renderShortcuts() string {
	hints := make([]string, 0, len(s.Shortcuts))
	for _, sc := range s.Shortcuts {
		hints = append(hints, s.theme.ShortcutKey.Render(sc.Key)+" "+s.theme.ShortcutDesc.Render(sc.Desc))
	}
	return strings.Join(hints, "  ")
}
