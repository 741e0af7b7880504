// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jeranaias/sagechat-tui/internal/layout"
	"github.com/jeranaias/sagechat-tui/internal/ui/styles"
)

// =============================================================================
// SIDEBAR
// =============================================================================

// Sidebar lists conversations in fullscreen mode.
type Sidebar struct {
	Items  []layout.Item
	Cursor int
	Width  int
	Height int

	// Renaming holds the in-progress title while a rename is being typed.
	Renaming string
	Editing  bool
	theme    *styles.Theme
}

// NewSidebar creates an empty sidebar.
func NewSidebar(theme *styles.Theme) *Sidebar {
	return &Sidebar{Width: 28, Height: 20, theme: theme}
}

// SetItems replaces the rows and keeps the cursor in range.
func (s *Sidebar) SetItems(items []layout.Item) {
	s.Items = items
	s.Cursor = clamp(s.Cursor, 0, max(len(items)-1, 0))
}

// MoveUp moves the cursor up one row.
func (s *Sidebar) MoveUp() {
	if s.Cursor > 0 {
		s.Cursor--
	}
}

// MoveDown moves the cursor down one row.
func (s *Sidebar) MoveDown() {
	if s.Cursor < len(s.Items)-1 {
		s.Cursor++
	}
}

// Current returns the row under the cursor.
func (s *Sidebar) Current() (layout.Item, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Items) {
		return layout.Item{}, false
	}
	return s.Items[s.Cursor], true
}

// View renders the sidebar.
func (s *Sidebar) View() string {
	inner := s.Width - 4
	if inner < 8 {
		inner = 8
	}
	lines := []string{s.theme.SidebarHeader.Render("Conversations"), ""}

	if len(s.Items) == 0 {
		lines = append(lines, s.theme.SidebarItem.Render("No conversations"))
	}
	for i, it := range s.Items {
		if it.Err != "" {
			lines = append(lines, s.theme.SidebarError.Render(wordWrap(it.Err, inner)))
			continue
		}
		title := it.Title
		if s.Editing && i == s.Cursor {
			title = s.Renaming + "_"
		}
		marker := "  "
		if it.Active {
			marker = styles.Indicators.Active + " "
		}
		row := marker + truncate(title, inner-2)
		switch {
		case i == s.Cursor:
			lines = append(lines, s.theme.SidebarSelected.Width(inner).Render(row))
		case it.Active:
			lines = append(lines, s.theme.SidebarActive.Render(row))
		default:
			lines = append(lines, s.theme.SidebarItem.Render(row))
		}
	}
	lines = append(lines, "", s.theme.ShortcutDesc.Render("enter open  r rename  x delete"))

	body := strings.Join(lines, "\n")
	return s.theme.Sidebar.Width(s.Width).Height(s.Height).Render(body)
}
