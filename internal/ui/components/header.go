// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/sagechat-tui/internal/layout"
	"github.com/jeranaias/sagechat-tui/internal/ui/styles"
)

// =============================================================================
// HEADER
// =============================================================================

// Header is the single-line title bar: brand, conversation title and the
// fullscreen toggle glyph.
type Header struct {
	Brand string
	Title string
	Glyph string
	Width int
	theme *styles.Theme
}

// NewHeader creates a header with the default brand.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{
		Brand: "sagechat",
		Glyph: layout.GlyphEnter,
		Width: 80,
		theme: theme,
	}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) { h.Width = width }

// SetTitle updates the conversation title. Empty shows nothing.
func (h *Header) SetTitle(title string) { h.Title = title }

// SetGlyph updates the fullscreen toggle glyph.
func (h *Header) SetGlyph(glyph string) { h.Glyph = glyph }

// View renders the header.
func (h *Header) View() string {
	width := h.Width
	if width < 20 {
		width = 20
	}
	brand := h.theme.HeaderBrand.Render(h.Brand)
	glyph := h.theme.ShortcutKey.Render(h.Glyph)

	// Header style pads one cell on each side.
	inner := width - 2
	room := inner - lipgloss.Width(brand) - lipgloss.Width(glyph) - 4
	title := ""
	if h.Title != "" && room > 3 {
		t := h.Title
		if lipgloss.Width(t) > room {
			t = truncate(t, room)
		}
		title = h.theme.HeaderTitle.Render(t)
	}

	left := brand
	if title != "" {
		left += "  " + title
	}
	gap := inner - lipgloss.Width(left) - lipgloss.Width(glyph)
	if gap < 1 {
		gap = 1
	}
	line := left + lipgloss.NewStyle().Width(gap).Render("") + glyph
	return h.theme.Header.Width(width).Render(line)
}
