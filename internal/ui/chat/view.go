// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	header := m.header.View()
	input := m.renderInput()
	status := m.status.View()

	available := m.height - lipgloss.Height(header) - lipgloss.Height(input) - lipgloss.Height(status)
	if available < 1 {
		available = 1
	}

	messages := m.viewport.View()
	if lipgloss.Height(messages) != available {
		messages = lipgloss.NewStyle().
			Height(available).
			MaxHeight(available).
			Width(m.viewport.Width).
			Render(messages)
	}

	body := messages
	if m.sidebarVisible() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar.View(), messages)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, input, status)
}

func (m Model) renderInput() string {
	style := m.theme.Input
	if !m.snap.InputEnabled {
		style = m.theme.InputDisabled
	}
	return style.Width(m.width - 2).Render(m.input.View())
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.theme.HeaderBrand.Render("sagechat keys"))
	b.WriteString("\n\n")
	for _, group := range m.keys.FullHelp() {
		for _, kb := range group {
			h := kb.Help()
			b.WriteString("  ")
			b.WriteString(m.theme.ShortcutKey.Width(10).Render(h.Key))
			b.WriteString(m.theme.ShortcutDesc.Render(h.Desc))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(m.theme.HeaderBrand.Render("Commands"))
	b.WriteString("\n\n")
	for _, usage := range CommandUsage() {
		b.WriteString("  " + m.theme.StatusValue.Render(usage) + "\n")
	}
	b.WriteString("\n" + m.theme.ShortcutDesc.Render("F1 or Esc to close"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, b.String())
}
