// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/jeranaias/sagechat-tui/internal/api"
	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/session"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case frameMsg:
		cmd := m.poll()
		return m, tea.Batch(cmd, m.renderDraftsCmd(), frameCmd())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case settleMsg:
		if m.layout != nil {
			m.layout.Settle()
		}
		return m, nil

	case toggledMsg:
		m.pollLayout()
		return m, settleCmd()

	case layoutSyncedMsg:
		m.pollLayout()
		return m, nil

	case opDoneMsg:
		return m.handleOpDone(msg)

	case copiedMsg:
		if msg.err != nil {
			m.log.WithError(msg.err).Warn("clipboard write failed")
			m.bridge.Notify("Could not copy: " + msg.err.Error())
		} else {
			m.bridge.Notify("Copied to clipboard.")
		}
		return m, nil

	case noticeExpiredMsg:
		if msg.seq == m.snap.NoticeSeq {
			m.status.SetNotice("")
		}
		return m, nil
	}
	return m, nil
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(m.width, m.height)
	m.resize()
	return m, nil
}

// handleOpDone surfaces errors the controller does not present itself.
func (m Model) handleOpDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err == nil {
		return m, nil
	}
	switch {
	case errors.Is(msg.err, session.ErrBusy):
		m.bridge.Notify(session.MsgBusy)
	case errors.Is(msg.err, session.ErrEmptyPrompt),
		errors.Is(msg.err, api.ErrUnauthenticated):
		// Nothing to send, or the login notice is already up.
	default:
		m.log.WithError(msg.err).WithField("op", msg.op).Debug("operation failed")
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.ctrl.Cancel()
		m.quitting = true
		return m, tea.Quit
	}
	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Cancel) {
			m.showHelp = false
		}
		return m, nil
	}

	// An armed message delete takes every key until answered.
	if _, armed := m.tr.PendingDelete(); armed {
		return m.handleConfirmDelete(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.Fullscreen):
		return m.toggleFullscreen()
	case key.Matches(msg, m.keys.Focus) && !m.sidebar.Editing:
		m.focusOn(m.nextFocus())
		return m, nil
	}

	switch m.focus {
	case focusMessages:
		return m.handleMessagesKey(msg)
	case focusSidebar:
		return m.handleSidebarKey(msg)
	default:
		return m.handleInputKey(msg)
	}
}

func (m Model) nextFocus() focusArea {
	switch m.focus {
	case focusInput:
		if m.tr.HasMessages() {
			return focusMessages
		}
		if m.sidebarVisible() {
			return focusSidebar
		}
	case focusMessages:
		if m.sidebarVisible() {
			return focusSidebar
		}
	}
	return focusInput
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		if m.ctrl.Cancel() {
			m.bridge.Notify(session.MsgCancelled)
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.HistoryPrev):
		if text, ok := m.recall.Prev(m.input.Value()); ok {
			m.input.SetValue(text)
			m.input.CursorEnd()
		}
		return m, nil
	case key.Matches(msg, m.keys.HistoryNext):
		if text, ok := m.recall.Next(); ok {
			m.input.SetValue(text)
			m.input.CursorEnd()
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	if !m.snap.InputEnabled {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit runs a slash command or sends the prompt. The input is cleared by
// the controller once the reply settles, so a failed send keeps the text.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.runCommand(text)
	}
	if !m.snap.InputEnabled || m.ctrl.State().Busy() {
		m.bridge.Notify(session.MsgBusy)
		return m, nil
	}

	m.recall.Push(text)
	// Disable right away; the controller re-enables when the turn settles.
	m.snap.InputEnabled = false
	m.input.Blur()

	ctx, ctrl := m.ctx, m.ctrl
	return m, func() tea.Msg {
		return opDoneMsg{op: "submit", err: ctrl.Submit(ctx, text)}
	}
}

func (m Model) handleMessagesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.focusOn(focusInput)
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
		m.refreshTranscript()
	case key.Matches(msg, m.keys.Down):
		if m.selected < m.tr.Len()-1 {
			m.selected++
		}
		m.refreshTranscript()
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
	case key.Matches(msg, m.keys.Copy):
		return m, m.copySelected()
	case key.Matches(msg, m.keys.Delete):
		m.deleteSelected()
	}
	return m, nil
}

func (m Model) copySelected() tea.Cmd {
	e, ok := m.tr.At(m.selected)
	if !ok || strings.TrimSpace(e.Content) == "" {
		return nil
	}
	copyFn, text := m.opts.Copy, e.Content
	return func() tea.Msg {
		return copiedMsg{err: copyFn(text)}
	}
}

// deleteSelected arms the transcript's confirmation, or fires it straight
// away when confirmations are off.
func (m *Model) deleteSelected() {
	e, ok := m.tr.At(m.selected)
	if !ok {
		return
	}
	if e.ID.IsZero() {
		m.bridge.Notify(session.MsgWait)
		return
	}
	if err := m.tr.RequestDelete(m.selected); err != nil {
		m.bridge.Notify("That message cannot be deleted.")
		return
	}
	if !m.opts.ConfirmDeletes {
		m.tr.ConfirmDelete()
	}
	m.refreshTranscript()
}

func (m Model) handleConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.tr.ConfirmDelete()
		m.focusOn(focusInput)
	case key.Matches(msg, m.keys.Deny):
		m.tr.CancelDelete()
	}
	m.refreshTranscript()
	return m, nil
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.sidebar.Editing {
		return m.handleRenameKey(msg)
	}
	it, ok := m.sidebar.Current()

	if m.sidebarArmed {
		m.sidebarArmed = false
		if key.Matches(msg, m.keys.Confirm) && ok && it.OnDelete != nil {
			return m, m.sidebarActionCmd(it.OnDelete)
		}
		m.bridge.Notify("Delete cancelled.")
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.focusOn(focusInput)
	case key.Matches(msg, m.keys.Up):
		m.sidebar.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.sidebar.MoveDown()
	case key.Matches(msg, m.keys.Open):
		if ok && it.OnSelect != nil {
			m.focusOn(focusInput)
			return m, m.sidebarActionCmd(it.OnSelect)
		}
	case key.Matches(msg, m.keys.Rename):
		if ok && it.OnRename != nil {
			m.sidebar.Editing = true
			m.sidebar.Renaming = it.Title
		}
	case key.Matches(msg, m.keys.Remove):
		if ok && it.OnDelete != nil {
			if !m.opts.ConfirmDeletes {
				return m, m.sidebarActionCmd(it.OnDelete)
			}
			m.sidebarArmed = true
			m.bridge.Notify("Delete \"" + it.Title + "\"? (y/n)")
		}
	}
	return m, nil
}

func (m Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.sidebar.Editing = false
	case tea.KeyEnter:
		m.sidebar.Editing = false
		title := strings.TrimSpace(m.sidebar.Renaming)
		if it, ok := m.sidebar.Current(); ok && it.OnRename != nil && title != "" {
			rename := it.OnRename
			return m, m.sidebarActionCmd(func(ctx context.Context) { rename(ctx, title) })
		}
	case tea.KeyBackspace:
		if r := []rune(m.sidebar.Renaming); len(r) > 0 {
			m.sidebar.Renaming = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.sidebar.Renaming += " "
	case tea.KeyRunes:
		if len([]rune(m.sidebar.Renaming)) < model.MaxRenameLength {
			m.sidebar.Renaming += string(msg.Runes)
		}
	}
	return m, nil
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m Model) toggleFullscreen() (tea.Model, tea.Cmd) {
	if m.layout == nil {
		return m, nil
	}
	lay, ctx := m.layout, m.ctx
	return m, func() tea.Msg {
		if !lay.Toggle(ctx) {
			return nil
		}
		return toggledMsg{}
	}
}

// renderDraftsCmd re-renders a streaming reply's markdown off the update
// loop. The transcript throttles and serializes these passes.
func (m Model) renderDraftsCmd() tea.Cmd {
	if !m.streaming {
		return nil
	}
	tr := m.tr
	return func() tea.Msg {
		tr.RenderStreaming()
		return nil
	}
}

// sidebarActionCmd runs a row action and then re-lists the sidebar so it
// reflects that action only.
func (m Model) sidebarActionCmd(action func(ctx context.Context)) tea.Cmd {
	lay, ctx := m.layout, m.ctx
	return func() tea.Msg {
		action(ctx)
		if lay == nil {
			return nil
		}
		lay.Refresh(ctx)
		return layoutSyncedMsg{}
	}
}
