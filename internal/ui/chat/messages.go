// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// FrameInterval caps redraws while replies stream in (30fps).
const FrameInterval = 33 * time.Millisecond

// TransitionDuration is how long the fullscreen toggle stays disabled.
const TransitionDuration = 150 * time.Millisecond

// NoticeDuration is how long a status bar notice stays up.
const NoticeDuration = 4 * time.Second

// frameMsg drives polling of the transcript and bridge.
type frameMsg time.Time

// settleMsg ends a fullscreen transition.
type settleMsg struct{}

// toggledMsg reports a completed fullscreen toggle.
type toggledMsg struct{}

// layoutSyncedMsg reports that a toggle or refresh finished listing.
type layoutSyncedMsg struct{}

// opDoneMsg reports the end of a controller call made from a command.
type opDoneMsg struct {
	op  string
	err error
}

// copiedMsg reports a clipboard write.
type copiedMsg struct {
	err error
}

// noticeExpiredMsg clears the notice with the given sequence number.
type noticeExpiredMsg struct {
	seq uint64
}

func frameCmd() tea.Cmd {
	return tea.Tick(FrameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func settleCmd() tea.Cmd {
	return tea.Tick(TransitionDuration, func(time.Time) tea.Msg {
		return settleMsg{}
	})
}

func expireNoticeCmd(seq uint64) tea.Cmd {
	return tea.Tick(NoticeDuration, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}
