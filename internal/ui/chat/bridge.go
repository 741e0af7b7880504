// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
)

// Bridge implements session.View. The controller writes to it from any
// goroutine; the model reads a Snapshot on each frame.
type Bridge struct {
	mu       sync.Mutex
	snap     Snapshot
	loggedIn func() bool
}

// Snapshot is the UI state the controller has published.
type Snapshot struct {
	InputEnabled bool
	Credits      int
	HasCredits   bool
	Title        string
	Notice       string
	// NoticeSeq increments on every Notify, so repeated texts still count.
	NoticeSeq uint64
	// ClearSeq increments on every ClearInput.
	ClearSeq uint64
	LoggedIn bool
}

// NewBridge creates a bridge with input enabled. loggedIn, when set, is
// consulted on every snapshot.
func NewBridge(loggedIn func() bool) *Bridge {
	return &Bridge{snap: Snapshot{InputEnabled: true}, loggedIn: loggedIn}
}

// SetInputEnabled enables or disables the prompt input.
func (b *Bridge) SetInputEnabled(enabled bool) {
	b.mu.Lock()
	b.snap.InputEnabled = enabled
	b.mu.Unlock()
}

// ClearInput asks the model to empty the prompt input.
func (b *Bridge) ClearInput() {
	b.mu.Lock()
	b.snap.ClearSeq++
	b.mu.Unlock()
}

// SetCredits publishes the credit balance.
func (b *Bridge) SetCredits(credits int) {
	b.mu.Lock()
	b.snap.Credits = credits
	b.snap.HasCredits = true
	b.mu.Unlock()
}

// SetTitle publishes the active conversation title.
func (b *Bridge) SetTitle(title string) {
	b.mu.Lock()
	b.snap.Title = title
	b.mu.Unlock()
}

// Notify shows a transient notice in the status bar.
func (b *Bridge) Notify(msg string) {
	b.mu.Lock()
	b.snap.Notice = msg
	b.snap.NoticeSeq++
	b.mu.Unlock()
}

// Snapshot returns the current state.
func (b *Bridge) Snapshot() Snapshot {
	b.mu.Lock()
	s := b.snap
	b.mu.Unlock()
	if b.loggedIn != nil {
		s.LoggedIn = b.loggedIn()
	}
	return s
}
