// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
)

// consoleView is the session.View for line-mode commands. Notices go to
// w; the balance is kept for the footer.
type consoleView struct {
	mu      sync.Mutex
	w       io.Writer
	credits int
	known   bool
	notices []string
}

func newConsoleView(w io.Writer) *consoleView {
	return &consoleView{w: w}
}

func (v *consoleView) SetInputEnabled(bool) {}

func (v *consoleView) ClearInput() {}

func (v *consoleView) SetCredits(credits int) {
	v.mu.Lock()
	v.credits, v.known = credits, true
	v.mu.Unlock()
}

func (v *consoleView) SetTitle(string) {}

func (v *consoleView) Notify(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	// Repeats of the same notice in a row are dropped.
	if n := len(v.notices); n > 0 && v.notices[n-1] == msg {
		return
	}
	v.notices = append(v.notices, msg)
	fmt.Fprintln(v.w, WarningStyle.Render(msg))
}

// Credits returns the last balance the controller reported.
func (v *consoleView) Credits() (int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.credits, v.known
}

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter writes an assistant reply to w as it grows. It is the
// transcript's change hook, so it only sees whole-content replacements and
// prints the suffix that is new since the last call.
type streamPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	tr      *transcript.Transcript
	key     uuid.UUID
	printed int
	enabled bool
}

func newStreamPrinter(w io.Writer) *streamPrinter {
	return &streamPrinter{w: w}
}

// Attach binds the printer to tr. Call before any reply streams.
func (p *streamPrinter) Attach(tr *transcript.Transcript) {
	p.mu.Lock()
	p.tr = tr
	p.mu.Unlock()
}

// Begin starts printing the next assistant reply.
func (p *streamPrinter) Begin() {
	p.mu.Lock()
	p.enabled = true
	p.key = uuid.Nil
	p.printed = 0
	p.mu.Unlock()
}

// End stops printing and terminates the line. It reports whether anything
// was printed.
func (p *streamPrinter) End() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = false
	if p.printed > 0 {
		fmt.Fprintln(p.w)
		return true
	}
	return false
}

// OnChange is installed with transcript.WithOnChange.
func (p *streamPrinter) OnChange() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled || p.tr == nil {
		return
	}
	e, ok := p.tr.At(p.tr.Len() - 1)
	if !ok || e.Kind != transcript.KindMessage || e.Role != model.RoleAssistant {
		return
	}
	if e.Key != p.key {
		p.key = e.Key
		p.printed = 0
	}
	// Content only grows while streaming; anything else was already shown.
	if len(e.Content) <= p.printed {
		return
	}
	io.WriteString(p.w, e.Content[p.printed:])
	p.printed = len(e.Content)
}
