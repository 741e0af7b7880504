// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package layout

import (
	"context"
	"sync"

	"github.com/jeranaias/sagechat-tui/internal/model"
)

// Zoom glyphs shown on the toggle control.
const (
	GlyphEnter = "⤢"
	GlyphExit  = "⤡"
)

// Mode is the top-level mode flag.
type Mode string

const (
	ModeNormal     Mode = "normal"
	ModeFullscreen Mode = "fullscreen"
)

// State tracks whether a toggle animation is still running.
type State int

const (
	Idle State = iota
	Transitioning
)

func (s State) String() string {
	if s == Transitioning {
		return "transitioning"
	}
	return "idle"
}

// Item is one sidebar row. Err is set on a single row when the list could
// not be loaded.
type Item struct {
	ID     model.ID
	Title  string
	Active bool
	Err    string

	OnSelect func(ctx context.Context)
	OnRename func(ctx context.Context, title string)
	OnDelete func(ctx context.Context)
}

// Source lists the conversations for the sidebar with the active one
// marked.
type Source interface {
	ListSidebar(ctx context.Context) []Item
}

// Handlers are bound to every rendered row. They block until the action
// is done, so callers run them off the UI goroutine.
type Handlers struct {
	Select func(ctx context.Context, id model.ID)
	Rename func(ctx context.Context, id model.ID, title string)
	Delete func(ctx context.Context, id model.ID)
}

// View is what the TUI draws.
type View struct {
	Mode           Mode
	SidebarVisible bool
	Glyph          string
	State          State
	Items          []Item
}

// Layout owns the fullscreen flag. Safe for concurrent use.
type Layout struct {
	src      Source
	handlers Handlers

	mu         sync.Mutex
	fullscreen bool
	applied    bool
	state      State
	view       View
	renders    int
}

// New creates a layout in normal mode.
func New(src Source, h Handlers) *Layout {
	l := &Layout{src: src, handlers: h}
	l.view = View{Mode: ModeNormal, Glyph: GlyphEnter}
	return l
}

// Fullscreen reports the current flag.
func (l *Layout) Fullscreen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fullscreen
}

// Toggle flips the flag and syncs. While a transition is in progress it does
// nothing and reports false; call Settle when the animation ends.
func (l *Layout) Toggle(ctx context.Context) bool {
	l.mu.Lock()
	if l.state == Transitioning {
		l.mu.Unlock()
		return false
	}
	l.fullscreen = !l.fullscreen
	l.state = Transitioning
	l.view.State = Transitioning
	l.mu.Unlock()

	l.Sync(ctx)
	return true
}

// Settle ends the transition started by Toggle.
func (l *Layout) Settle() {
	l.mu.Lock()
	l.state = Idle
	l.view.State = Idle
	l.mu.Unlock()
}

// Sync applies the flag to the view. It is idempotent; the sidebar is
// re-rendered only on entry into fullscreen, since the list may have changed
// while it was hidden.
func (l *Layout) Sync(ctx context.Context) {
	l.mu.Lock()
	fs := l.fullscreen
	entering := fs && !l.applied
	l.applied = fs
	l.view.SidebarVisible = fs
	if fs {
		l.view.Mode = ModeFullscreen
		l.view.Glyph = GlyphExit
	} else {
		l.view.Mode = ModeNormal
		l.view.Glyph = GlyphEnter
	}
	l.mu.Unlock()

	if entering {
		l.render(ctx)
	}
}

// Refresh re-renders the sidebar if it is visible. Used after a rename or
// delete made from the sidebar itself.
func (l *Layout) Refresh(ctx context.Context) {
	if l.Fullscreen() {
		l.render(ctx)
	}
}

func (l *Layout) render(ctx context.Context) {
	var items []Item
	if l.src != nil {
		items = l.src.ListSidebar(ctx)
	}
	for i := range items {
		l.wire(&items[i])
	}

	l.mu.Lock()
	l.view.Items = items
	l.renders++
	l.mu.Unlock()
}

func (l *Layout) wire(it *Item) {
	if it.Err != "" || it.ID.IsZero() {
		return
	}
	id := it.ID
	if h := l.handlers.Select; h != nil {
		it.OnSelect = func(ctx context.Context) { h(ctx, id) }
	}
	if h := l.handlers.Rename; h != nil {
		it.OnRename = func(ctx context.Context, title string) { h(ctx, id, title) }
	}
	if h := l.handlers.Delete; h != nil {
		it.OnDelete = func(ctx context.Context) { h(ctx, id) }
	}
}

// View returns a copy of the current view state.
func (l *Layout) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := l.view
	v.Items = append([]Item(nil), l.view.Items...)
	return v
}

// Renders counts sidebar re-renders.
func (l *Layout) Renders() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.renders
}
