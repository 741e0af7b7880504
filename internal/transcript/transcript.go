// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jeranaias/sagechat-tui/internal/model"
)

// Kind distinguishes chat messages from whole-transcript notices.
type Kind int

const (
	KindMessage Kind = iota
	KindNotice       // "start a conversation" and similar
	KindError        // replaces the transcript after a failed load
)

// LoadingIndicator is shown in a placeholder before any text arrives.
const LoadingIndicator = "..."

// ErrNoDeleteTarget is returned by RequestDelete for entries that cannot be
// deleted.
var ErrNoDeleteTarget = errors.New("message cannot be deleted")

// Entry is one rendered item. Handles returned by the Render methods stay
// valid until the entry is removed; mutate them only through their methods.
type Entry struct {
	Key      uuid.UUID
	Kind     Kind
	ID       model.ID
	Role     model.Role
	Content  string
	Body     string
	Pending  bool
	Err      string
	Index    int
	OnDelete func(index int)

	// Streaming is set while a reply arrives. Body then holds the last
	// markdown render followed by the raw text received since.
	Streaming bool

	drafted   string
	draftBody string
	t         *Transcript
}

// Deletable reports whether the entry has a delete affordance.
func (e Entry) Deletable() bool {
	return e.Kind == KindMessage && e.OnDelete != nil
}

// Text is the entry's body with styling removed.
func (e Entry) Text() string {
	return PlainText(e.Body)
}

// SetContent replaces the entry's content while a reply streams in. It does
// not run the markdown renderer; RenderStreaming and Settle do that.
func (e *Entry) SetContent(content string) {
	t := e.t
	t.mu.Lock()
	e.Content = content
	e.Pending = false
	e.Streaming = true
	if e.drafted != "" && strings.HasPrefix(content, e.drafted) {
		e.Body = e.draftBody + Escape(content[len(e.drafted):])
	} else {
		e.Body = Escape(content)
	}
	t.mu.Unlock()
	t.changed()
}

// Settle renders the streamed content once, outside the transcript lock.
// Call it when the reply has ended.
func (e *Entry) Settle() {
	t := e.t
	t.mu.Lock()
	if !e.Streaming {
		t.mu.Unlock()
		return
	}
	content, role, md := e.Content, e.Role, t.markdown
	t.mu.Unlock()

	body := renderWith(md, role, content)

	t.mu.Lock()
	if e.Content == content {
		e.Body = body
		e.Streaming = false
		e.drafted, e.draftBody = "", ""
	}
	t.mu.Unlock()
	t.changed()
}

// SetError shows msg in the entry's content area. Text already received is
// kept above it.
func (e *Entry) SetError(msg string) {
	t := e.t
	t.mu.Lock()
	e.Err = msg
	e.Pending = false
	t.mu.Unlock()
	t.changed()
}

// SetID binds the durable server id.
func (e *Entry) SetID(id model.ID) {
	t := e.t
	t.mu.Lock()
	e.ID = id
	t.mu.Unlock()
	t.changed()
}

// SetOnDelete attaches a delete affordance bound to the entry's index.
func (e *Entry) SetOnDelete(fn func(index int)) {
	e.t.mu.Lock()
	e.OnDelete = fn
	e.t.mu.Unlock()
}

// Option configures a Transcript.
type Option func(*Transcript)

// WithMarkdown sets the renderer for assistant content.
func WithMarkdown(fn MarkdownFunc) Option {
	return func(t *Transcript) {
		if fn != nil {
			t.markdown = fn
		}
	}
}

// WithDraftInterval sets the minimum time between RenderStreaming passes.
func WithDraftInterval(d time.Duration) Option {
	return func(t *Transcript) { t.draftEvery = d }
}

// WithOnChange registers the hook called after every mutation. It runs
// without the transcript lock held and must not block.
func WithOnChange(fn func()) Option {
	return func(t *Transcript) { t.onChange = fn }
}

// Transcript is the ordered list of entries shown for the active
// conversation. Safe for concurrent use.
type Transcript struct {
	mu       sync.Mutex
	entries  []*Entry
	armed    int
	markdown MarkdownFunc
	onChange func()
	version  uint64

	draftMu    sync.Mutex
	draftEvery time.Duration
	draftLast  time.Time
}

// DefaultDraftInterval bounds how often a streaming reply is re-rendered.
const DefaultDraftInterval = 250 * time.Millisecond

// New creates an empty transcript.
func New(opts ...Option) *Transcript {
	t := &Transcript{armed: -1, markdown: PlainMarkdown, draftEvery: DefaultDraftInterval}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetMarkdown swaps the renderer and re-renders every assistant entry. The
// TUI calls it when the terminal width changes.
func (t *Transcript) SetMarkdown(fn MarkdownFunc) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.markdown = fn
	for _, e := range t.entries {
		if e.Kind == KindMessage && !e.Pending && !e.Streaming {
			e.Body = t.render(e.Role, e.Content)
		}
	}
	t.mu.Unlock()
	t.changed()
}

// render must be called with mu held.
func (t *Transcript) render(role model.Role, content string) string {
	return renderWith(t.markdown, role, content)
}

func renderWith(md MarkdownFunc, role model.Role, content string) string {
	if role != model.RoleAssistant {
		return Escape(content)
	}
	out, err := md(content)
	if err != nil {
		return Escape(content)
	}
	return out
}

// RenderStreaming runs the markdown renderer over replies that are still
// streaming, at most once per draft interval. Rendering happens outside
// the transcript lock; a call made while another is running returns at
// once. It reports whether any entry was re-rendered.
func (t *Transcript) RenderStreaming() bool {
	if !t.draftMu.TryLock() {
		return false
	}
	defer t.draftMu.Unlock()

	type draft struct {
		e       *Entry
		role    model.Role
		content string
	}
	t.mu.Lock()
	if t.draftEvery > 0 && time.Since(t.draftLast) < t.draftEvery {
		t.mu.Unlock()
		return false
	}
	var drafts []draft
	for _, e := range t.entries {
		if e.Streaming && e.drafted != e.Content {
			drafts = append(drafts, draft{e, e.Role, e.Content})
		}
	}
	md := t.markdown
	t.mu.Unlock()
	if len(drafts) == 0 {
		return false
	}

	bodies := make([]string, len(drafts))
	for i, d := range drafts {
		bodies[i] = renderWith(md, d.role, d.content)
	}

	updated := false
	t.mu.Lock()
	t.draftLast = time.Now()
	for i, d := range drafts {
		e := d.e
		if !e.Streaming || !strings.HasPrefix(e.Content, d.content) {
			continue
		}
		e.drafted, e.draftBody = d.content, bodies[i]
		e.Body = bodies[i] + Escape(e.Content[len(d.content):])
		updated = true
	}
	t.mu.Unlock()
	if updated {
		t.changed()
	}
	return updated
}

func (t *Transcript) newEntry(kind Kind, role model.Role) *Entry {
	return &Entry{Key: uuid.New(), Kind: kind, Role: role, Index: len(t.entries), t: t}
}

func (t *Transcript) changed() {
	t.mu.Lock()
	t.version++
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// RenderMessage appends a message. Assistant content goes through the
// markdown renderer; user content is escaped. When onDelete is non-nil the
// entry gets a delete affordance that calls onDelete(index) once confirmed.
// A negative index means the entry's position.
func (t *Transcript) RenderMessage(role model.Role, content string, id model.ID, onDelete func(int), index int) *Entry {
	t.mu.Lock()
	t.dropNoticesLocked()
	e := t.newEntry(KindMessage, role)
	e.ID = id
	e.Content = content
	e.Body = t.render(role, content)
	e.OnDelete = onDelete
	if index >= 0 {
		e.Index = index
	}
	t.entries = append(t.entries, e)
	t.mu.Unlock()
	t.changed()
	return e
}

// RenderPlaceholder appends an assistant entry holding only a loading
// indicator.
func (t *Transcript) RenderPlaceholder() *Entry {
	t.mu.Lock()
	t.dropNoticesLocked()
	e := t.newEntry(KindMessage, model.RoleAssistant)
	e.Pending = true
	e.Body = LoadingIndicator
	t.entries = append(t.entries, e)
	t.mu.Unlock()
	t.changed()
	return e
}

// RenderError replaces the transcript with a single error node.
func (t *Transcript) RenderError(message string) {
	t.replace(KindError, message)
}

// Placeholder replaces the transcript with a notice, such as the prompt to
// start a conversation.
func (t *Transcript) Placeholder(text string) {
	t.replace(KindNotice, text)
}

func (t *Transcript) replace(kind Kind, text string) {
	t.mu.Lock()
	e := t.newEntry(kind, "")
	e.Index = 0
	e.Content = text
	e.Body = Escape(text)
	t.entries = []*Entry{e}
	t.armed = -1
	t.mu.Unlock()
	t.changed()
}

// dropNoticesLocked clears a notice or error before the first message is
// appended.
func (t *Transcript) dropNoticesLocked() {
	if len(t.entries) == 1 && t.entries[0].Kind != KindMessage {
		t.entries = nil
	}
}

// Clear removes every entry.
func (t *Transcript) Clear() {
	t.mu.Lock()
	t.entries = nil
	t.armed = -1
	t.mu.Unlock()
	t.changed()
}

// Truncate removes the entry at index and all later ones.
func (t *Transcript) Truncate(index int) {
	t.mu.Lock()
	if index < 0 {
		index = 0
	}
	if index < len(t.entries) {
		t.entries = t.entries[:index]
	}
	if t.armed >= index {
		t.armed = -1
	}
	t.mu.Unlock()
	t.changed()
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// At returns a copy of the entry at index.
func (t *Transcript) At(index int) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.entries) {
		return Entry{}, false
	}
	return *t.entries[index], true
}

// Handle returns the live entry at index for mutation.
func (t *Transcript) Handle(index int) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.entries) {
		return nil
	}
	return t.entries[index]
}

// Snapshot copies every entry for drawing.
func (t *Transcript) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = *e
	}
	return out
}

// Version increases on every mutation. The TUI compares it to skip redraws.
func (t *Transcript) Version() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

// HasMessages reports whether any chat message is shown.
func (t *Transcript) HasMessages() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.Kind == KindMessage {
			return true
		}
	}
	return false
}

// =============================================================================
// DELETE CONFIRMATION
// =============================================================================

// RequestDelete arms a confirmation for the entry at index.
func (t *Transcript) RequestDelete(index int) error {
	t.mu.Lock()
	if index < 0 || index >= len(t.entries) || !t.entries[index].Deletable() {
		t.mu.Unlock()
		return ErrNoDeleteTarget
	}
	t.armed = index
	t.mu.Unlock()
	t.changed()
	return nil
}

// PendingDelete returns the index awaiting confirmation.
func (t *Transcript) PendingDelete() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed, t.armed >= 0
}

// ConfirmDelete fires the armed entry's delete callback. It reports false
// when nothing was armed.
func (t *Transcript) ConfirmDelete() bool {
	t.mu.Lock()
	idx := t.armed
	t.armed = -1
	var fn func(int)
	var bound int
	if idx >= 0 && idx < len(t.entries) {
		fn = t.entries[idx].OnDelete
		bound = t.entries[idx].Index
	}
	t.mu.Unlock()
	t.changed()
	if fn == nil {
		return false
	}
	fn(bound)
	return true
}

// CancelDelete disarms a pending confirmation.
func (t *Transcript) CancelDelete() {
	t.mu.Lock()
	t.armed = -1
	t.mu.Unlock()
	t.changed()
}
