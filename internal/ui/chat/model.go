// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/sagechat-tui/internal/history"
	"github.com/jeranaias/sagechat-tui/internal/layout"
	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/session"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
	"github.com/jeranaias/sagechat-tui/internal/ui/components"
	"github.com/jeranaias/sagechat-tui/internal/ui/styles"
)

// Controller is the part of the session controller the TUI calls. Every
// method except Cancel, State and ConversationID may block on the network
// and is only called from commands.
type Controller interface {
	Submit(ctx context.Context, prompt string) error
	Cancel() bool
	State() session.State
	ConversationID() model.ID
	StartNewConversation(ctx context.Context, setup model.ConversationContext) error
	RenameConversation(ctx context.Context, id model.ID, title string) error
	UpdateContext(ctx context.Context, updates model.ConversationContext) error
	DeleteConversation(ctx context.Context, id model.ID) error
	FetchAndUpdateCredits(ctx context.Context)
}

type focusArea int

const (
	focusInput focusArea = iota
	focusMessages
	focusSidebar
)

// Options configures a Model.
type Options struct {
	// ModelName is the server's AI model, shown in the status bar.
	ModelName string
	// ConfirmDeletes asks y/n before deleting.
	ConfirmDeletes bool
	// Recall holds previously submitted prompts, newest first.
	Recall *history.Recall
	// Copy writes to the clipboard. Defaults to clipboard.WriteAll.
	Copy func(string) error
	Log  logrus.FieldLogger
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for sagechat.
type Model struct {
	ctx    context.Context
	ctrl   Controller
	tr     *transcript.Transcript
	layout *layout.Layout
	bridge *Bridge
	theme  *styles.Theme
	keys   KeyMap
	opts   Options
	recall *history.Recall
	log    logrus.FieldLogger

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	header   *components.Header
	status   *components.StatusBar
	sidebar  *components.Sidebar
	list     *components.MessageList

	width  int
	height int

	focus        focusArea
	selected     int
	sidebarArmed bool
	showHelp     bool
	quitting     bool

	version   uint64
	pending   bool
	streaming bool
	snap      Snapshot
	layoutVer int
	wrapWidth int
}

// New creates the model. ctx bounds every controller call the model makes.
func New(ctx context.Context, ctrl Controller, tr *transcript.Transcript, lay *layout.Layout, bridge *Bridge, theme *styles.Theme, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Message Sage..."
	ti.CharLimit = 8000
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: styles.SpinnerFrames,
		FPS:    styles.SpinnerFPS,
	}

	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	recall := opts.Recall
	if recall == nil {
		recall = history.NewRecall(nil)
	}

	status := components.NewStatusBar(theme)
	status.Model = opts.ModelName

	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		tr:       tr,
		layout:   lay,
		bridge:   bridge,
		theme:    theme,
		keys:     DefaultKeyMap(),
		opts:     opts,
		recall:   recall,
		log:      opts.Log,
		viewport: vp,
		input:    ti,
		spinner:  sp,
		header:   components.NewHeader(theme),
		status:   status,
		sidebar:  components.NewSidebar(theme),
		list:     components.NewMessageList(theme),
		selected: -1,
		snap:     Snapshot{InputEnabled: true},
	}
}

// Init starts the frame loop, the cursor blink and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, frameCmd())
}

// =============================================================================
// STATE ACCESSORS
// =============================================================================

// Focus reports which area has keyboard focus: "input", "messages" or
// "sidebar".
func (m Model) Focus() string {
	switch m.focus {
	case focusMessages:
		return "messages"
	case focusSidebar:
		return "sidebar"
	default:
		return "input"
	}
}

// InputValue returns the prompt input's text.
func (m Model) InputValue() string {
	return m.input.Value()
}

// Selected returns the selected message index, or -1.
func (m Model) Selected() int {
	return m.selected
}

// Quitting reports whether the model has asked the program to exit.
func (m Model) Quitting() bool {
	return m.quitting
}

// =============================================================================
// POLLING
// =============================================================================

// poll pulls controller and layout state into the model. It returns a
// command when a new notice needs an expiry timer.
func (m *Model) poll() tea.Cmd {
	var cmd tea.Cmd

	snap := m.bridge.Snapshot()
	if snap.ClearSeq != m.snap.ClearSeq {
		m.input.Reset()
		m.recall.Reset()
	}
	if snap.InputEnabled != m.snap.InputEnabled {
		if snap.InputEnabled && m.focus == focusInput {
			m.input.Focus()
		} else if !snap.InputEnabled {
			m.input.Blur()
		}
	}
	if snap.NoticeSeq != m.snap.NoticeSeq {
		m.status.SetNotice(snap.Notice)
		cmd = expireNoticeCmd(snap.NoticeSeq)
	}
	m.header.SetTitle(snap.Title)
	m.status.LoggedIn = snap.LoggedIn
	if snap.HasCredits {
		m.status.SetCredits(snap.Credits)
	}
	m.status.State = m.ctrl.State().String()
	m.snap = snap

	m.pollLayout()

	if v := m.tr.Version(); v != m.version || m.pending {
		m.version = v
		m.refreshTranscript()
	}
	return cmd
}

func (m *Model) pollLayout() {
	if m.layout == nil {
		return
	}
	v := m.layout.View()
	m.header.SetGlyph(v.Glyph)
	if n := m.layout.Renders(); n != m.layoutVer {
		m.layoutVer = n
		m.sidebar.SetItems(v.Items)
	}
	if !v.SidebarVisible && m.focus == focusSidebar {
		m.focusOn(focusInput)
	}
	m.resize()
}

// refreshTranscript rebuilds the viewport content from the transcript.
func (m *Model) refreshTranscript() {
	entries := m.tr.Snapshot()
	if m.selected >= len(entries) {
		m.selected = len(entries) - 1
	}

	m.pending, m.streaming = false, false
	for _, e := range entries {
		m.pending = m.pending || e.Pending
		m.streaming = m.streaming || e.Streaming
	}

	m.list.Entries = entries
	m.list.Width = m.viewport.Width
	m.list.SpinnerFrame = m.spinner.View()
	m.list.Selected = -1
	if m.focus == focusMessages {
		m.list.Selected = m.selected
	}
	m.list.Armed = -1
	if idx, ok := m.tr.PendingDelete(); ok {
		m.list.Armed = idx
	}

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.list.View())
	if atBottom || m.pending {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// SIZING
// =============================================================================

const (
	headerHeight = 1
	inputHeight  = 3
	statusHeight = 1
	promptLen    = 2
)

func (m Model) sidebarVisible() bool {
	return m.layout != nil && m.layout.View().SidebarVisible
}

// sidebarWidth is zero when the sidebar is hidden.
func (m Model) sidebarWidth() int {
	if !m.sidebarVisible() {
		return 0
	}
	w := m.width / 3
	if w > 36 {
		w = 36
	}
	if w < 18 {
		w = 18
	}
	return w
}

// resize recomputes component sizes. Cheap enough to call every frame.
func (m *Model) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	sw := m.sidebarWidth()
	if sw > 0 {
		// Sidebar border adds one column.
		sw++
	}
	vpWidth := m.width - sw
	if vpWidth < 20 {
		vpWidth = 20
	}
	vpHeight := m.height - headerHeight - inputHeight - statusHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	widthChanged := m.viewport.Width != vpWidth
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.sidebar.Width = m.sidebarWidth()
	m.sidebar.Height = vpHeight
	m.header.SetWidth(m.width)
	m.status.SetWidth(m.width)

	inputWidth := vpWidth - 4 - promptLen - 1
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.input.Width = inputWidth

	if widthChanged {
		m.rewrap(vpWidth)
		m.refreshTranscript()
	}
}

// rewrap swaps the markdown renderer for the new width.
func (m *Model) rewrap(width int) {
	wrap := width - 8
	if wrap < 20 {
		wrap = 20
	}
	if wrap == m.wrapWidth {
		return
	}
	m.wrapWidth = wrap
	md, err := transcript.NewGlamour(wrap, m.theme.GlamourStyle())
	if err != nil {
		m.log.WithError(err).Warn("markdown renderer unavailable, using plain text")
		md = transcript.PlainMarkdown
	}
	m.tr.SetMarkdown(md)
}

// focusOn moves keyboard focus and keeps the input's cursor in step.
func (m *Model) focusOn(f focusArea) {
	m.focus = f
	m.sidebarArmed = false
	m.sidebar.Editing = false
	if f == focusInput && m.snap.InputEnabled {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
	if f == focusMessages && m.selected < 0 {
		m.selected = m.tr.Len() - 1
	}
	m.refreshTranscript()
}
