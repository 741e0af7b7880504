// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/sagechat-tui/internal/api"
	"github.com/jeranaias/sagechat-tui/internal/auth"
	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/telemetry"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
)

// Repository is the slice of the API client the controller uses.
type Repository interface {
	ListConversations(ctx context.Context, token string) ([]model.ConversationSummary, error)
	GetConversation(ctx context.Context, id model.ID, token string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, token string, setup model.ConversationContext) (*model.Conversation, error)
	RenameConversation(ctx context.Context, id model.ID, title, token string) error
	SaveContext(ctx context.Context, id model.ID, setup model.ConversationContext, token string) error
	DeleteConversation(ctx context.Context, id model.ID, token string) error
	DeleteMessage(ctx context.Context, conversationID, messageID model.ID, token string) error
	SendMessage(ctx context.Context, r api.SendRequest) (*api.StreamResponse, error)
	GetProfile(ctx context.Context, token string) (*model.Profile, error)
}

// View is the part of the UI the controller drives directly. Calls may
// arrive from any goroutine.
type View interface {
	SetInputEnabled(enabled bool)
	ClearInput()
	SetCredits(credits int)
	SetTitle(title string)
	Notify(msg string)
}

// PromptHistory records submitted prompts for recall.
type PromptHistory interface {
	Add(ctx context.Context, prompt string) error
}

// State is the controller's current activity.
type State int

const (
	Idle State = iota
	LoadingList
	LoadingConversation
	Submitting
	Streaming
	Deleting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LoadingList:
		return "loading_list"
	case LoadingConversation:
		return "loading_conversation"
	case Submitting:
		return "submitting"
	case Streaming:
		return "streaming"
	case Deleting:
		return "deleting"
	default:
		return "unknown"
	}
}

// Busy reports whether the state holds the input controls.
func (s State) Busy() bool {
	return s == Submitting || s == Streaming || s == Deleting
}

// DefaultIdleTimeout ends a reply that has produced no bytes for this long.
const DefaultIdleTimeout = 120 * time.Second

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics records turns and credits.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithUsage records per-session usage.
func WithUsage(u *telemetry.UsageTracker) Option {
	return func(c *Controller) { c.usage = u }
}

// WithHistory stores submitted prompts.
func WithHistory(h PromptHistory) Option {
	return func(c *Controller) { c.history = h }
}

// WithIdleTimeout overrides DefaultIdleTimeout. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Controller) { c.idleTimeout = d }
}

// Controller runs the chat session.
type Controller struct {
	repo        Repository
	tokens      auth.TokenSource
	view        View
	tr          *transcript.Transcript
	log         logrus.FieldLogger
	metrics     *telemetry.Metrics
	usage       *telemetry.UsageTracker
	history     PromptHistory
	idleTimeout time.Duration

	credits singleflight.Group
	turn    *cancelManager
	wg      sync.WaitGroup

	mu          sync.Mutex
	state       State
	initialized bool
	stops       uint64
	baseCtx     context.Context
	stopBase    context.CancelFunc
	current     model.ID
	title       string
	balance     int
	haveBalance bool
}

// New creates a controller. Nothing is loaded until Start.
func New(repo Repository, tokens auth.TokenSource, view View, tr *transcript.Transcript, opts ...Option) *Controller {
	c := &Controller{
		repo:        repo,
		tokens:      tokens,
		view:        view,
		tr:          tr,
		log:         logrus.StandardLogger(),
		idleTimeout: DefaultIdleTimeout,
		turn:        newCancelManager(),
		baseCtx:     context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Start loads the latest conversation and the credit balance in the
// background. Calling it again while started does nothing.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return
	}
	c.initialized = true
	c.baseCtx, c.stopBase = context.WithCancel(ctx)
	c.mu.Unlock()

	c.log.Debug("session started")
	c.view.SetInputEnabled(true)
	c.Go(func(ctx context.Context) {
		if err := c.LoadLatestConversation(ctx); err != nil {
			c.log.WithError(err).Debug("initial load failed")
		}
	})
	c.Go(c.FetchAndUpdateCredits)
}

// Stop cancels in-flight work and shows the login notice.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return
	}
	c.initialized = false
	c.stops++
	stop := c.stopBase
	c.current = model.NoID
	c.title = ""
	c.mu.Unlock()

	c.turn.cancel()
	if stop != nil {
		stop()
	}
	c.log.Debug("session stopped")
	c.view.SetInputEnabled(false)
	c.view.SetTitle("")
	c.tr.Placeholder(MsgLogin)
}

// Started reports whether Start has run without a matching Stop.
func (c *Controller) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Go runs fn in the background with the session's context. The UI uses it
// for handlers that must not block the event loop.
func (c *Controller) Go(fn func(ctx context.Context)) {
	c.mu.Lock()
	ctx := c.baseCtx
	c.mu.Unlock()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(ctx)
	}()
}

// Wait blocks until background work started with Go has finished. It is
// for shutdown only, once nothing can call Go any more.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Cancel aborts the in-flight reply, if any.
func (c *Controller) Cancel() bool {
	return c.turn.cancel()
}

// =============================================================================
// STATE
// =============================================================================

// State returns the current activity.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConversationID returns the active conversation, or NoID.
func (c *Controller) ConversationID() model.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Title returns the active conversation's title.
func (c *Controller) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}

// Credits returns the last known balance.
func (c *Controller) Credits() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance, c.haveBalance
}

// begin moves from Idle to s. Busy states disable the input until finish.
func (c *Controller) begin(s State) bool {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return false
	}
	c.state = s
	c.mu.Unlock()
	if s.Busy() {
		c.view.SetInputEnabled(false)
	}
	return true
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// finish returns to Idle and always re-enables the input.
func (c *Controller) finish() {
	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()
	c.view.SetInputEnabled(true)
}

func (c *Controller) bind(id model.ID, title string) {
	c.mu.Lock()
	c.current = id
	c.title = title
	c.mu.Unlock()
	c.view.SetTitle(title)
}

// bindUnlessStopped is bind, skipped when Stop has run since stops was
// read from stopCount.
func (c *Controller) bindUnlessStopped(stops uint64, id model.ID, title string) bool {
	c.mu.Lock()
	if c.stops != stops {
		c.mu.Unlock()
		return false
	}
	c.current = id
	c.title = title
	c.mu.Unlock()
	c.view.SetTitle(title)
	return true
}

func (c *Controller) stopCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

// token fetches the bearer token, showing the login notice when there is
// none.
func (c *Controller) token() (string, error) {
	tok, err := auth.Require(c.tokens)
	if err != nil {
		c.view.Notify(MsgLogin)
		return "", api.ErrUnauthenticated
	}
	return tok, nil
}

// =============================================================================
// CREDITS
// =============================================================================

// FetchAndUpdateCredits refreshes the balance. Failures are logged and
// otherwise ignored. Concurrent calls share one request.
func (c *Controller) FetchAndUpdateCredits(ctx context.Context) {
	tok, ok := c.tokens.Token()
	if !ok {
		return
	}
	v, err, _ := c.credits.Do("credits", func() (any, error) {
		p, err := c.repo.GetProfile(ctx, tok)
		if err != nil {
			return nil, err
		}
		return p.Credits, nil
	})
	if err != nil {
		c.log.WithError(err).Warn("credit refresh failed")
		return
	}
	c.setCredits(v.(int))
}

func (c *Controller) setCredits(n int) {
	c.mu.Lock()
	c.balance = n
	c.haveBalance = true
	c.mu.Unlock()
	c.metrics.SetCredits(n)
	c.usage.RecordCredits(n)
	c.view.SetCredits(n)
}
