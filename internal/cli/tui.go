// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/sagechat-tui/internal/auth"
	"github.com/jeranaias/sagechat-tui/internal/history"
	"github.com/jeranaias/sagechat-tui/internal/layout"
	"github.com/jeranaias/sagechat-tui/internal/session"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
	"github.com/jeranaias/sagechat-tui/internal/ui/chat"
	"github.com/jeranaias/sagechat-tui/internal/ui/styles"
)

// tokenPoll is how often the auth gate re-reads the token to catch expiry.
const tokenPoll = 30 * time.Second

// RunTUI runs the full-screen chat until the user quits or ctx ends.
func RunTUI(ctx context.Context, app *App) error {
	if !IsTTY() || !IsStdoutTTY() {
		return errors.New("the chat interface needs a terminal; try `sagechat chat` or `sagechat ask`")
	}
	cfg := app.Config
	log := app.Log

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	theme := styles.NewTheme(cfg.UI.Theme)
	md, err := transcript.NewGlamour(cfg.UI.WrapWidth, theme.GlamourStyle())
	if err != nil {
		log.WithError(err).Warn("markdown renderer unavailable, using plain text")
		md = transcript.PlainMarkdown
	}
	tr := transcript.New(transcript.WithMarkdown(md))
	bridge := chat.NewBridge(app.LoggedIn)
	ctrl := app.NewController(bridge, tr)
	lay := layout.New(ctrl, ctrl.SidebarHandlers())

	if err := app.Bootstrap(ctx); err != nil {
		log.WithError(err).Warn("bootstrap failed")
		bridge.Notify("Could not reach the server: " + session.Describe(err))
	}
	if !app.LoggedIn() {
		tr.Placeholder(session.MsgLogin)
		bridge.SetInputEnabled(false)
	}

	g, gctx := errgroup.WithContext(ctx)

	// The gate starts the controller once a token is present and stops it
	// when the token is removed or expires.
	if err := app.File.Watch(); err != nil {
		log.WithError(err).Warn("token file watch unavailable; polling only")
	}
	gate := auth.NewGate(app.Tokens, ctrl, log)
	g.Go(func() error {
		gate.Run(gctx, app.File.Changed(), tokenPoll)
		return nil
	})

	if addr := cfg.Metrics.Addr; addr != "" {
		g.Go(func() error {
			if err := app.Metrics.Serve(gctx, addr, log); err != nil {
				log.WithError(err).Warn("metrics endpoint stopped")
			}
			return nil
		})
	}

	if cfg.UI.StartFullscreen {
		if lay.Toggle(ctx) {
			lay.Settle()
		}
	}

	m := chat.New(ctx, ctrl, tr, lay, bridge, theme, chat.Options{
		ModelName:      app.ModelName(),
		ConfirmDeletes: cfg.UI.ConfirmDeletes,
		Recall:         history.NewRecall(app.RecentPrompts(ctx, 200)),
		Log:            log,
	})

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, runErr := p.Run()

	cancel()
	ctrl.Cancel()
	_ = g.Wait()
	ctrl.Wait()

	if errors.Is(runErr, tea.ErrProgramKilled) {
		runErr = nil
	}
	if runErr != nil {
		return errors.Wrap(runErr, "run interface")
	}
	fmt.Fprintln(os.Stderr, DimStyle.Render(app.Usage.Summary().String()))
	return nil
}
