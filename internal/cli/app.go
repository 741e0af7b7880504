// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/sagechat-tui/internal/api"
	"github.com/jeranaias/sagechat-tui/internal/auth"
	"github.com/jeranaias/sagechat-tui/internal/config"
	"github.com/jeranaias/sagechat-tui/internal/history"
	"github.com/jeranaias/sagechat-tui/internal/logging"
	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/session"
	"github.com/jeranaias/sagechat-tui/internal/telemetry"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
)

// BuildInfo is stamped in by the linker.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("sagechat %s (%s, %s) %s/%s", b.Version, b.Commit, b.Date, runtime.GOOS, runtime.GOARCH)
}

// App holds the long-lived services every command shares.
type App struct {
	Config  *config.Config
	Log     *logrus.Logger
	Client  *api.Client
	Tokens  auth.TokenSource
	File    *auth.FileToken
	Metrics *telemetry.Metrics
	Usage   *telemetry.UsageTracker
	History *history.Store

	// Remote is the server's published configuration. Nil until Bootstrap.
	Remote *model.AppConfig
	// Profile is the account at startup. Nil when logged out.
	Profile *model.Profile

	closers []io.Closer
}

// NewApp builds the services described by cfg. The caller must Close it.
func NewApp(cfg *config.Config, info BuildInfo) (*App, error) {
	log, logCloser, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return nil, errors.Wrap(err, "set up logging")
	}
	a := &App{
		Config:  cfg,
		Log:     log,
		Metrics: telemetry.NewMetrics(),
		Usage:   telemetry.NewUsageTracker(),
	}
	if logCloser != nil {
		a.closers = append(a.closers, logCloser)
	}

	a.Client = api.NewClient(cfg.Server.BaseURL,
		api.WithTimeout(cfg.Server.RequestTimeout()),
		api.WithMaxRetries(cfg.Server.MaxRetries),
		api.WithRateLimit(cfg.Server.RateLimit, cfg.Server.Burst),
		api.WithLogger(log),
		api.WithMetrics(a.Metrics),
		api.WithUserAgent("sagechat/"+info.Version),
	)

	file, err := auth.NewFileToken(cfg.Auth.TokenFile, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.File = file
	a.closers = append(a.closers, file)

	// A literal token from the environment wins over the stored one.
	var chain auth.Chain
	if tok := cfg.Auth.Token; tok != "" {
		initial := &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}
		if exp, ok := auth.ExpiresAt(tok); ok {
			initial.Expiry = exp
		}
		chain = append(chain, auth.NewOAuth2Token(initial, auth.StaticOAuth2(tok)))
	}
	a.Tokens = append(chain, file)

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path, cfg.History.MaxEntries, log)
		if err != nil {
			// History is a convenience; run without it.
			log.WithError(err).Warn("prompt history unavailable")
		} else {
			a.History = store
			a.closers = append(a.closers, store)
		}
	}
	return a, nil
}

// Bootstrap fetches the server configuration and, when logged in, the
// profile. A failed profile fetch is logged, not returned.
func (a *App) Bootstrap(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		remote, err := a.Client.GetAppConfig(gctx)
		if err != nil {
			return errors.Wrap(err, "fetch server config")
		}
		a.Remote = remote
		return nil
	})
	if tok, ok := a.Tokens.Token(); ok {
		g.Go(func() error {
			p, err := a.Client.GetProfile(gctx, tok)
			if err != nil {
				a.Log.WithError(err).Debug("profile fetch failed")
				return nil
			}
			a.Profile = p
			a.Metrics.SetCredits(p.Credits)
			return nil
		})
	}
	return g.Wait()
}

// AuthURL returns the identity provider base URL. The local setting wins
// over the server's.
func (a *App) AuthURL() string {
	if a.Config.Auth.AuthURL != "" {
		return a.Config.Auth.AuthURL
	}
	return a.Remote.AuthBaseURL()
}

// ModelName is the server's AI model, or "" before Bootstrap.
func (a *App) ModelName() string {
	if a.Remote == nil {
		return ""
	}
	return a.Remote.AIModelName
}

// LoggedIn reports whether a usable token is present.
func (a *App) LoggedIn() bool {
	_, ok := a.Tokens.Token()
	return ok
}

// NewController creates a session controller bound to view and tr.
func (a *App) NewController(view session.View, tr *transcript.Transcript) *session.Controller {
	opts := []session.Option{
		session.WithLogger(a.Log),
		session.WithMetrics(a.Metrics),
		session.WithUsage(a.Usage),
		session.WithIdleTimeout(a.Config.Server.StreamIdleTimeout()),
	}
	if a.History != nil {
		opts = append(opts, session.WithHistory(a.History))
	}
	return session.New(a.Client, a.Tokens, view, tr, opts...)
}

// RecentPrompts returns up to limit stored prompts, newest first.
func (a *App) RecentPrompts(ctx context.Context, limit int) []string {
	if a.History == nil {
		return nil
	}
	entries, err := a.History.Recent(ctx, limit)
	if err != nil {
		a.Log.WithError(err).Debug("read prompt history")
		return nil
	}
	return history.Texts(entries)
}

// Close releases everything NewApp opened, newest first.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
