// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/sagechat-tui/internal/config"
	"github.com/jeranaias/sagechat-tui/internal/session"
)

// TUIFunc runs the full-screen chat.
type TUIFunc func(ctx context.Context, app *App) error

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath  string
	server      string
	logLevel    string
	metricsAddr string
	theme       string
}

// cmdState carries the App from PersistentPreRunE to the command bodies.
type cmdState struct {
	info  BuildInfo
	flags globalFlags
	app   *App
}

// NewRootCommand builds the sagechat command tree. tui runs when no
// subcommand is given.
func NewRootCommand(info BuildInfo, tui TUIFunc) *cobra.Command {
	rt := &cmdState{info: info}

	root := &cobra.Command{
		Use:           "sagechat",
		Short:         "Terminal client for the Sage storytelling assistant",
		Version:       info.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.setup()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tui == nil {
				return cmd.Help()
			}
			return tui(cmd.Context(), rt.app)
		},
	}
	root.SetVersionTemplate(info.String() + "\n")

	pf := root.PersistentFlags()
	pf.StringVar(&rt.flags.configPath, "config", "", "config file (default $SAGECHAT_HOME/config.toml)")
	pf.StringVar(&rt.flags.server, "server", "", "backend base URL")
	pf.StringVar(&rt.flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&rt.flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.StringVar(&rt.flags.theme, "theme", "", "color theme (auto, dark, light)")

	root.AddCommand(
		newAskCommand(rt),
		newChatCommand(rt),
		newConversationsCommand(rt),
		newCreditsCommand(rt),
		newBuyCommand(rt),
		newLoginCommand(rt),
		newLogoutCommand(rt),
		newWhoamiCommand(rt),
		newConfigCommand(rt),
		newHistoryCommand(rt),
	)
	// Cobra skips post-run hooks when RunE fails, so the App is closed
	// from a wrapper instead.
	closeAfterRun(root, rt.close)
	return root
}

func closeAfterRun(cmd *cobra.Command, closeFn func()) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(c *cobra.Command, args []string) error {
			defer closeFn()
			return run(c, args)
		}
	}
	for _, sub := range cmd.Commands() {
		closeAfterRun(sub, closeFn)
	}
}

// setup loads configuration, applies flag overrides and builds the App.
func (rt *cmdState) setup() error {
	var (
		cfg *config.Config
		err error
	)
	if rt.flags.configPath != "" {
		cfg, err = config.LoadFromPath(rt.flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if rt.flags.server != "" {
		cfg.Server.BaseURL = rt.flags.server
	}
	if rt.flags.logLevel != "" {
		cfg.Logging.Level = rt.flags.logLevel
	}
	if rt.flags.metricsAddr != "" {
		cfg.Metrics.Addr = rt.flags.metricsAddr
	}
	if rt.flags.theme != "" {
		cfg.UI.Theme = rt.flags.theme
	}
	if err := cfg.SetDefaults(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid flags")
	}
	config.SetGlobal(cfg)

	app, err := NewApp(cfg, rt.info)
	if err != nil {
		return err
	}
	rt.app = app
	return nil
}

func (rt *cmdState) close() {
	if rt.app == nil {
		return
	}
	if err := rt.app.Close(); err != nil {
		rt.app.Log.WithError(err).Debug("close")
	}
	rt.app = nil
}

// bootstrap fetches the server config and profile for commands that need
// them.
func (rt *cmdState) bootstrap(cmd *cobra.Command) error {
	return rt.app.Bootstrap(cmd.Context())
}

// reportedError marks an error the user has already been shown.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err}
}

// ErrorMessage returns the text main should print for err, or "" when the
// command already showed it.
func ErrorMessage(err error) string {
	var r reportedError
	if errors.As(err, &r) {
		return ""
	}
	return session.Describe(err)
}
