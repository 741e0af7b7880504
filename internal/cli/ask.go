// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/sagechat-tui/internal/api"
	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/session"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
	"github.com/jeranaias/sagechat-tui/internal/ui/styles"
)

type askOptions struct {
	conversation string
	cont         bool
	raw          bool
}

func newAskCommand(rt *cmdState) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send one message and print the reply",
		Long: `Send one message and print the reply.

The prompt is taken from the arguments, or from stdin when none are given
or the only argument is "-".

  sagechat ask "Describe a haunted lighthouse"
  echo "Name three rival guilds" | sagechat ask --continue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return runAsk(cmd, rt.app, prompt, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.conversation, "conversation", "c", "", "conversation ID to continue")
	f.BoolVar(&opts.cont, "continue", false, "continue the most recent conversation")
	f.BoolVar(&opts.raw, "raw", false, "stream plain text instead of rendered markdown")
	cmd.MarkFlagsMutuallyExclusive("conversation", "continue")
	return cmd
}

// readPrompt joins args, or reads stdin when there are none.
func readPrompt(in io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	if len(args) == 0 && isTerminal(in) {
		return "", errors.New("no prompt given")
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", errors.Wrap(err, "read prompt from stdin")
	}
	prompt := strings.TrimSpace(string(b))
	if prompt == "" {
		return "", session.ErrEmptyPrompt
	}
	return prompt, nil
}

func runAsk(cmd *cobra.Command, app *App, prompt string, opts askOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	printer := newStreamPrinter(out)
	trOpts := []transcript.Option{transcript.WithOnChange(printer.OnChange)}
	if !opts.raw {
		md, err := transcript.NewGlamour(app.Config.UI.WrapWidth, styles.NewTheme(app.Config.UI.Theme).GlamourStyle())
		if err != nil {
			app.Log.WithError(err).Debug("markdown renderer unavailable")
		} else {
			trOpts = append(trOpts, transcript.WithMarkdown(md))
		}
	}
	tr := transcript.New(trOpts...)
	printer.Attach(tr)

	view := newConsoleView(errOut)
	ctrl := app.NewController(view, tr)

	switch {
	case opts.conversation != "":
		if err := ctrl.LoadAndDisplayConversation(ctx, model.ID(opts.conversation)); err != nil {
			return err
		}
	case opts.cont:
		if err := ctrl.LoadLatestConversation(ctx); err != nil {
			return err
		}
	}

	if opts.raw {
		printer.Begin()
	}
	err := ctrl.Submit(ctx, prompt)
	if opts.raw {
		printer.End()
	}
	if errors.Is(err, api.ErrUnauthenticated) {
		return reported(err)
	}
	if err != nil {
		return err
	}

	if !opts.raw {
		if e, ok := tr.At(tr.Len() - 1); ok {
			fmt.Fprintln(out, strings.TrimRight(e.Body, "\n"))
		}
	}
	printFooter(errOut, ctrl, view)
	return nil
}

// printFooter shows the conversation and balance after a reply.
func printFooter(w io.Writer, ctrl *session.Controller, view *consoleView) {
	parts := []string{}
	if id := ctrl.ConversationID(); !id.IsZero() {
		title := ctrl.Title()
		if title == "" {
			title = session.MsgUntitled
		}
		parts = append(parts, fmt.Sprintf("conversation %s (%s)", id, title))
	}
	if n, ok := view.Credits(); ok {
		parts = append(parts, fmt.Sprintf("credits %d", n))
	}
	if len(parts) > 0 {
		fmt.Fprintln(w, DimStyle.Render(strings.Join(parts, " | ")))
	}
}
