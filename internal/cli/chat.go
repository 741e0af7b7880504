// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/sagechat-tui/internal/api"
	"github.com/jeranaias/sagechat-tui/internal/auth"
	"github.com/jeranaias/sagechat-tui/internal/history"
	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/session"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
	"github.com/jeranaias/sagechat-tui/internal/ui/chat"
	"github.com/jeranaias/sagechat-tui/internal/util"
)

// replHistoryLimit is how many stored prompts seed the line editor.
const replHistoryLimit = 200

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader is the line editor the REPL reads from. *liner.State
// satisfies it.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// newLineReader returns a liner editor on a terminal and a plain scanner
// otherwise.
func newLineReader(in io.Reader) lineReader {
	if !isTerminal(in) {
		return &scanReader{sc: bufio.NewScanner(in)}
	}
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return line
}

// scanReader reads piped input one line at a time.
type scanReader struct {
	sc *bufio.Scanner
}

func (r *scanReader) Prompt(string) (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scanReader) AppendHistory(string) {}

func (r *scanReader) Close() error { return nil }

// =============================================================================
// COMMAND
// =============================================================================

func newChatCommand(rt *cmdState) *cobra.Command {
	var conversation string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat line by line without the full-screen interface",
		Long: `Chat line by line without the full-screen interface.

Type a message and press Enter. Replies stream as they arrive.
Ctrl+C cancels a reply; Ctrl+D or /quit exits. Type /help for commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := newREPL(rt.app, cmd.OutOrStdout(), cmd.ErrOrStderr())
			r.in = newLineReader(cmd.InOrStdin())
			return r.run(cmd.Context(), model.ID(conversation))
		},
	}
	cmd.Flags().StringVarP(&conversation, "conversation", "c", "", "conversation ID to open (default: most recent)")
	return cmd
}

// repl is one line-mode chat session.
type repl struct {
	app     *App
	ctrl    *session.Controller
	tr      *transcript.Transcript
	view    *consoleView
	printer *streamPrinter
	in      lineReader
	out     io.Writer
	errOut  io.Writer
}

func newREPL(app *App, out, errOut io.Writer) *repl {
	printer := newStreamPrinter(out)
	tr := transcript.New(transcript.WithOnChange(printer.OnChange))
	printer.Attach(tr)
	view := newConsoleView(errOut)
	return &repl{
		app:     app,
		ctrl:    app.NewController(view, tr),
		tr:      tr,
		view:    view,
		printer: printer,
		out:     out,
		errOut:  errOut,
	}
}

func (r *repl) run(ctx context.Context, id model.ID) error {
	defer r.in.Close()

	if _, err := auth.Require(r.app.Tokens); err != nil {
		fmt.Fprintln(r.errOut, WarningStyle.Render(session.MsgLogin))
		return reported(err)
	}

	for _, p := range reverse(r.app.RecentPrompts(ctx, replHistoryLimit)) {
		r.in.AppendHistory(p)
	}

	// Ctrl+C while a reply streams cancels only that reply.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for range sigs {
			if r.ctrl.Cancel() {
				fmt.Fprintln(r.errOut, "\n"+WarningStyle.Render(session.MsgCancelled))
			}
		}
	}()

	// Load failures land in the transcript, which is printed below.
	if id.IsZero() {
		_ = r.ctrl.LoadLatestConversation(ctx)
	} else {
		_ = r.ctrl.LoadAndDisplayConversation(ctx, id)
	}
	r.printWelcome()
	r.printTranscript()

	for {
		line, err := r.in.Prompt(PromptStyle.Render("sage> "))
		if err != nil {
			// Ctrl+C at the prompt and Ctrl+D both end the session.
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				r.printSummary()
				return nil
			}
			return errors.Wrap(err, "read input")
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.in.AppendHistory(line)

		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			r.printSummary()
			return nil
		}
		if strings.HasPrefix(line, "/") {
			if quit := r.command(ctx, line); quit {
				r.printSummary()
				return nil
			}
			continue
		}
		r.send(ctx, line)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// send submits one prompt and streams the reply.
func (r *repl) send(ctx context.Context, prompt string) {
	fmt.Fprint(r.out, AssistantStyle.Render("Sage")+" ")
	r.printer.Begin()
	err := r.ctrl.Submit(ctx, prompt)
	if !r.printer.End() {
		fmt.Fprintln(r.out)
	}
	if err != nil && !errors.Is(err, api.ErrUnauthenticated) && !errors.Is(err, context.Canceled) {
		r.printError(err)
	}
}

// command runs a slash command and reports whether the REPL should exit.
func (r *repl) command(ctx context.Context, line string) bool {
	c, _ := chat.ParseCommand(line)
	switch c.Name {
	case "quit", "q", "exit":
		return true

	case "help", "h":
		r.printHelp()

	case "new":
		setup, bad := chat.ParseContext(c.Args)
		if len(bad) > 0 {
			r.printError(errors.Errorf("unknown context %s; use %s",
				strings.Join(bad, ", "), strings.Join(model.ContextKeys, ", ")))
			return false
		}
		// The controller reports failures through the view.
		if err := r.ctrl.StartNewConversation(ctx, setup); err != nil {
			return false
		}
		fmt.Fprintln(r.out, SuccessStyle.Render("Started a new conversation."))
		r.printTranscript()

	case "list", "ls":
		tok, err := auth.Require(r.app.Tokens)
		if err != nil {
			r.printError(err)
			return false
		}
		convs, err := r.app.Client.ListConversations(ctx, tok)
		if err != nil {
			r.printError(err)
			return false
		}
		printConversations(r.out, convs, r.ctrl.ConversationID())

	case "open":
		if c.Args == "" {
			r.printUsage("/open <id>")
			return false
		}
		_ = r.ctrl.LoadAndDisplayConversation(ctx, model.ID(c.Args))
		r.printTranscript()

	case "show":
		r.printTranscript()

	case "rename":
		id := r.ctrl.ConversationID()
		if id.IsZero() {
			r.printError(errors.New("nothing to rename yet; send a message first"))
			return false
		}
		if c.Args == "" {
			r.printUsage("/rename <title>")
			return false
		}
		_ = r.ctrl.RenameConversation(ctx, id, c.Args)

	case "context":
		updates, bad := chat.ParseContextUpdate(c.Args)
		if len(bad) > 0 {
			r.printError(errors.Errorf("unknown context %s; use %s",
				strings.Join(bad, ", "), strings.Join(model.ContextKeys, ", ")))
			return false
		}
		if len(updates) == 0 {
			r.printUsage("/context key=value ...")
			return false
		}
		_ = r.ctrl.UpdateContext(ctx, updates)

	case "delete":
		id := r.ctrl.ConversationID()
		if id.IsZero() {
			r.printError(errors.New("no conversation is open"))
			return false
		}
		if r.app.Config.UI.ConfirmDeletes {
			answer, err := r.in.Prompt(fmt.Sprintf("Delete %q? [y/N]: ", r.ctrl.Title()))
			if err != nil || !isYes(answer) {
				fmt.Fprintln(r.out, DimStyle.Render("Delete cancelled."))
				return false
			}
		}
		if err := r.ctrl.DeleteConversation(ctx, id); err == nil {
			r.printTranscript()
		}

	case "credits":
		r.ctrl.FetchAndUpdateCredits(ctx)
		if n, ok := r.view.Credits(); ok {
			fmt.Fprintln(r.out, RenderField("Credits", fmt.Sprint(n)))
		} else {
			fmt.Fprintln(r.out, DimStyle.Render("Balance unavailable."))
		}

	case "history":
		r.printHistory(ctx, c.Args)

	default:
		r.printError(errors.Errorf("unknown command /%s; type /help", c.Name))
	}
	return false
}

// =============================================================================
// OUTPUT
// =============================================================================

func (r *repl) printWelcome() {
	title := r.ctrl.Title()
	if title == "" {
		title = "new conversation"
	}
	fmt.Fprintln(r.out, TitleStyle.Render("sagechat")+" "+DimStyle.Render(title))
	fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands, Ctrl+D to exit."))
	fmt.Fprintln(r.out)
}

// printTranscript writes every entry as plain text.
func (r *repl) printTranscript() {
	for _, e := range r.tr.Snapshot() {
		switch e.Kind {
		case transcript.KindNotice:
			fmt.Fprintln(r.out, DimStyle.Render(e.Content))
		case transcript.KindError:
			fmt.Fprintln(r.out, ErrorStyle.Render(e.Content))
		default:
			label := UserStyle.Render(e.Role.DisplayName())
			if e.Role == model.RoleAssistant {
				label = AssistantStyle.Render(e.Role.DisplayName())
			}
			fmt.Fprintln(r.out, label+" "+e.Content)
			if e.Err != "" {
				fmt.Fprintln(r.out, ErrorStyle.Render(e.Err))
			}
		}
	}
	if r.tr.Len() > 0 {
		fmt.Fprintln(r.out)
	}
}

func (r *repl) printHistory(ctx context.Context, query string) {
	if r.app.History == nil {
		r.printError(errors.New("prompt history is disabled"))
		return
	}
	entries := r.app.RecentPrompts(ctx, 20)
	if query != "" {
		found, err := r.app.History.Search(ctx, query, 20)
		if err != nil {
			r.printError(err)
			return
		}
		entries = history.Texts(found)
	}
	if len(entries) == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("No matching prompts."))
		return
	}
	for i, text := range entries {
		fmt.Fprintf(r.out, "%3d  %s\n", i+1, util.TruncateWidth(util.FirstLine(text), GetTerminalWidth()-6))
	}
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.out, TitleStyle.Render("Commands"))
	for _, line := range [][2]string{
		{"/new [goal=...]", "start a conversation (goal, genre_tone, game_system, key_details)"},
		{"/list", "list conversations"},
		{"/open <id>", "open a conversation"},
		{"/show", "print the current conversation"},
		{"/rename <title>", "rename the current conversation"},
		{"/context key=value", "edit the story context; key= clears a key"},
		{"/delete", "delete the current conversation"},
		{"/credits", "refresh the credit balance"},
		{"/history [query]", "search submitted prompts"},
		{"/quit", "exit"},
	} {
		fmt.Fprintf(r.out, "  %-18s %s\n", line[0], DimStyle.Render(line[1]))
	}
}

func (r *repl) printUsage(usage string) {
	fmt.Fprintln(r.errOut, WarningStyle.Render("Usage: "+usage))
}

func (r *repl) printError(err error) {
	fmt.Fprintln(r.errOut, ErrorStyle.Render("Error:")+" "+session.Describe(err))
}

func (r *repl) printSummary() {
	fmt.Fprintln(r.errOut, DimStyle.Render(r.app.Usage.Summary().String()))
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "y" || s == "yes"
}

// reverse returns items oldest first, the order the line editor expects.
func reverse(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[len(items)-1-i] = s
	}
	return out
}
