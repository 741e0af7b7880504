// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/sagechat-tui/internal/auth"
	"github.com/jeranaias/sagechat-tui/internal/export"
	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/session"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
	"github.com/jeranaias/sagechat-tui/internal/ui/styles"
	"github.com/jeranaias/sagechat-tui/internal/util"
)

func newConversationsCommand(rt *cmdState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv", "c"},
		Short:   "Manage conversations",
	}
	cmd.AddCommand(
		newConvListCommand(rt),
		newConvShowCommand(rt),
		newConvNewCommand(rt),
		newConvRenameCommand(rt),
		newConvContextCommand(rt),
		newConvDeleteCommand(rt),
		newConvExportCommand(rt),
	)
	return cmd
}

func newConvListCommand(rt *cmdState) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := auth.Require(rt.app.Tokens)
			if err != nil {
				return err
			}
			convs, err := rt.app.Client.ListConversations(cmd.Context(), tok)
			if err != nil {
				return err
			}
			printConversations(cmd.OutOrStdout(), convs, model.NoID)
			return nil
		},
	}
}

func newConvShowCommand(rt *cmdState) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := auth.Require(rt.app.Tokens)
			if err != nil {
				return err
			}
			conv, err := rt.app.Client.GetConversation(cmd.Context(), model.ID(args[0]), tok)
			if err != nil {
				return err
			}

			md := transcript.PlainMarkdown
			if !raw {
				if g, err := transcript.NewGlamour(rt.app.Config.UI.WrapWidth, styles.NewTheme(rt.app.Config.UI.Theme).GlamourStyle()); err == nil {
					md = g
				}
			}
			printConversation(cmd.OutOrStdout(), conv, md)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print message content without markdown rendering")
	return cmd
}

func newConvExportCommand(rt *cmdState) *cobra.Command {
	var (
		format    string
		output    string
		open      bool
		noContext bool
	)
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Save a conversation as Markdown, JSON or HTML",
		Long: `Save a conversation as Markdown, JSON or HTML.

The file is written to the --output directory (default: the current
directory). Use --output - to print to stdout instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			tok, err := auth.Require(rt.app.Tokens)
			if err != nil {
				return err
			}
			conv, err := rt.app.Client.GetConversation(cmd.Context(), model.ID(args[0]), tok)
			if err != nil {
				return err
			}

			opts := export.DefaultOptions()
			opts.IncludeContext = !noContext
			if !styles.NewTheme(rt.app.Config.UI.Theme).IsDark {
				opts.CodeStyle = "github"
			}
			exp, err := export.New(f, opts)
			if err != nil {
				return err
			}

			if output == "-" {
				content, err := exp.Export(conv)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(content)
				return err
			}
			path, err := export.ToFile(conv, exp, output)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Exported to ")+ValueStyle.Render(path))
			if open {
				if err := export.Open(path); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("Could not open the file: "+err.Error()))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatMarkdown), "markdown, json or html")
	cmd.Flags().StringVarP(&output, "output", "o", ".", "directory to write to, or - for stdout")
	cmd.Flags().BoolVar(&open, "open", false, "open the file with the default application")
	cmd.Flags().BoolVar(&noContext, "no-context", false, "leave out the conversation's setup context")
	return cmd
}

// setupFlags are the story context flags shared by new and context.
type setupFlags struct {
	goal, genreTone, gameSystem, keyDetails string
}

func (s *setupFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.goal, "goal", "", "what you want from the conversation")
	f.StringVar(&s.genreTone, "genre-tone", "", "genre and tone")
	f.StringVar(&s.gameSystem, "game-system", "", "tabletop game system")
	f.StringVar(&s.keyDetails, "key-details", "", "characters, places or facts to keep in mind")
}

// given returns the flags set on the command line keyed by context key. A
// flag set to "" maps to "", which clears that key on merge.
func (s *setupFlags) given(cmd *cobra.Command) model.ConversationContext {
	out := model.ConversationContext{}
	for _, f := range []struct{ flag, key, val string }{
		{"goal", model.ContextGoal, s.goal},
		{"genre-tone", model.ContextGenreTone, s.genreTone},
		{"game-system", model.ContextGameSystem, s.gameSystem},
		{"key-details", model.ContextKeyDetails, s.keyDetails},
	} {
		if cmd.Flags().Changed(f.flag) {
			out[f.key] = strings.TrimSpace(f.val)
		}
	}
	return out
}

func newConvNewCommand(rt *cmdState) *cobra.Command {
	var setup setupFlags
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a conversation with optional story context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := auth.Require(rt.app.Tokens)
			if err != nil {
				return err
			}
			ctx := model.ConversationContext(nil).Merge(setup.given(cmd))
			conv, err := rt.app.Client.CreateConversation(cmd.Context(), tok, ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Created conversation ")+ValueStyle.Render(conv.ID.String()))
			return nil
		},
	}
	setup.register(cmd)
	return cmd
}

func newConvContextCommand(rt *cmdState) *cobra.Command {
	var (
		setup    setupFlags
		clearAll bool
	)
	cmd := &cobra.Command{
		Use:   "context <id>",
		Short: "Show or edit a conversation's story context",
		Long: `Show or edit a conversation's story context.

Without flags the stored context is printed. Flags replace single keys and
leave the rest alone; pass an empty value (--goal "") to clear one key, or
--clear to drop them all. Changes apply from the next reply on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := auth.Require(rt.app.Tokens)
			if err != nil {
				return err
			}
			id := model.ID(args[0])
			conv, err := rt.app.Client.GetConversation(cmd.Context(), id, tok)
			if err != nil {
				return err
			}
			updates := setup.given(cmd)
			if !clearAll && len(updates) == 0 {
				printContext(cmd.OutOrStdout(), conv.Context)
				return nil
			}

			base := conv.Context
			if clearAll {
				base = nil
			}
			merged := base.Merge(updates)
			if err := rt.app.Client.SaveContext(cmd.Context(), id, merged, tok); err != nil {
				return err
			}
			rt.app.Log.WithField("conversation", id).Debug("context saved")
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Context saved."))
			printContext(cmd.OutOrStdout(), merged)
			return nil
		},
	}
	setup.register(cmd)
	cmd.Flags().BoolVar(&clearAll, "clear", false, "remove every context key before applying flags")
	return cmd
}

func newConvRenameCommand(rt *cmdState) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := auth.Require(rt.app.Tokens)
			if err != nil {
				return err
			}
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			if title == "" {
				return errors.New("title is empty")
			}
			if err := rt.app.Client.RenameConversation(cmd.Context(), model.ID(args[0]), title, tok); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Renamed to ")+ValueStyle.Render(util.TruncateRunes(title, model.MaxRenameLength)))
			return nil
		},
	}
}

func newConvDeleteCommand(rt *cmdState) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := auth.Require(rt.app.Tokens)
			if err != nil {
				return err
			}
			id := model.ID(args[0])
			if !yes && rt.app.Config.UI.ConfirmDeletes {
				if !Confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Delete conversation %s?", id)) {
					fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render("Delete cancelled."))
					return nil
				}
			}
			if err := rt.app.Client.DeleteConversation(cmd.Context(), id, tok); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Conversation deleted."))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// =============================================================================
// OUTPUT
// =============================================================================

// printConversations writes an ID/title table. The active row is marked.
func printConversations(w io.Writer, convs []model.ConversationSummary, active model.ID) {
	if len(convs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No conversations yet."))
		return
	}
	idWidth := 2
	for _, c := range convs {
		if n := util.StringWidth(c.ID.String()); n > idWidth {
			idWidth = n
		}
	}
	titleWidth := GetTerminalWidth() - idWidth - 4
	if titleWidth < 20 {
		titleWidth = 20
	}

	fmt.Fprintln(w, "  "+DimStyle.Render(util.PadRight("ID", idWidth)+"  TITLE"))
	for _, c := range convs {
		marker := "  "
		if !active.IsZero() && c.ID == active {
			marker = TitleStyle.Render("* ")
		}
		title := c.Title
		if strings.TrimSpace(title) == "" {
			title = session.MsgUntitled
		}
		fmt.Fprintln(w, marker+util.PadRight(c.ID.String(), idWidth)+"  "+util.TruncateWidth(title, titleWidth))
	}
}

// printContext writes one field per context key, or a note when there is
// none.
func printContext(w io.Writer, setup model.ConversationContext) {
	if len(setup) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No context set."))
		return
	}
	writeContextFields(w, setup)
}

func writeContextFields(w io.Writer, setup model.ConversationContext) {
	for _, k := range model.ContextKeys {
		if v := setup[k]; v != "" {
			fmt.Fprintln(w, RenderField(k, v))
		}
	}
}

// printConversation writes a conversation's title, context and messages.
func printConversation(w io.Writer, conv *model.Conversation, md transcript.MarkdownFunc) {
	title := conv.Title
	if title == "" {
		title = session.MsgUntitled
	}
	fmt.Fprintln(w, TitleStyle.Render(title)+" "+DimStyle.Render("#"+conv.ID.String()))
	writeContextFields(w, conv.Context)
	fmt.Fprintln(w, RenderSeparator(GetTerminalWidth()))

	if len(conv.Messages) == 0 {
		fmt.Fprintln(w, DimStyle.Render(session.MsgEmpty))
		return
	}
	for _, m := range conv.Messages {
		if m.Role == model.RoleAssistant {
			fmt.Fprintln(w, AssistantStyle.Render(m.Role.DisplayName()))
			body, err := md(m.Content)
			if err != nil {
				body = m.Content
			}
			fmt.Fprintln(w, strings.TrimRight(body, "\n"))
		} else {
			fmt.Fprintln(w, UserStyle.Render(m.Role.DisplayName()))
			fmt.Fprintln(w, m.Content)
		}
		fmt.Fprintln(w)
	}
}
