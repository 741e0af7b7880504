// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/sagechat-tui/internal/history"
	"github.com/jeranaias/sagechat-tui/internal/util"
)

func newHistoryCommand(rt *cmdState) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [query]",
		Short: "List or search submitted prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rt.historyStore()
			if err != nil {
				return err
			}
			var entries []history.Entry
			if query := strings.TrimSpace(strings.Join(args, " ")); query != "" {
				entries, err = store.Search(cmd.Context(), query, limit)
			} else {
				entries, err = store.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, DimStyle.Render("No matching prompts."))
				return nil
			}
			width := GetTerminalWidth() - 20
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %s\n",
					DimStyle.Render(e.CreatedAt.Local().Format("2006-01-02 15:04")),
					util.TruncateWidth(util.FirstLine(e.Text), width))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum prompts to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all stored prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := rt.historyStore()
			if err != nil {
				return err
			}
			n, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Cleared %d prompts.", n)))
			return nil
		},
	})
	return cmd
}

func (rt *cmdState) historyStore() (*history.Store, error) {
	if rt.app.History == nil {
		return nil, errors.New("prompt history is disabled (history.enabled = false)")
	}
	return rt.app.History, nil
}
