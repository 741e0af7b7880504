// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/sagechat-tui/internal/auth"
	"github.com/jeranaias/sagechat-tui/internal/session"
)

// =============================================================================
// CREDITS
// =============================================================================

func newCreditsCommand(rt *cmdState) *cobra.Command {
	return &cobra.Command{
		Use:   "credits",
		Short: "Show the credit balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := auth.Require(rt.app.Tokens)
			if err != nil {
				return err
			}
			p, err := rt.app.Client.GetProfile(cmd.Context(), tok)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, RenderField("Credits", fmt.Sprint(p.Credits)))
			if !p.HasCredits() {
				fmt.Fprintln(out, WarningStyle.Render(session.MsgNoCredits))
			}
			return nil
		},
	}
}

func newBuyCommand(rt *cmdState) *cobra.Command {
	return &cobra.Command{
		Use:   "buy",
		Short: "Start a credit purchase and print the checkout link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := auth.Require(rt.app.Tokens)
			if err != nil {
				return err
			}
			if err := rt.bootstrap(cmd); err != nil {
				return err
			}
			if !rt.app.Remote.PaymentsEnabled() {
				return errors.New("payments are not available on this server")
			}
			link, err := rt.app.Client.CreateCheckoutSession(cmd.Context(), tok)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if n := rt.app.Remote.CreditsPerPurchase; n > 0 {
				fmt.Fprintln(out, DimStyle.Render(fmt.Sprintf("Each purchase adds %d credits.", n)))
			}
			fmt.Fprintln(out, "Open this link to complete the purchase:")
			fmt.Fprintln(out, link)
			return nil
		},
	}
}

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

func newLoginCommand(rt *cmdState) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an access token",
		Long: `Store an access token.

Sign in through the browser link that is printed, copy the access token,
and paste it at the prompt. The token can also be passed with --token or
piped on stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			errOut := cmd.ErrOrStderr()

			if token == "" {
				if err := rt.bootstrap(cmd); err != nil {
					rt.app.Log.WithError(err).Debug("bootstrap before login")
				}
				if link, err := auth.LoginURL(rt.app.AuthURL()); err == nil {
					fmt.Fprintln(errOut, "Sign in at: "+link)
				}
				t, err := ReadSecret(cmd.InOrStdin(), errOut, "Access token: ")
				if err != nil {
					return err
				}
				token = t
			}
			token = strings.TrimPrefix(strings.TrimSpace(token), "Bearer ")
			if token == "" {
				return errors.New("no token given")
			}
			if auth.Expired(token, time.Now()) {
				return errors.New(session.MsgExpired)
			}

			p, err := rt.app.Client.GetProfile(ctx, token)
			if err != nil {
				return errors.Wrap(err, "token rejected")
			}
			if err := auth.SaveToken(rt.app.File.Path(), token); err != nil {
				return err
			}

			who := p.Email
			if who == "" {
				who = p.UserID
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Logged in as ")+ValueStyle.Render(who)+
				DimStyle.Render(fmt.Sprintf(" (%d credits)", p.Credits)))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "access token (prompted for when omitted)")
	return cmd
}

func newLogoutCommand(rt *cmdState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := auth.ClearToken(rt.app.File.Path()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, SuccessStyle.Render("Logged out."))
			if err := rt.bootstrap(cmd); err == nil {
				if link, err := auth.LogoutURL(rt.app.AuthURL()); err == nil {
					fmt.Fprintln(out, DimStyle.Render("To end the browser session too, open "+link))
				}
			}
			if rt.app.Config.Auth.Token != "" {
				fmt.Fprintln(out, WarningStyle.Render("SAGECHAT_TOKEN is still set in the environment."))
			}
			return nil
		},
	}
}

func newWhoamiCommand(rt *cmdState) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := auth.Require(rt.app.Tokens)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if claims, err := auth.Inspect(tok); err == nil {
				if claims.ExpiresAt != nil {
					fmt.Fprintln(out, RenderField("Expires", claims.ExpiresAt.Time.Local().Format(time.RFC1123)))
				}
			}
			p, err := rt.app.Client.GetProfile(cmd.Context(), tok)
			if err != nil {
				return err
			}
			if p.Email != "" {
				fmt.Fprintln(out, RenderField("Email", p.Email))
			}
			fmt.Fprintln(out, RenderField("User", p.UserID))
			fmt.Fprintln(out, RenderField("Credits", fmt.Sprint(p.Credits)))
			return nil
		},
	}
}
