// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jeranaias/sagechat-tui/internal/model"
)

// GetProfile returns the current user's account, including credits.
func (c *Client) GetProfile(ctx context.Context, token string) (*model.Profile, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	var p model.Profile
	if err := c.getJSON(ctx, "get_profile", c.endpoint("user", "me"), token, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetAppConfig fetches the server's public runtime configuration. No token
// is required.
func (c *Client) GetAppConfig(ctx context.Context) (*model.AppConfig, error) {
	var cfg model.AppConfig
	if err := c.getJSON(ctx, "get_config", c.endpoint("config"), "", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateCheckoutSession starts a credit purchase and returns the hosted
// checkout URL to open in a browser.
func (c *Client) CreateCheckoutSession(ctx context.Context, token string) (string, error) {
	if err := requireToken(token); err != nil {
		return "", err
	}
	var out struct {
		CheckoutURL string `json:"checkout_url"`
	}
	endpoint := c.endpoint("payments", "create-checkout-session")
	if err := c.sendJSON(ctx, "create_checkout", http.MethodPost, endpoint, token, nil, &out); err != nil {
		return "", err
	}
	if out.CheckoutURL == "" {
		return "", errors.New("create checkout: server returned no checkout_url")
	}
	return out.CheckoutURL, nil
}
