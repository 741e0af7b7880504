// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// OAuth2Token adapts an oauth2.TokenSource. Token only returns the cached
// access token; Refresh performs the (possibly networked) renewal and must
// be called explicitly, keeping Token free of side effects.
type OAuth2Token struct {
	src oauth2.TokenSource

	mu  sync.RWMutex
	tok *oauth2.Token
}

// NewOAuth2Token wraps src with oauth2.ReuseTokenSource so Refresh only hits
// the network when the cached token is no longer valid.
func NewOAuth2Token(initial *oauth2.Token, src oauth2.TokenSource) *OAuth2Token {
	return &OAuth2Token{
		src: oauth2.ReuseTokenSource(initial, src),
		tok: initial,
	}
}

// Token implements TokenSource.
func (o *OAuth2Token) Token() (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.tok.Valid() {
		return "", false
	}
	return o.tok.AccessToken, true
}

// Refresh obtains a valid token from the underlying source.
func (o *OAuth2Token) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tok, err := o.src.Token()
	if err != nil {
		return errors.Wrap(err, "refresh oauth2 token")
	}
	o.mu.Lock()
	o.tok = tok
	o.mu.Unlock()
	return nil
}

// StaticOAuth2 returns an oauth2 source for a fixed access token, mainly for
// wiring pre-issued tokens through the same path.
func StaticOAuth2(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}
