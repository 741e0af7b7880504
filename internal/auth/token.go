// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth provides bearer-token accessors and the login gate that
// starts and stops the chat session when credentials come and go.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// ErrNoToken is returned by helpers that need a credential and found none.
var ErrNoToken = errors.New("not logged in")

// TokenSource exposes the latest known bearer token. Token must be cheap,
// synchronous and free of side effects (no network refresh). ok is false
// when the user is not authenticated.
type TokenSource interface {
	Token() (token string, ok bool)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() (string, bool)

// Token implements TokenSource.
func (f TokenSourceFunc) Token() (string, bool) {
	return f()
}

// StaticToken is a fixed token, typically from a flag or SAGECHAT_TOKEN.
type StaticToken string

// Token implements TokenSource. An expired JWT reports no token.
func (s StaticToken) Token() (string, bool) {
	tok := strings.TrimSpace(string(s))
	if tok == "" || Expired(tok, time.Now()) {
		return "", false
	}
	return tok, true
}

// Chain returns the first token any source has.
type Chain []TokenSource

// Token implements TokenSource.
func (c Chain) Token() (string, bool) {
	for _, src := range c {
		if src == nil {
			continue
		}
		if tok, ok := src.Token(); ok {
			return tok, true
		}
	}
	return "", false
}

// Require returns the current token or ErrNoToken.
func Require(src TokenSource) (string, error) {
	if src == nil {
		return "", ErrNoToken
	}
	tok, ok := src.Token()
	if !ok {
		return "", ErrNoToken
	}
	return tok, nil
}

// =============================================================================
// JWT INSPECTION
// =============================================================================

// Claims is the subset of access-token claims the client looks at.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Inspect parses a JWT without verifying its signature. The server is the
// authority; the client only reads expiry and identity for display.
// Opaque (non-JWT) tokens return an error.
func Inspect(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, errors.Wrap(err, "inspect token")
	}
	return claims, nil
}

// Expired reports whether token is a JWT whose exp claim is in the past.
// Opaque tokens and JWTs without exp never expire client-side.
func Expired(token string, now time.Time) bool {
	if strings.Count(token, ".") != 2 {
		return false
	}
	claims, err := Inspect(token)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}

// ExpiresAt returns the exp claim of a JWT, if any.
func ExpiresAt(token string) (time.Time, bool) {
	claims, err := Inspect(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
