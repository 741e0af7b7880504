// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// LoginURL returns the identity provider's hosted login page.
func LoginURL(authURL string) (string, error) {
	return hostedPage(authURL, "login")
}

// SignupURL returns the identity provider's hosted signup page.
func SignupURL(authURL string) (string, error) {
	return hostedPage(authURL, "signup")
}

// LogoutURL returns the identity provider's logout endpoint.
func LogoutURL(authURL string) (string, error) {
	return hostedPage(authURL, "logout")
}

// AccountURL returns the hosted account management page.
func AccountURL(authURL string) (string, error) {
	return hostedPage(authURL, "account")
}

func hostedPage(authURL, page string) (string, error) {
	if strings.TrimSpace(authURL) == "" {
		return "", errors.New("auth URL is not configured")
	}
	u, err := url.Parse(strings.TrimRight(authURL, "/"))
	if err != nil {
		return "", errors.Wrap(err, "parse auth URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Errorf("auth URL %q is not absolute", authURL)
	}
	return u.JoinPath(page).String(), nil
}
