// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/jeranaias/sagechat-tui/internal/util"
)

// Error variables for conditions callers branch on.
var (
	// ErrUnauthenticated is returned before any request is made when the
	// caller supplied no token.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrNotFound matches a RequestError with status 404 via errors.Is.
	ErrNotFound = errors.New("not found")
)

// maxDetailLen bounds the detail text kept from an error body.
const maxDetailLen = 500

// RequestError is a non-success HTTP status from the backend.
type RequestError struct {
	Op     string
	Status int
	Detail string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
}

// Is makes errors.Is(err, ErrNotFound) true for 404 responses.
func (e *RequestError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// PaymentRequired reports whether the server refused for lack of credits.
func (e *RequestError) PaymentRequired() bool {
	return e.Status == http.StatusPaymentRequired
}

// Unauthorized reports whether the server rejected the token.
func (e *RequestError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Message returns the text to show a user: the server's detail when it
// sent one, otherwise the status text.
func (e *RequestError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
}

// NetworkError is a transport failure: DNS, connection refused, reset, or
// a timeout before a response arrived.
type NetworkError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AsRequestError extracts a *RequestError from err.
func AsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr, true
	}
	return nil, false
}

// newRequestError builds a RequestError from a response body. The detail is
// taken from a JSON "detail" field when present (a string, or a list of
// validation errors each carrying "msg"), otherwise from the raw body.
func newRequestError(op string, status int, body []byte) *RequestError {
	return &RequestError{Op: op, Status: status, Detail: parseDetail(body)}
}

func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		var s string
		if json.Unmarshal(envelope.Detail, &s) == nil {
			return clip(s)
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(envelope.Detail, &items) == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return clip(strings.Join(msgs, "; "))
			}
		}
	}
	return clip(strings.TrimSpace(string(body)))
}

func clip(s string) string {
	return util.TruncateRunes(s, maxDetailLen)
}
