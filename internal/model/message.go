// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// =============================================================================
// ID TYPE
// =============================================================================

// ID is an opaque server-assigned identifier. The backend may send it as a
// JSON number or a JSON string; both decode to the same textual form.
type ID string

// NoID is the zero ID, used for records that have not been persisted yet.
const NoID ID = ""

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool {
	return id == NoID
}

// String returns the textual form of the ID.
func (id ID) String() string {
	return string(id)
}

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = NoID
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "decode string id")
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrapf(err, "decode id %q", string(data))
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric IDs as numbers so round trips to an integer-keyed
// backend stay lossless.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Sage"
	default:
		return string(r)
	}
}

// ParseRole normalises a role string from the wire. The original backend
// also used "model" for assistant turns.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, true
	case "assistant", "model", "ai":
		return RoleAssistant, true
	default:
		return "", false
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single persisted turn of a conversation.
type Message struct {
	ID        ID        `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// UnmarshalJSON tolerates role aliases and a missing timestamp.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        ID     `json:"id"`
		Role      string `json:"role"`
		Content   string `json:"content"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decode message")
	}
	role, ok := ParseRole(raw.Role)
	if !ok {
		return errors.Errorf("unknown message role %q", raw.Role)
	}
	m.ID = raw.ID
	m.Role = role
	m.Content = raw.Content
	m.Timestamp = time.Time{}
	if raw.Timestamp != "" {
		if ts, err := parseTimestamp(raw.Timestamp); err == nil {
			m.Timestamp = ts
		}
	}
	return nil
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// parseTimestamp accepts RFC 3339 with or without a zone (Python's
// isoformat omits it for naive datetimes).
func parseTimestamp(s string) (time.Time, error) {
	layouts := []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"}
	var lastErr error
	for _, layout := range layouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
