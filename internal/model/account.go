// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// ACCOUNT TYPES
// =============================================================================

// Profile is the current user's account record from /user/me.
type Profile struct {
	UserID  string `json:"propel_user_id"`
	Email   string `json:"email"`
	Credits int    `json:"credits"`
	DBID    ID     `json:"db_id"`
}

// HasCredits reports whether the account can still send messages.
func (p *Profile) HasCredits() bool {
	return p != nil && p.Credits > 0
}

// AppConfig is the read-only runtime configuration published by the server
// at /config and fetched once at startup.
type AppConfig struct {
	AIModelName        string `json:"ai_model_name"`
	StripeConfigured   bool   `json:"stripe_configured"`
	CreditsPerPurchase int    `json:"credits_per_purchase"`
	AuthURL            string `json:"auth_url"`
	PropelAuthURL      string `json:"propelauth_url"`
	MaxInteractions    int    `json:"max_interactions"`
	CreditDurationDays int    `json:"credit_duration_days"`
}

// AuthBaseURL returns the identity provider base URL under either of the
// names the server has published it as.
func (c *AppConfig) AuthBaseURL() string {
	if c == nil {
		return ""
	}
	if c.AuthURL != "" {
		return c.AuthURL
	}
	return c.PropelAuthURL
}

// PaymentsEnabled reports whether the checkout flow can be offered.
func (c *AppConfig) PaymentsEnabled() bool {
	return c != nil && c.StripeConfigured
}

// StreamPayload is the trailing metadata block appended to a streamed reply.
// It binds the optimistic transcript entries to durable server IDs.
type StreamPayload struct {
	UserMessageID  ID `json:"userMessageId"`
	AIMessageID    ID `json:"aiMessageId"`
	ConversationID ID `json:"conversationId,omitempty"`
}

// Valid reports whether both message IDs are present.
func (p StreamPayload) Valid() bool {
	return !p.UserMessageID.IsZero() && !p.AIMessageID.IsZero()
}
