// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Sage is the brand accent: assistant messages, focus, the active sidebar row.
var Sage = lipgloss.AdaptiveColor{Light: "#4D7C5B", Dark: "#9CC5A1"}

// SageDeep is a darker sage for backgrounds.
var SageDeep = lipgloss.AdaptiveColor{Light: "#365A42", Dark: "#2F4A37"}

// Ink is the user accent.
var Ink = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#93C5FD"}

// =============================================================================
// SEMANTIC COLORS
// =============================================================================

var (
	Rose  = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"} // errors
	Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"} // warnings, low credits
	Mint  = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"} // success
)

// =============================================================================
// SURFACE AND TEXT
// =============================================================================

var (
	Surface       = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#1E1E2E"}
	SurfaceDim    = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}
	SurfaceBright = lipgloss.AdaptiveColor{Light: "#FAFAFA", Dark: "#313244"}
	Overlay       = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}

	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
	TextInverse   = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#1E1E2E"}
)

// =============================================================================
// MESSAGE COLORS
// =============================================================================

var (
	UserBubbleBorder      = lipgloss.AdaptiveColor{Light: "#3B82F6", Dark: "#3B82F6"}
	AssistantBubbleBorder = lipgloss.AdaptiveColor{Light: "#86B391", Dark: "#6E9E78"}
	NoticeBorder          = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#F59E0B"}
	SelectionBg           = lipgloss.AdaptiveColor{Light: "#DCFCE7", Dark: "#23382A"}
)
