// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "time"

// SpinnerFrames is the ASCII spinner shown in pending replies.
var SpinnerFrames = []string{"|", "/", "-", "\\"}

// SpinnerFPS matches the streaming redraw rate.
const SpinnerFPS = time.Second / 30

// Indicators are text markers shown alongside color so state is readable
// without it.
var Indicators = struct {
	Error   string
	Warning string
	Info    string
	Active  string
	Delete  string
}{
	Error:   "[X]",
	Warning: "[!]",
	Info:    "[i]",
	Active:  "[*]",
	Delete:  "[del]",
}

// CreditsLowThreshold marks the balance in warning color.
const CreditsLowThreshold = 3
