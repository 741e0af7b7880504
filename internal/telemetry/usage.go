// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/sagechat-tui/internal/util"
)

// =============================================================================
// USAGE TRACKER
// =============================================================================

// UsageTracker keeps per-process statistics shown by the /stats command.
// Nothing is persisted; the server remains the record of credit spend.
type UsageTracker struct {
	mu sync.Mutex

	start        time.Time
	turns        int
	failed       int
	replyRunes   int
	firstCredits int
	lastCredits  int
	haveCredits  bool
	slowest      []TurnSample
}

// TurnSample describes one settled turn.
type TurnSample struct {
	Prompt   string
	Duration time.Duration
	Runes    int
	Failed   bool
}

const maxSlowest = 5

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{start: time.Now()}
}

// RecordTurn adds a settled turn.
func (u *UsageTracker) RecordTurn(s TurnSample) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	u.turns++
	if s.Failed {
		u.failed++
	}
	u.replyRunes += s.Runes
	s.Prompt = util.TruncateRunes(s.Prompt, 60)

	u.slowest = append(u.slowest, s)
	sort.Slice(u.slowest, func(i, j int) bool {
		return u.slowest[i].Duration > u.slowest[j].Duration
	})
	if len(u.slowest) > maxSlowest {
		u.slowest = u.slowest[:maxSlowest]
	}
}

// RecordCredits notes a credit balance observation.
func (u *UsageTracker) RecordCredits(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.haveCredits {
		u.firstCredits = n
		u.haveCredits = true
	}
	u.lastCredits = n
}

// Summary is a point-in-time copy of the tracker state.
type Summary struct {
	Elapsed     time.Duration
	Turns       int
	Failed      int
	ReplyRunes  int
	CreditsUsed int
	Credits     int
	KnowCredits bool
	Slowest     []TurnSample
}

// Summary returns a snapshot of the tracked usage.
func (u *UsageTracker) Summary() Summary {
	u.mu.Lock()
	defer u.mu.Unlock()

	s := Summary{
		Elapsed:     time.Since(u.start),
		Turns:       u.turns,
		Failed:      u.failed,
		ReplyRunes:  u.replyRunes,
		Credits:     u.lastCredits,
		KnowCredits: u.haveCredits,
		Slowest:     append([]TurnSample(nil), u.slowest...),
	}
	// Purchases in the middle of a session make the delta negative.
	if used := u.firstCredits - u.lastCredits; used > 0 {
		s.CreditsUsed = used
	}
	return s
}

// String formats the summary for the status area.
func (s Summary) String() string {
	credits := "unknown"
	if s.KnowCredits {
		credits = fmt.Sprintf("%d (used %d)", s.Credits, s.CreditsUsed)
	}
	return fmt.Sprintf("%d turns, %d failed, credits %s, session %s",
		s.Turns, s.Failed, credits, s.Elapsed.Round(time.Second))
}
