// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.ObserveRequest("list_conversations", 200, 10*time.Millisecond)
	m.ObserveRequest("list_conversations", 0, time.Millisecond)
	m.ObserveTurn(OutcomeOK, time.Second)
	m.AddStreamBytes(128)
	m.AddStreamBytes(-1)
	m.IncPayloadErrors()
	m.SetCredits(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("list_conversations", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("list_conversations", "network_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.turns.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.streamBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.payloadErrs))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.credits))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("x", 200, time.Second)
	m.ObserveTurn(OutcomeError, time.Second)
	m.AddStreamBytes(10)
	m.IncPayloadErrors()
	m.SetCredits(1)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.SetCredits(3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "sagechat_account_credits 3")
}

func TestUsageTracker(t *testing.T) {
	u := NewUsageTracker()
	u.RecordCredits(10)
	for i := 0; i < 7; i++ {
		u.RecordTurn(TurnSample{Prompt: "p", Duration: time.Duration(i) * time.Second, Runes: 5})
	}
	u.RecordTurn(TurnSample{Prompt: "bad", Failed: true})
	u.RecordCredits(3)

	s := u.Summary()
	assert.Equal(t, 8, s.Turns)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 35, s.ReplyRunes)
	assert.Equal(t, 7, s.CreditsUsed)
	assert.Equal(t, 3, s.Credits)
	require.Len(t, s.Slowest, maxSlowest)
	assert.Equal(t, 6*time.Second, s.Slowest[0].Duration)
	assert.Contains(t, s.String(), "8 turns")
}

func TestUsageTracker_PurchaseDoesNotGoNegative(t *testing.T) {
	u := NewUsageTracker()
	u.RecordCredits(1)
	u.RecordCredits(50)
	assert.Equal(t, 0, u.Summary().CreditsUsed)
}
