// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides Prometheus metrics and per-session usage
// tracking for sagechat.
package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "sagechat"

// Turn outcomes recorded by ObserveTurn.
const (
	OutcomeOK        = "ok"
	OutcomeNoPayload = "no_payload"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// =============================================================================
// METRICS
// =============================================================================

// Metrics holds the client's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec

	turns       *prometheus.CounterVec
	turnLatency prometheus.Histogram
	streamBytes prometheus.Counter
	payloadErrs prometheus.Counter

	credits prometheus.Gauge
}

// NewMetrics creates and registers the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of backend API requests",
		},
		[]string{"op", "status"},
	)
	m.apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Backend API request latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"op"},
	)
	m.turns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total number of submitted turns by outcome",
		},
		[]string{"outcome"},
	)
	m.turnLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "Time from submit to settled reply in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
	m.streamBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "bytes_total",
			Help:      "Total reply bytes received",
		},
	)
	m.payloadErrs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "payload_errors_total",
			Help:      "Trailing payload markers that failed to parse",
		},
	)
	m.credits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "credits",
			Help:      "Last known credit balance",
		},
	)

	m.registry.MustRegister(
		m.apiRequests, m.apiLatency,
		m.turns, m.turnLatency,
		m.streamBytes, m.payloadErrs,
		m.credits,
	)
	return m
}

// ObserveRequest records one API call. status is the HTTP status or 0 for
// transport failures.
func (m *Metrics) ObserveRequest(op string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "network_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.apiRequests.WithLabelValues(op, label).Inc()
	m.apiLatency.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveTurn records a settled turn.
func (m *Metrics) ObserveTurn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
	m.turnLatency.Observe(d.Seconds())
}

// AddStreamBytes counts received reply bytes.
func (m *Metrics) AddStreamBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.streamBytes.Add(float64(n))
}

// IncPayloadErrors counts a rejected payload marker.
func (m *Metrics) IncPayloadErrors() {
	if m == nil {
		return
	}
	m.payloadErrs.Inc()
}

// SetCredits records the latest credit balance.
func (m *Metrics) SetCredits(n int) {
	if m == nil {
		return
	}
	m.credits.Set(float64(n))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
