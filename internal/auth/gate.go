// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Lifecycle is the capability the gate drives. The chat session controller
// implements it; the gate never reaches into the controller otherwise.
type Lifecycle interface {
	Start(ctx context.Context)
	Stop()
}

// Gate starts the Lifecycle when a token becomes available and stops it
// when the token disappears or expires.
type Gate struct {
	src TokenSource
	lc  Lifecycle
	log logrus.FieldLogger

	mu      sync.Mutex
	running bool
}

// NewGate creates a gate. Nothing happens until Check or Run is called.
func NewGate(src TokenSource, lc Lifecycle, log logrus.FieldLogger) *Gate {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Gate{src: src, lc: lc, log: log}
}

// Check evaluates the token once and performs at most one transition.
// It reports whether the user is authenticated.
func (g *Gate) Check(ctx context.Context) bool {
	_, ok := g.src.Token()

	g.mu.Lock()
	start := ok && !g.running
	stop := !ok && g.running
	g.running = ok
	g.mu.Unlock()

	switch {
	case start:
		g.log.Info("credentials available, starting session")
		g.lc.Start(ctx)
	case stop:
		g.log.Info("credentials gone, stopping session")
		g.lc.Stop()
	}
	return ok
}

// Running reports whether the lifecycle is currently started.
func (g *Gate) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Run checks immediately, then again on every signal from changes and every
// poll interval (to catch token expiry). It stops the lifecycle and returns
// when ctx is done. A nil changes channel or zero poll disables that trigger.
func (g *Gate) Run(ctx context.Context, changes <-chan struct{}, poll time.Duration) {
	g.Check(ctx)

	var tick <-chan time.Time
	if poll > 0 {
		t := time.NewTicker(poll)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			g.mu.Lock()
			wasRunning := g.running
			g.running = false
			g.mu.Unlock()
			if wasRunning {
				g.lc.Stop()
			}
			return
		case <-changes:
			g.Check(ctx)
		case <-tick:
			g.Check(ctx)
		}
	}
}
