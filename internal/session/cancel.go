// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
)

// cancelManager holds the cancel func of the in-flight turn. Cancel may be
// called from the UI goroutine while the turn runs on another.
type cancelManager struct {
	mu         sync.Mutex
	cancelFunc context.CancelFunc
}

func newCancelManager() *cancelManager {
	return &cancelManager{}
}

// set stores fn. The returned release clears it and cancels the context;
// it is safe to call more than once.
func (cm *cancelManager) set(fn context.CancelFunc) (release func()) {
	cm.mu.Lock()
	cm.cancelFunc = fn
	cm.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			cm.mu.Lock()
			cm.cancelFunc = nil
			cm.mu.Unlock()
			fn()
		})
	}
}

// cancel aborts the stored turn. Reports whether there was one.
func (cm *cancelManager) cancel() bool {
	cm.mu.Lock()
	fn := cm.cancelFunc
	cm.cancelFunc = nil
	cm.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}
