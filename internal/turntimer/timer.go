// Package turntimer drives the per-actor countdown. The timer ticks once
// per second with the remaining time and fires a single expiry callback at
// zero. State is in-memory only; a process crash loses in-flight timing.
package turntimer

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// Timer is a restartable per-turn countdown. Start replaces any countdown
// already running; Stop cancels pending ticks. The expiry callback fires at
// most once per Start, even if the underlying ticker delivers the zero tick
// more than once.
type Timer struct {
	clock quartz.Clock

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a timer on the given clock. Tests pass a quartz mock.
func New(clock quartz.Clock) *Timer {
	return &Timer{clock: clock}
}

// Start begins a countdown of duration d. onTick receives the remaining
// time once per second; onExpire fires exactly once when it reaches zero.
func (t *Timer) Start(d time.Duration, onTick func(remaining time.Duration), onExpire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	var (
		tickMu    sync.Mutex
		remaining = d
		expired   bool
	)
	t.clock.TickerFunc(ctx, time.Second, func() error {
		tickMu.Lock()
		defer tickMu.Unlock()
		if expired {
			return nil
		}
		remaining -= time.Second
		if remaining <= 0 {
			expired = true
			cancel()
			if onExpire != nil {
				onExpire()
			}
			return nil
		}
		if onTick != nil {
			onTick(remaining)
		}
		return nil
	}, "turntimer")
}

// Stop cancels the running countdown, if any.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}
