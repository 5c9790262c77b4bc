package turntimer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	ticks   []time.Duration
	expires int
}

func (r *recorder) onTick(remaining time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, remaining)
}

func (r *recorder) onExpire() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expires++
}

func (r *recorder) snapshot() ([]time.Duration, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.ticks...), r.expires
}

func TestTimerTicksDownAndExpiresOnce(t *testing.T) {
	clock := quartz.NewMock(t)
	timer := New(clock)
	rec := &recorder{}
	ctx := context.Background()

	timer.Start(3*time.Second, rec.onTick, rec.onExpire)

	clock.Advance(time.Second).MustWait(ctx)
	ticks, expires := rec.snapshot()
	require.Equal(t, []time.Duration{2 * time.Second}, ticks)
	require.Zero(t, expires)

	clock.Advance(time.Second).MustWait(ctx)
	ticks, expires = rec.snapshot()
	require.Equal(t, []time.Duration{2 * time.Second, time.Second}, ticks)
	require.Zero(t, expires)

	clock.Advance(time.Second).MustWait(ctx)
	ticks, expires = rec.snapshot()
	assert.Len(t, ticks, 2, "the zero tick reports expiry, not a countdown")
	assert.Equal(t, 1, expires)
}

func TestTimerStopPreventsExpiry(t *testing.T) {
	clock := quartz.NewMock(t)
	timer := New(clock)
	rec := &recorder{}
	ctx := context.Background()

	timer.Start(2*time.Second, rec.onTick, rec.onExpire)
	clock.Advance(time.Second).MustWait(ctx)

	timer.Stop()
	// The cancelled ticker's pending tick is still scheduled on the mock,
	// so advance second by second past the original deadline
	clock.Advance(time.Second).MustWait(ctx)
	clock.Advance(time.Second).MustWait(ctx)

	_, expires := rec.snapshot()
	assert.Zero(t, expires)
}

func TestTimerRestartReplacesCountdown(t *testing.T) {
	clock := quartz.NewMock(t)
	timer := New(clock)
	first := &recorder{}
	second := &recorder{}
	ctx := context.Background()

	timer.Start(2*time.Second, first.onTick, first.onExpire)
	timer.Start(2*time.Second, second.onTick, second.onExpire)

	clock.Advance(time.Second).MustWait(ctx)
	clock.Advance(time.Second).MustWait(ctx)

	_, firstExpires := first.snapshot()
	_, secondExpires := second.snapshot()
	assert.Zero(t, firstExpires, "replaced countdown must not fire")
	assert.Equal(t, 1, secondExpires)
}

func TestTimerStopWithoutStart(t *testing.T) {
	timer := New(quartz.NewMock(t))
	timer.Stop() // no-op
}
