package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterEnforcesMinInterval(t *testing.T) {
	interval := 50 * time.Millisecond
	limiter := New(interval)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))
	elapsed := time.Since(start)

	// Two more slots after the first must take at least two intervals.
	assert.GreaterOrEqual(t, elapsed, 2*interval-10*time.Millisecond)
}

func TestLimiterSharedAcrossGoroutines(t *testing.T) {
	interval := 20 * time.Millisecond
	limiter := New(interval)
	ctx := context.Background()

	const waiters = 5
	done := make(chan time.Time, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			if err := limiter.Wait(ctx); err == nil {
				done <- time.Now()
			}
		}()
	}

	var stamps []time.Time
	for i := 0; i < waiters; i++ {
		stamps = append(stamps, <-done)
	}

	earliest, latest := stamps[0], stamps[0]
	for _, ts := range stamps[1:] {
		if ts.Before(earliest) {
			earliest = ts
		}
		if ts.After(latest) {
			latest = ts
		}
	}
	// Five waiters sharing one limiter span at least four intervals.
	assert.GreaterOrEqual(t, latest.Sub(earliest), 4*interval-10*time.Millisecond)
}

func TestLimiterUnlimited(t *testing.T) {
	limiter := New(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, limiter.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterRespectsCancellation(t *testing.T) {
	limiter := New(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, limiter.Wait(ctx))

	cancel()
	err := limiter.Wait(ctx)
	assert.Error(t, err)
}
