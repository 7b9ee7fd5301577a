// Package ratelimit provides the process-wide request limiter shared by all
// fetch workers. The limiter, not worker count, governs scrape throughput:
// every HTTP attempt (including retries) consumes one slot.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter serializes fetch attempts so that no two requests start within the
// configured minimum interval, regardless of how many workers share it.
type Limiter struct {
	rl *rate.Limiter
}

// New returns a limiter enforcing minInterval between consecutive requests.
// A non-positive interval disables limiting (used by tests).
func New(minInterval time.Duration) *Limiter {
	if minInterval <= 0 {
		return &Limiter{rl: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{rl: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the next request slot is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}
