// Package ratelimit throttles outgoing identification requests with a token
// bucket.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates requests to external identification services. A nil Limiter
// grants every request.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter allowing perMinute requests per minute, with a burst
// of the same size so a cold start does not stall.
func New(perMinute int) *Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
	}
}

// Acquire blocks until a token is available, the timeout elapses, or ctx is
// cancelled. It reports whether the caller may proceed.
func (l *Limiter) Acquire(ctx context.Context, timeout time.Duration) bool {
	if l == nil || l.limiter == nil {
		return true
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return l.limiter.Wait(ctx) == nil
}
