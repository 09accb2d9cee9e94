// Package ratelimit provides token-bucket rate limiting for outbound calls to
// the authority API. A redis-backed bucket coordinates limits across processes;
// a local bucket serves single-process deployments and tests.
package ratelimit

import (
	"context"
	"time"
)

// Result reports the outcome of one bucket take.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a token bucket keyed by operation name. rate is tokens per
// second, burst the bucket capacity.
type Limiter interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error)
}

// Wait blocks until the bucket grants a token or the context ends.
func Wait(ctx context.Context, l Limiter, key string, rate float64, burst int) error {
	for {
		res, err := l.Allow(ctx, key, rate, burst)
		if err != nil {
			return err
		}
		if res.Allowed {
			return nil
		}
		delay := res.RetryAfter
		if delay <= 0 {
			delay = 50 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
