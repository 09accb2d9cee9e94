package ratelimit

import (
	"context"
	"sync"
	"time"
)

type localBucket struct {
	tokens float64
	last   time.Time
}

// LocalBucket is an in-process token bucket used when redis is not configured.
type LocalBucket struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	now     func() time.Time
}

func NewLocalBucket() *LocalBucket {
	return &LocalBucket{
		buckets: make(map[string]*localBucket),
		now:     time.Now,
	}
}

func (l *LocalBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{tokens: float64(burst), last: now}
		l.buckets[key] = b
	} else {
		delta := now.Sub(b.last).Seconds()
		if delta > 0 {
			b.tokens = min(float64(burst), b.tokens+delta*rate)
			b.last = now
		}
	}

	if b.tokens >= 1 {
		b.tokens--
		return &Result{Allowed: true, Remaining: int(b.tokens)}, nil
	}

	retryAfter := time.Duration((1 - b.tokens) / rate * float64(time.Second))
	return &Result{Allowed: false, Remaining: 0, RetryAfter: retryAfter}, nil
}
