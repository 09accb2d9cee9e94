package myinvois

import (
	"math/rand"
	"time"
)

// RetryStrategy computes exponential backoff with jitter for transient
// authority failures.
type RetryStrategy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Backoff returns the delay before attempt n (1-based). Doubles per attempt,
// capped at MaxBackoff, with ±10% random jitter.
func (s RetryStrategy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := s.BaseBackoff << (attempt - 1)
	if backoff > s.MaxBackoff || backoff <= 0 {
		backoff = s.MaxBackoff
	}

	jitterRange := int64(backoff / 10)
	if jitterRange > 0 {
		backoff += time.Duration(rand.Int63n(2*jitterRange) - jitterRange)
	}
	return backoff
}
