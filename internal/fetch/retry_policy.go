package fetch

import (
	"math"
	"net/http"
	"time"
)

// Retry policy defaults.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
)

// RetryPolicy decides which failures are transient and how long to wait
// between attempts. It holds no mutable state.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewRetryPolicy builds a policy. Non-positive maxAttempts and baseDelay fall back
// to the defaults; maxDelay <= 0 leaves the backoff uncapped.
func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return RetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// DefaultRetryPolicy returns five attempts with a one second unit and a 30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return NewRetryPolicy(DefaultMaxAttempts, DefaultBaseDelay, DefaultMaxDelay)
}

// MaxAttempts is the total number of attempts per URL, first one included.
func (p RetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry decides whether a failed attempt is transient. statusCode is 0
// when no response was received. Rules apply in order: a transport failure is
// always retried; without a status there is nothing to classify; 429 and 5xx
// are retried; everything else is permanent.
func (p RetryPolicy) ShouldRetry(statusCode int, failure error) bool {
	if IsTransportFailure(failure) {
		return true
	}
	if statusCode == 0 {
		return false
	}
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	if statusCode >= 500 && statusCode <= 599 {
		return true
	}
	return false
}

// Backoff returns the wait after attempt k (1-indexed) before attempt k+1:
// baseDelay * 2^(k-1), capped at maxDelay when one is set.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.baseDelay
	for i := 1; i < attempt; i++ {
		if p.maxDelay > 0 && delay >= p.maxDelay {
			return p.maxDelay
		}
		if delay > time.Duration(math.MaxInt64/2) {
			// doubling again would overflow
			return delay
		}
		delay *= 2
	}
	if p.maxDelay > 0 && delay > p.maxDelay {
		return p.maxDelay
	}
	return delay
}
