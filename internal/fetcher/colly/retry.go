package collyfetcher

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/JakeFAU/gamecatalog/internal/catalog"
)

// RetryPolicy implements the capped exponential schedule: attempt k>0 waits
// factor^(k-1) seconds.
type RetryPolicy struct {
	maxAttempts int
	factor      float64
}

// NewRetryPolicy builds a policy. Non-positive values fall back to 3 attempts
// and a factor of 2.
func NewRetryPolicy(maxAttempts int, factor float64) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if factor <= 0 {
		factor = 2
	}
	return &RetryPolicy{maxAttempts: maxAttempts, factor: factor}
}

// MaxAttempts returns the attempt budget.
func (p *RetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry decides whether the error from attempt (0-based) is retryable.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt+1 >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *catalog.HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

// Backoff returns the wait before attempt (0-based). The first attempt runs
// immediately.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	seconds := math.Pow(p.factor, float64(attempt-1))
	return time.Duration(seconds * float64(time.Second))
}
