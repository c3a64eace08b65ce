package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles calls to the object store with a token bucket.
//
// A zero rate disables throttling: Wait and Allow always succeed without
// touching the underlying bucket. All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter.
//
// Parameters:
//   - requestsPerSecond: sustained store requests per second (0 = unlimited)
//   - burst: bucket capacity; raised to requestsPerSecond when smaller and
//     non-zero rates are configured with a zero burst
//
// Returns a configured RateLimiter.
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = requestsPerSecond
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Unlimited reports whether the limiter never throttles.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// Allow consumes a token if one is available without waiting.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
// The returned error is the context error (or a rate error when ctx's
// deadline is sooner than the next token).
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the tokens currently in the bucket. Monitoring only.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
