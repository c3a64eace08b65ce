package store

import (
	"context"
	"fmt"

	"github.com/marmos91/bucketfs/internal/ratelimiter"
)

// NewRateLimited throttles every call to inner through limiter. A call
// whose context ends while waiting for a token fails without reaching the
// backend.
func NewRateLimited(inner ObjectStore, limiter *ratelimiter.RateLimiter) ObjectStore {
	if limiter == nil || limiter.Unlimited() {
		return inner
	}

	return Intercept(inner, func(ctx context.Context, op, key string, call func(context.Context) error) error {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s %s: rate limit wait: %w", op, key, err)
		}
		return call(ctx)
	})
}
