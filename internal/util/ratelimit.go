package util

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles RPC calls against one chain's endpoint, preventing
// the monitor's scan ticks from bursting past a provider's rate limit,
// built on golang.org/x/time/rate.
// A nil *RateLimiter is a valid no-op, so callers that never configure one
// don't need a branch.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a token-bucket limiter allowing rps requests per
// second, with burst as the bucket size.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until the limiter has a token to spend, or ctx is done. A
// nil receiver never blocks.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}
