package parser

import (
	"context"
	"time"
)

// RateLimiter manages rate limiting for sequential operations.
// It ensures operations are spaced out by a specified interval.
//
// A zero interval disables limiting: Wait returns immediately.
type RateLimiter struct {
	ticker   *time.Ticker
	interval time.Duration
	started  bool
}

// NewRateLimiter creates a new rate limiter with the specified interval.
// The interval determines the minimum time between operations.
//
// Example usage:
//
//	limiter := parser.NewRateLimiter(1500 * time.Millisecond)
//	defer limiter.Stop()
//
//	for i, url := range urls {
//	    if err := limiter.Wait(ctx); err != nil {
//	        return err
//	    }
//	    // ... perform rate-limited operation ...
//	}
func NewRateLimiter(interval time.Duration) *RateLimiter {
	rl := &RateLimiter{interval: interval}
	if interval > 0 {
		rl.ticker = time.NewTicker(interval)
	}
	return rl
}

// Wait blocks until the next tick occurs. The first call never blocks.
// Call this before each rate-limited operation.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.ticker == nil {
		return ctx.Err()
	}
	if !rl.started {
		rl.started = true
		return ctx.Err()
	}

	select {
	case <-rl.ticker.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops the rate limiter and releases resources.
// Typically used with defer: defer limiter.Stop()
func (rl *RateLimiter) Stop() {
	if rl.ticker != nil {
		rl.ticker.Stop()
	}
}

// GetInterval returns the configured interval for this rate limiter.
func (rl *RateLimiter) GetInterval() time.Duration {
	return rl.interval
}
