package ratelimiter

import (
	"context"
	"fmt"
	"time"
)

// Store keeps bucket state per key.
type Store interface {
	// ConsumeTokens refills the bucket for key, then takes tokens if that
	// many are available. A denied request takes nothing and reports
	// available-tokens, which is negative.
	ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config) (remaining int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}

// Config describes one token bucket: Capacity tokens at most, RefillRate
// tokens added every RefillInterval.
type Config struct {
	Capacity       int
	RefillRate     int
	RefillInterval time.Duration
}

func (c Config) validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	case c.RefillRate <= 0:
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	case c.RefillInterval <= 0:
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}

// Refill adds the tokens earned since lastRefill and returns the new count
// and refill time. A full bucket restarts its clock at now; a partial one
// keeps the unused part of the current interval. Every Store calls it so
// backends agree on the math.
func (c Config) Refill(tokens int, lastRefill, now time.Time) (int, time.Time) {
	if tokens >= c.Capacity {
		return c.Capacity, now
	}
	intervals := int64(now.Sub(lastRefill) / c.RefillInterval)
	if intervals <= 0 {
		return tokens, lastRefill
	}
	missing := int64(c.Capacity - max(tokens, 0))
	if intervals*int64(c.RefillRate) >= missing {
		return c.Capacity, now
	}
	return tokens + int(intervals)*c.RefillRate, lastRefill.Add(time.Duration(intervals) * c.RefillInterval)
}

// withdraw applies a request of n tokens to a refilled balance.
func withdraw(tokens, n int) (balance, remaining int) {
	if tokens < n {
		return tokens, tokens - n
	}
	return tokens - n, tokens - n
}

// Result is the bucket state after a check.
type Result struct {
	Limit     int
	Remaining int // negative when denied
	ResetAt   time.Time
}

func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter is zero for allowed results.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(time.Until(r.ResetAt), 0)
}

// Bucket applies one Config to many keys.
type Bucket struct {
	store Store
	cfg   Config
}

func NewBucket(store Store, cfg Config) (*Bucket, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Bucket{store: store, cfg: cfg}, nil
}

func (b *Bucket) Config() Config {
	return b.cfg
}

// Allow takes one token for key.
func (b *Bucket) Allow(ctx context.Context, key string) (*Result, error) {
	return b.AllowN(ctx, key, 1)
}

func (b *Bucket) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTokenCount, n)
	}
	return b.take(ctx, key, n)
}

// Status reports the bucket without taking tokens.
func (b *Bucket) Status(ctx context.Context, key string) (*Result, error) {
	return b.take(ctx, key, 0)
}

func (b *Bucket) Reset(ctx context.Context, key string) error {
	return b.store.Reset(ctx, key)
}

func (b *Bucket) take(ctx context.Context, key string, n int) (*Result, error) {
	remaining, resetAt, err := b.store.ConsumeTokens(ctx, key, n, b.cfg)
	if err != nil {
		return nil, err
	}
	return &Result{Limit: b.cfg.Capacity, Remaining: remaining, ResetAt: resetAt}, nil
}
