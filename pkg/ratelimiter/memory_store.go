package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// Buckets untouched for this long are evicted by RemoveStale.
const staleAfter = time.Hour

type entry struct {
	tokens     int
	lastRefill time.Time
	seen       time.Time
}

// MemoryStore is a Store for a single process.
type MemoryStore struct {
	now   func() time.Time
	sweep time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	stop     chan struct{}
	stopOnce sync.Once
}

type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often idle buckets are evicted. Zero turns
// the background sweep off.
func WithCleanupInterval(d time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.sweep = d
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStore starts the sweep goroutine unless disabled. Call Close
// when done.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		now:     time.Now,
		sweep:   5 * time.Minute,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ms)
	}
	if ms.sweep > 0 {
		go ms.sweepLoop()
	}
	return ms
}

func (ms *MemoryStore) ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config) (int, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return 0, time.Time{}, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	e, ok := ms.entries[key]
	if !ok {
		e = &entry{tokens: cfg.Capacity, lastRefill: now}
		ms.entries[key] = e
	}
	e.tokens, e.lastRefill = cfg.Refill(e.tokens, e.lastRefill, now)
	var remaining int
	e.tokens, remaining = withdraw(e.tokens, tokens)
	e.seen = now

	return remaining, e.lastRefill.Add(cfg.RefillInterval), nil
}

func (ms *MemoryStore) Reset(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.Lock()
	delete(ms.entries, key)
	ms.mu.Unlock()
	return nil
}

// Len is the number of tracked keys.
func (ms *MemoryStore) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.entries)
}

// RemoveStale evicts keys idle for longer than an hour.
func (ms *MemoryStore) RemoveStale() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cutoff := ms.now().Add(-staleAfter)
	for key, e := range ms.entries {
		if e.seen.Before(cutoff) {
			delete(ms.entries, key)
		}
	}
}

// Close stops the sweep. It may be called more than once.
func (ms *MemoryStore) Close() {
	ms.stopOnce.Do(func() { close(ms.stop) })
}

func (ms *MemoryStore) sweepLoop() {
	t := time.NewTicker(ms.sweep)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			ms.RemoveStale()
		case <-ms.stop:
			return
		}
	}
}
