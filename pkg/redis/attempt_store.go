package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campusmind/twofactor/pkg/ratelimiter"
)

// consumeScript mirrors ratelimiter.Config.Refill and MemoryStore so every
// replica sees the same bucket. A denied request leaves the balance alone.
// Times are unix milliseconds supplied by the caller.
var consumeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local cost = tonumber(ARGV[5])
local ttl = tonumber(ARGV[6])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'last')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil or last == nil then
  tokens = capacity
  last = now
end

if tokens >= capacity then
  tokens = capacity
  last = now
else
  local intervals = math.floor((now - last) / interval)
  if intervals > 0 then
    if intervals * rate >= capacity - math.max(tokens, 0) then
      tokens = capacity
      last = now
    else
      tokens = tokens + intervals * rate
      last = last + intervals * interval
    end
  end
end

local remaining = tokens - cost
if remaining >= 0 then
  tokens = remaining
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'last', last)
redis.call('PEXPIRE', KEYS[1], ttl)
return {remaining, last}
`)

// AttemptStore implements ratelimiter.Store in Redis so attempt budgets are
// shared across replicas.
type AttemptStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ ratelimiter.Store = (*AttemptStore)(nil)

// AttemptStoreOption configures an AttemptStore.
type AttemptStoreOption func(*AttemptStore)

// WithAttemptClock overrides time.Now.
func WithAttemptClock(now func() time.Time) AttemptStoreOption {
	return func(s *AttemptStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAttemptStore(client redis.UniversalClient, cfg Config, opts ...AttemptStoreOption) *AttemptStore {
	s := &AttemptStore{client: client, prefix: cfg.KeyPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AttemptStore) key(key string) string {
	return s.prefix + "attempts:" + key
}

// ConsumeTokens runs the refill-and-take script atomically.
func (s *AttemptStore) ConsumeTokens(ctx context.Context, key string, tokens int, config ratelimiter.Config) (int, time.Time, error) {
	interval := config.RefillInterval.Milliseconds()
	// idle buckets expire once they would be full again
	ttl := max(interval*int64(config.Capacity/config.RefillRate+1), time.Second.Milliseconds())

	res, err := consumeScript.Run(ctx, s.client, []string{s.key(key)},
		config.Capacity, config.RefillRate, interval, s.now().UnixMilli(), tokens, ttl,
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, err
	}
	if len(res) != 2 {
		return 0, time.Time{}, ErrUnexpectedReply
	}

	lastRefill := time.UnixMilli(res[1])
	return int(res[0]), lastRefill.Add(config.RefillInterval), nil
}

func (s *AttemptStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
