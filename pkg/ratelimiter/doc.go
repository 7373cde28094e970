// Package ratelimiter throttles repeated attempts with a token bucket.
//
// Each key owns a bucket holding up to Capacity tokens. Every attempt takes one
// token; RefillRate tokens come back every RefillInterval. A result with a
// negative Remaining means the attempt must be refused. Resetting a key drops
// its bucket, so the next attempt starts from a full bucket again.
//
// The two-factor engine keys buckets by identity and resets them after a
// successful code check:
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	attempts, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       5,
//		RefillRate:     1,
//		RefillInterval: 30 * time.Second,
//	})
//	if err != nil {
//		return err
//	}
//
//	res, err := attempts.Allow(ctx, "2fa:"+userID)
//	if err != nil {
//		return err
//	}
//	if !res.Allowed() {
//		// refuse, retry after res.RetryAfter()
//	}
//
// MemoryStore keeps buckets in process and evicts idle ones in the background.
// Deployments with more than one replica share buckets through the Redis
// store in package redis.
package ratelimiter
