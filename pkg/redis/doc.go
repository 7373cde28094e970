// Package redis backs the two-factor engine with Redis.
//
// SecretStore implements twofactor.Store. Each record lives in a hash holding
// its version and the codec blob (sealed when an encryption key is
// configured). Writes run inside WATCH/MULTI and are retried on conflict, so
// concurrent verifications of one identity serialize without server-side
// locks.
//
// AttemptStore implements ratelimiter.Store with a Lua script that refills
// and takes tokens in one round trip; idle buckets expire on their own.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := redis.NewSecretStore(client, codec, cfg)
//	attempts := redis.NewAttemptStore(client, cfg)
//
// Healthcheck adapts a client to a readiness probe.
package redis
