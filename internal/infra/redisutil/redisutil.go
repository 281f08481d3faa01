// Package redisutil wraps the optional Redis client used to absorb duplicate
// bet requests. The engine stays correct without Redis (the ledger's unique
// idempotency key is the authority); the cache only short-circuits retries
// before they reach Postgres.
package redisutil

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Connect opens a Redis client, or returns nil when no address is configured.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	err := rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

const (
	prefixBetResult = "bet:idem:result:"
	prefixBetLock   = "bet:idem:lock:"
)

// BetResultKey caches the first successful PlaceBet output for an
// idempotency key, so short-window retries replay it without touching the DB.
func BetResultKey(k string) string { return prefixBetResult + k }

// BetLockKey marks an idempotency key as in flight (SETNX + TTL).
func BetLockKey(k string) string { return prefixBetLock + k }

// unlockScript deletes the in-flight lock only if it still holds our value,
// so a slow request cannot release a lock re-acquired by a retry.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Unlock releases an in-flight lock taken with SetNX(key, value).
func Unlock(ctx context.Context, rdb *redis.Client, key, value string) error {
	return unlockScript.Run(ctx, rdb, []string{key}, value).Err()
}
