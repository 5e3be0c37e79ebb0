// internal/auth/throttle_redis.go
// Redis-backed login throttling (SPEC_FULL.md C13), grounded on the
// teacher's recordFailedAttempt/clearFailedAttempts in internal/auth/service.go.

package auth

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	failureWindow    = 15 * time.Minute
	failureKeyPrefix = "login:failures:"
)

// RedisLoginThrottle counts failed logins per identifier (email) and TTLs
// the counter out after failureWindow. It never blocks a login outright —
// spec.md has no account-lockout requirement — once an identifier reaches 5
// failures it only tells the caller how long its counter has left to live.
type RedisLoginThrottle struct {
	client *redis.Client
}

func NewRedisLoginThrottle(client *redis.Client) *RedisLoginThrottle {
	return &RedisLoginThrottle{client: client}
}

func (t *RedisLoginThrottle) RecordFailure(ctx context.Context, identifier string) time.Duration {
	key := failureKeyPrefix + identifier

	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("auth: login throttle incr failed for %s: %v", identifier, err)
		return 0
	}
	if count == 1 {
		t.client.Expire(ctx, key, failureWindow)
	}

	ttl, err := t.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	if count < 5 {
		return 0
	}
	return ttl
}

func (t *RedisLoginThrottle) ClearFailures(ctx context.Context, identifier string) {
	if err := t.client.Del(ctx, failureKeyPrefix+identifier).Err(); err != nil {
		log.Printf("auth: login throttle clear failed for %s: %v", identifier, err)
	}
}
