package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a Redis-backed sliding window limiter using ZSETs. The add,
// trim, and count run in one pipeline so concurrent requests across instances
// see a consistent window.
type RedisLimiter struct {
	rdb   *redis.Client
	limit Limit
	keyNS string
}

func NewRedisLimiter(rdb *redis.Client, keyPrefix string, limit Limit) *RedisLimiter {
	if keyPrefix == "" {
		keyPrefix = "chefmate:ratelimit:"
	}
	return &RedisLimiter{rdb: rdb, limit: limit, keyNS: keyPrefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}
	if key == "" {
		return false, fmt.Errorf("key required")
	}

	now := time.Now().UnixNano() / 1e6 // ms
	start := now - l.limit.Window.Milliseconds()
	limitKey := l.keyNS + key

	pipe := l.rdb.TxPipeline()
	pipe.ZAdd(ctx, limitKey, redis.Z{Score: float64(now), Member: now})
	pipe.ZRemRangeByScore(ctx, limitKey, "0", fmt.Sprintf("%d", start))
	countCmd := pipe.ZCard(ctx, limitKey)
	pipe.Expire(ctx, limitKey, l.limit.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	count, err := countCmd.Result()
	if err != nil {
		return false, err
	}
	if count > int64(l.limit.Limit) {
		l.rdb.ZRem(ctx, limitKey, now)
		return false, nil
	}
	return true, nil
}
