package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter implements Limiter with an in-memory sliding window.
// Not distributed; use RedisLimiter when running more than one instance.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   Limit
	windows map[string][]time.Time
}

func NewMemoryLimiter(limit Limit) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, windows: make(map[string][]time.Time)}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.limit.Window)

	timestamps := l.windows[key]
	i := 0
	for ; i < len(timestamps); i++ {
		if timestamps[i].After(cutoff) {
			break
		}
	}
	timestamps = timestamps[i:]

	if len(timestamps) >= l.limit.Limit {
		l.windows[key] = timestamps
		return false, nil
	}

	l.windows[key] = append(timestamps, now)
	return true, nil
}
