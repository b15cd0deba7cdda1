package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterAllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter(Limit{Limit: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should pass", i+1)
	}

	allowed, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter(Limit{Limit: 1, Window: time.Minute})

	allowed, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, allowed, "a saturated key must not affect other keys")
}

func TestMemoryLimiterWindowSlides(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter(Limit{Limit: 1, Window: 30 * time.Millisecond})

	allowed, err := limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	require.False(t, allowed)

	time.Sleep(40 * time.Millisecond)

	allowed, err = limiter.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, allowed, "entries outside the window are dropped")
}
