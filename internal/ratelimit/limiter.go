// Package ratelimit provides per-user sliding window rate limiting for the
// chat ingress. The Redis implementation is authoritative in production; the
// in-memory one backs tests and single-instance deployments.
package ratelimit

import (
	"context"
	"time"
)

// Limit defines window and max count for a bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// Limiter reports whether a request identified by key is allowed right now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
