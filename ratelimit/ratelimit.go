// Package ratelimit counts events per key inside a fixed window.
//
// A Rule of {Limit: 1, Window: 60s} is a per-key cooldown, which is how
// one-time-code issuance is throttled; the per-IP auth limiter uses a larger Limit.
package ratelimit

import (
	"context"
	"time"
)

type Rule struct {
	Limit  int
	Window time.Duration
}

type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RetrySeconds rounds the wait up so a client never retries too early.
func (r Result) RetrySeconds() int {
	if r.RetryAfter <= 0 {
		return 0
	}
	secs := int(r.RetryAfter / time.Second)
	if r.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
	// Reset forgets key, used when the guarded resource is discarded.
	Reset(ctx context.Context, key string) error
}
