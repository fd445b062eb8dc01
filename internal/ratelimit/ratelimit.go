// Package ratelimit caps API requests per client IP. Limits apply to a
// sliding window in process memory, or a fixed window shared through Redis
// when several server instances run.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Store counts requests per key.
type Store interface {
	// Allow records one request for key and reports whether it fits in limit
	// requests per window. Denied requests are not counted.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
