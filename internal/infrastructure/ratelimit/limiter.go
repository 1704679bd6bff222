// Package ratelimit implements rolling-window request limiters.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the verdict for one event.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits at most Limit events per key in any rolling window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Window() time.Duration
}
