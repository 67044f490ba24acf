// Package ratelimit implements per-identifier token buckets.  Buckets live in
// Redis when a client is available so every instance shares them, and in
// process memory otherwise.
package ratelimit

import (
    "context"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/stuffworth/internal/config"
)

// Decision is the outcome of one Allow call.
type Decision struct {
    Allowed    bool
    Limit      int
    Remaining  int64
    RetryAfter time.Duration
}

// Limiter takes one token from the bucket identified by key.
type Limiter interface {
    Allow(ctx context.Context, key string) (Decision, error)
}

// New picks the Redis bucket when rdb is non-nil and the in-process bucket
// otherwise.  A disabled config yields a limiter that admits everything.
func New(cfg config.RateLimitConfig, rdb *redis.Client) Limiter {
    cfg = cfg.Normalize()
    switch {
    case !cfg.Enabled:
        return Unlimited{}
    case rdb != nil:
        return NewRedisLimiter(cfg, rdb)
    default:
        return NewMemoryLimiter(cfg)
    }
}

// Unlimited admits every request.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (Decision, error) {
    return Decision{Allowed: true, Limit: -1, Remaining: -1}, nil
}
