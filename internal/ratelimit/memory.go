package ratelimit

import (
    "context"
    "math"
    "sync"
    "time"

    "golang.org/x/time/rate"

    "github.com/iliyamo/stuffworth/internal/config"
)

type visitor struct {
    limiter  *rate.Limiter
    lastSeen time.Time
}

// MemoryLimiter keeps one x/time/rate bucket per key in process memory.
// Buckets idle longer than cfg.TTL are dropped by Sweep.
type MemoryLimiter struct {
    cfg config.RateLimitConfig

    mu       sync.Mutex
    visitors map[string]*visitor
}

func NewMemoryLimiter(cfg config.RateLimitConfig) *MemoryLimiter {
    return &MemoryLimiter{cfg: cfg.Normalize(), visitors: make(map[string]*visitor)}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
    lim := l.get(key)
    d := Decision{Limit: l.cfg.Capacity}
    now := time.Now()
    if lim.AllowN(now, 1) {
        d.Allowed = true
    } else {
        r := lim.ReserveN(now, 1)
        d.RetryAfter = r.DelayFrom(now)
        r.CancelAt(now)
    }
    d.Remaining = int64(math.Max(0, math.Floor(lim.TokensAt(now))))
    return d, nil
}

func (l *MemoryLimiter) get(key string) *rate.Limiter {
    l.mu.Lock()
    defer l.mu.Unlock()

    v, ok := l.visitors[key]
    if !ok {
        every := l.cfg.RefillInterval / time.Duration(l.cfg.RefillTokens)
        v = &visitor{limiter: rate.NewLimiter(rate.Every(every), l.cfg.Capacity)}
        l.visitors[key] = v
    }
    v.lastSeen = time.Now()
    return v.limiter
}

// Sweep forgets buckets unused for longer than the configured TTL and
// returns how many were removed.
func (l *MemoryLimiter) Sweep(now time.Time) int {
    l.mu.Lock()
    defer l.mu.Unlock()
    n := 0
    for key, v := range l.visitors {
        if now.Sub(v.lastSeen) > l.cfg.TTL {
            delete(l.visitors, key)
            n++
        }
    }
    return n
}

// Run sweeps idle buckets every interval until ctx is done.
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
    t := time.NewTicker(interval)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case now := <-t.C:
            l.Sweep(now)
        }
    }
}
