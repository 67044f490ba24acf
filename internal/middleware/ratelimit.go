package middleware

import (
    "math"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/stuffworth/internal/config"
    "github.com/iliyamo/stuffworth/internal/ratelimit"
)

// RateLimit returns middleware that takes one token per request from the
// bucket chosen by cfg.KeyStrategy.  Limiter errors fail open.
func RateLimit(cfg config.RateLimitConfig, lim ratelimit.Limiter, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || lim == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := BuildRateKey(cfg.KeyStrategy, c)
            d, err := lim.Allow(c.Request().Context(), key)
            if err != nil {
                log.Warn("ratelimit unavailable, allowing request", zap.String("key", key), zap.Error(err))
                return next(c)
            }
            if !d.Allowed {
                if cfg.Debug {
                    log.Info("ratelimit block", zap.String("key", key), zap.Duration("retry_after", d.RetryAfter))
                }
                return TooManyRequests(c, d)
            }
            WriteLimitHeaders(c, d)
            return next(c)
        }
    }
}

// WriteLimitHeaders sets X-RateLimit-* headers for a decision.
func WriteLimitHeaders(c echo.Context, d ratelimit.Decision) {
    if d.Limit < 0 {
        return
    }
    c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
    c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
}

// TooManyRequests writes the 429 response for a denied decision.
func TooManyRequests(c echo.Context, d ratelimit.Decision) error {
    WriteLimitHeaders(c, d)
    secs := int(math.Ceil(d.RetryAfter.Seconds()))
    if secs < 0 { secs = 0 }
    c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
    return c.JSON(http.StatusTooManyRequests, map[string]any{
        "error":       "Too many requests",
        "retry_after": secs,
    })
}

// BuildRateKey composes the bucket identifier for a request.
func BuildRateKey(strategy string, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" { ip = "unknown" }
    uid := "anon"
    if id, ok := UserID(c); ok {
        uid = strconv.FormatUint(id, 10)
    }
    route := c.Request().Method + " " + c.Path()

    var parts []string
    switch strings.ToLower(strategy) {
    case "ip":
        parts = []string{"ip", ip}
    case "user":
        parts = []string{"user", uid}
    case "route":
        parts = []string{"route", route}
    case "ip_user":
        parts = []string{"ip", ip, "user", uid}
    case "ip_route":
        parts = []string{"ip", ip, "route", route}
    case "user_route":
        parts = []string{"user", uid, "route", route}
    default:
        parts = []string{"ip", ip, "user", uid, "route", route}
    }
    return strings.Join(parts, ":")
}
