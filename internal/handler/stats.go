package handler

import (
    "context"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/stuffworth/internal/middleware"
    "github.com/iliyamo/stuffworth/internal/model"
    "github.com/iliyamo/stuffworth/internal/ratelimit"
)

// UserHandler serves per-user data: usage stats and research history.
type UserHandler struct {
    History HistoryStore
    Limiter ratelimit.Limiter // keyed by user id; nil disables the check
    Log     *zap.Logger
}

func NewUserHandler(h HistoryStore, lim ratelimit.Limiter, log *zap.Logger) *UserHandler {
    return &UserHandler{History: h, Limiter: lim, Log: log}
}

// Stats: GET /api/user/stats.  Counts the user's saved items and sums their
// numeric estimated prices.
func (h *UserHandler) Stats(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if denied, err := limitUser(c, h.Limiter, uid, h.Log); denied {
        return err
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()

    items, err := h.History.GetResearchHistory(ctx, uid, 0)
    if err != nil {
        h.Log.Error("stats: load history", zap.Uint64("user_id", uid), zap.Error(err))
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"success": true, "data": model.Summarize(items)})
}

// limitUser takes one token from the user's bucket.  When the bucket is empty
// it writes the 429 response and reports denied=true; the caller returns err.
// Limiter failures let the request through.
func limitUser(c echo.Context, lim ratelimit.Limiter, uid uint64, log *zap.Logger) (bool, error) {
    if lim == nil {
        return false, nil
    }
    key := "user:" + strconv.FormatUint(uid, 10)
    d, err := lim.Allow(c.Request().Context(), key)
    if err != nil {
        log.Warn("ratelimit unavailable, allowing request", zap.String("key", key), zap.Error(err))
        return false, nil
    }
    if !d.Allowed {
        return true, middleware.TooManyRequests(c, d)
    }
    middleware.WriteLimitHeaders(c, d)
    return false, nil
}
