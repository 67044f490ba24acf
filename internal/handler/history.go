package handler

import (
    "context"
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/stuffworth/internal/middleware"
    "github.com/iliyamo/stuffworth/internal/repository"
)

const (
    defaultHistoryLimit = 50
    maxHistoryLimit     = 200
)

// ListHistory: GET /api/history?limit=N, newest first.
func (h *UserHandler) ListHistory(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    limit := parseLimit(c.QueryParam("limit"), defaultHistoryLimit, maxHistoryLimit)

    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()

    items, err := h.History.GetResearchHistory(ctx, uid, limit)
    if err != nil {
        h.Log.Error("history: list", zap.Uint64("user_id", uid), zap.Error(err))
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"success": true, "data": items})
}

// DeleteHistory: DELETE /api/history/:id.  Items owned by other users are
// reported as not found.
func (h *UserHandler) DeleteHistory(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id := c.Param("id")
    if id == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "id is required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()

    if err := h.History.Delete(ctx, uid, id); err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
        }
        h.Log.Error("history: delete", zap.String("id", id), zap.Error(err))
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
    }
    return c.NoContent(http.StatusNoContent)
}

// parseLimit reads a positive integer query value, falling back to def and
// clamping to max.
func parseLimit(raw string, def, max int) int {
    n, err := strconv.Atoi(raw)
    if err != nil || n <= 0 {
        return def
    }
    if n > max {
        return max
    }
    return n
}
