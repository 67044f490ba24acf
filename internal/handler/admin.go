package handler

import (
    "context"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/stuffworth/internal/model"
)

// AdminHandler serves the ADMIN-only API.
type AdminHandler struct {
    Users UserStore
    Log   *zap.Logger
}

func NewAdminHandler(u UserStore, log *zap.Logger) *AdminHandler {
    return &AdminHandler{Users: u, Log: log}
}

// ListUsers: GET /api/admin/users?limit=&offset=
func (h *AdminHandler) ListUsers(c echo.Context) error {
    limit := parseLimit(c.QueryParam("limit"), 50, 500)
    offset, _ := strconv.Atoi(c.QueryParam("offset"))
    if offset < 0 {
        offset = 0
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    defer cancel()

    users, err := h.Users.List(ctx, limit, offset)
    if err != nil {
        h.Log.Error("admin: list users", zap.Error(err))
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
    }
    views := make([]model.UserView, 0, len(users))
    for _, u := range users {
        views = append(views, u.View())
    }
    return c.JSON(http.StatusOK, echo.Map{"success": true, "data": views})
}
