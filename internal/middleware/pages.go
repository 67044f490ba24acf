package middleware

import (
    "net/http"
    "net/url"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/stuffworth/internal/model"
)

// ProtectedPrefixes are the page paths that need a signed-in user.
var ProtectedPrefixes = []string{"/market-research", "/history", "/checkout", "/success", "/admin", "/dashboard"}

// matchesPrefix reports whether path is prefix itself or lies beneath it.
func matchesPrefix(path, prefix string) bool {
    return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// IsProtectedPath reports whether PageGuard gates path.
func IsProtectedPath(path string) bool {
    for _, p := range ProtectedPrefixes {
        if matchesPrefix(path, p) {
            return true
        }
    }
    return false
}

// PageGuard gates browser pages.  Requests to a protected prefix without a
// valid session are redirected to /login with callbackUrl set to the
// original path and query; /admin pages additionally need the ADMIN role
// and bounce everyone else to /dashboard.  Other paths pass through.
func PageGuard(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            path := c.Request().URL.Path
            if !IsProtectedPath(path) {
                return next(c)
            }
            if !authenticate(c, secret) {
                return c.Redirect(http.StatusFound, "/login?callbackUrl="+url.QueryEscape(c.Request().URL.RequestURI()))
            }
            if matchesPrefix(path, "/admin") && c.Get(CtxRole) != model.RoleAdmin {
                return c.Redirect(http.StatusFound, "/dashboard")
            }
            return next(c)
        }
    }
}
