package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/stuffworth/internal/utils"
)

// SessionCookie is the cookie carrying the session token for browser pages.
const SessionCookie = "session_token"

// Context keys set by SessionAuth and PageGuard.
const (
    CtxClaims = "session"
    CtxUserID = "user_id"
    CtxRole   = "role"
)

// sessionToken returns the raw token from a Bearer header or, failing that,
// the session cookie.
func sessionToken(c echo.Context) string {
    if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    if ck, err := c.Cookie(SessionCookie); err == nil {
        return ck.Value
    }
    return ""
}

// authenticate parses the request's session token and stores the claims in
// the context.  It reports whether a valid session was found.
func authenticate(c echo.Context, secret string) bool {
    raw := sessionToken(c)
    if raw == "" {
        return false
    }
    claims, err := utils.ParseSessionToken(secret, raw)
    if err != nil {
        return false
    }
    uid, _ := claims.UserID() // ParseSessionToken already validated it
    c.Set(CtxClaims, claims)
    c.Set(CtxUserID, uid)
    c.Set(CtxRole, claims.Role)
    return true
}

// SessionAuth returns an Echo middleware for API routes.  It accepts the
// session token as a Bearer header or cookie and answers 401 JSON when it is
// missing or invalid.  Handlers read the session via Session(c).
func SessionAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if sessionToken(c) == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
            }
            if !authenticate(c, secret) {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid session"})
            }
            return next(c)
        }
    }
}

// Session returns the claims stored by SessionAuth or PageGuard.
func Session(c echo.Context) (*utils.SessionClaims, bool) {
    claims, ok := c.Get(CtxClaims).(*utils.SessionClaims)
    return claims, ok && claims != nil
}

// UserID returns the authenticated user's id.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(CtxUserID).(uint64)
    return id, ok && id != 0
}
