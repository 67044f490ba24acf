package middleware

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap"

    "github.com/iliyamo/stuffworth/internal/config"
    "github.com/iliyamo/stuffworth/internal/model"
    "github.com/iliyamo/stuffworth/internal/ratelimit"
    "github.com/iliyamo/stuffworth/internal/utils"
)

const secret = "test-secret"

func token(t *testing.T, id uint64, role string) string {
    t.Helper()
    tok, err := utils.NewSessionToken(secret, utils.SessionUser{ID: id, Email: "u@x.io", Plan: model.PlanFree, Role: role}, time.Hour)
    require.NoError(t, err)
    return tok.Token
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestSessionAuth(t *testing.T) {
    e := echo.New()
    e.GET("/api/me", func(c echo.Context) error {
        id, _ := UserID(c)
        claims, _ := Session(c)
        return c.JSON(http.StatusOK, echo.Map{"id": id, "role": claims.Role})
    }, SessionAuth(secret))

    t.Run("missing token", func(t *testing.T) {
        rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/me", nil))
        assert.Equal(t, http.StatusUnauthorized, rec.Code)
    })

    t.Run("invalid token", func(t *testing.T) {
        req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
        req.Header.Set("Authorization", "Bearer nope")
        assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)
    })

    t.Run("bearer", func(t *testing.T) {
        req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
        req.Header.Set("Authorization", "Bearer "+token(t, 7, model.RoleUser))
        rec := serve(e, req)
        assert.Equal(t, http.StatusOK, rec.Code)
        assert.JSONEq(t, `{"id":7,"role":"USER"}`, rec.Body.String())
    })

    t.Run("cookie", func(t *testing.T) {
        req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
        req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token(t, 8, model.RoleAdmin)})
        rec := serve(e, req)
        assert.Equal(t, http.StatusOK, rec.Code)
        assert.JSONEq(t, `{"id":8,"role":"ADMIN"}`, rec.Body.String())
    })
}

func TestRequireRole(t *testing.T) {
    e := echo.New()
    e.GET("/api/admin/users", ok, SessionAuth(secret), RequireRole(model.RoleAdmin))

    req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
    req.Header.Set("Authorization", "Bearer "+token(t, 1, model.RoleUser))
    assert.Equal(t, http.StatusForbidden, serve(e, req).Code)

    req = httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
    req.Header.Set("Authorization", "Bearer "+token(t, 1, model.RoleAdmin))
    assert.Equal(t, http.StatusOK, serve(e, req).Code)
}

func TestPageGuard(t *testing.T) {
    e := echo.New()
    e.Use(PageGuard(secret))
    for _, p := range []string{"/", "/login", "/dashboard", "/history", "/admin", "/admin/users", "/market-research", "/historyx"} {
        e.GET(p, ok)
    }

    cases := []struct {
        name     string
        target   string
        role     string
        status   int
        location string
    }{
        {"public page", "/", "", http.StatusOK, ""},
        {"prefix must match a segment", "/historyx", "", http.StatusOK, ""},
        {"anonymous protected", "/history", "", http.StatusFound, "/login?callbackUrl=%2Fhistory"},
        {"anonymous keeps query", "/market-research?item=lamp", "", http.StatusFound, "/login?callbackUrl=%2Fmarket-research%3Fitem%3Dlamp"},
        {"anonymous admin", "/admin/users", "", http.StatusFound, "/login?callbackUrl=%2Fadmin%2Fusers"},
        {"user on dashboard", "/dashboard", model.RoleUser, http.StatusOK, ""},
        {"user on admin", "/admin", model.RoleUser, http.StatusFound, "/dashboard"},
        {"user on admin subpath", "/admin/users", model.RoleUser, http.StatusFound, "/dashboard"},
        {"admin on admin", "/admin/users", model.RoleAdmin, http.StatusOK, ""},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            req := httptest.NewRequest(http.MethodGet, tc.target, nil)
            if tc.role != "" {
                req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token(t, 3, tc.role)})
            }
            rec := serve(e, req)
            assert.Equal(t, tc.status, rec.Code)
            assert.Equal(t, tc.location, rec.Header().Get(echo.HeaderLocation))
        })
    }
}

func TestIsProtectedPath(t *testing.T) {
    assert.True(t, IsProtectedPath("/checkout"))
    assert.True(t, IsProtectedPath("/success/123"))
    assert.False(t, IsProtectedPath("/login"))
    assert.False(t, IsProtectedPath("/dashboards"))
}

type stubLimiter struct {
    d   ratelimit.Decision
    err error
    key string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (ratelimit.Decision, error) {
    s.key = key
    return s.d, s.err
}

func TestRateLimit(t *testing.T) {
    cfg := config.RateLimitConfig{Enabled: true, KeyStrategy: "ip_route"}

    t.Run("blocks with headers", func(t *testing.T) {
        lim := &stubLimiter{d: ratelimit.Decision{Allowed: false, Limit: 5, Remaining: 0, RetryAfter: 1500 * time.Millisecond}}
        e := echo.New()
        e.POST("/api/auth/login", ok, RateLimit(cfg, lim, zap.NewNop()))

        req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
        req.RemoteAddr = "203.0.113.9:4000"
        rec := serve(e, req)

        assert.Equal(t, http.StatusTooManyRequests, rec.Code)
        assert.Equal(t, "2", rec.Header().Get("Retry-After"))
        assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
        assert.Equal(t, "ip:203.0.113.9:route:POST /api/auth/login", lim.key)
    })

    t.Run("allows", func(t *testing.T) {
        lim := &stubLimiter{d: ratelimit.Decision{Allowed: true, Limit: 5, Remaining: 4}}
        e := echo.New()
        e.POST("/api/auth/login", ok, RateLimit(cfg, lim, zap.NewNop()))
        rec := serve(e, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))

        assert.Equal(t, http.StatusOK, rec.Code)
        assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
    })

    t.Run("fails open", func(t *testing.T) {
        lim := &stubLimiter{err: errors.New("redis down")}
        e := echo.New()
        e.POST("/api/auth/login", ok, RateLimit(cfg, lim, zap.NewNop()))
        assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)).Code)
    })
}

func TestPayloadRoundTrip(t *testing.T) {
    hdr := http.Header{"Content-Type": {"text/html; charset=UTF-8"}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte("<h1>hi</h1>"))
    require.NoError(t, err)

    status, got, body, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, hdr.Get("Content-Type"), got.Get("Content-Type"))
    assert.Equal(t, "<h1>hi</h1>", string(body))

    _, _, _, ok = decodePayload([]byte{0, 1})
    assert.False(t, ok)
}

func TestCaptureWriter_Limit(t *testing.T) {
    rec := httptest.NewRecorder()
    cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
    _, _ = cw.Write([]byte("abc"))
    _, _ = cw.Write([]byte("def"))

    assert.Equal(t, "abcd", cw.buf.String())
    assert.True(t, cw.truncated())
    assert.Equal(t, "abcdef", rec.Body.String())
}
