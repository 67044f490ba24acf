package handler

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/stuffworth/internal/model"
    "github.com/iliyamo/stuffworth/internal/web"
)

func pageEcho(t *testing.T) *echo.Echo {
    t.Helper()
    r, err := web.New()
    require.NoError(t, err)
    e := echo.New()
    e.Renderer = r
    return e
}

func TestHome(t *testing.T) {
    e := pageEcho(t)
    rec := httptest.NewRecorder()
    require.NoError(t, Home(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Contains(t, rec.Body.String(), web.Brand)
}

func TestLogin_CallbackIsSanitised(t *testing.T) {
    e := pageEcho(t)

    rec := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/login?callbackUrl=%2Fhistory%3Fpage%3D2", nil)
    require.NoError(t, Login(e.NewContext(req, rec)))
    assert.Contains(t, rec.Body.String(), `data-callback="/history?page=2"`)

    rec = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/login?callbackUrl=https%3A%2F%2Fevil.example", nil)
    require.NoError(t, Login(e.NewContext(req, rec)))
    assert.Contains(t, rec.Body.String(), `data-callback="/dashboard"`)
}

func TestApp_ShowsAdminLinkForAdmins(t *testing.T) {
    e := pageEcho(t)
    page := AppPages[0]

    rec := httptest.NewRecorder()
    c := e.NewContext(httptest.NewRequest(http.MethodGet, page.Path, nil), rec)
    withSession(c, 1, "boss@example.com", model.RoleAdmin)
    require.NoError(t, App(page)(c))
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "no-store", rec.Header().Get(echo.HeaderCacheControl))
    assert.Contains(t, rec.Body.String(), `href="/admin"`)
    assert.Contains(t, rec.Body.String(), page.Heading)

    rec = httptest.NewRecorder()
    c = e.NewContext(httptest.NewRequest(http.MethodGet, page.Path, nil), rec)
    withSession(c, 2, "ann@example.com", model.RoleUser)
    require.NoError(t, App(page)(c))
    assert.NotContains(t, rec.Body.String(), `href="/admin"`)
}

func TestHealth(t *testing.T) {
    rec := httptest.NewRecorder()
    c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
    require.NoError(t, Health(c))
    assert.Equal(t, "ok", rec.Body.String())
}

type pingFunc func(context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestReady(t *testing.T) {
    for _, tc := range []struct {
        err  error
        code int
    }{
        {nil, http.StatusOK},
        {errors.New("connection refused"), http.StatusServiceUnavailable},
    } {
        rec := httptest.NewRecorder()
        c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/readyz", nil), rec)
        err := tc.err
        require.NoError(t, Ready(pingFunc(func(context.Context) error { return err }))(c))
        assert.Equal(t, tc.code, rec.Code)
    }
}
