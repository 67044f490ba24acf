package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/stuffworth/internal/handler"    // handlers that implement each endpoint
	"github.com/iliyamo/stuffworth/internal/middleware" // session, role, page guard and cache middleware
	"github.com/iliyamo/stuffworth/internal/model"
)

// RegisterRoutes registers the unauthenticated probes.  /healthz only says
// the process is alive; /readyz also pings the database.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
}

// RegisterAuth registers the /api/auth endpoints.  Every endpoint that takes
// a credential or a PIN shares the IP-keyed limiter passed in as limit.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, sessionSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/api/auth")
	g.POST("/register", a.Register, limit)
	g.POST("/login", a.Login, limit)
	g.POST("/logout", a.Logout)
	g.POST("/forgot-password", a.ForgotPassword, limit)
	g.POST("/verify-reset-pin", a.VerifyResetPin, limit)
	g.POST("/reset-password", a.ResetPassword, limit)

	// Protected: requires a session token.
	g.GET("/session", a.Session, middleware.SessionAuth(sessionSecret))
}

// RegisterUser registers per-user endpoints.  Stats rate limits inside the
// handler so the bucket is keyed by the authenticated user id.
func RegisterUser(e *echo.Echo, u *handler.UserHandler, sessionSecret string) {
	g := e.Group("/api", middleware.SessionAuth(sessionSecret))
	g.GET("/user/stats", u.Stats)
	g.GET("/history", u.ListHistory)
	g.DELETE("/history/:id", u.DeleteHistory)
}

// RegisterResearch registers the photo valuation endpoint.  bodyLimit caps
// the upload size before the handler reads it.
func RegisterResearch(e *echo.Echo, r *handler.ResearchHandler, sessionSecret string, bodyLimit echo.MiddlewareFunc) {
	e.POST("/api/market-research", r.MarketResearch, bodyLimit, middleware.SessionAuth(sessionSecret))
}

// RegisterAdmin registers ADMIN-only API routes.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, sessionSecret string) {
	g := e.Group("/api/admin",
		middleware.SessionAuth(sessionSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/users", a.ListUsers)
}

// RegisterPages registers the server-rendered pages.  Public pages go through
// the response cache; signed-in shells sit behind PageGuard, which redirects
// to /login (or /dashboard for non-admins on /admin).
func RegisterPages(e *echo.Echo, sessionSecret string, cache echo.MiddlewareFunc) {
	e.GET("/", handler.Home, cache)
	e.GET("/photo-tips", handler.PhotoTips, cache)
	e.GET("/forgot-password", handler.ForgotPasswordPage, cache)
	e.GET("/login", handler.Login) // callbackUrl varies per request

	guard := middleware.PageGuard(sessionSecret)
	for _, p := range handler.AppPages {
		e.GET(p.Path, handler.App(p), guard)
		e.GET(p.Path+"/*", handler.App(p), guard)
	}
}
