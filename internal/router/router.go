package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/cms-backend/internal/handler"    // HTTP handlers
	"github.com/iliyamo/cms-backend/internal/middleware" // JWT, role, rate limit and cache middlewares
	"github.com/iliyamo/cms-backend/internal/model"
)

// Guards are the optional Redis-backed middlewares.  Nil entries are
// skipped.
type Guards struct {
	RateLimit echo.MiddlewareFunc // applied to credential-accepting endpoints
	Cache     echo.MiddlewareFunc // applied to GET /v1/me
}

// RegisterRoutes registers routes that do not require authentication and
// are not part of the auth API: the health check and, when metricsHandler
// is non-nil, the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, metricsHandler http.Handler) {
	e.GET("/healthz", handler.Health(db))
	if metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(metricsHandler))
	}
}

// RegisterAuth registers the session endpoints under /v1/auth and the
// protected /v1/me.  Token, signup and google accept credentials and sit
// behind the rate limiter; refresh and logout only read the refresh cookie.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, guards Guards) {
	g := e.Group("/v1/auth")
	g.POST("/token", a.Token, optional(guards.RateLimit)...)
	g.POST("/signup", a.Signup, optional(guards.RateLimit)...)
	g.POST("/google", a.Google, optional(guards.RateLimit)...)
	g.POST("/token/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	// Protected endpoints live under /v1.  The cache runs after JWTAuth so
	// its key can include the user id.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleAdmin, model.RoleModerator, model.RoleUser))
	auth.GET("/me", a.Me, optional(guards.Cache)...)
}

func optional(mw echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if mw == nil {
		return nil
	}
	return []echo.MiddlewareFunc{mw}
}
