package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Saireddy1599/WatchTogether/internal/handler"
)

// ProbePaths keep answering while the server drains.
var ProbePaths = []string{"/health", "/ready", "/metrics", "/metrics/prometheus"}

// RegisterRoutes registers the unauthenticated probe endpoints.  prom is the
// Prometheus exposition handler.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler, prom http.Handler) {
	e.GET("/health", h.Health)
	e.GET("/ready", h.Ready)
	e.GET("/metrics", h.Metrics)
	e.GET("/metrics/prometheus", echo.WrapHandler(prom))
}

// RegisterAuth registers the token exchange endpoints.  Neither requires an
// existing credential.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/auth")
	g.POST("/login", a.Login)
	g.POST("/firebase-login", a.FirebaseLogin)
}
