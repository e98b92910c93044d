package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Saireddy1599/WatchTogether/internal/health"
)

// Drain rejects new work with 503 once state is no longer healthy.  Paths in
// probes keep answering so orchestrators can observe the shutdown.
func Drain(state *health.State, probes ...string) echo.MiddlewareFunc {
	skip := make(map[string]bool, len(probes))
	for _, p := range probes {
		skip[p] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if state.Healthy() || skip[c.Request().URL.Path] {
				return next(c)
			}
			c.Response().Header().Set("Connection", "close")
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "server is shutting down"})
		}
	}
}
