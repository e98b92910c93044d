package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/Saireddy1599/WatchTogether/internal/health"
)

func TestDrainRejectsDuringShutdown(t *testing.T) {
	state := health.NewState()
	e := echo.New()
	e.Use(Drain(state, "/health", "/ready"))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/health", ok)
	e.GET("/rooms", ok)

	serve := func(path string) int {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve("/rooms"))
	state.MarkShuttingDown()
	assert.Equal(t, http.StatusServiceUnavailable, serve("/rooms"))
	assert.Equal(t, http.StatusOK, serve("/health"))
}
