package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saireddy1599/WatchTogether/internal/config"
	"github.com/Saireddy1599/WatchTogether/internal/metrics"
)

var testRateConfig = config.RateLimitConfig{Enabled: true, Max: 30, Window: time.Minute, Prefix: "rl"}

func newLimitedServer(mw echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.POST("/api/ai", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, mw)
	return e
}

func hit(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/ai", nil)
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestFixedWindowRejectsThirtyFirst(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	limiters := map[string]echo.MiddlewareFunc{
		"redis":  NewFixedWindow(testRateConfig, rdb, slog.Default(), nil),
		"memory": NewFixedWindow(testRateConfig, nil, slog.Default(), nil),
	}
	for name, mw := range limiters {
		t.Run(name, func(t *testing.T) {
			e := newLimitedServer(mw)
			for i := 1; i <= 30; i++ {
				rec := hit(e, "10.0.0.1")
				require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
				assert.Equal(t, "30", rec.Header().Get("RateLimit-Limit"))
				assert.Equal(t, strconv.Itoa(30-i), rec.Header().Get("RateLimit-Remaining"))
				assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
			}

			rec := hit(e, "10.0.0.1")
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
			assert.Equal(t, "0", rec.Header().Get("RateLimit-Remaining"))
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
			assert.Contains(t, rec.Body.String(), "too_many_requests")

			assert.Equal(t, http.StatusOK, hit(e, "10.0.0.2").Code, "other sources keep their own budget")
		})
	}
}

func TestFixedWindowResetsAtBoundary(t *testing.T) {
	counter := newMemoryCounter()
	now := time.Now()
	counter.now = func() time.Time { return now }
	cfg := testRateConfig
	cfg.Max = 2
	e := newLimitedServer(fixedWindow(cfg, counter, slog.Default(), nil))

	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(e, "10.0.0.1").Code)

	now = now.Add(time.Minute)
	rec := hit(e, "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("RateLimit-Remaining"))
	assert.Equal(t, "60", rec.Header().Get("RateLimit-Reset"))
}

type failingCounter struct{}

func (failingCounter) Hit(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis down")
}

func TestFixedWindowFailsOpen(t *testing.T) {
	m := metrics.New()
	e := newLimitedServer(fixedWindow(testRateConfig, failingCounter{}, slog.Default(), m))
	for i := 0; i < 40; i++ {
		require.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
	}
}

func TestFixedWindowDisabled(t *testing.T) {
	cfg := testRateConfig
	cfg.Enabled = false
	cfg.Max = 1
	e := newLimitedServer(NewFixedWindow(cfg, nil, slog.Default(), nil))
	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
}
