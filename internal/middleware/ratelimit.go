package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Saireddy1599/WatchTogether/internal/config"
	"github.com/Saireddy1599/WatchTogether/internal/metrics"
)

// windowCounter counts hits on key within a fixed window.  It returns the
// count after this hit and the time left until the window resets.
type windowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

var fixedWindowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return { count, ttl }
`)

type redisCounter struct{ rdb *redis.Client }

func (r redisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	vals, err := fixedWindowScript.Run(ctx, r.rdb, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(vals) != 2 {
		return 0, 0, redis.Nil
	}
	return vals[0], time.Duration(vals[1]) * time.Millisecond, nil
}

type memoryWindow struct {
	count int64
	reset time.Time
}

// memoryCounter is the in-process fallback with the same fixed-window
// semantics.  Expired windows are swept at most once per window.
type memoryCounter struct {
	mu        sync.Mutex
	windows   map[string]*memoryWindow
	nextSweep time.Time
	now       func() time.Time
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{windows: make(map[string]*memoryWindow), now: time.Now}
}

func (m *memoryCounter) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if now.After(m.nextSweep) {
		for k, w := range m.windows {
			if !now.Before(w.reset) {
				delete(m.windows, k)
			}
		}
		m.nextSweep = now.Add(window)
	}
	w, ok := m.windows[key]
	if !ok || !now.Before(w.reset) {
		w = &memoryWindow{reset: now.Add(window)}
		m.windows[key] = w
	}
	w.count++
	return w.count, w.reset.Sub(now), nil
}

// NewFixedWindow limits each source address to cfg.Max requests per
// cfg.Window.  Counters live in Redis when rdb is non-nil, otherwise in
// process.  Redis errors let the request through.
func NewFixedWindow(cfg config.RateLimitConfig, rdb *redis.Client, log *slog.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	var counter windowCounter = newMemoryCounter()
	if rdb != nil {
		counter = redisCounter{rdb: rdb}
	}
	return fixedWindow(cfg, counter, log, m)
}

func fixedWindow(cfg config.RateLimitConfig, counter windowCounter, log *slog.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			count, ttl, err := counter.Hit(c.Request().Context(), key, cfg.Window)
			if err != nil {
				log.Warn("rate limit counter unavailable", "key", key, "err", err)
				return next(c)
			}

			remaining := int64(cfg.Max) - count
			if remaining < 0 {
				remaining = 0
			}
			resetSecs := int(math.Ceil(ttl.Seconds()))
			h := c.Response().Header()
			h.Set("RateLimit-Limit", strconv.Itoa(cfg.Max))
			h.Set("RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			h.Set("RateLimit-Reset", strconv.Itoa(resetSecs))

			if count > int64(cfg.Max) {
				h.Set("Retry-After", strconv.Itoa(resetSecs))
				m.RateLimitHit()
				if cfg.Debug {
					log.Info("rate limit block", "key", key, "count", count)
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": resetSecs,
				})
			}
			return next(c)
		}
	}
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return strings.Join([]string{cfg.Prefix, "ip", ip}, ":")
}
