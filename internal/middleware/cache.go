package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Saireddy1599/WatchTogether/internal/config"
)

// Query parameters that carry credentials never become part of a cache key.
var credentialParams = []string{"access_token", "client_key"}

// cachedResponse is what a cache entry holds.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

func (r cachedResponse) MarshalBinary() ([]byte, error) { return json.Marshal(r) }

func (r *cachedResponse) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, r) }

// bodyRecorder tees the response body, keeping at most limit bytes.
type bodyRecorder struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (w *bodyRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	if !w.truncated {
		if w.limit > 0 && int64(w.buf.Len()+len(b)) > w.limit {
			w.truncated = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// cacheKey hashes the route and the non-credential query parameters.
// url.Values.Encode sorts by key, so parameter order does not matter.
func cacheKey(prefix string, c echo.Context) string {
	q := url.Values{}
	for k, v := range c.QueryParams() {
		q[k] = v
	}
	for _, p := range credentialParams {
		q.Del(p)
	}
	sum := sha1.Sum([]byte(c.Request().Method + " " + c.Path() + "?" + q.Encode()))
	return fmt.Sprintf("%s:%x", prefix, sum)
}

func replay(c echo.Context, entry cachedResponse) error {
	h := c.Response().Header()
	for k, vals := range entry.Header {
		if strings.EqualFold(k, echo.HeaderContentLength) {
			continue
		}
		h[k] = vals
	}
	h.Set("X-Cache", "HIT")
	c.Response().WriteHeader(entry.Status)
	_, err := c.Response().Write(entry.Body)
	return err
}

// NewResponseCache serves repeated reads of slow-changing listings (the
// public room directory) from Redis.  Only 200 responses are stored, and a
// body larger than MaxBodyBytes is never cached.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil || cfg.TTL <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg.Prefix, c)

			var entry cachedResponse
			err := rdb.Get(ctx, key).Scan(&entry)
			switch {
			case err == nil:
				return replay(c, entry)
			case err != redis.Nil:
				log.Warn("cache lookup failed", "key", key, "err", err)
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.truncated {
				return nil
			}
			header := c.Response().Header().Clone()
			header.Del("X-Cache")
			header.Del(echo.HeaderXRequestID)
			entry = cachedResponse{Status: rec.status, Header: header, Body: rec.buf.Bytes()}

			storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := rdb.Set(storeCtx, key, &entry, cfg.TTL).Err(); err != nil {
				log.Warn("cache store failed", "key", key, "err", err)
			}
			return nil
		}
	}
}
