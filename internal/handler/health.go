package handler // declare the package name; contains HTTP handlers

import (
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"

	"github.com/Saireddy1599/WatchTogether/internal/health"
)

// HealthHandler serves the liveness, readiness and runtime metrics probes.
type HealthHandler struct {
	State *health.State
}

func NewHealthHandler(state *health.State) *HealthHandler {
	return &HealthHandler{State: state}
}

// Health always answers ok while the process is serving.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// Ready reports 503 once shutdown has begun.
func (h *HealthHandler) Ready(c echo.Context) error {
	if h.State.Healthy() {
		return c.JSON(http.StatusOK, echo.Map{"ready": true})
	}
	return c.JSON(http.StatusServiceUnavailable, echo.Map{"ready": false})
}

type runtimeMetrics struct {
	UptimeSeconds  int64  `json:"uptime_seconds"`
	RSSBytes       uint64 `json:"rss_bytes"`
	HeapTotalBytes uint64 `json:"heap_total_bytes"`
	HeapUsedBytes  uint64 `json:"heap_used_bytes"`
	Goroutines     int    `json:"goroutines"`
}

// Metrics reports uptime and memory counters.  rss_bytes is the memory
// obtained from the OS by the Go runtime.
func (h *HealthHandler) Metrics(c echo.Context) error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return c.JSON(http.StatusOK, runtimeMetrics{
		UptimeSeconds:  int64(h.State.Uptime().Seconds()),
		RSSBytes:       ms.Sys,
		HeapTotalBytes: ms.HeapSys,
		HeapUsedBytes:  ms.HeapAlloc,
		Goroutines:     runtime.NumGoroutine(),
	})
}
