package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.Completions.WithLabelValues("direct", "stream").Inc()
	m.RateLimited.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gateway_completions_total{backend="direct",mode="stream"} 1`)
	assert.Contains(t, rec.Body.String(), "gateway_rate_limited_total 1")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AuthFailed("x")
		m.RateLimitHit()
		m.Completion("direct", "json")
		m.UpstreamFailed("direct")
		m.StreamRecord()
	})
}
