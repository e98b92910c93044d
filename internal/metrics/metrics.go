// Package metrics holds the gateway's Prometheus collectors.  A dedicated
// registry keeps tests independent of the global default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	Completions   *prometheus.CounterVec // by backend and mode (json|stream)
	UpstreamFails *prometheus.CounterVec // by backend
	AuthFailures  *prometheus.CounterVec // by reason
	RateLimited   prometheus.Counter
	StreamRecords prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Completions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_completions_total",
				Help: "Completion requests forwarded upstream",
			},
			[]string{"backend", "mode"},
		),
		UpstreamFails: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_upstream_failures_total",
				Help: "Upstream calls that failed or returned an unusable response",
			},
			[]string{"backend"},
		),
		AuthFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_auth_failures_total",
				Help: "Requests rejected by the authentication middleware",
			},
			[]string{"reason"},
		),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
		StreamRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_stream_records_total",
			Help: "Event-stream records emitted to callers",
		}),
	}
	m.Registry.MustRegister(
		m.Completions, m.UpstreamFails, m.AuthFailures, m.RateLimited, m.StreamRecords,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// The helpers below tolerate a nil *Metrics so callers in tests can omit it.

func (m *Metrics) AuthFailed(reason string) {
	if m != nil {
		m.AuthFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) RateLimitHit() {
	if m != nil {
		m.RateLimited.Inc()
	}
}

func (m *Metrics) Completion(backend, mode string) {
	if m != nil {
		m.Completions.WithLabelValues(backend, mode).Inc()
	}
}

func (m *Metrics) UpstreamFailed(backend string) {
	if m != nil {
		m.UpstreamFails.WithLabelValues(backend).Inc()
	}
}

func (m *Metrics) StreamRecord() {
	if m != nil {
		m.StreamRecords.Inc()
	}
}
