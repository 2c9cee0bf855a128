// Package metrics exposes Prometheus counters for the session endpoints.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth counts session endpoint outcomes.  A nil *Auth records nothing.
type Auth struct {
	requests *prometheus.CounterVec
	reuse    prometheus.Counter
}

// NewAuth registers the auth counters on reg.
func NewAuth(reg prometheus.Registerer) *Auth {
	f := promauto.With(reg)
	return &Auth{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cms",
			Subsystem: "auth",
			Name:      "requests_total",
			Help:      "Session endpoint calls by endpoint and outcome (ok or the error code).",
		}, []string{"endpoint", "outcome"}),
		reuse: f.NewCounter(prometheus.CounterOpts{
			Namespace: "cms",
			Subsystem: "auth",
			Name:      "refresh_reuse_total",
			Help:      "Rotated refresh tokens presented again.",
		}),
	}
}

// Request records one call to endpoint.
func (m *Auth) Request(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, outcome).Inc()
}

// Reuse records a replayed refresh token.
func (m *Auth) Reuse() {
	if m == nil {
		return
	}
	m.reuse.Inc()
}

// Handler serves the metrics gathered by g in the text exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
