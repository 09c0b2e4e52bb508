// Package metrics exposes Prometheus instrumentation for the portal.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the portal's collectors. All methods are safe on a nil receiver.
type Metrics struct {
	// KYC transition attempts by outcome and caller tier
	TransitionDecisions *prometheus.CounterVec

	// Backend round trips by logical operation and response class
	BackendLatency *prometheus.HistogramVec

	// Access token refreshes by result
	TokenRefreshes *prometheus.CounterVec

	// Connected live-event clients
	EventClients prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransitionDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_kyc_transition_decisions_total",
			Help: "KYC status transition attempts by outcome and caller tier",
		}, []string{"outcome", "tier"}),

		BackendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_backend_request_duration_seconds",
			Help:    "Duration of backend API calls by operation and status class",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "status"}),

		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_token_refreshes_total",
			Help: "Access token refresh attempts by result",
		}, []string{"result"}),

		EventClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portal_event_clients",
			Help: "Websocket clients currently subscribed to live events",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.TransitionDecisions, m.BackendLatency, m.TokenRefreshes, m.EventClients)
	}
	return m
}

// IncrementDecision records a KYC transition outcome.
func (m *Metrics) IncrementDecision(outcome string, privileged bool) {
	if m == nil {
		return
	}
	tier := "regular"
	if privileged {
		tier = "privileged"
	}
	m.TransitionDecisions.WithLabelValues(outcome, tier).Inc()
}

// ObserveBackend records the duration of one backend call. status is the HTTP
// status code, or 0 for transport failures.
func (m *Metrics) ObserveBackend(operation string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.BackendLatency.WithLabelValues(operation, statusClass(status)).Observe(d.Seconds())
}

// IncrementRefresh records a token refresh result: ok, rejected, missing or error.
func (m *Metrics) IncrementRefresh(result string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(result).Inc()
}

// SetEventClients records the number of live-event subscribers.
func (m *Metrics) SetEventClients(n int) {
	if m == nil {
		return
	}
	m.EventClients.Set(float64(n))
}

func statusClass(status int) string {
	switch {
	case status <= 0:
		return "error"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
