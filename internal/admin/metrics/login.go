// Package metrics exposes Prometheus collectors for the admin login.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "hanko_admin"

var loginDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// LoginMetrics tracks sign-in attempts made through the admin login.
type LoginMetrics struct {
	Attempts *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight *prometheus.GaugeVec
}

// NewLoginMetrics registers the login collectors on reg. A nil reg uses a
// fresh private registry.
func NewLoginMetrics(namespace string, reg prometheus.Registerer) *LoginMetrics {
	if strings.TrimSpace(namespace) == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &LoginMetrics{
		Attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "login",
				Name:      "attempts_total",
				Help:      "Admin sign-in attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "login",
				Name:      "duration_seconds",
				Help:      "Latency of admin sign-in calls",
				Buckets:   loginDurationBuckets,
			},
			[]string{"provider", "outcome"},
		),
		InFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "login",
				Name:      "in_flight",
				Help:      "Admin sign-in calls currently waiting on the provider",
			},
			[]string{"provider"},
		),
	}
}

// ObserveAttempt records one finished sign-in.
func (m *LoginMetrics) ObserveAttempt(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	provider = normalizeLabel(provider)
	outcome = normalizeLabel(outcome)
	m.Attempts.WithLabelValues(provider, outcome).Inc()
	m.Duration.WithLabelValues(provider, outcome).Observe(elapsed.Seconds())
}

// IncInFlight marks a sign-in as started.
func (m *LoginMetrics) IncInFlight(provider string) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(normalizeLabel(provider)).Inc()
}

// DecInFlight marks a sign-in as finished.
func (m *LoginMetrics) DecInFlight(provider string) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(normalizeLabel(provider)).Dec()
}

// Handler serves the collectors registered on gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
