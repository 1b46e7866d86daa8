// Package observability exposes Prometheus metrics for the redemption
// service: attempt counters by outcome, redemption latency, and issuance
// volume.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Redemption outcome labels.
const (
	OutcomeSuccess       = "success"
	OutcomeInvalidFormat = "invalid_format"
	OutcomeInvalidCard   = "invalid_card"
	OutcomeError         = "error"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	Redemptions        *prometheus.CounterVec
	RedemptionDuration prometheus.Histogram
	CardsIssued        prometheus.Counter
	CodeRetries        prometheus.Counter
}

// New creates a Metrics set on its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Redemptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kami_redemptions_total",
			Help: "Redemption attempts by outcome.",
		}, []string{"outcome"}),
		RedemptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kami_redemption_duration_seconds",
			Help:    "End-to-end redemption latency.",
			Buckets: prometheus.DefBuckets,
		}),
		CardsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "kami_cards_issued_total",
			Help: "Cards created through batch issuance.",
		}),
		CodeRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "kami_code_generation_retries_total",
			Help: "Code regenerations after a duplicate-code collision.",
		}),
	}
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRedemption records one redemption attempt.
func (m *Metrics) ObserveRedemption(outcome string, seconds float64) {
	m.Redemptions.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		m.RedemptionDuration.Observe(seconds)
	}
}
