package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the issuance module.
type Metrics struct {
	// Outcomes by kind: issued, reissued, anchor_retried, idempotent
	Outcomes *prometheus.CounterVec

	// Anchor writes that did not complete
	AnchorFailures prometheus.Counter

	// Ledger anchor write latency
	AnchorLatency prometheus.Histogram
}

// New creates a Metrics instance with all issuance metrics registered.
func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_issuance_outcomes_total",
			Help: "Total issuance pipeline outcomes by kind",
		}, []string{"outcome"}),

		AnchorFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_issuance_anchor_failures_total",
			Help: "Total anchor writes that failed, leaving records unanchored",
		}),

		AnchorLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigil_issuance_anchor_duration_seconds",
			Help:    "Duration of ledger anchor writes",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementOutcome records one pipeline outcome.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

// IncrementAnchorFailure records a failed anchor write.
func (m *Metrics) IncrementAnchorFailure() {
	if m != nil {
		m.AnchorFailures.Inc()
	}
}

// ObserveAnchorLatency records one anchor write duration.
func (m *Metrics) ObserveAnchorLatency(d time.Duration) {
	if m != nil {
		m.AnchorLatency.Observe(d.Seconds())
	}
}
