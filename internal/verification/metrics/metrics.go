package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
type Metrics struct {
	// Evidence gathering latencies by source
	EvidenceLatency *prometheus.HistogramVec

	// Verdicts by outcome
	Verdicts *prometheus.CounterVec

	// Reason codes attached to non-PASS verdicts
	ReasonCodes *prometheus.CounterVec

	// Overall verification latency
	VerifyLatency prometheus.Histogram
}

// New creates a Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		EvidenceLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sigil_verification_evidence_duration_seconds",
			Help:    "Duration of evidence gathering operations by source",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"source"}), // source: "ledger", "signature", "forensics"

		Verdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_verification_verdicts_total",
			Help: "Total verification verdicts by outcome",
		}, []string{"verdict"}),

		ReasonCodes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_verification_reason_codes_total",
			Help: "Total reason codes accumulated across verifications",
		}, []string{"code"}),

		VerifyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigil_verification_duration_seconds",
			Help:    "Duration of full verification including evidence gathering",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// ObserveEvidenceLatency records the duration of one evidence source fetch.
func (m *Metrics) ObserveEvidenceLatency(source string, d time.Duration) {
	if m != nil {
		m.EvidenceLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncrementVerdict records a verification outcome.
func (m *Metrics) IncrementVerdict(verdict string) {
	if m != nil {
		m.Verdicts.WithLabelValues(verdict).Inc()
	}
}

// IncrementReason records one accumulated reason code.
func (m *Metrics) IncrementReason(code string) {
	if m != nil {
		m.ReasonCodes.WithLabelValues(code).Inc()
	}
}

// ObserveVerifyLatency records the total verification duration.
func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}
