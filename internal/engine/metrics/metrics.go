package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the check processing engine.
type Metrics struct {
	// Pipeline outcomes by settled status and producing source
	Outcomes *prometheus.CounterVec

	// Pipeline run latency by benefit type
	PipelineDuration *prometheus.HistogramVec

	// External escalations by mode
	Escalations *prometheus.CounterVec

	// Dual-source runs that disagreed
	Conflicts prometheus.Counter
}

// New creates a Metrics instance with all engine metrics registered.
func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eligibility_check_outcomes_total",
			Help: "Settled check outcomes by status and source",
		}, []string{"status", "source"}),

		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eligibility_pipeline_duration_seconds",
			Help:    "Duration of one pipeline run including external calls",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"benefit_type"}),

		Escalations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eligibility_escalations_total",
			Help: "Checks escalated beyond the local snapshots, by mode",
		}, []string{"mode"}),

		Conflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eligibility_source_conflicts_total",
			Help: "Dual-source escalations where the two services disagreed",
		}),
	}
}

func (m *Metrics) RecordOutcome(status, source string) {
	if m != nil {
		m.Outcomes.WithLabelValues(status, source).Inc()
	}
}

func (m *Metrics) ObservePipeline(benefitType string, d time.Duration) {
	if m != nil {
		m.PipelineDuration.WithLabelValues(benefitType).Observe(d.Seconds())
	}
}

func (m *Metrics) RecordEscalation(mode string) {
	if m != nil {
		m.Escalations.WithLabelValues(mode).Inc()
	}
}

func (m *Metrics) RecordConflict() {
	if m != nil {
		m.Conflicts.Inc()
	}
}
