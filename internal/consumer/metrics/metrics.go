package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the queue consumer.
type Metrics struct {
	// Messages handled, by fate (settled, released, exhausted, dropped)
	Handled *prometheus.CounterVec

	// Messages currently leased across all workers
	InFlight prometheus.Gauge
}

// New creates a Metrics instance with all consumer metrics registered.
func New() *Metrics {
	return &Metrics{
		Handled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eligibility_queue_messages_total",
			Help: "Queue messages handled by the consumer, by fate",
		}, []string{"fate"}),

		InFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "eligibility_queue_in_flight",
			Help: "Messages currently leased by this consumer",
		}),
	}
}

func (m *Metrics) RecordHandled(fate string) {
	if m != nil {
		m.Handled.WithLabelValues(fate).Inc()
	}
}

func (m *Metrics) AddInFlight(delta float64) {
	if m != nil {
		m.InFlight.Add(delta)
	}
}
