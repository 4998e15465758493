package resultcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the result cache.
type Metrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter
}

// NewMetrics creates a Metrics instance with all cache metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		hits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eligibility_result_cache_hits_total",
			Help: "Checks settled from a fresh cache entry without external calls",
		}),
		misses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eligibility_result_cache_misses_total",
			Help: "Cache lookups that found no fresh entry",
		}),
	}
}

func (m *Metrics) RecordHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) RecordMiss() {
	if m != nil {
		m.misses.Inc()
	}
}
