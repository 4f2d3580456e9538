package operations

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments of the execution layer.
type Metrics struct {
	ImportsTotal    *prometheus.CounterVec
	ImportDuration  prometheus.Histogram
	CacheHitsTotal  prometheus.Counter
	CacheMissesTotal prometheus.Counter
	DuplicatesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the instruments on reg. Passing a
// fresh registry in tests avoids default-registry collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ImportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finsheet_imports_total",
			Help: "Completed imports by outcome.",
		}, []string{"status"}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "finsheet_import_duration_seconds",
			Help:    "End-to-end import duration.",
			Buckets: prometheus.DefBuckets,
		}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finsheet_cache_hits_total",
			Help: "Import results served from the TTL cache.",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finsheet_cache_misses_total",
			Help: "Imports that ran the full pipeline.",
		}),
		DuplicatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finsheet_duplicates_total",
			Help: "Duplicate records seen during merge, by strategy.",
		}, []string{"strategy"}),
	}
	reg.MustRegister(m.ImportsTotal, m.ImportDuration, m.CacheHitsTotal, m.CacheMissesTotal, m.DuplicatesTotal)
	return m
}
