package builder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ==============================================================================
// Prometheus Metrics
// ==============================================================================

type metrics struct {
	documents     prometheus.Counter
	expressions   prometheus.Counter
	occurrences   prometheus.Counter
	rejected      *prometheus.CounterVec
	uniqueFormula prometheus.Gauge
	arenaBytes    prometheus.Gauge
	finishSeconds prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)

	return &metrics{
		documents: f.NewCounter(prometheus.CounterOpts{
			Name: "mws_builder_documents_total",
			Help: "Documents indexed",
		}),
		expressions: f.NewCounter(prometheus.CounterOpts{
			Name: "mws_builder_expressions_total",
			Help: "Subexpressions inserted into the trie",
		}),
		occurrences: f.NewCounter(prometheus.CounterOpts{
			Name: "mws_builder_occurrences_total",
			Help: "Formula occurrences recorded",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mws_builder_rejected_formulas_total",
			Help: "Formulas skipped while indexing, by reason",
		}, []string{"reason"}),
		uniqueFormula: f.NewGauge(prometheus.GaugeOpts{
			Name: "mws_builder_unique_formulas",
			Help: "Distinct formulas in the trie",
		}),
		arenaBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "mws_builder_arena_bytes",
			Help: "Size of the last exported arena",
		}),
		finishSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mws_builder_finish_duration_seconds",
			Help:    "Time spent exporting and writing the index",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}
