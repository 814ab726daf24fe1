package differ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of a StateDiffer.
type Metrics struct {
	diffDuration  *prometheus.HistogramVec
	poolsChecked  prometheus.Counter
	driftedFields *prometheus.CounterVec
}

// NewMetrics registers the differ collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		diffDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arbsim",
			Subsystem: "differ",
			Name:      "diff_duration_seconds",
			Help:      "Time spent comparing tracked and fetched pool states.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{}),
		poolsChecked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "arbsim",
			Subsystem: "differ",
			Name:      "pools_checked_total",
			Help:      "Pools compared against a fetched state.",
		}),
		driftedFields: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbsim",
			Subsystem: "differ",
			Name:      "drifted_fields_total",
			Help:      "State fields found to differ from the fetched state, by field.",
		}, []string{"field"}),
	}
}
