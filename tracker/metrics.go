package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of a Tracker.
type Metrics struct {
	eventsApplied  *prometheus.CounterVec
	eventsStale    prometheus.Counter
	eventsRejected *prometheus.CounterVec
	poolsTracked   prometheus.Gauge
	applyDuration  prometheus.Histogram
}

// NewMetrics registers the tracker collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		eventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbsim",
			Subsystem: "tracker",
			Name:      "events_applied_total",
			Help:      "Events applied to pool state, by event name.",
		}, []string{"event"}),
		eventsStale: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "arbsim",
			Subsystem: "tracker",
			Name:      "events_stale_total",
			Help:      "Events dropped because their marker was not newer than the pool state.",
		}),
		eventsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbsim",
			Subsystem: "tracker",
			Name:      "events_rejected_total",
			Help:      "Events that failed to apply, by reason.",
		}, []string{"reason"}),
		poolsTracked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "arbsim",
			Subsystem: "tracker",
			Name:      "pools",
			Help:      "Pools currently tracked.",
		}),
		applyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arbsim",
			Subsystem: "tracker",
			Name:      "apply_duration_seconds",
			Help:      "Time spent applying one event.",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10),
		}),
	}
}
