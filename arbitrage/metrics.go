package arbitrage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors shared by an Evaluator and the scanners built on it.
type Metrics struct {
	evaluations      *prometheus.CounterVec
	simulations      prometheus.Counter
	evaluateDuration prometheus.Histogram
	pathsScanned     prometheus.Counter
	scanDuration     prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbsim",
			Subsystem: "arbitrage",
			Name:      "evaluations_total",
			Help:      "Path evaluations, by outcome.",
		}, []string{"result"}),
		simulations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "arbsim",
			Subsystem: "arbitrage",
			Name:      "cycle_simulations_total",
			Help:      "Input sizes simulated around a cycle while searching.",
		}),
		evaluateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arbsim",
			Subsystem: "arbitrage",
			Name:      "evaluate_duration_seconds",
			Help:      "Time spent searching the best input of one path.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		pathsScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "arbsim",
			Subsystem: "arbitrage",
			Name:      "paths_scanned_total",
			Help:      "Paths handed to the evaluator by scans.",
		}),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arbsim",
			Subsystem: "arbitrage",
			Name:      "scan_duration_seconds",
			Help:      "Wall time of a full scan.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
