package market

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	blocks         prometheus.Counter
	logsSkipped    *prometheus.CounterVec
	scansCancelled prometheus.Counter
	resultsDropped prometheus.Counter
	opportunities  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		blocks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "arbsim",
			Subsystem: "market",
			Name:      "blocks_total",
			Help:      "Blocks whose logs were applied.",
		}),
		logsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbsim",
			Subsystem: "market",
			Name:      "logs_skipped_total",
			Help:      "Logs that did not change any pool state, by reason.",
		}, []string{"reason"}),
		scansCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "arbsim",
			Subsystem: "market",
			Name:      "scans_cancelled_total",
			Help:      "Scans cancelled because a newer block arrived.",
		}),
		resultsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "arbsim",
			Subsystem: "market",
			Name:      "results_dropped_total",
			Help:      "Scan results discarded because the consumer was not ready.",
		}),
		opportunities: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "arbsim",
			Subsystem: "market",
			Name:      "opportunities",
			Help:      "Profitable opportunities found by the last completed scan.",
		}),
	}
}
