package differ

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/defistate-arb-go/simulator"
)

// StateDifferConfig holds the dependencies of a StateDiffer.
type StateDifferConfig struct {
	Registry prometheus.Registerer // Required for metrics.
	Logger   Logger                // Required for logging.
}

// validate checks if the configuration is valid, ensuring required dependencies are present.
func (c *StateDifferConfig) validate() error {
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	return nil
}

// StateDiffer compares tracked snapshots with states fetched from the chain.
type StateDiffer struct {
	metrics *Metrics
	logger  Logger
}

// NewStateDiffer constructs a new differ from a configuration, returning an error if the config is invalid.
func NewStateDiffer(cfg *StateDifferConfig) (*StateDiffer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &StateDiffer{
		metrics: NewMetrics(cfg.Registry),
		logger:  cfg.Logger,
	}, nil
}

// Diff compares every fetched snapshot with the tracked snapshot of the same pool.
// A fetched pool with no tracked counterpart is reported as untracked.
func (d *StateDiffer) Diff(tracked map[common.Address]simulator.Snapshot, fetched []simulator.Snapshot) (*StateDiff, error) {
	totalTimer := prometheus.NewTimer(d.metrics.diffDuration.WithLabelValues())
	defer totalTimer.ObserveDuration()

	diff := &StateDiff{Timestamp: uint64(time.Now().UnixNano())}
	for _, f := range fetched {
		t, ok := tracked[f.Pool.Address]
		if !ok {
			diff.Untracked = append(diff.Untracked, f.Pool.Address)
			continue
		}

		fields, err := simulator.Drift(t, f)
		if err != nil {
			return nil, fmt.Errorf("differ: pool %s: %w", f.Pool.Address, err)
		}
		diff.Checked++
		d.metrics.poolsChecked.Inc()
		if len(fields) == 0 {
			continue
		}

		for _, field := range fields {
			d.metrics.driftedFields.WithLabelValues(field).Inc()
		}
		d.logger.Warn("Tracked state drifted from chain",
			"pool", f.Pool.Address,
			"tracked", t.Marker,
			"fetched", f.Marker,
			"fields", fields,
		)
		diff.Drifted = append(diff.Drifted, PoolDiff{
			Pool:    f.Pool.Address,
			Tracked: t.Marker,
			Fetched: f.Marker,
			Fields:  fields,
		})
	}

	return diff, nil
}
