package tracker

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/defistate-arb-go/differ"
	"github.com/defistate/defistate-arb-go/engine"
	"github.com/defistate/defistate-arb-go/patcher"
	"github.com/defistate/defistate-arb-go/simulator"
)

var (
	ErrUnknownPool = errors.New("unknown pool")
	ErrPoolExists  = errors.New("pool already tracked")
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the dependencies of a Tracker.
type Config struct {
	Registry prometheus.Registerer // Required for metrics.
	Logger   Logger                // Required for logging.
	// Patchers maps event names to patch functions. Nil selects patcher.Default().
	Patchers map[string]patcher.PatcherFunc
}

func (c *Config) validate() error {
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	return nil
}

// entry serializes writers of one pool. Readers only load current.
type entry struct {
	mu      sync.Mutex
	current atomic.Pointer[simulator.Snapshot]
}

// Tracker owns the latest snapshot of every registered pool and is the only
// writer of pool state. Updates to one pool are serialized; different pools
// update concurrently. Readers never block writers and never see a partial update.
type Tracker struct {
	mu    sync.RWMutex
	pools map[common.Address]*entry

	patcher *patcher.StatePatcher
	differ  *differ.StateDiffer
	stale   atomic.Uint64
	metrics *Metrics
	logger  Logger
}

// New constructs a Tracker from a configuration, returning an error if the config is invalid.
func New(cfg *Config) (*Tracker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	patchers := cfg.Patchers
	if patchers == nil {
		patchers = patcher.Default()
	}
	statePatcher, err := patcher.NewStatePatcher(&patcher.StatePatcherConfig{Patchers: patchers})
	if err != nil {
		return nil, err
	}
	stateDiffer, err := differ.NewStateDiffer(&differ.StateDifferConfig{
		Registry: cfg.Registry,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Tracker{
		pools:   make(map[common.Address]*entry),
		patcher: statePatcher,
		differ:  stateDiffer,
		metrics: NewMetrics(cfg.Registry),
		logger:  cfg.Logger,
	}, nil
}

// Register starts tracking a pool from an initial snapshot.
func (t *Tracker) Register(s simulator.Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pools[s.Pool.Address]; ok {
		return fmt.Errorf("%w: %s", ErrPoolExists, s.Pool.Address)
	}
	owned := s.Clone()
	e := &entry{}
	e.current.Store(&owned)
	t.pools[s.Pool.Address] = e
	t.metrics.poolsTracked.Set(float64(len(t.pools)))

	t.logger.Debug("Pool registered", "pool", s.Pool.Address, "variant", s.Pool.Variant, "marker", s.Marker)
	return nil
}

// Remove stops tracking a pool. It reports whether the pool was tracked.
func (t *Tracker) Remove(address common.Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pools[address]; !ok {
		return false
	}
	delete(t.pools, address)
	t.metrics.poolsTracked.Set(float64(len(t.pools)))
	return true
}

func (t *Tracker) lookup(address common.Address) (*entry, error) {
	t.mu.RLock()
	e, ok := t.pools[address]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPool, address)
	}
	return e, nil
}

// Snapshot returns the current state of a pool. The result is immutable and
// stays valid while further events are applied.
func (t *Tracker) Snapshot(address common.Address) (simulator.Snapshot, error) {
	e, err := t.lookup(address)
	if err != nil {
		return simulator.Snapshot{}, err
	}
	return *e.current.Load(), nil
}

// Pools returns the descriptions of all tracked pools ordered by address.
func (t *Tracker) Pools() []engine.Pool {
	t.mu.RLock()
	pools := make([]engine.Pool, 0, len(t.pools))
	for _, e := range t.pools {
		pools = append(pools, e.current.Load().Pool)
	}
	t.mu.RUnlock()

	slices.SortFunc(pools, func(a, b engine.Pool) int {
		return bytes.Compare(a.Address.Bytes(), b.Address.Bytes())
	})
	return pools
}

// StaleEvents returns the number of events dropped as stale so far.
func (t *Tracker) StaleEvents() uint64 {
	return t.stale.Load()
}

// ApplyEvent applies ev, observed at marker, to the pool at address and returns
// the new snapshot. An event not newer than the current state is dropped with
// engine.ErrStaleEvent and the unchanged snapshot, which makes redelivery harmless.
// A failed event leaves the state untouched.
func (t *Tracker) ApplyEvent(address common.Address, marker engine.Marker, ev engine.Event) (simulator.Snapshot, error) {
	timer := prometheus.NewTimer(t.metrics.applyDuration)
	defer timer.ObserveDuration()

	e, err := t.lookup(address)
	if err != nil {
		t.metrics.eventsRejected.WithLabelValues("unknown_pool").Inc()
		return simulator.Snapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.current.Load()
	if !marker.After(current.Marker) {
		t.stale.Add(1)
		t.metrics.eventsStale.Inc()
		t.logger.Debug("Dropping stale event",
			"pool", address,
			"event", ev.Name(),
			"marker", marker,
			"current", current.Marker,
		)
		return *current, fmt.Errorf("%w: %s at %s, pool %s is at %s", engine.ErrStaleEvent, ev.Name(), marker, address, current.Marker)
	}

	next, err := t.patcher.Patch(*current, marker, ev)
	if err != nil {
		reason := "invalid_state"
		switch {
		case errors.Is(err, patcher.ErrEventVariantMismatch):
			reason = "variant_mismatch"
		case errors.Is(err, patcher.ErrNoPatcher):
			reason = "unknown_event"
		}
		t.metrics.eventsRejected.WithLabelValues(reason).Inc()
		t.logger.Warn("Failed to apply event", "pool", address, "event", ev.Name(), "marker", marker, "error", err)
		return *current, err
	}

	e.current.Store(&next)
	t.metrics.eventsApplied.WithLabelValues(ev.Name()).Inc()
	return next, nil
}

// Resync compares the tracked pools with states fetched from the chain and
// adopts every fetched state that is not older than the tracked one.
// The returned diff lists the pools whose tracked state had drifted.
func (t *Tracker) Resync(fetched []simulator.Snapshot) (*differ.StateDiff, error) {
	tracked := make(map[common.Address]simulator.Snapshot, len(fetched))
	for _, f := range fetched {
		if s, err := t.Snapshot(f.Pool.Address); err == nil {
			tracked[f.Pool.Address] = s
		}
	}

	diff, err := t.differ.Diff(tracked, fetched)
	if err != nil {
		return nil, err
	}

	for _, f := range fetched {
		if _, ok := tracked[f.Pool.Address]; !ok {
			continue
		}
		e, err := t.lookup(f.Pool.Address)
		if err != nil {
			continue // removed meanwhile
		}

		e.mu.Lock()
		current := e.current.Load()
		if current.Marker.After(f.Marker) {
			t.logger.Info("Keeping tracked state newer than fetched state",
				"pool", f.Pool.Address, "tracked", current.Marker, "fetched", f.Marker)
		} else {
			adopted := f.Clone()
			e.current.Store(&adopted)
		}
		e.mu.Unlock()
	}

	return diff, nil
}
