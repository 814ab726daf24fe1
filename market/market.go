package market

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/defistate-arb-go/arbitrage"
	"github.com/defistate/defistate-arb-go/decoder"
	"github.com/defistate/defistate-arb-go/differ"
	"github.com/defistate/defistate-arb-go/engine"
	"github.com/defistate/defistate-arb-go/graph"
	"github.com/defistate/defistate-arb-go/simulator"
	"github.com/defistate/defistate-arb-go/tracker"
)

var ErrClosed = errors.New("market is closed")

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Block is the ordered set of logs emitted by one block.
type Block struct {
	Number uint64
	Logs   []types.Log
}

// Result is the outcome of scanning the market after a block.
type Result struct {
	Block             uint64
	Applied           int
	Skipped           int
	Opportunities     []arbitrage.Opportunity
	ScannedAtUnixNs   uint64
	ScanDurationNanos int64
}

// Market owns the assets, the pool graph, the tracked pool states and the
// arbitrage search built on them. It replaces any process-wide state: every
// component reachable from a Market belongs to it.
type Market struct {
	logger  Logger
	metrics *Metrics

	assetsMu sync.RWMutex
	assets   map[common.Address]engine.Asset

	graph     *graph.Graph
	tracker   *tracker.Tracker
	evaluator *arbitrage.Evaluator
	scanner   *arbitrage.Scanner
	decoder   *decoder.Decoder

	maxHops     int
	startAssets []common.Address
	bufferSize  int

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(logger Logger, registry prometheus.Registerer, opts ...Option) (*Market, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(o)
	}
	if o.maxHops < 2 {
		return nil, fmt.Errorf("max hops %d must be at least 2", o.maxHops)
	}
	if o.bufferSize < 0 {
		return nil, fmt.Errorf("buffer size %d cannot be negative", o.bufferSize)
	}

	t, err := tracker.New(&tracker.Config{Registry: registry, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker: %w", err)
	}
	evaluator, err := arbitrage.NewEvaluator(&arbitrage.Config{
		DefaultLimit: o.defaultLimit,
		Limits:       o.limits,
		GridPoints:   o.gridPoints,
		Registry:     registry,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluator: %w", err)
	}
	scanner, err := arbitrage.NewScanner(&arbitrage.ScannerConfig{
		Evaluator: evaluator,
		Logger:    logger,
		Workers:   o.workers,
		MinProfit: o.minProfit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}
	d, err := decoder.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &Market{
		logger:      logger,
		metrics:     NewMetrics(registry),
		assets:      make(map[common.Address]engine.Asset),
		graph:       graph.New(o.compactionThreshold),
		tracker:     t,
		evaluator:   evaluator,
		scanner:     scanner,
		decoder:     d,
		maxHops:     o.maxHops,
		startAssets: o.startAssets,
		bufferSize:  o.bufferSize,
		done:        make(chan struct{}),
	}, nil
}

func (m *Market) AddAsset(asset engine.Asset) {
	m.assetsMu.Lock()
	defer m.assetsMu.Unlock()
	m.assets[asset.Address] = asset
}

func (m *Market) Asset(address common.Address) (engine.Asset, bool) {
	m.assetsMu.RLock()
	defer m.assetsMu.RUnlock()
	a, ok := m.assets[address]
	return a, ok
}

// Assets returns the known assets ordered by address.
func (m *Market) Assets() []engine.Asset {
	m.assetsMu.RLock()
	assets := make([]engine.Asset, 0, len(m.assets))
	for _, a := range m.assets {
		assets = append(assets, a)
	}
	m.assetsMu.RUnlock()

	slices.SortFunc(assets, func(a, b engine.Asset) int {
		return bytes.Compare(a.Address.Bytes(), b.Address.Bytes())
	})
	return assets
}

// AddPool starts tracking a pool from its initial snapshot and links it into
// the graph.
func (m *Market) AddPool(s simulator.Snapshot) error {
	if err := m.tracker.Register(s); err != nil {
		return err
	}
	if err := m.graph.AddPool(s.Pool); err != nil {
		m.tracker.Remove(s.Pool.Address)
		return err
	}
	m.logger.Debug("Pool added", "pool", s.Pool.Address, "variant", s.Pool.Variant)
	return nil
}

// RemovePool reports whether the pool was tracked.
func (m *Market) RemovePool(address common.Address) bool {
	m.graph.RemovePool(address)
	return m.tracker.Remove(address)
}

func (m *Market) Snapshot(address common.Address) (simulator.Snapshot, error) {
	return m.tracker.Snapshot(address)
}

func (m *Market) Pools() []engine.Pool {
	return m.tracker.Pools()
}

func (m *Market) StaleEvents() uint64 {
	return m.tracker.StaleEvents()
}

func (m *Market) ApplyEvent(address common.Address, marker engine.Marker, ev engine.Event) (simulator.Snapshot, error) {
	return m.tracker.ApplyEvent(address, marker, ev)
}

// ApplyLog decodes a pool log and applies it to the tracked state.
func (m *Market) ApplyLog(log types.Log) (simulator.Snapshot, error) {
	address, marker, ev, err := m.decoder.Decode(log)
	if err != nil {
		return simulator.Snapshot{}, err
	}
	return m.tracker.ApplyEvent(address, marker, ev)
}

// Resync adopts pool states read from the chain and reports the drift.
func (m *Market) Resync(fetched []simulator.Snapshot) (*differ.StateDiff, error) {
	return m.tracker.Resync(fetched)
}

// Paths returns the cycles a scan evaluates.
func (m *Market) Paths(starts ...common.Address) iter.Seq[arbitrage.Path] {
	if len(starts) == 0 {
		starts = m.startAssets
	}
	if len(starts) == 0 {
		return m.graph.AllCycles(m.maxHops)
	}
	seqs := make([]iter.Seq[arbitrage.Path], len(starts))
	for i, s := range starts {
		seqs[i] = m.graph.FindCycles(s, m.maxHops)
	}
	return func(yield func(arbitrage.Path) bool) {
		for _, seq := range seqs {
			for p := range seq {
				if !yield(p) {
					return
				}
			}
		}
	}
}

// Scan evaluates the cycles through starts, or the configured start assets,
// against the current pool states.
func (m *Market) Scan(ctx context.Context, starts ...common.Address) ([]arbitrage.Opportunity, error) {
	select {
	case <-m.done:
		return nil, ErrClosed
	default:
	}
	return m.scanner.Scan(ctx, m.Paths(starts...), m.tracker)
}

// Run applies the logs of every block received and scans the market after
// each one. A new block cancels the scan of the previous one. Results are
// best-effort: if the consumer is slow, results are dropped. The returned
// channel is closed once blocks is closed, ctx is done or the market is closed.
func (m *Market) Run(ctx context.Context, blocks <-chan Block) <-chan Result {
	results := make(chan Result, m.bufferSize)
	m.wg.Add(1)
	go m.loop(ctx, blocks, results)
	return results
}

func (m *Market) loop(ctx context.Context, blocks <-chan Block, results chan<- Result) {
	defer m.wg.Done()

	var (
		scans      sync.WaitGroup
		cancelScan context.CancelFunc = func() {}
	)
	defer func() {
		cancelScan()
		scans.Wait()
		close(results)
		m.logger.Info("Market run stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case block, ok := <-blocks:
			if !ok {
				return
			}
			// the previous scan must not read states of this block
			cancelScan()
			scans.Wait()

			applied, skipped := m.applyBlock(block)
			m.metrics.blocks.Inc()

			scanCtx, cancel := context.WithCancel(ctx)
			cancelScan = cancel
			scans.Add(1)
			go func() {
				defer scans.Done()
				m.scanBlock(scanCtx, block.Number, applied, skipped, results)
			}()
		}
	}
}

func (m *Market) applyBlock(block Block) (applied, skipped int) {
	for _, log := range block.Logs {
		_, err := m.ApplyLog(log)
		if err == nil {
			applied++
			continue
		}
		skipped++

		reason := "invalid"
		switch {
		case errors.Is(err, engine.ErrStaleEvent):
			reason = "stale"
		case errors.Is(err, tracker.ErrUnknownPool):
			reason = "untracked_pool"
		case errors.Is(err, decoder.ErrUnknownEvent):
			reason = "unknown_event"
		case errors.Is(err, decoder.ErrRemovedLog):
			reason = "removed"
		}
		m.metrics.logsSkipped.WithLabelValues(reason).Inc()
		if reason == "invalid" {
			m.logger.Warn("Failed to apply log", "block", block.Number, "pool", log.Address, "index", log.Index, "err", err)
		}
	}
	return applied, skipped
}

func (m *Market) scanBlock(ctx context.Context, number uint64, applied, skipped int, results chan<- Result) {
	start := time.Now()
	opps, err := m.scanner.Scan(ctx, m.Paths(), m.tracker)
	if err != nil {
		m.metrics.scansCancelled.Inc()
		m.logger.Debug("Scan cancelled", "block", number, "found", len(opps), "err", err)
		return
	}
	m.metrics.opportunities.Set(float64(len(opps)))

	m.deliver(ctx, Result{
		Block:             number,
		Applied:           applied,
		Skipped:           skipped,
		Opportunities:     opps,
		ScannedAtUnixNs:   uint64(time.Now().UnixNano()),
		ScanDurationNanos: time.Since(start).Nanoseconds(),
	}, results)
}

// deliver sends a result unless its scan was superseded or the buffer is full.
func (m *Market) deliver(ctx context.Context, result Result, results chan<- Result) {
	if ctx.Err() != nil {
		m.metrics.scansCancelled.Inc()
		m.logger.Debug("Scan superseded, discarding result", "block", result.Block)
		return
	}
	select {
	case results <- result:
	default:
		m.metrics.resultsDropped.Inc()
		m.logger.Warn("Result buffer full, discarding scan result...", "block", result.Block)
	}
}

// Close stops every Run loop and waits for them to finish.
func (m *Market) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}
