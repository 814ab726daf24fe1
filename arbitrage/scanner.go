package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/big"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ScannerConfig holds the dependencies of a Scanner.
type ScannerConfig struct {
	Evaluator *Evaluator // Required.
	Logger    Logger     // Required for logging.
	Workers   int        // Paths evaluated in parallel. Default GOMAXPROCS.
	// MinProfit is the profit an opportunity must exceed to be reported. Default 0.
	MinProfit *big.Int
}

func (c *ScannerConfig) validate() error {
	if c.Evaluator == nil {
		return errors.New("config: Evaluator cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: Workers %d cannot be negative", c.Workers)
	}
	if c.MinProfit != nil && c.MinProfit.Sign() < 0 {
		return errors.New("config: MinProfit cannot be negative")
	}
	return nil
}

// Scanner evaluates many paths in parallel.
type Scanner struct {
	evaluator *Evaluator
	workers   int
	minProfit *big.Int
	logger    Logger
}

func NewScanner(cfg *ScannerConfig) (*Scanner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &Scanner{
		evaluator: cfg.Evaluator,
		workers:   cfg.Workers,
		minProfit: cfg.MinProfit,
		logger:    cfg.Logger,
	}
	if s.workers == 0 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	if s.minProfit == nil {
		s.minProfit = new(big.Int)
	}
	return s, nil
}

// Scan evaluates every path against the provider's current snapshots and
// returns the opportunities above the minimum profit, most profitable first.
// Cancellation is checked between paths; a path already being evaluated runs
// to completion. On cancellation the opportunities found so far are returned
// with the context's error.
func (s *Scanner) Scan(ctx context.Context, paths iter.Seq[Path], provider SnapshotProvider) ([]Opportunity, error) {
	start := time.Now()
	defer func() { s.evaluator.metrics.scanDuration.Observe(time.Since(start).Seconds()) }()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	var (
		mu    sync.Mutex
		found []Opportunity
	)
	for path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.evaluator.metrics.pathsScanned.Inc()

			opp, err := s.evaluator.Evaluate(path, provider)
			if err != nil {
				if !errors.Is(err, ErrNoFeasibleInput) {
					s.logger.Debug("path evaluation failed", "path", path.String(), "error", err)
				}
				return nil
			}
			if opp.Profit.Cmp(s.minProfit) <= 0 {
				return nil
			}

			mu.Lock()
			found = append(found, opp)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	SortByProfit(found)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return found, ctxErr
	}
	return found, err
}
