package arbitrage

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/defistate-arb-go/engine"
	"github.com/defistate/defistate-arb-go/fixedpoint"
	uniswapv2calculator "github.com/defistate/defistate-arb-go/protocols/uniswapv2/calculator"
	"github.com/defistate/defistate-arb-go/simulator"
)

// Limit bounds the input sizes searched for one start asset, in raw units.
type Limit struct {
	Min *big.Int
	Max *big.Int
}

func (l Limit) validate() error {
	if l.Min == nil || l.Max == nil {
		return errors.New("limit bounds cannot be nil")
	}
	if l.Min.Sign() <= 0 {
		return fmt.Errorf("limit minimum %s must be positive", l.Min)
	}
	if l.Max.Cmp(l.Min) < 0 {
		return fmt.Errorf("limit maximum %s is below minimum %s", l.Max, l.Min)
	}
	return nil
}

// Config holds the search parameters and dependencies of an Evaluator.
type Config struct {
	DefaultLimit Limit                    // Required. Used for start assets without an entry in Limits.
	Limits       map[common.Address]Limit // Optional per start asset bounds.
	GridPoints   int                      // Points of the geometric grid scan. Default 16.
	// Tolerance is the bracket width at which golden-section search stops. Default 2.
	Tolerance     *big.Int
	MaxIterations int // Golden-section iterations per bracket. Default 256.

	Registry prometheus.Registerer // Required for metrics.
	Logger   Logger                // Required for logging.
}

func (c *Config) validate() error {
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	if err := c.DefaultLimit.validate(); err != nil {
		return fmt.Errorf("config: default %w", err)
	}
	for asset, l := range c.Limits {
		if err := l.validate(); err != nil {
			return fmt.Errorf("config: %s %w", asset, err)
		}
	}
	if c.GridPoints < 0 || c.GridPoints == 1 {
		return fmt.Errorf("config: GridPoints %d must be at least 2", c.GridPoints)
	}
	if c.Tolerance != nil && c.Tolerance.Sign() <= 0 {
		return errors.New("config: Tolerance must be positive")
	}
	if c.MaxIterations < 0 {
		return errors.New("config: MaxIterations cannot be negative")
	}
	return nil
}

// Evaluator searches the most profitable input size of a cycle. It only reads
// snapshots and is safe for concurrent use.
type Evaluator struct {
	defaultLimit  Limit
	limits        map[common.Address]Limit
	gridPoints    int
	tolerance     *big.Int
	maxIterations int

	metrics *Metrics
	logger  Logger
}

func NewEvaluator(cfg *Config) (*Evaluator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	e := &Evaluator{
		defaultLimit:  cfg.DefaultLimit,
		limits:        make(map[common.Address]Limit, len(cfg.Limits)),
		gridPoints:    cfg.GridPoints,
		tolerance:     cfg.Tolerance,
		maxIterations: cfg.MaxIterations,
		metrics:       NewMetrics(cfg.Registry),
		logger:        cfg.Logger,
	}
	for asset, l := range cfg.Limits {
		e.limits[asset] = l
	}
	if e.gridPoints == 0 {
		e.gridPoints = 16
	}
	if e.tolerance == nil {
		e.tolerance = big.NewInt(2)
	}
	if e.maxIterations == 0 {
		e.maxIterations = 256
	}
	return e, nil
}

// Limit returns the search bounds used for cycles starting at asset.
func (e *Evaluator) Limit(asset common.Address) Limit {
	if l, ok := e.limits[asset]; ok {
		return l
	}
	return e.defaultLimit
}

// Evaluate reads one snapshot of every pool of the path and returns the
// opportunity at the most profitable input size found. The returned
// opportunity may carry a non-positive profit when no size is profitable.
func (e *Evaluator) Evaluate(path Path, provider SnapshotProvider) (Opportunity, error) {
	start := time.Now()
	defer func() { e.metrics.evaluateDuration.Observe(time.Since(start).Seconds()) }()

	opp, err := e.evaluate(path, provider)
	switch {
	case errors.Is(err, ErrNoFeasibleInput):
		e.metrics.evaluations.WithLabelValues("infeasible").Inc()
	case err != nil:
		e.metrics.evaluations.WithLabelValues("error").Inc()
	case opp.Profitable():
		e.metrics.evaluations.WithLabelValues("profitable").Inc()
	default:
		e.metrics.evaluations.WithLabelValues("unprofitable").Inc()
	}
	return opp, err
}

func (e *Evaluator) evaluate(path Path, provider SnapshotProvider) (Opportunity, error) {
	if path.Len() == 0 {
		return Opportunity{}, ErrEmptyPath
	}
	snapshots, err := Capture(path, provider)
	if err != nil {
		return Opportunity{}, err
	}

	s := &search{
		evaluator: e,
		path:      path,
		snapshots: snapshots,
		memo:      make(map[string]*Opportunity),
	}
	limit := e.Limit(path.Start())

	if err := s.run(limit); err != nil {
		return Opportunity{}, err
	}
	if s.best == nil {
		return Opportunity{}, fmt.Errorf("%w: %s within [%s, %s]", ErrNoFeasibleInput, path, limit.Min, limit.Max)
	}
	return *s.best, nil
}

// Capture reads the snapshot of every pool on the path once, so that every
// size tried by a search prices against the same states.
func Capture(path Path, provider SnapshotProvider) (map[common.Address]simulator.Snapshot, error) {
	snapshots := make(map[common.Address]simulator.Snapshot, path.Len())
	for i := 0; i < path.Len(); i++ {
		step := path.Step(i)
		s, err := provider.Snapshot(step.Pool.Address)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if s.Pool != step.Pool {
			return nil, fmt.Errorf("%w: snapshot of %s describes another pool", engine.ErrAssetMismatch, step.Pool.Address)
		}
		snapshots[step.Pool.Address] = s
	}
	return snapshots, nil
}

// EvaluateAmount trades amountIn around the path against the given snapshots.
// Sizes the path cannot trade fail with ErrInfeasible.
func (e *Evaluator) EvaluateAmount(path Path, snapshots map[common.Address]simulator.Snapshot, amountIn *big.Int) (Opportunity, error) {
	return evaluateAmount(path, snapshots, amountIn)
}

func evaluateAmount(path Path, snapshots map[common.Address]simulator.Snapshot, amountIn *big.Int) (Opportunity, error) {
	if path.Len() == 0 {
		return Opportunity{}, ErrEmptyPath
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return Opportunity{}, fmt.Errorf("%w: amount %v is not positive", ErrInfeasible, amountIn)
	}

	opp := Opportunity{
		Path:     path,
		AmountIn: new(big.Int).Set(amountIn),
		Steps:    make([]simulator.SwapResult, path.Len()),
		Markers:  make([]engine.Marker, path.Len()),
	}
	amount := amountIn
	for i := 0; i < path.Len(); i++ {
		step := path.Step(i)
		s, ok := snapshots[step.Pool.Address]
		if !ok {
			return Opportunity{}, fmt.Errorf("%w: %s", ErrMissingSnapshot, step.Pool.Address)
		}
		if s.Pool != step.Pool {
			return Opportunity{}, fmt.Errorf("%w: snapshot of %s describes another pool", engine.ErrAssetMismatch, step.Pool.Address)
		}

		res, err := s.Simulate(amount, step.TokenIn)
		if err != nil {
			if infeasible(err) {
				return Opportunity{}, fmt.Errorf("%w: step %d: %w", ErrInfeasible, i, err)
			}
			return Opportunity{}, fmt.Errorf("step %d: %w", i, err)
		}
		if !res.Consumed {
			return Opportunity{}, fmt.Errorf("%w: step %d through %s filled %s of %s", ErrInfeasible, i, step.Pool.Address, res.AmountIn, amount)
		}
		if res.AmountOut.Sign() == 0 {
			return Opportunity{}, fmt.Errorf("%w: step %d through %s returned nothing", ErrInfeasible, i, step.Pool.Address)
		}

		opp.Steps[i] = res
		opp.Markers[i] = s.Marker
		amount = res.AmountOut
	}

	opp.AmountOut = new(big.Int).Set(amount)
	opp.Profit = new(big.Int).Sub(opp.AmountOut, opp.AmountIn)
	return opp, nil
}

func infeasible(err error) bool {
	return errors.Is(err, engine.ErrInsufficientLiquidity) ||
		errors.Is(err, fixedpoint.ErrArithmeticOverflow) ||
		errors.Is(err, uniswapv2calculator.ErrInsufficientOutput)
}
