package arbitrage

import (
	"bytes"
	"errors"
	"math/big"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-arb-go/engine"
	"github.com/defistate/defistate-arb-go/simulator"
)

var (
	// ErrInfeasible marks an input size the path cannot trade: a pool runs out
	// of liquidity, fills only part of the input, returns nothing or overflows.
	ErrInfeasible = errors.New("input size is infeasible for path")
	// ErrNoFeasibleInput is returned when no size inside the search bounds can be traded.
	ErrNoFeasibleInput = errors.New("no feasible input size")
	ErrMissingSnapshot = errors.New("missing pool snapshot")
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SnapshotProvider returns the current state of a pool. *tracker.Tracker implements it.
type SnapshotProvider interface {
	Snapshot(address common.Address) (simulator.Snapshot, error)
}

// Opportunity is the outcome of trading AmountIn of the path's start asset
// around the cycle. Profit is AmountOut-AmountIn and may be negative.
type Opportunity struct {
	Path      Path                   `json:"path"`
	AmountIn  *big.Int               `json:"amountIn"`
	AmountOut *big.Int               `json:"amountOut"`
	Profit    *big.Int               `json:"profit"`
	Steps     []simulator.SwapResult `json:"steps"`
	// Markers holds the version of each pool state the evaluation read, by step.
	Markers []engine.Marker `json:"markers"`
}

func (o Opportunity) Profitable() bool {
	return o.Profit != nil && o.Profit.Sign() > 0
}

// betterThan orders opportunities by profit. A nil opportunity is an infeasible
// size and loses to everything.
func (o *Opportunity) betterThan(other *Opportunity) bool {
	if o == nil {
		return false
	}
	if other == nil {
		return true
	}
	return o.Profit.Cmp(other.Profit) > 0
}

// SortByProfit orders opportunities from most to least profitable. Ties are
// broken on the cycle key so the order is deterministic.
func SortByProfit(opps []Opportunity) {
	slices.SortFunc(opps, func(a, b Opportunity) int {
		if c := b.Profit.Cmp(a.Profit); c != 0 {
			return c
		}
		if c := strings.Compare(a.Path.Key(), b.Path.Key()); c != 0 {
			return c
		}
		return bytes.Compare(a.Path.Start().Bytes(), b.Path.Start().Bytes())
	})
}
