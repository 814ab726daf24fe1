package simulator

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-arb-go/engine"
	uniswapv2 "github.com/defistate/defistate-arb-go/protocols/uniswapv2"
	uniswapv2calculator "github.com/defistate/defistate-arb-go/protocols/uniswapv2/calculator"
	uniswapv3 "github.com/defistate/defistate-arb-go/protocols/uniswapv3"
	uniswapv3calculator "github.com/defistate/defistate-arb-go/protocols/uniswapv3/calculator"
)

// ErrStateMismatch is returned when a snapshot's state does not belong to its pool.
var ErrStateMismatch = errors.New("snapshot state does not match pool")

// Snapshot is the state of one pool at Marker. Exactly one of V2 and V3 is
// set, selected by Pool.Variant. A Snapshot is never modified after it is built;
// simulations and patches return new values.
type Snapshot struct {
	Pool   engine.Pool     `json:"pool"`
	Marker engine.Marker   `json:"marker"`
	V2     *uniswapv2.Pool `json:"v2,omitempty"`
	V3     *uniswapv3.Pool `json:"v3,omitempty"`
}

// SwapResult is the outcome of selling into a snapshot.
type SwapResult struct {
	AmountIn  *big.Int `json:"amountIn"`
	AmountOut *big.Int `json:"amountOut"`
	// Consumed is false when only part of the requested input could be sold.
	Consumed     bool     `json:"consumed"`
	TicksCrossed int      `json:"ticksCrossed,omitempty"`
	State        Snapshot `json:"-"`
}

// NewConstantProduct wraps a Uniswap V2 pair state.
func NewConstantProduct(pool engine.Pool, marker engine.Marker, state uniswapv2.Pool) (Snapshot, error) {
	s := Snapshot{Pool: pool, Marker: marker, V2: &state}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// NewConcentratedLiquidity wraps a Uniswap V3 pool state.
func NewConcentratedLiquidity(pool engine.Pool, marker engine.Marker, state uniswapv3.Pool) (Snapshot, error) {
	s := Snapshot{Pool: pool, Marker: marker, V3: &state}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Clone returns a Snapshot that shares no memory with s.
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{Pool: s.Pool, Marker: s.Marker}
	if s.V2 != nil {
		state := s.V2.Clone()
		c.V2 = &state
	}
	if s.V3 != nil {
		state := s.V3.Clone()
		c.V3 = &state
	}
	return c
}

// Validate checks the pool description, that the state variant matches it and
// that the state itself is consistent.
func (s Snapshot) Validate() error {
	if err := s.Pool.Validate(); err != nil {
		return err
	}
	switch s.Pool.Variant {
	case engine.ConstantProduct:
		if s.V2 == nil || s.V3 != nil {
			return fmt.Errorf("%w: %s expects a constant product state", ErrStateMismatch, s.Pool.Address)
		}
		if s.V2.Address != s.Pool.Address || s.V2.Token0 != s.Pool.Token0 || s.V2.Token1 != s.Pool.Token1 || s.V2.Fee != s.Pool.Fee {
			return fmt.Errorf("%w: %s", ErrStateMismatch, s.Pool.Address)
		}
		return s.V2.Validate()
	case engine.ConcentratedLiquidity:
		if s.V3 == nil || s.V2 != nil {
			return fmt.Errorf("%w: %s expects a concentrated liquidity state", ErrStateMismatch, s.Pool.Address)
		}
		if s.V3.Address != s.Pool.Address || s.V3.Token0 != s.Pool.Token0 || s.V3.Token1 != s.Pool.Token1 ||
			s.V3.Fee != s.Pool.Fee || s.V3.TickSpacing != s.Pool.TickSpacing {
			return fmt.Errorf("%w: %s", ErrStateMismatch, s.Pool.Address)
		}
		return s.V3.Validate()
	}
	return fmt.Errorf("%w: %s", engine.ErrInvalidPool, s.Pool.Variant)
}

// Simulate sells amountIn of tokenIn into the pool. The receiver is not modified.
func (s Snapshot) Simulate(amountIn *big.Int, tokenIn common.Address) (SwapResult, error) {
	switch s.Pool.Variant {
	case engine.ConstantProduct:
		amountOut, next, err := uniswapv2calculator.SimulateSwap(amountIn, tokenIn, *s.V2)
		if err != nil {
			return SwapResult{}, err
		}
		state := s
		state.V2 = &next
		return SwapResult{
			AmountIn:  new(big.Int).Set(amountIn),
			AmountOut: amountOut,
			Consumed:  true,
			State:     state,
		}, nil
	case engine.ConcentratedLiquidity:
		res, err := uniswapv3calculator.SimulateExactInput(amountIn, nil, tokenIn, *s.V3)
		if err != nil {
			return SwapResult{}, err
		}
		state := s
		state.V3 = &res.Pool
		return SwapResult{
			AmountIn:     res.AmountIn,
			AmountOut:    res.AmountOut,
			Consumed:     res.Consumed,
			TicksCrossed: res.TicksCrossed,
			State:        state,
		}, nil
	}
	return SwapResult{}, fmt.Errorf("%w: %s", engine.ErrInvalidPool, s.Pool.Variant)
}

// SpotPrice returns the marginal price of tokenIn in raw units of the other
// token, before fees.
func (s Snapshot) SpotPrice(tokenIn common.Address) (*big.Float, error) {
	switch s.Pool.Variant {
	case engine.ConstantProduct:
		return uniswapv2calculator.GetSpotPrice(tokenIn, *s.V2)
	case engine.ConcentratedLiquidity:
		return uniswapv3calculator.GetSpotPrice(tokenIn, *s.V3)
	}
	return nil, fmt.Errorf("%w: %s", engine.ErrInvalidPool, s.Pool.Variant)
}

// Drift lists the fields that differ between a tracked snapshot and a state
// fetched from the chain for the same pool.
func Drift(tracked, fetched Snapshot) ([]string, error) {
	if tracked.Pool != fetched.Pool {
		return nil, fmt.Errorf("%w: cannot compare %s with %s", ErrStateMismatch, tracked.Pool.Address, fetched.Pool.Address)
	}
	if err := fetched.Validate(); err != nil {
		return nil, err
	}
	switch tracked.Pool.Variant {
	case engine.ConstantProduct:
		return uniswapv2.Drift(*tracked.V2, *fetched.V2), nil
	case engine.ConcentratedLiquidity:
		return uniswapv3.Drift(*tracked.V3, *fetched.V3), nil
	}
	return nil, fmt.Errorf("%w: %s", engine.ErrInvalidPool, tracked.Pool.Variant)
}
