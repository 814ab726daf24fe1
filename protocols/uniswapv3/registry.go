package uniswapv3

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/defistate/defistate-arb-go/fixedpoint"
	"github.com/defistate/defistate-arb-go/protocols/uniswapv3/calculator/tickmath"
)

var ErrInvalidState = errors.New("invalid uniswap v3 pool state")

// maxInt128 bounds liquidityNet, which is an int128 on-chain.
var maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

// Pool mirrors the slot0, liquidity and initialized ticks of a Uniswap V3 pool.
// A value is never modified once it has been handed out; patches build new values.
type Pool struct {
	Address      common.Address `json:"address"`
	Token0       common.Address `json:"token0"`
	Token1       common.Address `json:"token1"`
	Fee          uint32         `json:"fee"` // parts per million, i.e 3000 for 0.3%
	TickSpacing  int32          `json:"tickSpacing"`
	Tick         int32          `json:"tick"`
	Liquidity    *big.Int       `json:"liquidity"`
	SqrtPriceX96 *big.Int       `json:"sqrtPriceX96"`
	// Ticks holds every initialized tick sorted by index.
	Ticks []TickInfo `json:"ticks"`
}

// TickInfo is the liquidity bookkeeping of an initialized tick.
// Presence in Pool.Ticks means the tick is initialized.
type TickInfo struct {
	Index          int32    `json:"index"`
	LiquidityGross *big.Int `json:"liquidityGross"`
	LiquidityNet   *big.Int `json:"liquidityNet"`
}

// Validate checks the invariants the swap simulation relies on.
func (p Pool) Validate() error {
	if p.TickSpacing <= 0 {
		return fmt.Errorf("%w: %s tick spacing %d", ErrInvalidState, p.Address, p.TickSpacing)
	}
	if p.Liquidity == nil || p.Liquidity.Sign() < 0 || p.Liquidity.BitLen() > 128 {
		return fmt.Errorf("%w: %s liquidity %v outside uint128", ErrInvalidState, p.Address, p.Liquidity)
	}
	if err := validatePrice(p.SqrtPriceX96, p.Tick); err != nil {
		return fmt.Errorf("%w: %s %v", ErrInvalidState, p.Address, err)
	}

	for i, t := range p.Ticks {
		if i > 0 && t.Index <= p.Ticks[i-1].Index {
			return fmt.Errorf("%w: %s ticks not strictly ascending at %d", ErrInvalidState, p.Address, t.Index)
		}
		if t.Index < tickmath.MIN_TICK || t.Index > tickmath.MAX_TICK || t.Index%p.TickSpacing != 0 {
			return fmt.Errorf("%w: %s tick %d is not a usable tick for spacing %d", ErrInvalidState, p.Address, t.Index, p.TickSpacing)
		}
		if t.LiquidityGross == nil || t.LiquidityNet == nil {
			return fmt.Errorf("%w: %s tick %d has no liquidity", ErrInvalidState, p.Address, t.Index)
		}
		if t.LiquidityGross.Sign() < 0 || t.LiquidityGross.BitLen() > 128 {
			return fmt.Errorf("%w: %s tick %d gross liquidity outside uint128", ErrInvalidState, p.Address, t.Index)
		}
		if t.LiquidityNet.CmpAbs(maxInt128) > 0 {
			return fmt.Errorf("%w: %s tick %d net liquidity outside int128", ErrInvalidState, p.Address, t.Index)
		}
	}
	return nil
}

// validatePrice requires ratio(tick) <= sqrtPrice <= ratio(tick+1). The upper
// bound is inclusive because a pool that stopped exactly on a tick while moving
// down reports tick-1.
func validatePrice(sqrtPriceX96 *big.Int, tick int32) error {
	var price uint256.Int
	if err := fixedpoint.FromBig(&price, sqrtPriceX96, 160); err != nil || sqrtPriceX96 == nil {
		return fmt.Errorf("sqrt price %v outside uint160", sqrtPriceX96)
	}
	if price.Lt(tickmath.MIN_SQRT_RATIO) || !price.Lt(tickmath.MAX_SQRT_RATIO) {
		return fmt.Errorf("sqrt price %v out of range", sqrtPriceX96)
	}
	if tick < tickmath.MIN_TICK || tick >= tickmath.MAX_TICK {
		return fmt.Errorf("tick %d out of range", tick)
	}

	var lower, upper uint256.Int
	if err := tickmath.GetSqrtRatioAtTick(&lower, tick); err != nil {
		return err
	}
	if err := tickmath.GetSqrtRatioAtTick(&upper, tick+1); err != nil {
		return err
	}
	if price.Lt(&lower) || price.Gt(&upper) {
		return fmt.Errorf("sqrt price %v is not inside tick %d", sqrtPriceX96, tick)
	}
	return nil
}

// TickAt returns the initialized tick at index.
func (p Pool) TickAt(index int32) (TickInfo, bool) {
	i, found := p.search(index)
	if !found {
		return TickInfo{}, false
	}
	return p.Ticks[i], true
}

// search returns the position of index in Ticks, or where it would be inserted.
func (p Pool) search(index int32) (int, bool) {
	lo, hi := 0, len(p.Ticks)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if p.Ticks[mid].Index < index {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, lo < len(p.Ticks) && p.Ticks[lo].Index == index
}
