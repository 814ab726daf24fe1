package uniswapv3

import (
	"fmt"
	"math/big"

	"github.com/defistate/defistate-arb-go/protocols/uniswapv3/calculator/tickmath"
)

// --- Deep Copy Helper Functions ---

// copyTickInfo creates a deep copy of a TickInfo struct, ensuring *big.Int pointers are new.
func copyTickInfo(t TickInfo) TickInfo {
	newTick := t
	newTick.LiquidityNet = new(big.Int).Set(t.LiquidityNet)
	newTick.LiquidityGross = new(big.Int).Set(t.LiquidityGross)
	return newTick
}

// Clone returns a Pool with its own memory for every pointer, including the
// tick slice. Use it when taking ownership of a state built by someone else.
func (p Pool) Clone() Pool {
	newPool := p
	if p.Liquidity != nil {
		newPool.Liquidity = new(big.Int).Set(p.Liquidity)
	}
	if p.SqrtPriceX96 != nil {
		newPool.SqrtPriceX96 = new(big.Int).Set(p.SqrtPriceX96)
	}
	if p.Ticks != nil {
		newTicks := make([]TickInfo, len(p.Ticks))
		for i, tick := range p.Ticks {
			newTicks[i] = copyTickInfo(tick)
		}
		newPool.Ticks = newTicks
	}
	return newPool
}

// --- Event Patches ---
//
// Every patch returns a new Pool and leaves prev untouched. Big integers are
// never mutated after construction, so unchanged ticks are shared between the
// old and the new value.

// ApplySwap replaces slot0 and the active liquidity. The tick slice is shared.
func ApplySwap(prev Pool, ev Swap) (Pool, error) {
	if ev.Liquidity == nil || ev.Liquidity.Sign() < 0 || ev.Liquidity.BitLen() > 128 {
		return Pool{}, fmt.Errorf("%w: swap liquidity %v outside uint128", ErrInvalidState, ev.Liquidity)
	}
	if err := validatePrice(ev.SqrtPriceX96, ev.Tick); err != nil {
		return Pool{}, fmt.Errorf("%w: swap on %s: %v", ErrInvalidState, prev.Address, err)
	}

	next := prev
	next.SqrtPriceX96 = new(big.Int).Set(ev.SqrtPriceX96)
	next.Liquidity = new(big.Int).Set(ev.Liquidity)
	next.Tick = ev.Tick
	return next, nil
}

// ApplyMint adds liquidity to a position, initializing its bounding ticks when needed.
func ApplyMint(prev Pool, ev Mint) (Pool, error) {
	if ev.Amount == nil || ev.Amount.Sign() <= 0 || ev.Amount.BitLen() > 128 {
		return Pool{}, fmt.Errorf("%w: mint amount %v", ErrInvalidState, ev.Amount)
	}
	return updatePosition(prev, ev.TickLower, ev.TickUpper, ev.Amount)
}

// ApplyBurn removes liquidity from a position and uninitializes ticks left without any.
func ApplyBurn(prev Pool, ev Burn) (Pool, error) {
	if ev.Amount == nil || ev.Amount.Sign() < 0 || ev.Amount.BitLen() > 128 {
		return Pool{}, fmt.Errorf("%w: burn amount %v", ErrInvalidState, ev.Amount)
	}
	if ev.Amount.Sign() == 0 {
		if err := checkTicks(prev, ev.TickLower, ev.TickUpper); err != nil {
			return Pool{}, err
		}
		return prev, nil
	}
	return updatePosition(prev, ev.TickLower, ev.TickUpper, new(big.Int).Neg(ev.Amount))
}

// ApplyFlip toggles an empty tick between initialized and uninitialized.
// Ticks that still reference liquidity cannot be flipped.
func ApplyFlip(prev Pool, ev Flip) (Pool, error) {
	if ev.Tick < tickmath.MIN_TICK || ev.Tick > tickmath.MAX_TICK || ev.Tick%prev.TickSpacing != 0 {
		return Pool{}, fmt.Errorf("%w: flip of unusable tick %d", ErrInvalidState, ev.Tick)
	}

	i, found := prev.search(ev.Tick)
	next := prev
	if !found {
		next.Ticks = make([]TickInfo, 0, len(prev.Ticks)+1)
		next.Ticks = append(next.Ticks, prev.Ticks[:i]...)
		next.Ticks = append(next.Ticks, TickInfo{Index: ev.Tick, LiquidityGross: new(big.Int), LiquidityNet: new(big.Int)})
		next.Ticks = append(next.Ticks, prev.Ticks[i:]...)
		return next, nil
	}

	if prev.Ticks[i].LiquidityGross.Sign() != 0 {
		return Pool{}, fmt.Errorf("%w: flip of tick %d holding liquidity %s", ErrInvalidState, ev.Tick, prev.Ticks[i].LiquidityGross)
	}
	next.Ticks = make([]TickInfo, 0, len(prev.Ticks)-1)
	next.Ticks = append(next.Ticks, prev.Ticks[:i]...)
	next.Ticks = append(next.Ticks, prev.Ticks[i+1:]...)
	return next, nil
}

func checkTicks(p Pool, lower, upper int32) error {
	switch {
	case lower >= upper:
		return fmt.Errorf("%w: tick lower %d not below upper %d", ErrInvalidState, lower, upper)
	case lower < tickmath.MIN_TICK:
		return fmt.Errorf("%w: tick lower %d below minimum", ErrInvalidState, lower)
	case upper > tickmath.MAX_TICK:
		return fmt.Errorf("%w: tick upper %d above maximum", ErrInvalidState, upper)
	case lower%p.TickSpacing != 0 || upper%p.TickSpacing != 0:
		return fmt.Errorf("%w: ticks %d/%d not multiples of spacing %d", ErrInvalidState, lower, upper, p.TickSpacing)
	}
	return nil
}

// updatePosition applies a signed liquidity delta to [lower, upper) the way
// UniswapV3Pool._modifyPosition does.
func updatePosition(prev Pool, lower, upper int32, delta *big.Int) (Pool, error) {
	if err := checkTicks(prev, lower, upper); err != nil {
		return Pool{}, err
	}

	next := prev
	ticks := make([]TickInfo, len(prev.Ticks), len(prev.Ticks)+2)
	copy(ticks, prev.Ticks)

	var err error
	if ticks, err = updateTick(ticks, lower, delta, false); err != nil {
		return Pool{}, err
	}
	if ticks, err = updateTick(ticks, upper, delta, true); err != nil {
		return Pool{}, err
	}
	next.Ticks = ticks

	if lower <= prev.Tick && prev.Tick < upper {
		liquidity := new(big.Int).Add(prev.Liquidity, delta)
		if liquidity.Sign() < 0 || liquidity.BitLen() > 128 {
			return Pool{}, fmt.Errorf("%w: active liquidity %s outside uint128", ErrInvalidState, liquidity)
		}
		next.Liquidity = liquidity
	}
	return next, nil
}

// updateTick applies delta to one boundary tick of ticks, which the caller owns.
// The upper boundary subtracts delta from the net liquidity.
func updateTick(ticks []TickInfo, index int32, delta *big.Int, upper bool) ([]TickInfo, error) {
	i, found := Pool{Ticks: ticks}.search(index)

	gross, net := new(big.Int), new(big.Int)
	if found {
		gross.Set(ticks[i].LiquidityGross)
		net.Set(ticks[i].LiquidityNet)
	}
	gross.Add(gross, delta)
	if upper {
		net.Sub(net, delta)
	} else {
		net.Add(net, delta)
	}

	switch {
	case gross.Sign() < 0:
		return nil, fmt.Errorf("%w: tick %d gross liquidity below zero", ErrInvalidState, index)
	case gross.BitLen() > 128:
		return nil, fmt.Errorf("%w: tick %d gross liquidity above uint128", ErrInvalidState, index)
	case net.CmpAbs(maxInt128) > 0:
		return nil, fmt.Errorf("%w: tick %d net liquidity outside int128", ErrInvalidState, index)
	}

	updated := TickInfo{Index: index, LiquidityGross: gross, LiquidityNet: net}
	switch {
	case found && gross.Sign() == 0:
		return append(ticks[:i], ticks[i+1:]...), nil
	case found:
		ticks[i] = updated
		return ticks, nil
	default:
		ticks = append(ticks, TickInfo{})
		copy(ticks[i+1:], ticks[i:])
		ticks[i] = updated
		return ticks, nil
	}
}
