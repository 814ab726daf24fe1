package liquiditymath

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/defistate/defistate-arb-go/fixedpoint"
)

var (
	ErrLiquidityOverflow  = fmt.Errorf("%w: liquidity above uint128", fixedpoint.ErrArithmeticOverflow)
	ErrLiquidityUnderflow = fmt.Errorf("%w: liquidity below zero", fixedpoint.ErrArithmeticOverflow)
)

// AddDelta sets z = x + y for an unsigned uint128 liquidity x and a signed
// int128 delta y, as LiquidityMath.addDelta. z may alias x.
func AddDelta(z, x *uint256.Int, y *big.Int) error {
	if y.BitLen() > 128 {
		return fmt.Errorf("%w: delta %s exceeds int128", fixedpoint.ErrArithmeticOverflow, y)
	}
	var delta uint256.Int
	delta.SetFromBig(y)
	if y.Sign() < 0 {
		delta.Neg(&delta)
		if x.Lt(&delta) {
			return ErrLiquidityUnderflow
		}
		z.Sub(x, &delta)
		return nil
	}
	z.Add(x, &delta)
	if z.BitLen() > 128 {
		return ErrLiquidityOverflow
	}
	return nil
}

// SubDelta sets z = x - y, the direction used when a swap crosses a tick
// right to left.
func SubDelta(z, x *uint256.Int, y *big.Int) error {
	if y.BitLen() > 128 {
		return fmt.Errorf("%w: delta %s exceeds int128", fixedpoint.ErrArithmeticOverflow, y)
	}
	var delta uint256.Int
	delta.SetFromBig(y)
	if y.Sign() < 0 {
		delta.Neg(&delta)
		z.Add(x, &delta)
		if z.BitLen() > 128 {
			return ErrLiquidityOverflow
		}
		return nil
	}
	if x.Lt(&delta) {
		return ErrLiquidityUnderflow
	}
	z.Sub(x, &delta)
	return nil
}
