package swapmath

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/defistate/defistate-arb-go/fixedpoint"
	"github.com/defistate/defistate-arb-go/protocols/uniswapv3/calculator/sqrtpricemath"
)

// feeDenominator is 100% in pips.
const feeDenominator = 1_000_000

var ErrInvalidFee = errors.New("fee must be below 1e6 pips")

// Step is the outcome of one swap step inside a single tick range.
type Step struct {
	SqrtRatioNextX96 uint256.Int
	AmountIn         uint256.Int
	AmountOut        uint256.Int
	FeeAmount        uint256.Int
}

// ComputeSwapStep is SwapMath.computeSwapStep. amountRemaining is the unsigned
// amount left to swap; exactIn selects whether it is an input or an output.
//
// For exact input the fee is taken from amountRemaining before the step is
// clipped to the target price. When the target is reached the fee is
// recomputed from the input actually used, rounding up; otherwise the whole
// remainder that did not move the price is kept as fee.
func ComputeSwapStep(
	sqrtRatioCurrentX96 *uint256.Int,
	sqrtRatioTargetX96 *uint256.Int,
	liquidity *uint256.Int,
	amountRemaining *uint256.Int,
	exactIn bool,
	feePips uint32,
) (s Step, err error) {
	if feePips >= feeDenominator {
		return s, ErrInvalidFee
	}
	zeroForOne := !sqrtRatioCurrentX96.Lt(sqrtRatioTargetX96)

	var (
		feeComplement  = uint256.NewInt(uint64(feeDenominator - feePips))
		denominator    = uint256.NewInt(feeDenominator)
		amountLessFee  uint256.Int
		amountAtTarget uint256.Int
		reachedTarget  bool
	)

	if exactIn {
		if err = fixedpoint.MulDiv(&amountLessFee, amountRemaining, feeComplement, denominator); err != nil {
			return s, err
		}
		if zeroForOne {
			err = sqrtpricemath.GetAmount0Delta(&amountAtTarget, sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, true)
		} else {
			err = sqrtpricemath.GetAmount1Delta(&amountAtTarget, sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, true)
		}
		if err != nil {
			return s, err
		}
		if !amountLessFee.Lt(&amountAtTarget) {
			s.SqrtRatioNextX96.Set(sqrtRatioTargetX96)
		} else {
			err = sqrtpricemath.GetNextSqrtPriceFromInput(&s.SqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, &amountLessFee, zeroForOne)
			if err != nil {
				return s, err
			}
		}
	} else {
		if zeroForOne {
			err = sqrtpricemath.GetAmount1Delta(&amountAtTarget, sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, false)
		} else {
			err = sqrtpricemath.GetAmount0Delta(&amountAtTarget, sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, false)
		}
		if err != nil {
			return s, err
		}
		if !amountRemaining.Lt(&amountAtTarget) {
			s.SqrtRatioNextX96.Set(sqrtRatioTargetX96)
		} else {
			err = sqrtpricemath.GetNextSqrtPriceFromOutput(&s.SqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, amountRemaining, zeroForOne)
			if err != nil {
				return s, err
			}
		}
	}

	reachedTarget = s.SqrtRatioNextX96.Eq(sqrtRatioTargetX96)

	// recompute the amounts for the price actually reached
	if zeroForOne {
		if reachedTarget && exactIn {
			s.AmountIn.Set(&amountAtTarget)
		} else if err = sqrtpricemath.GetAmount0Delta(&s.AmountIn, &s.SqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, true); err != nil {
			return s, err
		}
		if reachedTarget && !exactIn {
			s.AmountOut.Set(&amountAtTarget)
		} else if err = sqrtpricemath.GetAmount1Delta(&s.AmountOut, &s.SqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, false); err != nil {
			return s, err
		}
	} else {
		if reachedTarget && exactIn {
			s.AmountIn.Set(&amountAtTarget)
		} else if err = sqrtpricemath.GetAmount1Delta(&s.AmountIn, sqrtRatioCurrentX96, &s.SqrtRatioNextX96, liquidity, true); err != nil {
			return s, err
		}
		if reachedTarget && !exactIn {
			s.AmountOut.Set(&amountAtTarget)
		} else if err = sqrtpricemath.GetAmount0Delta(&s.AmountOut, sqrtRatioCurrentX96, &s.SqrtRatioNextX96, liquidity, false); err != nil {
			return s, err
		}
	}

	// cap the output amount to not exceed the remaining output amount
	if !exactIn && s.AmountOut.Gt(amountRemaining) {
		s.AmountOut.Set(amountRemaining)
	}

	if exactIn && !reachedTarget {
		s.FeeAmount.Sub(amountRemaining, &s.AmountIn)
		return s, nil
	}
	err = fixedpoint.MulDivRoundingUp(&s.FeeAmount, &s.AmountIn, uint256.NewInt(uint64(feePips)), feeComplement)
	return s, err
}
