package sqrtpricemath

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/defistate/defistate-arb-go/fixedpoint"
)

// Resolution is the number of fractional bits in the Q64.96 format.
const Resolution = 96

var (
	ErrLiquidityZero = errors.New("liquidity must be greater than zero")
	ErrSqrtPriceZero = errors.New("sqrt price must be greater than zero")
	// ErrPriceUnderflow is returned when removing an amount would push the price to or below zero.
	ErrPriceUnderflow = fmt.Errorf("%w: sqrt price underflow", fixedpoint.ErrArithmeticOverflow)
)

// GetNextSqrtPriceFromAmount0RoundingUp writes the price after adding or
// removing amount of token0, always rounding up.
//
// The contract first tries the precise formula L*sqrtP / (L + amount*sqrtP)
// and only when amount*sqrtP or the denominator wraps a 256-bit word does it
// fall back to L / (L/sqrtP + amount). The two differ in rounding, so the wrap
// checks are reproduced as written rather than avoided with wider integers.
func GetNextSqrtPriceFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amount *uint256.Int, add bool) error {
	if amount.IsZero() {
		dest.Set(sqrtPX96)
		return nil
	}

	var numerator1, product, denominator uint256.Int
	numerator1.Lsh(liquidity, Resolution)
	_, productOverflow := product.MulOverflow(amount, sqrtPX96)

	if add {
		if !productOverflow {
			denominator.Add(&numerator1, &product) // wraps like unchecked uint256 addition
			if !denominator.Lt(&numerator1) {
				return fixedpoint.MulDivRoundingUp(dest, &numerator1, sqrtPX96, &denominator)
			}
		}
		var q uint256.Int
		q.Div(&numerator1, sqrtPX96)
		if _, overflow := q.AddOverflow(&q, amount); overflow {
			return fixedpoint.ErrArithmeticOverflow
		}
		return fixedpoint.DivRoundingUp(dest, &numerator1, &q)
	}

	if productOverflow || !numerator1.Gt(&product) {
		return ErrPriceUnderflow
	}
	denominator.Sub(&numerator1, &product)
	if err := fixedpoint.MulDivRoundingUp(dest, &numerator1, sqrtPX96, &denominator); err != nil {
		return err
	}
	return fixedpoint.CheckWidth(dest, 160)
}

// GetNextSqrtPriceFromAmount1RoundingDown writes the price after adding or
// removing amount of token1, always rounding down.
func GetNextSqrtPriceFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amount *uint256.Int, add bool) error {
	var quotient uint256.Int
	if add {
		if err := fixedpoint.MulDiv(&quotient, amount, fixedpoint.Q96, liquidity); err != nil {
			return err
		}
		if _, overflow := dest.AddOverflow(sqrtPX96, &quotient); overflow {
			return fixedpoint.ErrArithmeticOverflow
		}
		return fixedpoint.CheckWidth(dest, 160)
	}

	if err := fixedpoint.MulDivRoundingUp(&quotient, amount, fixedpoint.Q96, liquidity); err != nil {
		return err
	}
	if !sqrtPX96.Gt(&quotient) {
		return ErrPriceUnderflow
	}
	dest.Sub(sqrtPX96, &quotient)
	return nil
}

// GetNextSqrtPriceFromInput writes the price after amountIn of the input token enters the pool.
func GetNextSqrtPriceFromInput(dest, sqrtPX96, liquidity, amountIn *uint256.Int, zeroForOne bool) error {
	if sqrtPX96.IsZero() {
		return ErrSqrtPriceZero
	}
	if liquidity.IsZero() {
		return ErrLiquidityZero
	}
	if zeroForOne {
		return GetNextSqrtPriceFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amountIn, true)
	}
	return GetNextSqrtPriceFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amountIn, true)
}

// GetNextSqrtPriceFromOutput writes the price after amountOut of the output token leaves the pool.
func GetNextSqrtPriceFromOutput(dest, sqrtPX96, liquidity, amountOut *uint256.Int, zeroForOne bool) error {
	if sqrtPX96.IsZero() {
		return ErrSqrtPriceZero
	}
	if liquidity.IsZero() {
		return ErrLiquidityZero
	}
	if zeroForOne {
		return GetNextSqrtPriceFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amountOut, false)
	}
	return GetNextSqrtPriceFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amountOut, false)
}

// GetAmount0Delta writes L * (sqrtB - sqrtA) / (sqrtA * sqrtB), the token0
// amount between two prices.
func GetAmount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int, roundUp bool) error {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.IsZero() {
		return ErrSqrtPriceZero
	}

	var numerator1, numerator2, term uint256.Int
	numerator1.Lsh(liquidity, Resolution)
	numerator2.Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		if err := fixedpoint.MulDivRoundingUp(&term, &numerator1, &numerator2, sqrtRatioBX96); err != nil {
			return err
		}
		return fixedpoint.DivRoundingUp(dest, &term, sqrtRatioAX96)
	}
	if err := fixedpoint.MulDiv(&term, &numerator1, &numerator2, sqrtRatioBX96); err != nil {
		return err
	}
	dest.Div(&term, sqrtRatioAX96)
	return nil
}

// GetAmount1Delta writes L * (sqrtB - sqrtA), the token1 amount between two prices.
func GetAmount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int, roundUp bool) error {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	var diff uint256.Int
	diff.Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		return fixedpoint.MulDivRoundingUp(dest, liquidity, &diff, fixedpoint.Q96)
	}
	return fixedpoint.MulDiv(dest, liquidity, &diff, fixedpoint.Q96)
}
