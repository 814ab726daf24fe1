package uniswapv3

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/defistate/defistate-arb-go/engine"
	"github.com/defistate/defistate-arb-go/fixedpoint"
	uniswapv3 "github.com/defistate/defistate-arb-go/protocols/uniswapv3"
	"github.com/defistate/defistate-arb-go/protocols/uniswapv3/calculator/liquiditymath"
	"github.com/defistate/defistate-arb-go/protocols/uniswapv3/calculator/swapmath"
	"github.com/defistate/defistate-arb-go/protocols/uniswapv3/calculator/tickbitmap"
	"github.com/defistate/defistate-arb-go/protocols/uniswapv3/calculator/tickmath"
)

var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrTokenMismatch     = fmt.Errorf("%w: token not in pool", engine.ErrAssetMismatch)
	ErrInvalidPriceLimit = errors.New("invalid sqrt price limit")
	ErrInvalidPoolState  = errors.New("pool state out of range")
)

// spotPricePrecision is the mantissa size of spot prices, in bits.
const spotPricePrecision = 256

var (
	minSqrtRatioPlusOne  = new(uint256.Int).AddUint64(tickmath.MIN_SQRT_RATIO, 1)
	maxSqrtRatioMinusOne = new(uint256.Int).SubUint64(tickmath.MAX_SQRT_RATIO, 1)

	q96Float = new(big.Float).SetPrec(spotPricePrecision).SetInt(fixedpoint.Q96.ToBig())
)

// Result is the outcome of a simulated swap.
type Result struct {
	// AmountIn is the input actually taken, fee included.
	AmountIn  *big.Int
	AmountOut *big.Int
	// Pool is the state after the swap. Its tick slice is shared with the input state.
	Pool uniswapv3.Pool
	// Consumed is false when the price limit stopped the swap before the
	// specified amount was used up.
	Consumed     bool
	TicksCrossed int
}

// swapState is the running state of UniswapV3Pool.swap.
type swapState struct {
	amountSpecifiedRemaining uint256.Int
	amountCalculated         uint256.Int
	sqrtPriceX96             uint256.Int
	tick                     int32
	liquidity                uint256.Int
	ticksCrossed             int
}

// swap runs the step loop. The cursor only moves forward, so crossed ticks are
// never searched again.
func swap(
	state *swapState,
	pool uniswapv3.Pool,
	sqrtPriceLimitX96 *uint256.Int,
	zeroForOne bool,
	exactIn bool,
) error {
	cursor := tickbitmap.NewCursor(pool.Ticks, pool.TickSpacing, state.tick, zeroForOne)

	var (
		sqrtPriceStartX96 uint256.Int
		sqrtPriceNextX96  uint256.Int
		total             uint256.Int
	)
	for !state.amountSpecifiedRemaining.IsZero() && !state.sqrtPriceX96.Eq(sqrtPriceLimitX96) {
		sqrtPriceStartX96.Set(&state.sqrtPriceX96)

		var (
			tickNext    int32
			initialized bool
		)
		if state.liquidity.IsZero() {
			// Empty words move the price without exchanging anything, so jump
			// straight to the next tick that brings liquidity in.
			next, ok := cursor.NextInitialized(state.tick)
			if !ok {
				return fmt.Errorf("%w: pool %s has no liquidity beyond tick %d", engine.ErrInsufficientLiquidity, pool.Address, state.tick)
			}
			tickNext, initialized = next, true
		} else {
			tickNext, initialized = cursor.Next(state.tick)
		}

		if err := tickmath.GetSqrtRatioAtTick(&sqrtPriceNextX96, tickNext); err != nil {
			return err
		}

		target := &sqrtPriceNextX96
		if (zeroForOne && sqrtPriceNextX96.Lt(sqrtPriceLimitX96)) ||
			(!zeroForOne && sqrtPriceNextX96.Gt(sqrtPriceLimitX96)) {
			target = sqrtPriceLimitX96
		}

		step, err := swapmath.ComputeSwapStep(
			&state.sqrtPriceX96,
			target,
			&state.liquidity,
			&state.amountSpecifiedRemaining,
			exactIn,
			pool.Fee,
		)
		if err != nil {
			return err
		}
		state.sqrtPriceX96.Set(&step.SqrtRatioNextX96)

		total.Add(&step.AmountIn, &step.FeeAmount)
		if exactIn {
			state.amountSpecifiedRemaining.Sub(&state.amountSpecifiedRemaining, &total)
			if _, overflow := state.amountCalculated.AddOverflow(&state.amountCalculated, &step.AmountOut); overflow {
				return fixedpoint.ErrArithmeticOverflow
			}
		} else {
			state.amountSpecifiedRemaining.Sub(&state.amountSpecifiedRemaining, &step.AmountOut)
			if _, overflow := state.amountCalculated.AddOverflow(&state.amountCalculated, &total); overflow {
				return fixedpoint.ErrArithmeticOverflow
			}
		}

		if state.sqrtPriceX96.Eq(&sqrtPriceNextX96) {
			if initialized {
				info, ok := cursor.Tick()
				if !ok || info.Index != tickNext {
					return fmt.Errorf("%w: cursor lost tick %d", ErrInvalidPoolState, tickNext)
				}
				if zeroForOne {
					err = liquiditymath.SubDelta(&state.liquidity, &state.liquidity, info.LiquidityNet)
				} else {
					err = liquiditymath.AddDelta(&state.liquidity, &state.liquidity, info.LiquidityNet)
				}
				if err != nil {
					return fmt.Errorf("crossing tick %d of %s: %w", tickNext, pool.Address, err)
				}
				state.ticksCrossed++
			}
			if zeroForOne {
				state.tick = tickNext - 1
			} else {
				state.tick = tickNext
			}
		} else if !state.sqrtPriceX96.Eq(&sqrtPriceStartX96) {
			state.tick, err = tickmath.GetTickAtSqrtRatio(&state.sqrtPriceX96)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// prepare loads the pool into a fresh swap state and resolves the price limit.
// A nil limit means no limit besides the price range itself.
func prepare(
	amount *big.Int,
	sqrtPriceLimitX96 *big.Int,
	tokenIn common.Address,
	pool uniswapv3.Pool,
) (state *swapState, limit *uint256.Int, zeroForOne bool, err error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, false, ErrInvalidAmount
	}
	zeroForOne = tokenIn == pool.Token0
	if !zeroForOne && tokenIn != pool.Token1 {
		return nil, nil, false, fmt.Errorf("%w: %s is not in pool %s", ErrTokenMismatch, tokenIn, pool.Address)
	}

	state = new(swapState)
	// amountSpecified is an int256 on-chain.
	if err = fixedpoint.FromBig(&state.amountSpecifiedRemaining, amount, 255); err != nil {
		return nil, nil, false, err
	}
	if err = fixedpoint.FromBig(&state.sqrtPriceX96, pool.SqrtPriceX96, 160); err != nil {
		return nil, nil, false, fmt.Errorf("%w: sqrt price of %s: %v", ErrInvalidPoolState, pool.Address, err)
	}
	if err = fixedpoint.FromBig(&state.liquidity, pool.Liquidity, 128); err != nil {
		return nil, nil, false, fmt.Errorf("%w: liquidity of %s: %v", ErrInvalidPoolState, pool.Address, err)
	}
	state.tick = pool.Tick

	if sqrtPriceLimitX96 == nil {
		limit = maxSqrtRatioMinusOne
		if zeroForOne {
			limit = minSqrtRatioPlusOne
		}
		// The pool already sits at the edge of the price range.
		if (zeroForOne && !limit.Lt(&state.sqrtPriceX96)) || (!zeroForOne && !limit.Gt(&state.sqrtPriceX96)) {
			return nil, nil, false, fmt.Errorf("%w: pool %s is at the end of its price range", engine.ErrInsufficientLiquidity, pool.Address)
		}
		return state, limit, zeroForOne, nil
	}

	limit = new(uint256.Int)
	if err = fixedpoint.FromBig(limit, sqrtPriceLimitX96, 160); err != nil {
		return nil, nil, false, fmt.Errorf("%w: %v", ErrInvalidPriceLimit, err)
	}
	if zeroForOne {
		if !limit.Lt(&state.sqrtPriceX96) || !limit.Gt(tickmath.MIN_SQRT_RATIO) {
			return nil, nil, false, fmt.Errorf("%w: %s must be in (%s, %s)", ErrInvalidPriceLimit, limit.Dec(), tickmath.MIN_SQRT_RATIO.Dec(), state.sqrtPriceX96.Dec())
		}
	} else if !limit.Gt(&state.sqrtPriceX96) || !limit.Lt(tickmath.MAX_SQRT_RATIO) {
		return nil, nil, false, fmt.Errorf("%w: %s must be in (%s, %s)", ErrInvalidPriceLimit, limit.Dec(), state.sqrtPriceX96.Dec(), tickmath.MAX_SQRT_RATIO.Dec())
	}
	return state, limit, zeroForOne, nil
}

func finish(state *swapState, pool uniswapv3.Pool) uniswapv3.Pool {
	next := pool
	next.SqrtPriceX96 = state.sqrtPriceX96.ToBig()
	next.Tick = state.tick
	next.Liquidity = state.liquidity.ToBig()
	return next
}

// SimulateExactInput swaps amountIn of tokenIn into the pool. When the price
// limit stops the swap early the result reports Consumed=false with the input
// actually used; that is not an error.
func SimulateExactInput(
	amountIn *big.Int,
	sqrtPriceLimitX96 *big.Int,
	tokenIn common.Address,
	pool uniswapv3.Pool,
) (Result, error) {
	state, limit, zeroForOne, err := prepare(amountIn, sqrtPriceLimitX96, tokenIn, pool)
	if err != nil {
		return Result{}, err
	}
	if err := swap(state, pool, limit, zeroForOne, true); err != nil {
		return Result{}, err
	}

	var used uint256.Int
	used.SetFromBig(amountIn)
	used.Sub(&used, &state.amountSpecifiedRemaining)
	return Result{
		AmountIn:     used.ToBig(),
		AmountOut:    state.amountCalculated.ToBig(),
		Pool:         finish(state, pool),
		Consumed:     state.amountSpecifiedRemaining.IsZero(),
		TicksCrossed: state.ticksCrossed,
	}, nil
}

// SimulateExactOutput buys amountOut of the other token with tokenIn.
// AmountIn of the result is the input required, fee included.
func SimulateExactOutput(
	amountOut *big.Int,
	sqrtPriceLimitX96 *big.Int,
	tokenIn common.Address,
	pool uniswapv3.Pool,
) (Result, error) {
	state, limit, zeroForOne, err := prepare(amountOut, sqrtPriceLimitX96, tokenIn, pool)
	if err != nil {
		return Result{}, err
	}
	if err := swap(state, pool, limit, zeroForOne, false); err != nil {
		return Result{}, err
	}

	var received uint256.Int
	received.SetFromBig(amountOut)
	received.Sub(&received, &state.amountSpecifiedRemaining)
	return Result{
		AmountIn:     state.amountCalculated.ToBig(),
		AmountOut:    received.ToBig(),
		Pool:         finish(state, pool),
		Consumed:     state.amountSpecifiedRemaining.IsZero(),
		TicksCrossed: state.ticksCrossed,
	}, nil
}

// GetAmountOut returns the output of an exact input swap that must be filled completely.
func GetAmountOut(amountIn *big.Int, tokenIn common.Address, pool uniswapv3.Pool) (*big.Int, error) {
	res, err := SimulateExactInput(amountIn, nil, tokenIn, pool)
	if err != nil {
		return nil, err
	}
	if !res.Consumed {
		return nil, fmt.Errorf("%w: %s filled %s of %s", engine.ErrInsufficientLiquidity, pool.Address, res.AmountIn, amountIn)
	}
	return res.AmountOut, nil
}

// GetAmountIn returns the input needed to receive exactly amountOut.
func GetAmountIn(amountOut *big.Int, tokenIn common.Address, pool uniswapv3.Pool) (*big.Int, error) {
	res, err := SimulateExactOutput(amountOut, nil, tokenIn, pool)
	if err != nil {
		return nil, err
	}
	if !res.Consumed {
		return nil, fmt.Errorf("%w: %s can deliver only %s of %s", engine.ErrInsufficientLiquidity, pool.Address, res.AmountOut, amountOut)
	}
	return res.AmountIn, nil
}

// GetVirtualReserves returns the constant product reserves equivalent to the
// active liquidity at the current price: x = L/sqrtP and y = L*sqrtP.
func GetVirtualReserves(tokenIn common.Address, pool uniswapv3.Pool) (reserveIn, reserveOut *big.Int, err error) {
	if !(tokenIn == pool.Token0 || tokenIn == pool.Token1) {
		return nil, nil, fmt.Errorf("%w: %s is not in pool %s", ErrTokenMismatch, tokenIn, pool.Address)
	}
	if pool.SqrtPriceX96 == nil || pool.SqrtPriceX96.Sign() <= 0 || pool.Liquidity == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidPoolState, pool.Address)
	}

	reserve0 := new(big.Int).Div(new(big.Int).Lsh(pool.Liquidity, 96), pool.SqrtPriceX96)
	reserve1 := new(big.Int).Rsh(new(big.Int).Mul(pool.Liquidity, pool.SqrtPriceX96), 96)

	if tokenIn == pool.Token0 {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}

// GetSpotPrice returns the marginal price of tokenIn in raw units of the other
// token, before fees.
func GetSpotPrice(tokenIn common.Address, pool uniswapv3.Pool) (*big.Float, error) {
	if !(tokenIn == pool.Token0 || tokenIn == pool.Token1) {
		return nil, fmt.Errorf("%w: %s is not in pool %s", ErrTokenMismatch, tokenIn, pool.Address)
	}
	if pool.SqrtPriceX96 == nil || pool.SqrtPriceX96.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPoolState, pool.Address)
	}

	// SqrtPriceX96 is sqrt(token1/token0) * 2^96.
	root := new(big.Float).SetPrec(spotPricePrecision).SetInt(pool.SqrtPriceX96)
	root.Quo(root, q96Float)
	price := new(big.Float).SetPrec(spotPricePrecision).Mul(root, root)
	if tokenIn == pool.Token0 {
		return price, nil
	}
	return new(big.Float).SetPrec(spotPricePrecision).Quo(big.NewFloat(1), price), nil
}
