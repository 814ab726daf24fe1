package uniswapv2

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/defistate/defistate-arb-go/engine"
	"github.com/defistate/defistate-arb-go/fixedpoint"
	uniswapv2 "github.com/defistate/defistate-arb-go/protocols/uniswapv2"
)

var (
	// feeDenominator is 100% in parts per million.
	feeDenominator = uint256.NewInt(engine.FeeDenominator)

	// ErrInvalidAmount is returned when an input/output amount is not positive.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrNilAmount is returned when a nil pointer is passed for an amount.
	ErrNilAmount = errors.New("nil pointer passed as amount")
	// ErrTokenMismatch is returned when the input token is not one of the pool's tokens.
	ErrTokenMismatch = fmt.Errorf("%w: token not in pool", engine.ErrAssetMismatch)
	// ErrInsufficientOutput mirrors the pair's INSUFFICIENT_OUTPUT_AMOUNT revert.
	ErrInsufficientOutput = errors.New("insufficient output amount")
)

// reserves holds one trading direction of a pair as 256-bit words.
type reserves struct {
	in, out    uint256.Int
	feePips    uint32
	zeroForOne bool
}

func loadReserves(tokenIn common.Address, pool uniswapv2.Pool) (r reserves, err error) {
	var reserveIn, reserveOut *big.Int
	switch tokenIn {
	case pool.Token0:
		reserveIn, reserveOut, r.zeroForOne = pool.Reserve0, pool.Reserve1, true
	case pool.Token1:
		reserveIn, reserveOut = pool.Reserve1, pool.Reserve0
	default:
		return r, fmt.Errorf("%w: %s is not in pool %s", ErrTokenMismatch, tokenIn, pool.Address)
	}
	if pool.Fee >= engine.FeeDenominator {
		return r, fmt.Errorf("%w: %s fee %d ppm", uniswapv2.ErrInvalidState, pool.Address, pool.Fee)
	}
	if err := fixedpoint.FromBig(&r.in, reserveIn, 112); err != nil {
		return r, fmt.Errorf("%w: %s reserve: %v", uniswapv2.ErrInvalidState, pool.Address, err)
	}
	if err := fixedpoint.FromBig(&r.out, reserveOut, 112); err != nil {
		return r, fmt.Errorf("%w: %s reserve: %v", uniswapv2.ErrInvalidState, pool.Address, err)
	}
	if r.in.IsZero() || r.out.IsZero() {
		return r, fmt.Errorf("%w: pool %s has an empty reserve", engine.ErrInsufficientLiquidity, pool.Address)
	}
	r.feePips = pool.Fee
	return r, nil
}

func loadAmount(z *uint256.Int, amount *big.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return fixedpoint.FromBig(z, amount, 256)
}

// amountOut is UniswapV2Library.getAmountOut with the fee in parts per million:
// out = in*(1e6-fee)*reserveOut / (reserveIn*1e6 + in*(1e6-fee)).
func (r *reserves) amountOut(z, amountIn *uint256.Int) error {
	var amountInWithFee, numerator, denominator uint256.Int
	if _, overflow := amountInWithFee.MulOverflow(amountIn, uint256.NewInt(uint64(engine.FeeDenominator-r.feePips))); overflow {
		return fixedpoint.ErrArithmeticOverflow
	}
	if _, overflow := numerator.MulOverflow(&amountInWithFee, &r.out); overflow {
		return fixedpoint.ErrArithmeticOverflow
	}
	denominator.Mul(&r.in, feeDenominator) // reserves are 112 bits wide
	if _, overflow := denominator.AddOverflow(&denominator, &amountInWithFee); overflow {
		return fixedpoint.ErrArithmeticOverflow
	}
	z.Div(&numerator, &denominator)
	return nil
}

// amountIn is UniswapV2Library.getAmountIn: the smallest input, plus one,
// whose output covers amountOut.
func (r *reserves) amountIn(z, amountOut *uint256.Int) error {
	if !amountOut.Lt(&r.out) {
		return fmt.Errorf("%w: requested %s of reserve %s", engine.ErrInsufficientLiquidity, amountOut.Dec(), r.out.Dec())
	}
	var numerator, denominator uint256.Int
	if _, overflow := numerator.MulOverflow(&r.in, amountOut); overflow {
		return fixedpoint.ErrArithmeticOverflow
	}
	if _, overflow := numerator.MulOverflow(&numerator, feeDenominator); overflow {
		return fixedpoint.ErrArithmeticOverflow
	}
	denominator.Sub(&r.out, amountOut)
	denominator.Mul(&denominator, uint256.NewInt(uint64(engine.FeeDenominator-r.feePips)))
	z.Div(&numerator, &denominator)
	z.AddUint64(z, 1)
	return nil
}

// GetAmountOut returns the output of selling amountIn of tokenIn to the pair.
func GetAmountOut(amountIn *big.Int, tokenIn common.Address, pool uniswapv2.Pool) (*big.Int, error) {
	var in, out uint256.Int
	if err := loadAmount(&in, amountIn); err != nil {
		return nil, err
	}
	r, err := loadReserves(tokenIn, pool)
	if err != nil {
		return nil, err
	}
	if err := r.amountOut(&out, &in); err != nil {
		return nil, err
	}
	return out.ToBig(), nil
}

// GetAmountIn returns the tokenIn input required to receive amountOut of the other token.
func GetAmountIn(amountOut *big.Int, tokenIn common.Address, pool uniswapv2.Pool) (*big.Int, error) {
	var in, out uint256.Int
	if err := loadAmount(&out, amountOut); err != nil {
		return nil, err
	}
	r, err := loadReserves(tokenIn, pool)
	if err != nil {
		return nil, err
	}
	if err := r.amountIn(&in, &out); err != nil {
		return nil, err
	}
	return in.ToBig(), nil
}

// SimulateSwap returns the output of the swap and the pair state after it.
// The input pool is not modified.
func SimulateSwap(amountIn *big.Int, tokenIn common.Address, pool uniswapv2.Pool) (*big.Int, uniswapv2.Pool, error) {
	var in, out uint256.Int
	if err := loadAmount(&in, amountIn); err != nil {
		return nil, uniswapv2.Pool{}, err
	}
	r, err := loadReserves(tokenIn, pool)
	if err != nil {
		return nil, uniswapv2.Pool{}, err
	}
	if err := r.amountOut(&out, &in); err != nil {
		return nil, uniswapv2.Pool{}, err
	}
	if out.IsZero() {
		return nil, uniswapv2.Pool{}, fmt.Errorf("%w: %s in yields nothing from %s", ErrInsufficientOutput, amountIn, pool.Address)
	}
	if !out.Lt(&r.out) {
		return nil, uniswapv2.Pool{}, fmt.Errorf("%w: output %s drains reserve %s", engine.ErrInsufficientLiquidity, out.Dec(), r.out.Dec())
	}

	var newIn, newOut uint256.Int
	if _, overflow := newIn.AddOverflow(&r.in, &in); overflow || newIn.BitLen() > 112 {
		return nil, uniswapv2.Pool{}, fmt.Errorf("%w: reserve of %s above uint112", fixedpoint.ErrArithmeticOverflow, pool.Address)
	}
	newOut.Sub(&r.out, &out)

	newPoolState := pool
	if r.zeroForOne {
		newPoolState.Reserve0, newPoolState.Reserve1 = newIn.ToBig(), newOut.ToBig()
	} else {
		newPoolState.Reserve0, newPoolState.Reserve1 = newOut.ToBig(), newIn.ToBig()
	}
	return out.ToBig(), newPoolState, nil
}

// GetReserves returns the reserves ordered for a swap that sells tokenIn.
func GetReserves(tokenIn common.Address, pool uniswapv2.Pool) (reserveIn, reserveOut *big.Int, err error) {
	switch tokenIn {
	case pool.Token0:
		return pool.Reserve0, pool.Reserve1, nil
	case pool.Token1:
		return pool.Reserve1, pool.Reserve0, nil
	}
	return nil, nil, fmt.Errorf("%w: %s is not in pool %s", ErrTokenMismatch, tokenIn, pool.Address)
}

// GetSpotPrice returns reserveOut/reserveIn, the marginal price of tokenIn in
// raw units of the other token before fees.
func GetSpotPrice(tokenIn common.Address, pool uniswapv2.Pool) (*big.Float, error) {
	reserveIn, reserveOut, err := GetReserves(tokenIn, pool)
	if err != nil {
		return nil, err
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("%w: pool %s has an empty reserve", engine.ErrInsufficientLiquidity, pool.Address)
	}
	in := new(big.Float).SetPrec(256).SetInt(reserveIn)
	out := new(big.Float).SetPrec(256).SetInt(reserveOut)
	return out.Quo(out, in), nil
}
