package sqrtpricemath

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/defistate-arb-go/fixedpoint"
)

// --- Helper Functions ---

// newRandInt generates a random uint256 below 2^bits.
func newRandInt(bits int) *uint256.Int {
	max := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		panic(err)
	}
	return uint256.MustFromBig(n)
}

func encodePriceSqrt(reserve1, reserve0 int64) *uint256.Int {
	num := new(big.Int).Mul(big.NewInt(reserve1), new(big.Int).Lsh(big.NewInt(1), 192))
	ratio := new(big.Int).Div(num, big.NewInt(reserve0))
	return uint256.MustFromBig(new(big.Int).Sqrt(ratio))
}

func expandTo18Decimals(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

// --- Known Values ---

func TestGetNextSqrtPriceFromInput(t *testing.T) {
	t.Run("fails if price is zero", func(t *testing.T) {
		err := GetNextSqrtPriceFromInput(new(uint256.Int), new(uint256.Int), uint256.NewInt(1), uint256.NewInt(1), false)
		assert.ErrorIs(t, err, ErrSqrtPriceZero)
	})

	t.Run("fails if liquidity is zero", func(t *testing.T) {
		err := GetNextSqrtPriceFromInput(new(uint256.Int), uint256.NewInt(1), new(uint256.Int), uint256.NewInt(1), true)
		assert.ErrorIs(t, err, ErrLiquidityZero)
	})

	t.Run("returns input price if amount in is zero", func(t *testing.T) {
		price := encodePriceSqrt(1, 1)
		dest := new(uint256.Int)
		require.NoError(t, GetNextSqrtPriceFromInput(dest, price, expandTo18Decimals(1), new(uint256.Int), true))
		assert.True(t, dest.Eq(price))
		require.NoError(t, GetNextSqrtPriceFromInput(dest, price, expandTo18Decimals(1), new(uint256.Int), false))
		assert.True(t, dest.Eq(price))
	})

	t.Run("input amount of 0.1 token1", func(t *testing.T) {
		dest := new(uint256.Int)
		err := GetNextSqrtPriceFromInput(dest, encodePriceSqrt(1, 1), expandTo18Decimals(1), uint256.NewInt(100_000_000_000_000_000), false)
		require.NoError(t, err)
		assert.Equal(t, "87150978765690771352898345369", dest.Dec())
	})

	t.Run("input amount of 0.1 token0", func(t *testing.T) {
		dest := new(uint256.Int)
		err := GetNextSqrtPriceFromInput(dest, encodePriceSqrt(1, 1), expandTo18Decimals(1), uint256.NewInt(100_000_000_000_000_000), true)
		require.NoError(t, err)
		assert.Equal(t, "72025602285694852357767227579", dest.Dec())
	})

	t.Run("amountIn > type(uint96).max and zeroForOne = true", func(t *testing.T) {
		dest := new(uint256.Int)
		amountIn := new(uint256.Int).Lsh(uint256.NewInt(1), 100)
		require.NoError(t, GetNextSqrtPriceFromInput(dest, encodePriceSqrt(1, 1), expandTo18Decimals(10), amountIn, true))
		assert.Equal(t, "624999999995069620", dest.Dec())
	})

	t.Run("can return 1 with enough amountIn and zeroForOne = true", func(t *testing.T) {
		// amountIn * sqrtP wraps the word, so the fallback formula is taken.
		dest := new(uint256.Int)
		amountIn := new(uint256.Int).Rsh(fixedpoint.MaxUint256, 1)
		require.NoError(t, GetNextSqrtPriceFromInput(dest, encodePriceSqrt(1, 1), uint256.NewInt(1), amountIn, true))
		assert.Equal(t, uint64(1), dest.Uint64())
	})

	t.Run("fails when the token1 input pushes the price past uint160", func(t *testing.T) {
		price := new(uint256.Int).Set(fixedpoint.MaxUint160)
		err := GetNextSqrtPriceFromInput(new(uint256.Int), price, uint256.NewInt(1024), uint256.NewInt(1024), false)
		assert.ErrorIs(t, err, fixedpoint.ErrArithmeticOverflow)
	})
}

func TestGetNextSqrtPriceFromOutput(t *testing.T) {
	t.Run("fails if output amount is exactly the virtual reserves of token0", func(t *testing.T) {
		price := uint256.MustFromDecimal("20282409603651670423947251286016")
		liquidity := uint256.NewInt(1024)
		err := GetNextSqrtPriceFromOutput(new(uint256.Int), price, liquidity, uint256.NewInt(4), false)
		assert.ErrorIs(t, err, fixedpoint.ErrArithmeticOverflow)
	})

	t.Run("output amount of 0.1 token1", func(t *testing.T) {
		dest := new(uint256.Int)
		err := GetNextSqrtPriceFromOutput(dest, encodePriceSqrt(1, 1), expandTo18Decimals(1), uint256.NewInt(100_000_000_000_000_000), true)
		require.NoError(t, err)
		assert.Equal(t, "71305346262837903834189555302", dest.Dec())
	})
}

func TestGetAmountDeltas(t *testing.T) {
	lower := encodePriceSqrt(1, 1)
	upper := encodePriceSqrt(121, 100)
	liquidity := expandTo18Decimals(1)

	t.Run("returns 0.1 amount0 for price of 1 to 1.21", func(t *testing.T) {
		up, down := new(uint256.Int), new(uint256.Int)
		require.NoError(t, GetAmount0Delta(up, lower, upper, liquidity, true))
		require.NoError(t, GetAmount0Delta(down, lower, upper, liquidity, false))
		assert.Equal(t, "90909090909090910", up.Dec())
		assert.Equal(t, "90909090909090909", down.Dec())
	})

	t.Run("returns 0.1 amount1 for price of 1 to 1.21", func(t *testing.T) {
		up, down := new(uint256.Int), new(uint256.Int)
		require.NoError(t, GetAmount1Delta(up, lower, upper, liquidity, true))
		require.NoError(t, GetAmount1Delta(down, lower, upper, liquidity, false))
		assert.Equal(t, "100000000000000000", up.Dec())
		assert.Equal(t, "99999999999999999", down.Dec())
	})

	t.Run("returns 0 if liquidity is 0", func(t *testing.T) {
		dest := uint256.NewInt(7)
		require.NoError(t, GetAmount0Delta(dest, lower, upper, new(uint256.Int), true))
		assert.True(t, dest.IsZero())
	})

	t.Run("ordering of the prices does not matter", func(t *testing.T) {
		a, b := new(uint256.Int), new(uint256.Int)
		require.NoError(t, GetAmount0Delta(a, lower, upper, liquidity, true))
		require.NoError(t, GetAmount0Delta(b, upper, lower, liquidity, true))
		assert.True(t, a.Eq(b))
	})
}

// --- Invariant Tests (Simulating Fuzzing) ---

func TestGetAmount0Delta_Invariants(t *testing.T) {
	for i := 0; i < 1000; i++ {
		sqrtP := newRandInt(160)
		sqrtQ := newRandInt(160)
		liquidity := newRandInt(128)

		if sqrtP.IsZero() {
			sqrtP.SetOne()
		}
		if sqrtQ.IsZero() {
			sqrtQ.SetOne()
		}

		amount0Down := new(uint256.Int)
		require.NoError(t, GetAmount0Delta(amount0Down, sqrtP, sqrtQ, liquidity, false))

		amount0Up := new(uint256.Int)
		require.NoError(t, GetAmount0Delta(amount0Up, sqrtP, sqrtQ, liquidity, true))

		// amount0Down <= amount0Up and amount0Up - amount0Down < 2
		assert.True(t, amount0Down.Cmp(amount0Up) <= 0)
		diff := new(uint256.Int).Sub(amount0Up, amount0Down)
		assert.True(t, diff.LtUint64(2))
	}
}

func TestGetAmount1Delta_Invariants(t *testing.T) {
	for i := 0; i < 1000; i++ {
		sqrtP := newRandInt(160)
		sqrtQ := newRandInt(160)
		liquidity := newRandInt(128)

		amount1Down := new(uint256.Int)
		require.NoError(t, GetAmount1Delta(amount1Down, sqrtP, sqrtQ, liquidity, false))

		amount1Up := new(uint256.Int)
		require.NoError(t, GetAmount1Delta(amount1Up, sqrtP, sqrtQ, liquidity, true))

		assert.True(t, amount1Down.Cmp(amount1Up) <= 0)
		diff := new(uint256.Int).Sub(amount1Up, amount1Down)
		assert.True(t, diff.LtUint64(2))
	}
}

func TestGetNextSqrtPriceFromInput_Invariants(t *testing.T) {
	for i := 0; i < 100; i++ {
		sqrtP := newRandInt(160)
		liquidity := newRandInt(128)
		amountIn := newRandInt(256)
		zeroForOne := i%2 == 0

		if sqrtP.IsZero() {
			sqrtP.SetOne()
		}
		if liquidity.IsZero() {
			liquidity.SetOne()
		}

		sqrtQ := new(uint256.Int)
		if err := GetNextSqrtPriceFromInput(sqrtQ, sqrtP, liquidity, amountIn, zeroForOne); err != nil {
			continue // overflow is an expected outcome for random inputs
		}

		delta := new(uint256.Int)
		if zeroForOne {
			assert.True(t, sqrtQ.Cmp(sqrtP) <= 0)
			if sqrtQ.IsZero() {
				continue
			}
			if err := GetAmount0Delta(delta, sqrtQ, sqrtP, liquidity, true); err == nil {
				assert.True(t, amountIn.Cmp(delta) >= 0)
			}
		} else {
			assert.True(t, sqrtQ.Cmp(sqrtP) >= 0)
			if err := GetAmount1Delta(delta, sqrtP, sqrtQ, liquidity, true); err == nil {
				assert.True(t, amountIn.Cmp(delta) >= 0)
			}
		}
	}
}
