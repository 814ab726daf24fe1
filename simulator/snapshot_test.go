package simulator

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/defistate-arb-go/engine"
	uniswapv2 "github.com/defistate/defistate-arb-go/protocols/uniswapv2"
	uniswapv3 "github.com/defistate/defistate-arb-go/protocols/uniswapv3"
	uniswapv3calculator "github.com/defistate/defistate-arb-go/protocols/uniswapv3/calculator"
)

var (
	tokenA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokenB = common.HexToAddress("0x000000000000000000000000000000000000000b")
	tokenC = common.HexToAddress("0x000000000000000000000000000000000000000c")
)

func v2Snapshot(t *testing.T, reserve0, reserve1 int64) Snapshot {
	t.Helper()
	pool := engine.Pool{
		Address: common.HexToAddress("0x1111"),
		Token0:  tokenA,
		Token1:  tokenB,
		Fee:     3000,
		Variant: engine.ConstantProduct,
	}
	s, err := NewConstantProduct(pool, engine.Marker{Block: 100, LogIndex: 3}, uniswapv2.Pool{
		Address:  pool.Address,
		Token0:   pool.Token0,
		Token1:   pool.Token1,
		Reserve0: big.NewInt(reserve0),
		Reserve1: big.NewInt(reserve1),
		Fee:      pool.Fee,
	})
	require.NoError(t, err)
	return s
}

func v3Snapshot(t *testing.T, liquidity *big.Int) Snapshot {
	t.Helper()
	pool := engine.Pool{
		Address:     common.HexToAddress("0x3333"),
		Token0:      tokenA,
		Token1:      tokenB,
		Fee:         3000,
		Variant:     engine.ConcentratedLiquidity,
		TickSpacing: 60,
	}
	s, err := NewConcentratedLiquidity(pool, engine.EndOfBlock(100), uniswapv3.Pool{
		Address:      pool.Address,
		Token0:       pool.Token0,
		Token1:       pool.Token1,
		Fee:          pool.Fee,
		TickSpacing:  pool.TickSpacing,
		Tick:         0,
		Liquidity:    new(big.Int).Set(liquidity),
		SqrtPriceX96: new(big.Int).Lsh(big.NewInt(1), 96),
		Ticks: []uniswapv3.TickInfo{
			{Index: -600, LiquidityGross: new(big.Int).Set(liquidity), LiquidityNet: new(big.Int).Set(liquidity)},
			{Index: 600, LiquidityGross: new(big.Int).Set(liquidity), LiquidityNet: new(big.Int).Neg(liquidity)},
		},
	})
	require.NoError(t, err)
	return s
}

func TestNewSnapshot(t *testing.T) {
	t.Run("should reject a state from another pool", func(t *testing.T) {
		s := v2Snapshot(t, 1000, 1000)
		other := *s.V2
		other.Token1 = tokenC
		_, err := NewConstantProduct(s.Pool, s.Marker, other)
		assert.ErrorIs(t, err, ErrStateMismatch)
	})

	t.Run("should reject a state of the wrong variant", func(t *testing.T) {
		s := v3Snapshot(t, big.NewInt(1e18))
		_, err := NewConstantProduct(s.Pool, s.Marker, uniswapv2.Pool{
			Address: s.Pool.Address, Token0: tokenA, Token1: tokenB, Reserve0: big.NewInt(1), Reserve1: big.NewInt(1), Fee: 3000,
		})
		assert.ErrorIs(t, err, ErrStateMismatch)
	})

	t.Run("should reject an invalid pool state", func(t *testing.T) {
		s := v2Snapshot(t, 1000, 1000)
		bad := *s.V2
		bad.Reserve0 = big.NewInt(-1)
		_, err := NewConstantProduct(s.Pool, s.Marker, bad)
		assert.ErrorIs(t, err, uniswapv2.ErrInvalidState)
	})

	t.Run("should reject an invalid pool", func(t *testing.T) {
		s := v2Snapshot(t, 1000, 1000)
		pool := s.Pool
		pool.Token1 = pool.Token0
		_, err := NewConstantProduct(pool, s.Marker, *s.V2)
		assert.ErrorIs(t, err, engine.ErrInvalidPool)
	})
}

func TestSimulate(t *testing.T) {
	t.Run("should price a constant product swap exactly", func(t *testing.T) {
		s := v2Snapshot(t, 1000, 1000)

		res, err := s.Simulate(big.NewInt(10), tokenA)
		require.NoError(t, err)

		assert.Zero(t, big.NewInt(9).Cmp(res.AmountOut))
		assert.Zero(t, big.NewInt(10).Cmp(res.AmountIn))
		assert.True(t, res.Consumed)
		assert.Equal(t, "1010", res.State.V2.Reserve0.String())
		assert.Equal(t, "991", res.State.V2.Reserve1.String())
		assert.Equal(t, s.Marker, res.State.Marker)

		assert.Equal(t, "1000", s.V2.Reserve0.String(), "receiver must not change")
	})

	t.Run("should dispatch concentrated liquidity swaps to the tick walk", func(t *testing.T) {
		s := v3Snapshot(t, big.NewInt(1e18))
		amountIn := big.NewInt(1e15)

		res, err := s.Simulate(amountIn, tokenB)
		require.NoError(t, err)

		want, err := uniswapv3calculator.SimulateExactInput(amountIn, nil, tokenB, *s.V3)
		require.NoError(t, err)
		assert.Zero(t, want.AmountOut.Cmp(res.AmountOut))
		assert.True(t, res.Consumed)
		assert.Equal(t, want.Pool.Tick, res.State.V3.Tick)
		assert.Zero(t, new(big.Int).Lsh(big.NewInt(1), 96).Cmp(s.V3.SqrtPriceX96), "receiver must keep its price")
	})

	t.Run("should surface simulation errors", func(t *testing.T) {
		s := v2Snapshot(t, 1000, 1000)
		_, err := s.Simulate(big.NewInt(10), tokenC)
		assert.ErrorIs(t, err, engine.ErrAssetMismatch)

		v3 := v3Snapshot(t, big.NewInt(1e18))
		_, err = v3.Simulate(new(big.Int).Lsh(big.NewInt(1), 100), tokenA)
		assert.ErrorIs(t, err, engine.ErrInsufficientLiquidity)
	})
}

func TestSpotPrice(t *testing.T) {
	s := v2Snapshot(t, 1000, 4000)
	price, err := s.SpotPrice(tokenA)
	require.NoError(t, err)
	f, _ := price.Float64()
	assert.InDelta(t, 4.0, f, 1e-12)

	v3 := v3Snapshot(t, big.NewInt(1e18))
	price, err = v3.SpotPrice(tokenB)
	require.NoError(t, err)
	f, _ = price.Float64()
	assert.InDelta(t, 1.0, f, 1e-12)
}

func TestSnapshotJSON(t *testing.T) {
	for _, s := range []Snapshot{v2Snapshot(t, 123456789, 987654321), v3Snapshot(t, big.NewInt(1e18))} {
		t.Run(s.Pool.Variant.String(), func(t *testing.T) {
			raw, err := json.Marshal(s)
			require.NoError(t, err)

			var decoded Snapshot
			require.NoError(t, json.Unmarshal(raw, &decoded))
			require.NoError(t, decoded.Validate())

			assert.Equal(t, s.Pool, decoded.Pool)
			assert.Equal(t, s.Marker, decoded.Marker)
			fields, err := Drift(s, decoded)
			require.NoError(t, err)
			assert.Empty(t, fields)
		})
	}
}

func TestClone(t *testing.T) {
	for _, s := range []Snapshot{v2Snapshot(t, 1000, 2000), v3Snapshot(t, big.NewInt(1e18))} {
		t.Run(s.Pool.Variant.String(), func(t *testing.T) {
			c := s.Clone()
			assert.Equal(t, s, c)

			if s.V2 != nil {
				c.V2.Reserve0.SetInt64(5)
				assert.Equal(t, "1000", s.V2.Reserve0.String())
				assert.Nil(t, c.V3)
			} else {
				c.V3.Liquidity.SetInt64(5)
				c.V3.Ticks[0].LiquidityNet.SetInt64(5)
				assert.Equal(t, "1000000000000000000", s.V3.Liquidity.String())
				assert.Equal(t, "1000000000000000000", s.V3.Ticks[0].LiquidityNet.String())
				assert.Nil(t, c.V2)
			}
		})
	}
}

func TestDrift(t *testing.T) {
	t.Run("should report drifted reserves", func(t *testing.T) {
		fields, err := Drift(v2Snapshot(t, 1000, 1000), v2Snapshot(t, 1000, 1001))
		require.NoError(t, err)
		assert.Equal(t, []string{"reserve1"}, fields)
	})

	t.Run("should refuse to compare different pools", func(t *testing.T) {
		_, err := Drift(v2Snapshot(t, 1000, 1000), v3Snapshot(t, big.NewInt(1)))
		assert.ErrorIs(t, err, ErrStateMismatch)
	})
}
