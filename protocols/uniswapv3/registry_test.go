package uniswapv3

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("should accept a consistent pool", func(t *testing.T) {
		require.NoError(t, newTestPool(1000).Validate())
	})

	testCases := []struct {
		name   string
		mutate func(p *Pool)
	}{
		{"unsorted ticks", func(p *Pool) { p.Ticks[0], p.Ticks[1] = p.Ticks[1], p.Ticks[0] }},
		{"tick off spacing", func(p *Pool) { p.Ticks[0].Index = -590 }},
		{"negative liquidity", func(p *Pool) { p.Liquidity = big.NewInt(-1) }},
		{"nil price", func(p *Pool) { p.SqrtPriceX96 = nil }},
		{"price below minimum", func(p *Pool) { p.SqrtPriceX96 = big.NewInt(4295128738) }},
		{"tick outside price", func(p *Pool) { p.Tick = 5 }},
		{"zero spacing", func(p *Pool) { p.TickSpacing = 0 }},
		{"net wider than int128", func(p *Pool) { p.Ticks[0].LiquidityNet = new(big.Int).Lsh(big.NewInt(1), 127) }},
	}
	for _, tc := range testCases {
		t.Run("should reject "+tc.name, func(t *testing.T) {
			p := newTestPool(1000)
			tc.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidState)
		})
	}
}

func TestPoolJSON(t *testing.T) {
	p := newTestPool(1000)
	p.Liquidity, _ = new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	p.Ticks[0].LiquidityNet = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 126))

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded Pool
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Empty(t, Drift(p, decoded))
	assert.Equal(t, p.Address, decoded.Address)
	assert.Equal(t, p.TickSpacing, decoded.TickSpacing)

	again, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(again))
}
