package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/defistate-arb-go/engine"
	uniswapv2 "github.com/defistate/defistate-arb-go/protocols/uniswapv2"
)

const validConfig = `
log-level: debug
max-hops: 4
min-profit: "1000"
start-assets: ["0x000000000000000000000000000000000000000a"]
uniswapv2-factory:
  address: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"
  init-code-hash: "0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f"
assets:
  - address: "0x000000000000000000000000000000000000000a"
    symbol: AAA
    decimals: 18
    min-input: "10"
    max-input: "1000000000000000000000"
  - address: "0x000000000000000000000000000000000000000b"
    symbol: BBB
    decimals: 6
pools:
  - variant: constant_product
    token0: "0x000000000000000000000000000000000000000a"
    token1: "0x000000000000000000000000000000000000000b"
    fee: 3000
    block: 17
    reserve0: "1000000000000000000000000"
    reserve1: "2000000000000"
  - address: "0x0000000000000000000000000000000000000003"
    variant: concentrated_liquidity
    token0: "0x000000000000000000000000000000000000000a"
    token1: "0x000000000000000000000000000000000000000b"
    fee: 500
    tick-spacing: 10
    block: 17
    sqrt-price-x96: "79228162514264337593543950336"
    liquidity: "1000000000000000000"
    tick: 0
    ticks:
      - index: -600
        liquidity-gross: "1000000000000000000"
        liquidity-net: "1000000000000000000"
      - index: 600
        liquidity-gross: "1000000000000000000"
        liquidity-net: "-1000000000000000000"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arbsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("should load assets, limits and pools from a file", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, validConfig), nil)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "yaml", cfg.Output)
		assert.Equal(t, 4, cfg.MaxHops)
		assert.Equal(t, 16, cfg.GridPoints)
		assert.Equal(t, "1000", cfg.MinProfit.String())
		assert.Equal(t, "1", cfg.Limit.Min.String())

		tokenA := common.HexToAddress("0x0a")
		tokenB := common.HexToAddress("0x0b")
		assert.Equal(t, []common.Address{tokenA}, cfg.StartAssets)
		require.Len(t, cfg.Assets, 2)
		assert.Equal(t, engine.Asset{Address: tokenB, Symbol: "BBB", Decimals: 6}, cfg.Assets[1])

		require.Contains(t, cfg.Limits, tokenA)
		assert.Equal(t, "10", cfg.Limits[tokenA].Min.String())
		assert.NotContains(t, cfg.Limits, tokenB)

		require.Len(t, cfg.Pools, 2)
		pair := cfg.Pools[0]
		want := uniswapv2.ComputeAddress(
			common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
			common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f"),
			tokenA, tokenB,
		)
		assert.Equal(t, want, pair.Pool.Address)
		assert.Equal(t, engine.ConstantProduct, pair.Pool.Variant)
		assert.Equal(t, engine.EndOfBlock(17), pair.Marker)
		assert.Equal(t, "2000000000000", pair.V2.Reserve1.String())

		cl := cfg.Pools[1]
		assert.Equal(t, engine.ConcentratedLiquidity, cl.Pool.Variant)
		assert.Equal(t, int32(10), cl.Pool.TickSpacing)
		require.Len(t, cl.V3.Ticks, 2)
		assert.Equal(t, "-1000000000000000000", cl.V3.Ticks[1].LiquidityNet.String())
	})

	t.Run("should let the environment and flags override the file", func(t *testing.T) {
		t.Setenv("ARBSIM_MAX_HOPS", "5")

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("log-level", "info", "")
		require.NoError(t, flags.Parse([]string{"--log-level=warn"}))

		cfg, err := Load(writeConfig(t, validConfig), flags)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.MaxHops)
		assert.Equal(t, "warn", cfg.LogLevel)
	})

	t.Run("should fail on a missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
		assert.Error(t, err)
	})

	t.Run("should tolerate a missing default file", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.MaxHops)
		assert.Empty(t, cfg.Pools)
	})

	tests := []struct {
		name string
		body string
	}{
		{name: "bad output", body: "output: xml\n"},
		{name: "bad min profit", body: "min-profit: lots\n"},
		{name: "bad start asset", body: "start-assets: [\"0xzz\"]\n"},
		{name: "bad asset address", body: "assets:\n  - address: nope\n"},
		{name: "bad variant", body: "pools:\n  - variant: stable\n    address: \"0x01\"\n"},
		{name: "pool without address or factory", body: `pools:
  - variant: constant_product
    token0: "0x000000000000000000000000000000000000000a"
    token1: "0x000000000000000000000000000000000000000b"
    fee: 3000
    reserve0: "1"
    reserve1: "1"
`},
		{name: "bad reserve", body: `pools:
  - address: "0x0000000000000000000000000000000000000001"
    variant: constant_product
    token0: "0x000000000000000000000000000000000000000a"
    token1: "0x000000000000000000000000000000000000000b"
    fee: 3000
    reserve0: "1.5"
    reserve1: "1"
`},
	}
	for _, tc := range tests {
		t.Run("should reject "+tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body), nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
