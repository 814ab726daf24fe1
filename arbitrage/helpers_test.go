package arbitrage

import (
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/defistate/defistate-arb-go/engine"
	uniswapv2 "github.com/defistate/defistate-arb-go/protocols/uniswapv2"
	uniswapv3 "github.com/defistate/defistate-arb-go/protocols/uniswapv3"
	"github.com/defistate/defistate-arb-go/simulator"
)

var (
	tokenA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokenB = common.HexToAddress("0x000000000000000000000000000000000000000b")
	tokenC = common.HexToAddress("0x000000000000000000000000000000000000000c")

	errNotFound = errors.New("pool not found")
)

// mapProvider serves fixed snapshots.
type mapProvider map[common.Address]simulator.Snapshot

func (m mapProvider) Snapshot(address common.Address) (simulator.Snapshot, error) {
	s, ok := m[address]
	if !ok {
		return simulator.Snapshot{}, errNotFound
	}
	return s, nil
}

func (m mapProvider) add(snaps ...simulator.Snapshot) mapProvider {
	for _, s := range snaps {
		m[s.Pool.Address] = s
	}
	return m
}

func newBigIntFromString(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("invalid number " + s)
	}
	return n
}

// cpSnapshot builds a constant product pool holding reserveX of x and reserveY of y.
func cpSnapshot(t *testing.T, addr string, x, y common.Address, reserveX, reserveY *big.Int) simulator.Snapshot {
	t.Helper()
	token0, token1 := engine.SortTokens(x, y)
	reserve0, reserve1 := reserveX, reserveY
	if token0 != x {
		reserve0, reserve1 = reserveY, reserveX
	}
	pool := engine.Pool{
		Address: common.HexToAddress(addr),
		Token0:  token0,
		Token1:  token1,
		Fee:     3000,
		Variant: engine.ConstantProduct,
	}
	s, err := simulator.NewConstantProduct(pool, engine.Marker{Block: 7, LogIndex: 1}, uniswapv2.Pool{
		Address:  pool.Address,
		Token0:   token0,
		Token1:   token1,
		Reserve0: new(big.Int).Set(reserve0),
		Reserve1: new(big.Int).Set(reserve1),
		Fee:      pool.Fee,
	})
	require.NoError(t, err)
	return s
}

// clSnapshot builds a concentrated liquidity pool of tokenA/tokenB at price 1
// with liquidity in [-600, 600].
func clSnapshot(t *testing.T, addr string, liquidity *big.Int) simulator.Snapshot {
	t.Helper()
	pool := engine.Pool{
		Address:     common.HexToAddress(addr),
		Token0:      tokenA,
		Token1:      tokenB,
		Fee:         3000,
		Variant:     engine.ConcentratedLiquidity,
		TickSpacing: 60,
	}
	s, err := simulator.NewConcentratedLiquidity(pool, engine.EndOfBlock(7), uniswapv3.Pool{
		Address:      pool.Address,
		Token0:       pool.Token0,
		Token1:       pool.Token1,
		Fee:          pool.Fee,
		TickSpacing:  pool.TickSpacing,
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

func newTestEvaluator(t *testing.T, reg prometheus.Registerer, min, max int64) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(&Config{
		DefaultLimit: Limit{Min: big.NewInt(min), Max: big.NewInt(max)},
		Registry:     reg,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return e
}

// triangle is the cycle A -> B -> C -> A through pools priced 1:2, 1:1 and 1:1.
func triangle(t *testing.T) (Path, mapProvider) {
	t.Helper()
	ab := cpSnapshot(t, "0x01", tokenA, tokenB, big.NewInt(1_000_000), big.NewInt(2_000_000))
	bc := cpSnapshot(t, "0x02", tokenB, tokenC, big.NewInt(1_000_000), big.NewInt(1_000_000))
	ca := cpSnapshot(t, "0x03", tokenC, tokenA, big.NewInt(1_000_000), big.NewInt(1_000_000))

	path, err := PathThrough(tokenA, ab.Pool, bc.Pool, ca.Pool)
	require.NoError(t, err)
	return path, mapProvider{}.add(ab, bc, ca)
}
