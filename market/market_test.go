package market

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defistate/defistate-arb-go/arbitrage"
	"github.com/defistate/defistate-arb-go/decoder"
	"github.com/defistate/defistate-arb-go/engine"
	uniswapv2 "github.com/defistate/defistate-arb-go/protocols/uniswapv2"
	"github.com/defistate/defistate-arb-go/simulator"
	"github.com/defistate/defistate-arb-go/tracker"
)

var (
	tokenA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokenB = common.HexToAddress("0x000000000000000000000000000000000000000b")
	tokenC = common.HexToAddress("0x000000000000000000000000000000000000000c")

	poolAB = common.HexToAddress("0x01")
	poolBC = common.HexToAddress("0x02")
	poolCA = common.HexToAddress("0x03")
)

func newLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pair(t *testing.T, addr common.Address, x, y common.Address, reserveX, reserveY int64) simulator.Snapshot {
	t.Helper()
	token0, token1 := engine.SortTokens(x, y)
	reserve0, reserve1 := reserveX, reserveY
	if token0 != x {
		reserve0, reserve1 = reserveY, reserveX
	}
	pool := engine.Pool{Address: addr, Token0: token0, Token1: token1, Fee: 3000, Variant: engine.ConstantProduct}
	s, err := simulator.NewConstantProduct(pool, engine.EndOfBlock(0), uniswapv2.Pool{
		Address:  addr,
		Token0:   token0,
		Token1:   token1,
		Reserve0: big.NewInt(reserve0),
		Reserve1: big.NewInt(reserve1),
		Fee:      pool.Fee,
	})
	require.NoError(t, err)
	return s
}

// newTriangle builds a market whose only profitable cycle is A -> B -> C -> A.
func newTriangle(t *testing.T, opts ...Option) (*Market, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := New(newLogger(), reg, opts...)
	require.NoError(t, err)

	for _, a := range []common.Address{tokenA, tokenB, tokenC} {
		m.AddAsset(engine.Asset{Address: a, Decimals: 18})
	}
	require.NoError(t, m.AddPool(pair(t, poolAB, tokenA, tokenB, 1_000_000, 2_000_000)))
	require.NoError(t, m.AddPool(pair(t, poolBC, tokenB, tokenC, 1_000_000, 1_000_000)))
	require.NoError(t, m.AddPool(pair(t, poolCA, tokenC, tokenA, 1_000_000, 1_000_000)))
	return m, reg
}

func syncLog(t *testing.T, pool common.Address, block uint64, index uint, reserve0, reserve1 int64) types.Log {
	t.Helper()
	pairABI, _, err := decoder.ABIs()
	require.NoError(t, err)
	data, err := pairABI.Events["Sync"].Inputs.NonIndexed().Pack(big.NewInt(reserve0), big.NewInt(reserve1))
	require.NoError(t, err)
	return types.Log{
		Address:     pool,
		Topics:      []common.Hash{pairABI.Events["Sync"].ID},
		Data:        data,
		BlockNumber: block,
		Index:       index,
	}
}

func TestNew(t *testing.T) {
	_, err := New(nil, prometheus.NewRegistry())
	assert.Error(t, err)
	_, err = New(newLogger(), nil)
	assert.Error(t, err)
	_, err = New(newLogger(), prometheus.NewRegistry(), WithMaxHops(1))
	assert.Error(t, err)
	_, err = New(newLogger(), prometheus.NewRegistry(), WithDefaultLimit(arbitrage.Limit{Min: big.NewInt(5), Max: big.NewInt(1)}))
	assert.Error(t, err)
}

func TestMarket(t *testing.T) {
	t.Run("should track assets and pools", func(t *testing.T) {
		m, _ := newTriangle(t)

		assert.Len(t, m.Assets(), 3)
		a, ok := m.Asset(tokenB)
		assert.True(t, ok)
		assert.Equal(t, uint8(18), a.Decimals)
		assert.Len(t, m.Pools(), 3)

		err := m.AddPool(pair(t, poolAB, tokenA, tokenB, 1, 1))
		assert.ErrorIs(t, err, tracker.ErrPoolExists)

		assert.True(t, m.RemovePool(poolCA))
		assert.False(t, m.RemovePool(poolCA))
		_, err = m.Snapshot(poolCA)
		assert.ErrorIs(t, err, tracker.ErrUnknownPool)
	})

	t.Run("should scan the profitable direction only", func(t *testing.T) {
		m, _ := newTriangle(t)

		opps, err := m.Scan(context.Background())
		require.NoError(t, err)
		require.Len(t, opps, 1)
		assert.Equal(t, 3, opps[0].Path.Len())
		assert.Equal(t, poolAB, findStep(opps[0].Path, tokenA).Pool.Address)
		assert.Positive(t, opps[0].Profit.Sign())
	})

	t.Run("should honour start assets", func(t *testing.T) {
		m, _ := newTriangle(t, WithStartAssets(tokenB))

		opps, err := m.Scan(context.Background())
		require.NoError(t, err)
		require.Len(t, opps, 1)
		assert.Equal(t, tokenB, opps[0].Path.Start())

		opps, err = m.Scan(context.Background(), tokenC)
		require.NoError(t, err)
		require.Len(t, opps, 1)
		assert.Equal(t, tokenC, opps[0].Path.Start())
	})

	t.Run("should apply decoded logs once", func(t *testing.T) {
		m, _ := newTriangle(t)
		log := syncLog(t, poolAB, 1, 0, 1_000_000, 1_000_000)

		s, err := m.ApplyLog(log)
		require.NoError(t, err)
		assert.Equal(t, "1000000", s.V2.Reserve1.String())
		assert.Equal(t, engine.Marker{Block: 1, LogIndex: 0}, s.Marker)

		_, err = m.ApplyLog(log)
		assert.ErrorIs(t, err, engine.ErrStaleEvent)
		assert.Equal(t, uint64(1), m.StaleEvents())

		opps, err := m.Scan(context.Background())
		require.NoError(t, err)
		assert.Empty(t, opps, "flat pools leave nothing to take")
	})

	t.Run("should refuse to scan once closed", func(t *testing.T) {
		m, _ := newTriangle(t)
		m.Close()
		_, err := m.Scan(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func findStep(p arbitrage.Path, tokenIn common.Address) arbitrage.Step {
	for _, s := range p.Steps() {
		if s.TokenIn == tokenIn {
			return s
		}
	}
	return arbitrage.Step{}
}

func receive(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case r, ok := <-results:
		require.True(t, ok, "results closed early")
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a scan result")
	}
	return Result{}
}

func TestRun(t *testing.T) {
	t.Run("should scan after every block", func(t *testing.T) {
		m, reg := newTriangle(t)
		defer m.Close()

		blocks := make(chan Block)
		results := m.Run(context.Background(), blocks)

		blocks <- Block{Number: 1}
		r := receive(t, results)
		assert.Equal(t, uint64(1), r.Block)
		assert.Len(t, r.Opportunities, 1)

		blocks <- Block{Number: 2, Logs: []types.Log{
			syncLog(t, poolAB, 2, 0, 1_000_000, 1_000_000),
			syncLog(t, common.HexToAddress("0xdead"), 2, 1, 5, 5),
		}}
		r = receive(t, results)
		assert.Equal(t, uint64(2), r.Block)
		assert.Equal(t, 1, r.Applied)
		assert.Equal(t, 1, r.Skipped)
		assert.Empty(t, r.Opportunities)

		close(blocks)
		_, ok := <-results
		assert.False(t, ok)

		assert.Equal(t, 2.0, testutil.ToFloat64(m.metrics.blocks))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.logsSkipped.WithLabelValues("untracked_pool")))
		count, err := testutil.GatherAndCount(reg, "arbsim_tracker_events_applied_total")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("should stop when the context is cancelled", func(t *testing.T) {
		m, _ := newTriangle(t)
		defer m.Close()

		ctx, cancel := context.WithCancel(context.Background())
		results := m.Run(ctx, make(chan Block))
		cancel()

		select {
		case _, ok := <-results:
			assert.False(t, ok)
		case <-time.After(5 * time.Second):
			t.Fatal("run did not stop")
		}
	})

	t.Run("should never deliver the result of a superseded scan", func(t *testing.T) {
		m, _ := newTriangle(t)
		defer m.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		results := make(chan Result, 1)
		for i := 0; i < 100; i++ {
			m.deliver(ctx, Result{Block: uint64(i)}, results)
		}
		assert.Empty(t, results)
		assert.Equal(t, 100.0, testutil.ToFloat64(m.metrics.scansCancelled))

		m.deliver(context.Background(), Result{Block: 7}, results)
		m.deliver(context.Background(), Result{Block: 8}, results)
		require.Len(t, results, 1)
		assert.Equal(t, uint64(7), (<-results).Block)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.resultsDropped))
	})

	t.Run("should stop on close", func(t *testing.T) {
		m, _ := newTriangle(t)
		results := m.Run(context.Background(), make(chan Block))
		m.Close()

		_, ok := <-results
		assert.False(t, ok)
	})
}
