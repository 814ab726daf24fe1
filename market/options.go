package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-arb-go/arbitrage"
)

// Option configures a Market.
// The interface method is unexported to prevent modification after New.
type Option interface {
	apply(*options)
}

type funcOption func(*options)

func (f funcOption) apply(o *options) {
	f(o)
}

func newOption(f func(*options)) Option {
	return funcOption(f)
}

type options struct {
	maxHops             int
	compactionThreshold int
	workers             int
	minProfit           *big.Int
	defaultLimit        arbitrage.Limit
	limits              map[common.Address]arbitrage.Limit
	gridPoints          int
	startAssets         []common.Address
	bufferSize          int
}

func defaultOptions() *options {
	return &options{
		maxHops: 3,
		defaultLimit: arbitrage.Limit{
			Min: big.NewInt(1),
			Max: new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil),
		},
		limits:     make(map[common.Address]arbitrage.Limit),
		bufferSize: 1,
	}
}

// WithMaxHops bounds the number of swaps of the cycles searched. Default 3.
func WithMaxHops(n int) Option {
	return newOption(func(o *options) {
		o.maxHops = n
	})
}

func WithCompactionThreshold(n int) Option {
	return newOption(func(o *options) {
		o.compactionThreshold = n
	})
}

// WithWorkers sets the number of paths evaluated in parallel.
func WithWorkers(n int) Option {
	return newOption(func(o *options) {
		o.workers = n
	})
}

func WithMinProfit(profit *big.Int) Option {
	return newOption(func(o *options) {
		o.minProfit = profit
	})
}

// WithDefaultLimit sets the input sizes searched for start assets without their own limit.
func WithDefaultLimit(limit arbitrage.Limit) Option {
	return newOption(func(o *options) {
		o.defaultLimit = limit
	})
}

func WithLimit(asset common.Address, limit arbitrage.Limit) Option {
	return newOption(func(o *options) {
		o.limits[asset] = limit
	})
}

func WithGridPoints(n int) Option {
	return newOption(func(o *options) {
		o.gridPoints = n
	})
}

// WithStartAssets restricts scans to cycles that start at the given assets.
// By default every cycle of the graph is scanned.
func WithStartAssets(assets ...common.Address) Option {
	return newOption(func(o *options) {
		o.startAssets = append(o.startAssets, assets...)
	})
}

// WithBufferSize sets the capacity of the channel returned by Run. Default 1.
func WithBufferSize(n int) Option {
	return newOption(func(o *options) {
		o.bufferSize = n
	})
}
