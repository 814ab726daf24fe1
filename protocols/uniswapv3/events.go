package uniswapv3

import (
	"math/big"

	"github.com/defistate/defistate-arb-go/engine"
)

// Swap carries the pool state reported by a Swap log. The log already holds
// the post-swap slot0 and active liquidity, so no tick is recomputed.
type Swap struct {
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
}

// Mint adds Amount of liquidity to the range [TickLower, TickUpper).
type Mint struct {
	TickLower int32
	TickUpper int32
	Amount    *big.Int
}

// Burn removes Amount of liquidity from the range [TickLower, TickUpper).
// A zero amount is a fee poke and leaves the state unchanged.
type Burn struct {
	TickLower int32
	TickUpper int32
	Amount    *big.Int
}

// Flip toggles the initialized flag of a tick that carries no liquidity.
type Flip struct {
	Tick int32
}

func (Swap) Variant() engine.Variant { return engine.ConcentratedLiquidity }
func (Mint) Variant() engine.Variant { return engine.ConcentratedLiquidity }
func (Burn) Variant() engine.Variant { return engine.ConcentratedLiquidity }
func (Flip) Variant() engine.Variant { return engine.ConcentratedLiquidity }

func (Swap) Name() string { return "swap" }
func (Mint) Name() string { return "mint" }
func (Burn) Name() string { return "burn" }
func (Flip) Name() string { return "flip" }
