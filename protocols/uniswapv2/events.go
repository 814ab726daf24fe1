package uniswapv2

import (
	"math/big"

	"github.com/defistate/defistate-arb-go/engine"
)

// Sync carries the reserves a pair reports after every balance change.
type Sync struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
}

func (Sync) Variant() engine.Variant { return engine.ConstantProduct }

func (Sync) Name() string { return "sync" }
