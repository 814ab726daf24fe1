package uniswapv2

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-arb-go/engine"
)

var ErrInvalidState = errors.New("invalid uniswap v2 pool state")

// Pool mirrors the reserves of a Uniswap V2 pair.
type Pool struct {
	Address  common.Address `json:"address"`
	Token0   common.Address `json:"token0"`
	Token1   common.Address `json:"token1"`
	Reserve0 *big.Int       `json:"reserve0"`
	Reserve1 *big.Int       `json:"reserve1"`
	Fee      uint32         `json:"fee"` // parts per million, i.e 3000 for 0.3%
}

// Validate checks that both reserves fit the pair's uint112 storage slots.
// Empty reserves are valid; such a pair simply cannot be traded against.
func (p Pool) Validate() error {
	if p.Fee >= engine.FeeDenominator {
		return fmt.Errorf("%w: %s fee %d ppm", ErrInvalidState, p.Address, p.Fee)
	}
	for i, r := range []*big.Int{p.Reserve0, p.Reserve1} {
		if r == nil || r.Sign() < 0 || r.BitLen() > 112 {
			return fmt.Errorf("%w: %s reserve%d %v outside uint112", ErrInvalidState, p.Address, i, r)
		}
	}
	return nil
}
