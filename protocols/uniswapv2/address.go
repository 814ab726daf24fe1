package uniswapv2

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/defistate/defistate-arb-go/engine"
)

// ComputeAddress derives a pair address the way UniswapV2Library.pairFor does:
// CREATE2 from the factory with keccak256(token0 ++ token1) as salt.
func ComputeAddress(factory common.Address, initCodeHash common.Hash, tokenA, tokenB common.Address) common.Address {
	token0, token1 := engine.SortTokens(tokenA, tokenB)
	salt := crypto.Keccak256Hash(token0.Bytes(), token1.Bytes())
	return crypto.CreateAddress2(factory, salt, initCodeHash.Bytes())
}
