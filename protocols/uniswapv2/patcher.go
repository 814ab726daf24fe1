package uniswapv2

import (
	"fmt"
	"math/big"
)

// Clone returns a Pool with its own memory for pointer types like *big.Int.
func (p Pool) Clone() Pool {
	newPool := p
	if p.Reserve0 != nil {
		newPool.Reserve0 = new(big.Int).Set(p.Reserve0)
	}
	if p.Reserve1 != nil {
		newPool.Reserve1 = new(big.Int).Set(p.Reserve1)
	}
	return newPool
}

// ApplySync returns prev with the reserves of ev. prev is not modified.
func ApplySync(prev Pool, ev Sync) (Pool, error) {
	next := prev
	if ev.Reserve0 == nil || ev.Reserve1 == nil {
		return Pool{}, fmt.Errorf("%w: sync on %s without reserves", ErrInvalidState, prev.Address)
	}
	next.Reserve0 = new(big.Int).Set(ev.Reserve0)
	next.Reserve1 = new(big.Int).Set(ev.Reserve1)
	if err := next.Validate(); err != nil {
		return Pool{}, err
	}
	return next, nil
}
