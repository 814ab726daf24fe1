package engine

import "errors"

var (
	// ErrInsufficientLiquidity means the pool cannot fill the requested amount.
	// Callers treat the input size as invalid for that path, not as a fault.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	// ErrStaleEvent is returned for events whose marker is not newer than the state they target.
	ErrStaleEvent = errors.New("stale event")
	// ErrAssetMismatch is returned when a token does not belong to a pool or a path does not close.
	ErrAssetMismatch = errors.New("asset mismatch")
)
