package bitmath

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrInputIsZero is returned when a function requires a non-zero input but receives zero.
	ErrInputIsZero = errors.New("input must be greater than zero")
	// ErrInputIsNil is returned when a function receives a nil pointer.
	ErrInputIsNil = errors.New("input cannot be nil")
)

// MostSignificantBit returns the index of the most significant bit of x,
// the Go counterpart of BitMath.mostSignificantBit.
//
// The result satisfies x >= 2**msb(x) and x < 2**(msb(x)+1).
func MostSignificantBit(x *uint256.Int) (uint8, error) {
	if x == nil {
		return 0, ErrInputIsNil
	}
	if x.IsZero() {
		return 0, ErrInputIsZero
	}
	return uint8(x.BitLen() - 1), nil
}
