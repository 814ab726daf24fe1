// Package fixedpoint holds the 256-bit word arithmetic the pool contracts are
// written against. Every helper writes into a caller supplied destination and
// reports overflow or division by zero instead of wrapping, unless the
// contract itself relies on the wrap.
package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrDivisionByZero     = errors.New("division by zero")

	// Q96 is 1.0 in the UQ64.96 format used by sqrt prices.
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)

	MaxUint112 = maxUint(112)
	MaxUint128 = maxUint(128)
	MaxUint160 = maxUint(160)
	MaxUint256 = new(uint256.Int).SetAllOne()
)

func maxUint(bits uint) *uint256.Int {
	z := new(uint256.Int).Lsh(uint256.NewInt(1), bits)
	return z.SubUint64(z, 1)
}

// MulDiv sets z = floor(a*b/d) with a 512-bit intermediate product, as FullMath.mulDiv.
// It fails when d is zero or the quotient does not fit in 256 bits.
func MulDiv(z, a, b, d *uint256.Int) error {
	if d.IsZero() {
		return ErrDivisionByZero
	}
	if _, overflow := z.MulDivOverflow(a, b, d); overflow {
		return ErrArithmeticOverflow
	}
	return nil
}

// MulDivRoundingUp sets z = ceil(a*b/d), as FullMath.mulDivRoundingUp.
func MulDivRoundingUp(z, a, b, d *uint256.Int) error {
	if d.IsZero() {
		return ErrDivisionByZero
	}
	var rem uint256.Int
	rem.MulMod(a, b, d)
	if err := MulDiv(z, a, b, d); err != nil {
		return err
	}
	if !rem.IsZero() {
		if z.Eq(MaxUint256) {
			return ErrArithmeticOverflow
		}
		z.AddUint64(z, 1)
	}
	return nil
}

// DivRoundingUp sets z = ceil(a/b), as UnsafeMath.divRoundingUp.
func DivRoundingUp(z, a, b *uint256.Int) error {
	if b.IsZero() {
		return ErrDivisionByZero
	}
	var rem uint256.Int
	rem.Mod(a, b)
	z.Div(a, b)
	if !rem.IsZero() {
		z.AddUint64(z, 1)
	}
	return nil
}

// CheckWidth fails when x needs more than bits bits, the equivalent of a
// Solidity downcast such as toUint160.
func CheckWidth(x *uint256.Int, bits int) error {
	if x.BitLen() > bits {
		return ErrArithmeticOverflow
	}
	return nil
}

// FromBig converts a non-negative integer of at most bits bits.
// A nil input is treated as zero.
func FromBig(z *uint256.Int, x *big.Int, bits int) error {
	if x == nil {
		z.Clear()
		return nil
	}
	if x.Sign() < 0 || x.BitLen() > bits {
		return ErrArithmeticOverflow
	}
	z.SetFromBig(x)
	return nil
}

// ToBig returns a fresh big.Int so callers never share memory with scratch words.
func ToBig(x *uint256.Int) *big.Int {
	return x.ToBig()
}
