package tickmath

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/defistate/defistate-arb-go/protocols/uniswapv3/calculator/bitmath"
)

const (
	// MIN_TICK is the minimum tick that may be passed to GetSqrtRatioAtTick.
	MIN_TICK int32 = -887272
	// MAX_TICK is the maximum tick that may be passed to GetSqrtRatioAtTick.
	MAX_TICK int32 = 887272
)

var (
	// MIN_SQRT_RATIO is the value returned by GetSqrtRatioAtTick(MIN_TICK).
	MIN_SQRT_RATIO = uint256.NewInt(4295128739)
	// MAX_SQRT_RATIO is the value returned by GetSqrtRatioAtTick(MAX_TICK).
	MAX_SQRT_RATIO = uint256.MustFromDecimal("1461446703485210103287273052203988822378723970342")

	ErrTickOutOfBounds      = errors.New("tick out of bounds")
	ErrSqrtPriceOutOfBounds = errors.New("sqrt price out of bounds")

	maxUint256 = new(uint256.Int).SetAllOne()
	lowMask    = uint256.NewInt(0xffffffff)

	// 1/sqrt(1.0001)^(2^i) in UQ128.128; index 1 is 1.0 for an even tick.
	ratioConstants = [21]*uint256.Int{
		uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
		uint256.MustFromHex("0x100000000000000000000000000000000"),
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
	}
)

// GetSqrtRatioAtTick writes sqrt(1.0001^tick) * 2^96 into dest, rounded up,
// reproducing the truncating multiply-shift chain of TickMath.sol.
func GetSqrtRatioAtTick(dest *uint256.Int, tick int32) error {
	if tick < MIN_TICK || tick > MAX_TICK {
		return ErrTickOutOfBounds
	}

	absTick := int64(tick)
	if absTick < 0 {
		absTick = -absTick
	}

	var ratio uint256.Int
	if absTick&0x1 != 0 {
		ratio.Set(ratioConstants[0])
	} else {
		ratio.Set(ratioConstants[1])
	}
	for i := 2; i < len(ratioConstants); i++ {
		if absTick&(1<<(i-1)) != 0 {
			ratio.Mul(&ratio, ratioConstants[i]).Rsh(&ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(maxUint256, &ratio)
	}

	// shift from Q128.128 to Q128.96, rounding up
	var rem uint256.Int
	rem.And(&ratio, lowMask)
	dest.Rsh(&ratio, 32)
	if !rem.IsZero() {
		dest.AddUint64(dest, 1)
	}
	return nil
}

// GetTickAtSqrtRatio returns the greatest tick such that GetSqrtRatioAtTick(tick) <= sqrtPriceX96.
// The search window comes from the position of the most significant bit:
// log2(sqrtPriceX96) - 96 is tick * log2(sqrt(1.0001)), so each bit spans roughly 13864 ticks.
func GetTickAtSqrtRatio(sqrtPriceX96 *uint256.Int) (int32, error) {
	if sqrtPriceX96.Lt(MIN_SQRT_RATIO) || !sqrtPriceX96.Lt(MAX_SQRT_RATIO) {
		return 0, ErrSqrtPriceOutOfBounds
	}

	msb, err := bitmath.MostSignificantBit(sqrtPriceX96)
	if err != nil {
		return 0, err
	}
	low := (int32(msb) - 97) * 13864
	high := (int32(msb) - 94) * 13864
	if low < MIN_TICK {
		low = MIN_TICK
	}
	if high > MAX_TICK {
		high = MAX_TICK
	}

	var ratio uint256.Int
	tick := low
	for low <= high {
		mid := low + (high-low)/2
		if err := GetSqrtRatioAtTick(&ratio, mid); err != nil {
			return 0, err
		}
		if ratio.Cmp(sqrtPriceX96) <= 0 {
			tick = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	return tick, nil
}
