package tickbitmap

import (
	"sort"

	uniswapv3 "github.com/defistate/defistate-arb-go/protocols/uniswapv3"
	"github.com/defistate/defistate-arb-go/protocols/uniswapv3/calculator/tickmath"
)

// Cursor walks a sorted slice of initialized ticks in one direction, answering
// the same questions as TickBitmap.nextInitializedTickWithinOneWord.
//
// The slice stands in for the on-chain bitmap: a tick is initialized iff it is
// present. Word boundaries are still honored because the swap loop splits steps
// at them, and step splitting changes rounding.
//
// The cursor is positioned once with a binary search and afterwards only moves
// forward, so a whole swap costs O(log n + ticks crossed).
type Cursor struct {
	ticks   []uniswapv3.TickInfo
	spacing int64
	lte     bool
	// lte: index of the greatest tick <= current, may be -1.
	// gt: index of the smallest tick > current, may be len(ticks).
	i int
}

// NewCursor positions a cursor at tick. lte selects the search direction used
// when selling token0 (prices fall, ticks decrease).
func NewCursor(ticks []uniswapv3.TickInfo, spacing int32, tick int32, lte bool) *Cursor {
	i := sort.Search(len(ticks), func(i int) bool {
		return ticks[i].Index > tick
	})
	if lte {
		i--
	}
	return &Cursor{ticks: ticks, spacing: int64(spacing), lte: lte, i: i}
}

// seek moves the cursor past ticks that are no longer ahead of tick.
func (c *Cursor) seek(tick int32) {
	if c.lte {
		for c.i >= 0 && c.ticks[c.i].Index > tick {
			c.i--
		}
		return
	}
	for c.i < len(c.ticks) && c.ticks[c.i].Index <= tick {
		c.i++
	}
}

// Next returns the next initialized tick within the bitmap word of tick, or the
// word boundary when the word holds none. The result is bounded to the tick range.
// Calls must not move tick backwards.
func (c *Cursor) Next(tick int32) (next int32, initialized bool) {
	c.seek(tick)
	compressed := floorDiv(int64(tick), c.spacing)

	if c.lte {
		boundary := floorDiv(compressed, 256) * 256
		if c.i >= 0 && c.ticks[c.i].Index >= boundTick(boundary*c.spacing) {
			return c.ticks[c.i].Index, true
		}
		return boundTick(boundary * c.spacing), false
	}

	boundary := floorDiv(compressed+1, 256)*256 + 255
	if c.i < len(c.ticks) && int64(c.ticks[c.i].Index) <= boundary*c.spacing {
		return c.ticks[c.i].Index, true
	}
	return boundTick(boundary * c.spacing), false
}

// NextInitialized ignores word boundaries and returns the next initialized tick
// in the cursor's direction. Swaps with no active liquidity use it to skip empty
// words, which move the price without exchanging anything.
func (c *Cursor) NextInitialized(tick int32) (next int32, ok bool) {
	c.seek(tick)
	if c.lte {
		if c.i < 0 {
			return 0, false
		}
		return c.ticks[c.i].Index, true
	}
	if c.i >= len(c.ticks) {
		return 0, false
	}
	return c.ticks[c.i].Index, true
}

// Tick returns the initialized tick the cursor points at.
func (c *Cursor) Tick() (uniswapv3.TickInfo, bool) {
	if c.i < 0 || c.i >= len(c.ticks) {
		return uniswapv3.TickInfo{}, false
	}
	return c.ticks[c.i], true
}

// NextInitializedTickWithinOneWord is the one-shot form of Cursor.Next.
func NextInitializedTickWithinOneWord(ticks []uniswapv3.TickInfo, tick, spacing int32, lte bool) (int32, bool) {
	return NewCursor(ticks, spacing, tick, lte).Next(tick)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func boundTick(t int64) int32 {
	if t < int64(tickmath.MIN_TICK) {
		return tickmath.MIN_TICK
	}
	if t > int64(tickmath.MAX_TICK) {
		return tickmath.MAX_TICK
	}
	return int32(t)
}
