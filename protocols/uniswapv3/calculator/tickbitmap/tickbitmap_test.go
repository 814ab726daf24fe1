package tickbitmap

import (
	"crypto/rand"
	"math/big"
	"sort"
	"testing"

	uniswapv3 "github.com/defistate/defistate-arb-go/protocols/uniswapv3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTickInfoSlice converts tick indices into TickInfo values.
func makeTickInfoSlice(indices []int32) []uniswapv3.TickInfo {
	tickInfos := make([]uniswapv3.TickInfo, len(indices))
	for i, idx := range indices {
		tickInfos[i] = uniswapv3.TickInfo{Index: idx, LiquidityGross: big.NewInt(1), LiquidityNet: big.NewInt(int64(idx))}
	}
	return tickInfos
}

func randInt64(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		panic(err)
	}
	return v.Int64()
}

// referenceNext scans compressed ticks one by one the way the bitmap word scan does.
func referenceNext(initialized map[int32]bool, tick, spacing int32, lte bool) (int32, bool) {
	s := int64(spacing)
	compressed := floorDiv(int64(tick), s)
	if lte {
		wordStart := floorDiv(compressed, 256) * 256
		for c := compressed; c >= wordStart; c-- {
			if initialized[int32(c*s)] {
				return int32(c * s), true
			}
		}
		return boundTick(wordStart * s), false
	}
	wordEnd := floorDiv(compressed+1, 256)*256 + 255
	for c := compressed + 1; c <= wordEnd; c++ {
		if initialized[int32(c*s)] {
			return int32(c * s), true
		}
	}
	return boundTick(wordEnd * s), false
}

func TestNextInitializedTickWithinOneWord(t *testing.T) {
	initializedTickIndices := []int32{-200, -100, -50, 0, 50, 100, 200}

	testCases := []struct {
		name                string
		ticks               []int32
		startTick           int32
		spacing             int32
		lte                 bool
		expectedNext        int32
		expectedInitialized bool
	}{
		{"LTE: Exact Match", initializedTickIndices, 50, 1, true, 50, true},
		{"LTE: Between Ticks", initializedTickIndices, 40, 1, true, 0, true},
		{"LTE: Just Above a Tick", initializedTickIndices, 51, 1, true, 50, true},
		{"LTE: At First Tick", initializedTickIndices, -200, 1, true, -200, true},
		{"LTE: Before First Tick stops at the word start", initializedTickIndices, -250, 1, true, -256, false},

		{"GT: On an existing tick", initializedTickIndices, 50, 1, false, 100, true},
		{"GT: Between Ticks", initializedTickIndices, 40, 1, false, 50, true},
		{"GT: At First Tick", initializedTickIndices, -200, 1, false, -100, true},
		{"GT: At Last Tick stops at the word end", initializedTickIndices, 200, 1, false, 255, false},
		{"GT: Last bit of a word moves to the next word", initializedTickIndices, 255, 1, false, 511, false},

		{"Spacing: negative tick rounds towards negative infinity", []int32{}, -1, 60, true, -256 * 60, false},
		{"Spacing: initialized multiple in the word", []int32{-120, 600}, -1, 60, true, -120, true},
		{"Spacing: gt from a non multiple", []int32{-120, 600}, 59, 60, false, 600, true},

		{"Edge: Empty Slice (LTE)", []int32{}, 100, 1, true, 0, false},
		{"Edge: Empty Slice (GT)", []int32{}, 100, 1, false, 255, false},
		{"Edge: clamps to the minimum tick", []int32{}, -887272, 1, true, -887272, false},
		{"Edge: clamps to the maximum tick", []int32{}, 887271, 1, false, 887272, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			next, initialized := NextInitializedTickWithinOneWord(makeTickInfoSlice(tc.ticks), tc.startTick, tc.spacing, tc.lte)
			assert.Equal(t, tc.expectedInitialized, initialized)
			assert.Equal(t, tc.expectedNext, next)
		})
	}
}

func TestCursor(t *testing.T) {
	t.Run("should walk words until it reaches a distant tick", func(t *testing.T) {
		c := NewCursor(makeTickInfoSlice([]int32{-300}), 1, 0, true)

		next, ok := c.Next(0)
		assert.False(t, ok)
		assert.Equal(t, int32(0), next)

		next, ok = c.Next(-1)
		assert.False(t, ok)
		assert.Equal(t, int32(-256), next)

		next, ok = c.Next(-257)
		require.True(t, ok)
		assert.Equal(t, int32(-300), next)

		info, ok := c.Tick()
		require.True(t, ok)
		assert.Equal(t, int32(-300), info.Index)
	})

	t.Run("next initialized should ignore word boundaries", func(t *testing.T) {
		c := NewCursor(makeTickInfoSlice([]int32{-5000, 10, 9000}), 10, 10, false)
		next, ok := c.NextInitialized(10)
		require.True(t, ok)
		assert.Equal(t, int32(9000), next)

		_, ok = c.NextInitialized(9000)
		assert.False(t, ok)

		c = NewCursor(makeTickInfoSlice([]int32{-5000, 10, 9000}), 10, 9, true)
		next, ok = c.NextInitialized(9)
		require.True(t, ok)
		assert.Equal(t, int32(-5000), next)
	})

	t.Run("a moving cursor should agree with a word scan", func(t *testing.T) {
		for _, spacing := range []int32{1, 10, 60, 200} {
			for round := 0; round < 20; round++ {
				initialized := make(map[int32]bool)
				var indices []int32
				for j := 0; j < 30; j++ {
					tick := int32(randInt64(2000)-1000) * spacing
					if !initialized[tick] {
						initialized[tick] = true
						indices = append(indices, tick)
					}
				}
				sort.Slice(indices, func(a, b int) bool { return indices[a] < indices[b] })
				ticks := makeTickInfoSlice(indices)

				for _, lte := range []bool{true, false} {
					tick := int32(randInt64(2000*int64(spacing)) - 1000*int64(spacing))
					c := NewCursor(ticks, spacing, tick, lte)
					for step := 0; step < 40; step++ {
						wantNext, wantOK := referenceNext(initialized, tick, spacing, lte)
						gotNext, gotOK := c.Next(tick)
						require.Equal(t, wantOK, gotOK, "spacing %d tick %d lte %v", spacing, tick, lte)
						require.Equal(t, wantNext, gotNext, "spacing %d tick %d lte %v", spacing, tick, lte)

						// Move the way the swap loop does after reaching the step target.
						if lte {
							tick = gotNext - 1
						} else {
							tick = gotNext
						}
						if tick <= -887272 || tick >= 887272 {
							break
						}
					}
				}
			}
		}
	})
}
