package graph

import (
	"iter"

	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-arb-go/arbitrage"
)

// FindCycles lazily enumerates the cycles of 2 to maxHops swaps that start and
// end at start. A cycle never trades through the same pool twice and never
// revisits an intermediate asset. The sequence reads the graph as it was when
// FindCycles was called and can be iterated more than once.
func (g *Graph) FindCycles(start common.Address, maxHops int) iter.Seq[arbitrage.Path] {
	v := g.cachedView.Load()
	return func(yield func(arbitrage.Path) bool) {
		if maxHops < 2 {
			return
		}
		s, ok := v.assetIndex(start)
		if !ok {
			return
		}
		newWalker(v, maxHops, yield).run(s)
	}
}

// AllCycles enumerates the cycles through every asset. A cycle reached from
// several of its assets is yielded once.
func (g *Graph) AllCycles(maxHops int) iter.Seq[arbitrage.Path] {
	v := g.cachedView.Load()
	return func(yield func(arbitrage.Path) bool) {
		if maxHops < 2 {
			return
		}
		w := newWalker(v, maxHops, yield)
		for s := range v.Assets {
			if !w.run(s) {
				return
			}
		}
	}
}

func (v *View) assetIndex(asset common.Address) (int, bool) {
	for i, a := range v.Assets {
		if a == asset {
			return i, true
		}
	}
	return 0, false
}

// walker is a depth-first search over a view. It is not safe for concurrent use.
type walker struct {
	view    *View
	maxHops int
	yield   func(arbitrage.Path) bool

	start     int
	steps     []arbitrage.Step
	usedPools *bitset.BitSet
	visited   *bitset.BitSet
	seen      mapset.Set[string]
}

func newWalker(v *View, maxHops int, yield func(arbitrage.Path) bool) *walker {
	return &walker{
		view:      v,
		maxHops:   maxHops,
		yield:     yield,
		steps:     make([]arbitrage.Step, 0, maxHops),
		usedPools: bitset.New(uint(len(v.Pools))),
		visited:   bitset.New(uint(len(v.Assets))),
		seen:      mapset.NewThreadUnsafeSet[string](),
	}
}

// run searches the cycles through start. It returns false once the consumer stops.
func (w *walker) run(start int) bool {
	w.start = start
	w.visited.Set(uint(start))
	defer w.visited.Clear(uint(start))
	return w.extend(start)
}

func (w *walker) extend(from int) bool {
	for _, edgeIndex := range w.view.Adjacency[from] {
		to := w.view.EdgeTargets[edgeIndex]
		closing := to == w.start
		if !closing && (w.visited.Test(uint(to)) || len(w.steps)+2 > w.maxHops) {
			continue
		}

		for _, p := range w.view.EdgePools[edgeIndex] {
			if w.usedPools.Test(uint(p)) {
				continue
			}
			w.steps = append(w.steps, arbitrage.Step{
				Pool:     w.view.Pools[p],
				TokenIn:  w.view.Assets[from],
				TokenOut: w.view.Assets[to],
			})

			more := true
			if closing {
				more = w.emit()
			} else {
				w.usedPools.Set(uint(p))
				w.visited.Set(uint(to))
				more = w.extend(to)
				w.usedPools.Clear(uint(p))
				w.visited.Clear(uint(to))
			}

			w.steps = w.steps[:len(w.steps)-1]
			if !more {
				return false
			}
		}
	}
	return true
}

func (w *walker) emit() bool {
	path, err := arbitrage.NewPath(w.steps...)
	if err != nil {
		return true
	}
	if !w.seen.Add(path.Key()) {
		return true // rotation of a cycle already yielded
	}
	return w.yield(path)
}
