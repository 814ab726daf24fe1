package graph

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-arb-go/engine"
)

// Graph is the concurrency-safe asset/pool graph that cycles are searched on.
// Writes take the mutex and publish a fresh view; readers only load the view.
type Graph struct {
	mu         sync.RWMutex
	registry   *registry
	cachedView atomic.Pointer[View]
}

// New creates an empty graph. compactionThreshold is the number of dangling
// edges tolerated before the slices are rebuilt; non-positive selects 1000.
func New(compactionThreshold int) *Graph {
	g := &Graph{
		registry: newRegistry(compactionThreshold),
	}
	g.cachedView.Store(g.registry.view())
	return g
}

// updateCachedView must be called with g.mu held for writing.
func (g *Graph) updateCachedView() {
	g.cachedView.Store(g.registry.view())
}

// AddPool adds or replaces a pool.
func (g *Graph) AddPool(pool engine.Pool) error {
	if err := pool.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.registry.add(pool)
	g.updateCachedView()
	return nil
}

// AddPools adds every pool or none of them.
func (g *Graph) AddPools(pools []engine.Pool) error {
	for i, pool := range pools {
		if err := pool.Validate(); err != nil {
			return fmt.Errorf("pool %d: %w", i, err)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(pools) == 0 {
		return nil
	}
	for _, pool := range pools {
		g.registry.add(pool)
	}
	g.updateCachedView()
	return nil
}

// RemovePool reports whether the pool was in the graph.
func (g *Graph) RemovePool(address common.Address) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.registry.removePool(address) {
		return false
	}
	g.updateCachedView()
	return true
}

// Pool returns the description of a pool in the graph.
func (g *Graph) Pool(address common.Address) (engine.Pool, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	i, ok := g.registry.poolToIndex[address]
	if !ok {
		return engine.Pool{}, false
	}
	return g.registry.pools[i], true
}

// Assets returns the assets that still trade through at least one pool.
func (g *Graph) Assets() []common.Address {
	v := g.cachedView.Load()
	assets := make([]common.Address, 0, len(v.Assets))
	for i, asset := range v.Assets {
		if len(v.poolsForAsset(i)) > 0 {
			assets = append(assets, asset)
		}
	}
	return assets
}

// PoolsForAsset returns every pool that trades asset.
func (g *Graph) PoolsForAsset(asset common.Address) []engine.Pool {
	v := g.cachedView.Load()
	for i, a := range v.Assets {
		if a != asset {
			continue
		}
		indices := v.poolsForAsset(i)
		if len(indices) == 0 {
			return nil
		}
		pools := make([]engine.Pool, len(indices))
		for j, p := range indices {
			pools[j] = v.Pools[p]
		}
		return pools
	}
	return nil
}

// View returns a deep copy of the current graph.
func (g *Graph) View() *View {
	return g.cachedView.Load().clone()
}

func (v *View) poolsForAsset(asset int) []int {
	var pools []int
	for _, edgeIndex := range v.Adjacency[asset] {
		pools = append(pools, v.EdgePools[edgeIndex]...)
	}
	return pools
}

func (v *View) clone() *View {
	c := &View{
		Assets:      append([]common.Address(nil), v.Assets...),
		Pools:       append([]engine.Pool(nil), v.Pools...),
		Adjacency:   make([][]int, len(v.Adjacency)),
		EdgeTargets: append([]int(nil), v.EdgeTargets...),
		EdgePools:   make([][]int, len(v.EdgePools)),
	}
	for i, adj := range v.Adjacency {
		c.Adjacency[i] = append([]int(nil), adj...)
	}
	for i, poolList := range v.EdgePools {
		c.EdgePools[i] = append([]int(nil), poolList...)
	}
	return c
}
