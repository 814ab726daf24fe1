package graph

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-arb-go/engine"
)

// View is an immutable snapshot of the asset graph. Assets are nodes; every
// directed edge from one asset to another lists the pools that trade the pair.
type View struct {
	Assets      []common.Address `json:"assets"`
	Pools       []engine.Pool    `json:"pools"`
	Adjacency   [][]int          `json:"adjacency"`
	EdgeTargets []int            `json:"edgeTargets"`
	EdgePools   [][]int          `json:"edgePools"`
}

// registry is the mutable, non-thread-safe graph behind a Graph. Nodes and
// edges live in slices indexed by position; removed pools leave dangling edges
// until the next compaction.
type registry struct {
	assetToIndex map[common.Address]int
	poolToIndex  map[common.Address]int

	assets              []common.Address
	pools               []engine.Pool
	adjacency           [][]int
	edgeTargets         []int
	edgePools           [][]int
	danglingEdgeCount   int
	compactionThreshold int
}

func newRegistry(compactionThreshold int) *registry {
	if compactionThreshold <= 0 {
		compactionThreshold = 1000
	}
	return &registry{
		assetToIndex:        make(map[common.Address]int),
		poolToIndex:         make(map[common.Address]int),
		compactionThreshold: compactionThreshold,
	}
}

func (r *registry) assetIndex(asset common.Address) int {
	i, exists := r.assetToIndex[asset]
	if !exists {
		i = len(r.assets)
		r.assets = append(r.assets, asset)
		r.assetToIndex[asset] = i
		r.adjacency = append(r.adjacency, nil)
	}
	return i
}

// addEdge links from -> to through the pool at poolIndex.
func (r *registry) addEdge(from, to, poolIndex int) {
	for _, edgeIndex := range r.adjacency[from] {
		if r.edgeTargets[edgeIndex] != to {
			continue
		}
		for _, existing := range r.edgePools[edgeIndex] {
			if existing == poolIndex {
				return
			}
		}
		if len(r.edgePools[edgeIndex]) == 0 {
			r.danglingEdgeCount-- // revived
		}
		r.edgePools[edgeIndex] = append(r.edgePools[edgeIndex], poolIndex)
		return
	}

	newEdgeIndex := len(r.edgeTargets)
	r.edgeTargets = append(r.edgeTargets, to)
	r.edgePools = append(r.edgePools, []int{poolIndex})
	r.adjacency[from] = append(r.adjacency[from], newEdgeIndex)
}

// add inserts a pool as a pair of directed edges. Adding a known pool
// replaces its description.
func (r *registry) add(pool engine.Pool) {
	if i, exists := r.poolToIndex[pool.Address]; exists {
		if r.pools[i].Token0 == pool.Token0 && r.pools[i].Token1 == pool.Token1 {
			r.pools[i] = pool
			return
		}
		r.removePool(pool.Address)
	}

	poolIndex := len(r.pools)
	r.pools = append(r.pools, pool)
	r.poolToIndex[pool.Address] = poolIndex

	a, b := r.assetIndex(pool.Token0), r.assetIndex(pool.Token1)
	r.addEdge(a, b, poolIndex)
	r.addEdge(b, a, poolIndex)
}

// removePool detaches a pool from its edges. It reports whether the pool was known.
func (r *registry) removePool(address common.Address) bool {
	poolIndex, exists := r.poolToIndex[address]
	if !exists {
		return false
	}
	delete(r.poolToIndex, address)

	for edgeIndex, poolList := range r.edgePools {
		if len(poolList) == 0 {
			continue
		}
		kept := make([]int, 0, len(poolList))
		for _, p := range poolList {
			if p != poolIndex {
				kept = append(kept, p)
			}
		}
		if len(kept) == len(poolList) {
			continue
		}
		r.edgePools[edgeIndex] = kept
		if len(kept) == 0 {
			r.danglingEdgeCount++
		}
	}

	if r.danglingEdgeCount > r.compactionThreshold {
		r.compact()
	}
	return true
}

// compact rebuilds the slices without dangling edges, detached pools or
// assets left without edges.
func (r *registry) compact() {
	// edges that still carry pools
	oldToNewEdge := make(map[int]int, len(r.edgeTargets))
	edgeTargets := make([]int, 0, len(r.edgeTargets))
	edgePools := make([][]int, 0, len(r.edgePools))
	for i, poolList := range r.edgePools {
		if len(poolList) > 0 {
			oldToNewEdge[i] = len(edgeTargets)
			edgeTargets = append(edgeTargets, r.edgeTargets[i])
			edgePools = append(edgePools, poolList)
		}
	}

	usedAssets := make(map[int]struct{})
	for _, target := range edgeTargets {
		usedAssets[target] = struct{}{}
	}

	oldToNewAsset := make(map[int]int, len(usedAssets))
	assets := make([]common.Address, 0, len(usedAssets))
	assetToIndex := make(map[common.Address]int, len(usedAssets))
	for i, asset := range r.assets {
		if _, ok := usedAssets[i]; ok {
			oldToNewAsset[i] = len(assets)
			assetToIndex[asset] = len(assets)
			assets = append(assets, asset)
		}
	}

	oldToNewPool := make(map[int]int, len(r.poolToIndex))
	pools := make([]engine.Pool, 0, len(r.poolToIndex))
	poolToIndex := make(map[common.Address]int, len(r.poolToIndex))
	for i, pool := range r.pools {
		if current, ok := r.poolToIndex[pool.Address]; ok && current == i {
			oldToNewPool[i] = len(pools)
			poolToIndex[pool.Address] = len(pools)
			pools = append(pools, pool)
		}
	}

	for i := range edgeTargets {
		edgeTargets[i] = oldToNewAsset[edgeTargets[i]]
	}
	for i, poolList := range edgePools {
		remapped := make([]int, len(poolList))
		for j, p := range poolList {
			remapped[j] = oldToNewPool[p]
		}
		edgePools[i] = remapped
	}

	adjacency := make([][]int, len(assets))
	for oldAsset, oldAdj := range r.adjacency {
		newAsset, ok := oldToNewAsset[oldAsset]
		if !ok {
			continue
		}
		for _, oldEdge := range oldAdj {
			if newEdge, ok := oldToNewEdge[oldEdge]; ok {
				adjacency[newAsset] = append(adjacency[newAsset], newEdge)
			}
		}
	}

	r.assets = assets
	r.assetToIndex = assetToIndex
	r.pools = pools
	r.poolToIndex = poolToIndex
	r.edgeTargets = edgeTargets
	r.edgePools = edgePools
	r.adjacency = adjacency
	r.danglingEdgeCount = 0
}

// view returns a deep copy of the graph's slices.
func (r *registry) view() *View {
	v := &View{
		Assets:      make([]common.Address, len(r.assets)),
		Pools:       make([]engine.Pool, len(r.pools)),
		Adjacency:   make([][]int, len(r.adjacency)),
		EdgeTargets: make([]int, len(r.edgeTargets)),
		EdgePools:   make([][]int, len(r.edgePools)),
	}
	copy(v.Assets, r.assets)
	copy(v.Pools, r.pools)
	copy(v.EdgeTargets, r.edgeTargets)
	for i, adj := range r.adjacency {
		v.Adjacency[i] = append([]int(nil), adj...)
	}
	for i, poolList := range r.edgePools {
		v.EdgePools[i] = append([]int(nil), poolList...)
	}
	return v
}
