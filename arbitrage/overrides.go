package arbitrage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-arb-go/simulator"
)

type overrideProvider struct {
	base      SnapshotProvider
	snapshots map[common.Address]simulator.Snapshot
}

// WithOverrides returns a provider that serves snaps for their pools and asks
// base for every other pool. It prices paths against hypothetical states, for
// example the pools as they will be after a pending swap. A nil base serves
// only the overrides. A later snapshot of the same pool replaces an earlier one.
func WithOverrides(base SnapshotProvider, snaps ...simulator.Snapshot) SnapshotProvider {
	p := &overrideProvider{
		base:      base,
		snapshots: make(map[common.Address]simulator.Snapshot, len(snaps)),
	}
	for _, s := range snaps {
		p.snapshots[s.Pool.Address] = s
	}
	return p
}

func (p *overrideProvider) Snapshot(address common.Address) (simulator.Snapshot, error) {
	if s, ok := p.snapshots[address]; ok {
		return s, nil
	}
	if p.base == nil {
		return simulator.Snapshot{}, fmt.Errorf("%w: %s", ErrMissingSnapshot, address)
	}
	return p.base.Snapshot(address)
}
