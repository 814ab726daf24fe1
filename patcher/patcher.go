package patcher

import (
	"errors"
	"fmt"

	"github.com/defistate/defistate-arb-go/engine"
	uniswapv2 "github.com/defistate/defistate-arb-go/protocols/uniswapv2"
	uniswapv3 "github.com/defistate/defistate-arb-go/protocols/uniswapv3"
	"github.com/defistate/defistate-arb-go/simulator"
)

var (
	// ErrEventVariantMismatch is returned for an event that belongs to another pool design.
	ErrEventVariantMismatch = errors.New("event does not apply to pool variant")
	// ErrNoPatcher is returned for an event name no patcher is registered for.
	ErrNoPatcher = errors.New("no patcher registered for event")
)

// PatcherFunc applies one event to the state of a pool.
//
// CONTRACT:
// 1. Immutability: implementations MUST NOT mutate 'prev'. Unchanged parts may be shared.
// 2. 'prev' has already been checked to be of the event's variant.
type PatcherFunc func(prev simulator.Snapshot, ev engine.Event) (simulator.Snapshot, error)

// --- Config and Main Struct ---

type StatePatcherConfig struct {
	// Map event name -> patcher function
	// Example: "sync" -> SyncPatcher
	Patchers map[string]PatcherFunc
}

func (c *StatePatcherConfig) validate() error {
	if len(c.Patchers) == 0 {
		return errors.New("config: Patchers cannot be empty")
	}
	for name, patcher := range c.Patchers {
		if patcher == nil {
			return fmt.Errorf("config: patcher for %q cannot be nil", name)
		}
	}
	return nil
}

// StatePatcher applies events to pool snapshots.
type StatePatcher struct {
	patchers map[string]PatcherFunc
}

// NewStatePatcher constructs a new patcher from a configuration.
func NewStatePatcher(cfg *StatePatcherConfig) (*StatePatcher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Copy map to ensure immutability
	patchers := make(map[string]PatcherFunc, len(cfg.Patchers))
	for k, v := range cfg.Patchers {
		patchers[k] = v
	}

	return &StatePatcher{
		patchers: patchers,
	}, nil
}

// Patch returns the snapshot produced by applying ev at marker to prev.
// Ordering is the caller's concern; Patch only refuses events of the wrong design.
func (p *StatePatcher) Patch(prev simulator.Snapshot, marker engine.Marker, ev engine.Event) (simulator.Snapshot, error) {
	if ev.Variant() != prev.Pool.Variant {
		return simulator.Snapshot{}, fmt.Errorf("%w: %s event for %s pool %s", ErrEventVariantMismatch, ev.Name(), prev.Pool.Variant, prev.Pool.Address)
	}

	patcherFunc, ok := p.patchers[ev.Name()]
	if !ok {
		return simulator.Snapshot{}, fmt.Errorf("%w: %q", ErrNoPatcher, ev.Name())
	}

	next, err := patcherFunc(prev, ev)
	if err != nil {
		return simulator.Snapshot{}, fmt.Errorf("patcher: failed to apply %s to %s: %w", ev.Name(), prev.Pool.Address, err)
	}
	next.Marker = marker
	return next, nil
}

// Default returns the patchers for every event the protocol packages define.
func Default() map[string]PatcherFunc {
	return map[string]PatcherFunc{
		uniswapv2.Sync{}.Name(): SyncPatcher,
		uniswapv3.Swap{}.Name(): SwapPatcher,
		uniswapv3.Mint{}.Name(): MintPatcher,
		uniswapv3.Burn{}.Name(): BurnPatcher,
		uniswapv3.Flip{}.Name(): FlipPatcher,
	}
}

func SyncPatcher(prev simulator.Snapshot, ev engine.Event) (simulator.Snapshot, error) {
	sync, ok := ev.(uniswapv2.Sync)
	if !ok {
		return simulator.Snapshot{}, fmt.Errorf("unexpected event type %T", ev)
	}
	state, err := uniswapv2.ApplySync(*prev.V2, sync)
	if err != nil {
		return simulator.Snapshot{}, err
	}
	next := prev
	next.V2 = &state
	return next, nil
}

func SwapPatcher(prev simulator.Snapshot, ev engine.Event) (simulator.Snapshot, error) {
	swap, ok := ev.(uniswapv3.Swap)
	if !ok {
		return simulator.Snapshot{}, fmt.Errorf("unexpected event type %T", ev)
	}
	return patchV3(prev, func(p uniswapv3.Pool) (uniswapv3.Pool, error) { return uniswapv3.ApplySwap(p, swap) })
}

func MintPatcher(prev simulator.Snapshot, ev engine.Event) (simulator.Snapshot, error) {
	mint, ok := ev.(uniswapv3.Mint)
	if !ok {
		return simulator.Snapshot{}, fmt.Errorf("unexpected event type %T", ev)
	}
	return patchV3(prev, func(p uniswapv3.Pool) (uniswapv3.Pool, error) { return uniswapv3.ApplyMint(p, mint) })
}

func BurnPatcher(prev simulator.Snapshot, ev engine.Event) (simulator.Snapshot, error) {
	burn, ok := ev.(uniswapv3.Burn)
	if !ok {
		return simulator.Snapshot{}, fmt.Errorf("unexpected event type %T", ev)
	}
	return patchV3(prev, func(p uniswapv3.Pool) (uniswapv3.Pool, error) { return uniswapv3.ApplyBurn(p, burn) })
}

func FlipPatcher(prev simulator.Snapshot, ev engine.Event) (simulator.Snapshot, error) {
	flip, ok := ev.(uniswapv3.Flip)
	if !ok {
		return simulator.Snapshot{}, fmt.Errorf("unexpected event type %T", ev)
	}
	return patchV3(prev, func(p uniswapv3.Pool) (uniswapv3.Pool, error) { return uniswapv3.ApplyFlip(p, flip) })
}

func patchV3(prev simulator.Snapshot, apply func(uniswapv3.Pool) (uniswapv3.Pool, error)) (simulator.Snapshot, error) {
	state, err := apply(*prev.V3)
	if err != nil {
		return simulator.Snapshot{}, err
	}
	next := prev
	next.V3 = &state
	return next, nil
}
