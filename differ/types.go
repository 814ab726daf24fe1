package differ

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-arb-go/engine"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// PoolDiff is the drift of one tracked pool from its fetched on-chain state.
type PoolDiff struct {
	Pool common.Address `json:"pool"`

	// Tracked and Fetched are the markers of the two compared states.
	Tracked engine.Marker `json:"tracked"`
	Fetched engine.Marker `json:"fetched"`

	// Fields names the state fields that differ, i.e "reserve0" or "ticks".
	Fields []string `json:"fields"`
}

// StateDiff summarizes a comparison of tracked and fetched states.
type StateDiff struct {
	Timestamp uint64     `json:"timestamp"`
	Checked   int        `json:"checked"`
	Drifted   []PoolDiff `json:"drifted,omitempty"`
	// Untracked lists fetched pools the tracked side does not know.
	Untracked []common.Address `json:"untracked,omitempty"`
}
