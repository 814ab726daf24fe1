package engine

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// FeeDenominator is 100% expressed in parts per million.
const FeeDenominator = 1_000_000

// Variant tags the pricing design a pool implements.
type Variant uint8

const (
	ConstantProduct Variant = iota + 1
	ConcentratedLiquidity
)

func (v Variant) String() string {
	switch v {
	case ConstantProduct:
		return "constant_product"
	case ConcentratedLiquidity:
		return "concentrated_liquidity"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

// ParseVariant accepts the canonical names as well as the common "v2"/"v3" aliases.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "constant_product", "v2", "uniswapv2":
		return ConstantProduct, nil
	case "concentrated_liquidity", "v3", "uniswapv3":
		return ConcentratedLiquidity, nil
	default:
		return 0, fmt.Errorf("unknown pool variant %q", s)
	}
}

func (v Variant) MarshalText() ([]byte, error) {
	if v != ConstantProduct && v != ConcentratedLiquidity {
		return nil, fmt.Errorf("cannot marshal %s", v)
	}
	return []byte(v.String()), nil
}

func (v *Variant) UnmarshalText(b []byte) error {
	parsed, err := ParseVariant(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Asset is an ERC20 token known to the engine.
type Asset struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol,omitempty"`
	Decimals uint8          `json:"decimals"`
}

// Pool is the immutable description of an exchange venue. Its mutable state
// lives in the protocol packages and is versioned by the tracker.
type Pool struct {
	Address     common.Address `json:"address"`
	Token0      common.Address `json:"token0"`
	Token1      common.Address `json:"token1"`
	Fee         uint32         `json:"fee"` // parts per million, i.e 3000 for 0.3%
	Variant     Variant        `json:"variant"`
	TickSpacing int32          `json:"tickSpacing,omitempty"`
}

var ErrInvalidPool = errors.New("invalid pool")

func (p Pool) Validate() error {
	if p.Token0 == p.Token1 {
		return fmt.Errorf("%w: %s trades %s against itself", ErrInvalidPool, p.Address, p.Token0)
	}
	if p.Fee >= FeeDenominator {
		return fmt.Errorf("%w: %s fee %d ppm must be below %d", ErrInvalidPool, p.Address, p.Fee, FeeDenominator)
	}
	switch p.Variant {
	case ConstantProduct:
	case ConcentratedLiquidity:
		if p.TickSpacing <= 0 {
			return fmt.Errorf("%w: %s tick spacing must be positive", ErrInvalidPool, p.Address)
		}
	default:
		return fmt.Errorf("%w: %s has %s", ErrInvalidPool, p.Address, p.Variant)
	}
	return nil
}

// Has reports whether token is one of the pool's two assets.
func (p Pool) Has(token common.Address) bool {
	return token == p.Token0 || token == p.Token1
}

// Counterpart returns the asset received when selling token into the pool.
func (p Pool) Counterpart(token common.Address) (common.Address, error) {
	switch token {
	case p.Token0:
		return p.Token1, nil
	case p.Token1:
		return p.Token0, nil
	}
	return common.Address{}, fmt.Errorf("%w: pool %s does not trade %s", ErrAssetMismatch, p.Address, token)
}

// SortTokens orders a pair the way pair and pool contracts do.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a, b
	}
	return b, a
}

// Event is a state change reported by a pool. Name selects the patch applied
// to the pool state, Variant the pool design it belongs to.
type Event interface {
	Variant() Variant
	Name() string
}

// Marker orders state changes: block first, then the log index inside the block.
type Marker struct {
	Block    uint64 `json:"block"`
	LogIndex uint64 `json:"logIndex"`
}

// EndOfBlock is the marker of a state read after every log of block n was applied.
func EndOfBlock(n uint64) Marker {
	return Marker{Block: n, LogIndex: math.MaxUint64}
}

func (m Marker) Compare(o Marker) int {
	switch {
	case m.Block < o.Block:
		return -1
	case m.Block > o.Block:
		return 1
	case m.LogIndex < o.LogIndex:
		return -1
	case m.LogIndex > o.LogIndex:
		return 1
	}
	return 0
}

// After reports whether m is strictly newer than o.
func (m Marker) After(o Marker) bool {
	return m.Compare(o) > 0
}

func (m Marker) String() string {
	if m.LogIndex == math.MaxUint64 {
		return fmt.Sprintf("%d/end", m.Block)
	}
	return fmt.Sprintf("%d/%d", m.Block, m.LogIndex)
}
