package arbitrage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-arb-go/engine"
)

var (
	ErrEmptyPath    = errors.New("path has no steps")
	ErrRepeatedPool = errors.New("path trades through a pool twice")
)

// Step sells TokenIn for TokenOut through Pool.
type Step struct {
	Pool     engine.Pool    `json:"pool"`
	TokenIn  common.Address `json:"tokenIn"`
	TokenOut common.Address `json:"tokenOut"`
}

// Path is a cycle of swaps that starts and ends with the same asset.
// It cannot be modified once built.
type Path struct {
	steps []Step
}

// NewPath validates that steps chain into a closed cycle without reusing a pool.
func NewPath(steps ...Step) (Path, error) {
	if len(steps) == 0 {
		return Path{}, ErrEmptyPath
	}

	seen := make(map[common.Address]struct{}, len(steps))
	for i, s := range steps {
		out, err := s.Pool.Counterpart(s.TokenIn)
		if err != nil {
			return Path{}, fmt.Errorf("step %d: %w", i, err)
		}
		if out != s.TokenOut {
			return Path{}, fmt.Errorf("%w: step %d through %s yields %s, not %s", engine.ErrAssetMismatch, i, s.Pool.Address, out, s.TokenOut)
		}
		next := steps[(i+1)%len(steps)]
		if s.TokenOut != next.TokenIn {
			return Path{}, fmt.Errorf("%w: step %d ends with %s but the next step sells %s", engine.ErrAssetMismatch, i, s.TokenOut, next.TokenIn)
		}
		if _, ok := seen[s.Pool.Address]; ok {
			return Path{}, fmt.Errorf("%w: %s", ErrRepeatedPool, s.Pool.Address)
		}
		seen[s.Pool.Address] = struct{}{}
	}

	return Path{steps: append([]Step(nil), steps...)}, nil
}

// PathThrough builds the cycle that sells start into pools[0] and follows the
// pools in order.
func PathThrough(start common.Address, pools ...engine.Pool) (Path, error) {
	steps := make([]Step, len(pools))
	tokenIn := start
	for i, pool := range pools {
		out, err := pool.Counterpart(tokenIn)
		if err != nil {
			return Path{}, fmt.Errorf("step %d: %w", i, err)
		}
		steps[i] = Step{Pool: pool, TokenIn: tokenIn, TokenOut: out}
		tokenIn = out
	}
	return NewPath(steps...)
}

func (p Path) Len() int { return len(p.steps) }

func (p Path) Step(i int) Step { return p.steps[i] }

// Steps returns a copy of the steps.
func (p Path) Steps() []Step { return append([]Step(nil), p.steps...) }

// Start returns the asset the cycle is measured in.
func (p Path) Start() common.Address {
	if len(p.steps) == 0 {
		return common.Address{}
	}
	return p.steps[0].TokenIn
}

// Key identifies the cycle regardless of where it starts: rotations of one
// cycle share a key, the reversed cycle does not.
func (p Path) Key() string {
	if len(p.steps) == 0 {
		return ""
	}
	first := 0
	for i := 1; i < len(p.steps); i++ {
		if lessStep(p.steps[i], p.steps[first]) {
			first = i
		}
	}

	var b strings.Builder
	for i := range p.steps {
		s := p.steps[(first+i)%len(p.steps)]
		b.WriteString(s.Pool.Address.Hex())
		b.WriteByte(':')
		b.WriteString(s.TokenIn.Hex())
		b.WriteByte('/')
	}
	return b.String()
}

func lessStep(a, b Step) bool {
	if c := bytes.Compare(a.Pool.Address.Bytes(), b.Pool.Address.Bytes()); c != 0 {
		return c < 0
	}
	return bytes.Compare(a.TokenIn.Bytes(), b.TokenIn.Bytes()) < 0
}

func (p Path) String() string {
	if len(p.steps) == 0 {
		return "<empty>"
	}
	var b strings.Builder
	b.WriteString(p.steps[0].TokenIn.Hex())
	for _, s := range p.steps {
		fmt.Fprintf(&b, " -[%s]-> %s", s.Pool.Address.Hex(), s.TokenOut.Hex())
	}
	return b.String()
}

func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.steps)
}

func (p *Path) UnmarshalJSON(data []byte) error {
	var steps []Step
	if err := json.Unmarshal(data, &steps); err != nil {
		return err
	}
	path, err := NewPath(steps...)
	if err != nil {
		return err
	}
	*p = path
	return nil
}
