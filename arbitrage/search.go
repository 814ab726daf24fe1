package arbitrage

import (
	"errors"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/defistate/defistate-arb-go/engine"
	uniswapv2calculator "github.com/defistate/defistate-arb-go/protocols/uniswapv2/calculator"
	"github.com/defistate/defistate-arb-go/simulator"
)

var one = big.NewInt(1)

var (
	// exhaustiveWindow is the widest bracket searched one size at a time.
	exhaustiveWindow = big.NewInt(4096)
	// minOptimumWindow is the least distance searched on each side of a
	// closed-form optimum.
	minOptimumWindow = big.NewInt(256)
)

// search is the state of one Evaluate call. Every size tried is memoized and
// the best feasible one is kept.
type search struct {
	evaluator *Evaluator
	path      Path
	snapshots map[common.Address]simulator.Snapshot
	memo      map[string]*Opportunity
	best      *Opportunity
}

// at returns the opportunity at amount, or nil if the size is infeasible.
func (s *search) at(amount *big.Int) (*Opportunity, error) {
	key := amount.String()
	if opp, ok := s.memo[key]; ok {
		return opp, nil
	}
	s.evaluator.metrics.simulations.Inc()

	res, err := evaluateAmount(s.path, s.snapshots, amount)
	if err != nil {
		if errors.Is(err, ErrInfeasible) {
			s.memo[key] = nil
			return nil, nil
		}
		return nil, err
	}
	opp := &res
	s.memo[key] = opp
	if opp.betterThan(s.best) {
		s.best = opp
	}
	return opp, nil
}

func (s *search) run(limit Limit) error {
	marginal, err := s.marginalRate()
	if err != nil {
		if infeasible(err) {
			return nil
		}
		return err
	}
	if marginal.Cmp(big.NewFloat(1)) <= 0 {
		// the first unit already loses value, larger sizes only lose more
		return s.smallestFeasible(limit)
	}

	if x, ok := s.constantProductOptimum(); ok {
		if x == nil {
			return s.smallestFeasible(limit)
		}
		x = clamp(x, limit)
		width := new(big.Int).Rsh(x, 6)
		width.Add(width, big.NewInt(2))
		if width.Cmp(minOptimumWindow) < 0 {
			width.Set(minOptimumWindow)
		}
		lo := clamp(new(big.Int).Sub(x, width), limit)
		hi := clamp(new(big.Int).Add(x, width), limit)
		if _, err := s.at(x); err != nil {
			return err
		}
		return s.golden(lo, hi)
	}

	if err := s.golden(limit.Min, limit.Max); err != nil {
		return err
	}
	if s.best != nil && s.best.Profitable() && !s.hasConcentratedLiquidity() {
		return nil
	}
	return s.grid(limit)
}

// smallestFeasible evaluates limit.Min or, when the path cannot trade it, the
// smallest size above it that it can trade.
func (s *search) smallestFeasible(limit Limit) error {
	opp, err := s.at(limit.Min)
	if err != nil || opp != nil {
		return err
	}

	lo := limit.Min
	var hi *big.Int
	for _, x := range geometricGrid(limit.Min, limit.Max, s.evaluator.gridPoints)[1:] {
		opp, err := s.at(x)
		if err != nil {
			return err
		}
		if opp != nil {
			hi = x
			break
		}
		lo = x
	}
	if hi == nil {
		return nil
	}

	// lo is infeasible and hi feasible, bisect to the edge between them
	for new(big.Int).Sub(hi, lo).Cmp(one) > 0 {
		mid := new(big.Int).Add(lo, hi)
		mid.Rsh(mid, 1)
		opp, err := s.at(mid)
		if err != nil {
			return err
		}
		if opp != nil {
			hi = mid
		} else {
			lo = mid
		}
	}
	return nil
}

func (s *search) hasConcentratedLiquidity() bool {
	for i := 0; i < s.path.Len(); i++ {
		if s.path.Step(i).Pool.Variant == engine.ConcentratedLiquidity {
			return true
		}
	}
	return false
}

// marginalRate is the product of the fee adjusted spot prices along the path:
// the output per unit of input for an infinitesimal trade.
func (s *search) marginalRate() (*big.Float, error) {
	rate := new(big.Float).SetPrec(256).SetInt64(1)
	denominator := new(big.Float).SetPrec(256).SetInt64(engine.FeeDenominator)
	for i := 0; i < s.path.Len(); i++ {
		step := s.path.Step(i)
		price, err := s.snapshots[step.Pool.Address].SpotPrice(step.TokenIn)
		if err != nil {
			return nil, err
		}
		feeFactor := new(big.Float).SetPrec(256).SetInt64(int64(engine.FeeDenominator - step.Pool.Fee))
		feeFactor.Quo(feeFactor, denominator)
		rate.Mul(rate, price)
		rate.Mul(rate, feeFactor)
	}
	return rate, nil
}

// constantProductOptimum composes the swaps of an all constant product path
// into f(x) = A*x / (B + C*x) and returns the maximizer of f(x)-x,
// x* = (sqrt(A*B) - B) / C. ok is false when the path has other pool kinds;
// a nil x means no size is profitable.
func (s *search) constantProductOptimum() (x *big.Int, ok bool) {
	a, b, c := big.NewInt(1), big.NewInt(1), big.NewInt(0)
	for i := 0; i < s.path.Len(); i++ {
		step := s.path.Step(i)
		snap := s.snapshots[step.Pool.Address]
		if step.Pool.Variant != engine.ConstantProduct || snap.V2 == nil {
			return nil, false
		}
		reserveIn, reserveOut, err := uniswapv2calculator.GetReserves(step.TokenIn, *snap.V2)
		if err != nil {
			return nil, false
		}

		// one swap: g(y) = gamma*rOut*y / (rIn*1e6 + gamma*y), gamma = 1e6-fee
		gamma := big.NewInt(int64(engine.FeeDenominator - snap.V2.Fee))
		sa := new(big.Int).Mul(gamma, reserveOut)
		sb := new(big.Int).Mul(reserveIn, big.NewInt(engine.FeeDenominator))

		// g(f(x)) = sa*A*x / (sb*B + (sb*C + gamma*A)*x)
		c.Mul(c, sb)
		c.Add(c, new(big.Int).Mul(gamma, a))
		a.Mul(a, sa)
		b.Mul(b, sb)
	}

	if a.Cmp(b) <= 0 || c.Sign() == 0 {
		return nil, true
	}
	root := new(big.Int).Mul(a, b)
	root.Sqrt(root)
	root.Sub(root, b)
	if root.Sign() <= 0 {
		return nil, true
	}
	root.Quo(root, c)
	if root.Sign() <= 0 {
		return nil, true
	}
	return root, true
}

// golden narrows [lo, hi] around the most profitable size with an integer
// golden-section search. Infeasible sizes rank below every feasible one.
// Brackets no wider than exhaustiveWindow are scanned size by size instead.
func (s *search) golden(lo, hi *big.Int) error {
	lo, hi = new(big.Int).Set(lo), new(big.Int).Set(hi)
	width := new(big.Int).Sub(hi, lo)
	if width.Cmp(exhaustiveWindow) <= 0 {
		return s.scan(lo, hi)
	}
	stepSize := new(big.Int)
	for i := 0; i < s.evaluator.maxIterations; i++ {
		width.Sub(hi, lo)
		if width.Cmp(s.evaluator.tolerance) <= 0 {
			break
		}
		// 0.382 of the bracket, the complement of the golden ratio
		stepSize.Mul(width, big.NewInt(382))
		stepSize.Quo(stepSize, big.NewInt(1000))
		if stepSize.Sign() == 0 {
			stepSize.Set(one)
		}
		c := new(big.Int).Add(lo, stepSize)
		d := new(big.Int).Sub(hi, stepSize)
		if c.Cmp(d) >= 0 {
			break
		}

		fc, err := s.at(c)
		if err != nil {
			return err
		}
		fd, err := s.at(d)
		if err != nil {
			return err
		}
		if fd.betterThan(fc) {
			lo = c
		} else {
			hi = d
		}
	}

	// the bracket is narrow now, try what is left of it
	for x, n := new(big.Int).Set(lo), 0; x.Cmp(hi) <= 0 && n < 8; x, n = new(big.Int).Add(x, one), n+1 {
		if _, err := s.at(x); err != nil {
			return err
		}
	}
	_, err := s.at(hi)
	return err
}

// scan evaluates every size in [lo, hi].
func (s *search) scan(lo, hi *big.Int) error {
	for x := new(big.Int).Set(lo); x.Cmp(hi) <= 0; x = new(big.Int).Add(x, one) {
		if _, err := s.at(x); err != nil {
			return err
		}
	}
	return nil
}

// grid tries geometrically spaced sizes over the whole limit and refines
// around the best of them.
func (s *search) grid(limit Limit) error {
	points := geometricGrid(limit.Min, limit.Max, s.evaluator.gridPoints)
	bestIndex := -1
	var bestOpp *Opportunity
	for i, x := range points {
		opp, err := s.at(x)
		if err != nil {
			return err
		}
		if opp.betterThan(bestOpp) {
			bestIndex, bestOpp = i, opp
		}
	}
	if bestIndex < 0 {
		return nil
	}
	lo := points[max(bestIndex-1, 0)]
	hi := points[min(bestIndex+1, len(points)-1)]
	return s.golden(lo, hi)
}

// geometricGrid returns up to n distinct sizes from lo to hi, both included,
// spaced by a constant ratio.
func geometricGrid(lo, hi *big.Int, n int) []*big.Int {
	points := []*big.Int{new(big.Int).Set(lo)}
	if lo.Cmp(hi) == 0 {
		return points
	}
	lf, _ := new(big.Float).SetInt(lo).Float64()
	hf, _ := new(big.Float).SetInt(hi).Float64()
	ratio := math.Pow(hf/lf, 1/float64(n-1))

	x := lf
	for i := 1; i < n-1; i++ {
		x *= ratio
		p, _ := new(big.Float).SetFloat64(x).Int(nil)
		if p.Cmp(points[len(points)-1]) <= 0 || p.Cmp(hi) >= 0 {
			continue
		}
		points = append(points, p)
	}
	return append(points, new(big.Int).Set(hi))
}

func clamp(x *big.Int, limit Limit) *big.Int {
	switch {
	case x.Cmp(limit.Min) < 0:
		return new(big.Int).Set(limit.Min)
	case x.Cmp(limit.Max) > 0:
		return new(big.Int).Set(limit.Max)
	}
	return x
}
