package uniswapv3

// Drift lists the state fields that differ between a tracked pool and a freshly
// fetched copy of it. An empty result means the tracked state is accurate.
// Ticks are compared in order since both sides keep them sorted.
func Drift(tracked, fetched Pool) []string {
	var fields []string
	if tracked.Tick != fetched.Tick {
		fields = append(fields, "tick")
	}
	if tracked.SqrtPriceX96.Cmp(fetched.SqrtPriceX96) != 0 {
		fields = append(fields, "sqrtPriceX96")
	}
	if tracked.Liquidity.Cmp(fetched.Liquidity) != 0 {
		fields = append(fields, "liquidity")
	}
	if ticksDiffer(tracked.Ticks, fetched.Ticks) {
		fields = append(fields, "ticks")
	}
	return fields
}

func ticksDiffer(a, b []TickInfo) bool {
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if a[i].Index != b[i].Index ||
			a[i].LiquidityNet.Cmp(b[i].LiquidityNet) != 0 ||
			a[i].LiquidityGross.Cmp(b[i].LiquidityGross) != 0 {
			return true
		}
	}
	return false
}
