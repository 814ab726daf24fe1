package uniswapv2

// Drift lists the reserves that differ between a tracked pair and a freshly
// fetched copy of it.
func Drift(tracked, fetched Pool) []string {
	var fields []string
	if tracked.Reserve0.Cmp(fetched.Reserve0) != 0 {
		fields = append(fields, "reserve0")
	}
	if tracked.Reserve1.Cmp(fetched.Reserve1) != 0 {
		fields = append(fields, "reserve1")
	}
	return fields
}
