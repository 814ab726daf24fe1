package main

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/defistate/defistate-arb-go/arbitrage"
	"github.com/defistate/defistate-arb-go/market"
)

type blockReport struct {
	Block         uint64              `json:"block" yaml:"block"`
	Applied       int                 `json:"applied" yaml:"applied"`
	Skipped       int                 `json:"skipped" yaml:"skipped"`
	Opportunities []opportunityReport `json:"opportunities" yaml:"opportunities"`
}

type opportunityReport struct {
	Path      string      `json:"path" yaml:"path"`
	Asset     string      `json:"asset" yaml:"asset"`
	AmountIn  string      `json:"amountIn" yaml:"amountIn"`
	AmountOut string      `json:"amountOut" yaml:"amountOut"`
	Profit    string      `json:"profit" yaml:"profit"`
	Hops      []hopReport `json:"hops" yaml:"hops"`
}

type hopReport struct {
	Pool      string `json:"pool" yaml:"pool"`
	TokenIn   string `json:"tokenIn" yaml:"tokenIn"`
	TokenOut  string `json:"tokenOut" yaml:"tokenOut"`
	AmountOut string `json:"amountOut" yaml:"amountOut"`
}

func newBlockReport(m *market.Market, result market.Result) blockReport {
	report := blockReport{
		Block:         result.Block,
		Applied:       result.Applied,
		Skipped:       result.Skipped,
		Opportunities: make([]opportunityReport, 0, len(result.Opportunities)),
	}
	for _, opp := range result.Opportunities {
		report.Opportunities = append(report.Opportunities, newOpportunityReport(m, opp))
	}
	return report
}

func newOpportunityReport(m *market.Market, opp arbitrage.Opportunity) opportunityReport {
	start := opp.Path.Start()
	report := opportunityReport{
		Path:      opp.Path.String(),
		Asset:     symbol(m, start),
		AmountIn:  formatAmount(m, start, opp.AmountIn),
		AmountOut: formatAmount(m, start, opp.AmountOut),
		Profit:    formatAmount(m, start, opp.Profit),
	}
	for i, step := range opp.Path.Steps() {
		hop := hopReport{
			Pool:     step.Pool.Address.Hex(),
			TokenIn:  symbol(m, step.TokenIn),
			TokenOut: symbol(m, step.TokenOut),
		}
		if i < len(opp.Steps) {
			hop.AmountOut = formatAmount(m, step.TokenOut, opp.Steps[i].AmountOut)
		}
		report.Hops = append(report.Hops, hop)
	}
	return report
}

func symbol(m *market.Market, address common.Address) string {
	if asset, ok := m.Asset(address); ok && asset.Symbol != "" {
		return asset.Symbol
	}
	return address.Hex()
}

// formatAmount scales a raw amount by the asset's decimals. Unknown assets
// are printed raw.
func formatAmount(m *market.Market, address common.Address, amount *big.Int) string {
	if amount == nil {
		return ""
	}
	asset, ok := m.Asset(address)
	if !ok {
		return amount.String()
	}
	return decimal.NewFromBigInt(amount, -int32(asset.Decimals)).String()
}
