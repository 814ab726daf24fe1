package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/defistate/defistate-arb-go/config"
	"github.com/defistate/defistate-arb-go/market"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Apply recorded logs to the configured pools and report arbitrage opportunities",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			m, err := buildMarket(cfg, logger)
			if err != nil {
				return err
			}
			defer m.Close()

			var reports []blockReport
			if cfg.Logs == "" {
				opps, err := m.Scan(cmd.Context(), cfg.StartAssets...)
				if err != nil {
					return err
				}
				reports = append(reports, newBlockReport(m, market.Result{Opportunities: opps}))
			} else {
				logs, err := readLogs(cfg.Logs)
				if err != nil {
					return err
				}
				reports, err = replay(cmd, m, groupBlocks(logs))
				if err != nil {
					return err
				}
			}
			return writeReport(cmd.OutOrStdout(), cfg.Output, reports)
		},
	}

	flags := cmd.Flags()
	flags.String("output", "yaml", "report format: yaml or json")
	flags.String("logs", "", "JSON file with an array of Sync/Swap/Mint/Burn logs to replay")
	flags.Int("max-hops", 3, "longest cycle to search")
	flags.Int("workers", 0, "concurrent path evaluations (0 uses GOMAXPROCS)")
	flags.Int("grid-points", 16, "grid size used when the golden section search finds nothing")
	flags.String("min-profit", "0", "minimum profit, in raw units of the start asset")
	flags.StringSlice("start-assets", nil, "assets cycles start and end with (default all)")
	return cmd
}

func newPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "List the cycles the configured pools form",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			m, err := buildMarket(cfg, logger)
			if err != nil {
				return err
			}
			defer m.Close()

			for path := range m.Paths(cfg.StartAssets...) {
				fmt.Fprintln(cmd.OutOrStdout(), path.String())
			}
			return nil
		},
	}
}

func buildMarket(cfg config.Config, logger *zap.Logger) (*market.Market, error) {
	opts := []market.Option{
		market.WithMaxHops(cfg.MaxHops),
		market.WithWorkers(cfg.Workers),
		market.WithGridPoints(cfg.GridPoints),
		market.WithMinProfit(cfg.MinProfit),
		market.WithDefaultLimit(cfg.Limit),
		market.WithStartAssets(cfg.StartAssets...),
	}
	for asset, limit := range cfg.Limits {
		opts = append(opts, market.WithLimit(asset, limit))
	}

	m, err := market.New(sugaredLogger{logger.Sugar()}, prometheus.NewRegistry(), opts...)
	if err != nil {
		return nil, err
	}
	for _, asset := range cfg.Assets {
		m.AddAsset(asset)
	}
	for _, s := range cfg.Pools {
		if err := m.AddPool(s); err != nil {
			m.Close()
			return nil, err
		}
	}
	logger.Info("Market ready", zap.Int("assets", len(cfg.Assets)), zap.Int("pools", len(cfg.Pools)))
	return m, nil
}

func readLogs(path string) ([]types.Log, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var logs []types.Log
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, fmt.Errorf("decode logs %s: %w", path, err)
	}
	return logs, nil
}

// groupBlocks orders logs by position in the chain and groups them by block.
func groupBlocks(logs []types.Log) []market.Block {
	slices.SortStableFunc(logs, func(a, b types.Log) int {
		if c := cmp.Compare(a.BlockNumber, b.BlockNumber); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})

	var blocks []market.Block
	for _, log := range logs {
		if n := len(blocks); n == 0 || blocks[n-1].Number != log.BlockNumber {
			blocks = append(blocks, market.Block{Number: log.BlockNumber})
		}
		blocks[len(blocks)-1].Logs = append(blocks[len(blocks)-1].Logs, log)
	}
	return blocks
}

// replay feeds blocks one at a time, waiting for each scan so no block's
// result is superseded by the next.
func replay(cmd *cobra.Command, m *market.Market, blocks []market.Block) ([]blockReport, error) {
	in := make(chan market.Block)
	defer close(in)
	results := m.Run(cmd.Context(), in)

	reports := make([]blockReport, 0, len(blocks))
	for _, block := range blocks {
		select {
		case in <- block:
		case <-cmd.Context().Done():
			return reports, cmd.Context().Err()
		}
		result, ok := <-results
		if !ok {
			return reports, cmd.Context().Err()
		}
		reports = append(reports, newBlockReport(m, result))
	}
	return reports, nil
}

func writeReport(w io.Writer, format string, reports []blockReport) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(reports); err != nil {
		return err
	}
	return enc.Close()
}
