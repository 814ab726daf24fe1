package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/defistate/defistate-arb-go/arbitrage"
	"github.com/defistate/defistate-arb-go/engine"
	uniswapv2 "github.com/defistate/defistate-arb-go/protocols/uniswapv2"
	uniswapv3 "github.com/defistate/defistate-arb-go/protocols/uniswapv3"
	"github.com/defistate/defistate-arb-go/simulator"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	LogLevel    string
	Output      string
	Logs        string // JSON file of logs applied before scanning
	MaxHops     int
	Workers     int
	GridPoints  int
	MinProfit   *big.Int
	Limit       arbitrage.Limit
	Limits      map[common.Address]arbitrage.Limit
	StartAssets []common.Address
	Assets      []engine.Asset
	Pools       []simulator.Snapshot
}

type assetEntry struct {
	Address  string `mapstructure:"address"`
	Symbol   string `mapstructure:"symbol"`
	Decimals uint8  `mapstructure:"decimals"`
	MinInput string `mapstructure:"min-input"`
	MaxInput string `mapstructure:"max-input"`
}

type factoryEntry struct {
	Address      string `mapstructure:"address"`
	InitCodeHash string `mapstructure:"init-code-hash"`
}

type tickEntry struct {
	Index          int32  `mapstructure:"index"`
	LiquidityGross string `mapstructure:"liquidity-gross"`
	LiquidityNet   string `mapstructure:"liquidity-net"`
}

type poolEntry struct {
	Address     string `mapstructure:"address"`
	Variant     string `mapstructure:"variant"`
	Token0      string `mapstructure:"token0"`
	Token1      string `mapstructure:"token1"`
	Fee         uint32 `mapstructure:"fee"`
	TickSpacing int32  `mapstructure:"tick-spacing"`
	Block       uint64 `mapstructure:"block"`

	Reserve0 string `mapstructure:"reserve0"`
	Reserve1 string `mapstructure:"reserve1"`

	SqrtPriceX96 string      `mapstructure:"sqrt-price-x96"`
	Liquidity    string      `mapstructure:"liquidity"`
	Tick         int32       `mapstructure:"tick"`
	Ticks        []tickEntry `mapstructure:"ticks"`
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARBSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("output", "yaml")
	v.SetDefault("max-hops", 3)
	v.SetDefault("workers", 0)
	v.SetDefault("grid-points", 16)
	v.SetDefault("min-profit", "0")
	v.SetDefault("min-input", "1")
	v.SetDefault("max-input", "1000000000000000000000000000000")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("arbsim")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	cfg := Config{
		LogLevel:   v.GetString("log-level"),
		Output:     v.GetString("output"),
		Logs:       v.GetString("logs"),
		MaxHops:    v.GetInt("max-hops"),
		Workers:    v.GetInt("workers"),
		GridPoints: v.GetInt("grid-points"),
		Limits:     make(map[common.Address]arbitrage.Limit),
	}
	switch cfg.Output {
	case "yaml", "json":
	default:
		return Config{}, fmt.Errorf("%w: output %q must be yaml or json", ErrInvalidConfig, cfg.Output)
	}

	var err error
	if cfg.MinProfit, err = parseBig("min-profit", v.GetString("min-profit")); err != nil {
		return Config{}, err
	}
	if cfg.Limit.Min, err = parseBig("min-input", v.GetString("min-input")); err != nil {
		return Config{}, err
	}
	if cfg.Limit.Max, err = parseBig("max-input", v.GetString("max-input")); err != nil {
		return Config{}, err
	}

	for _, s := range getStringSlice(v, "start-assets") {
		a, err := parseAddress("start-assets", s)
		if err != nil {
			return Config{}, err
		}
		cfg.StartAssets = append(cfg.StartAssets, a)
	}

	var assets []assetEntry
	if err := v.UnmarshalKey("assets", &assets); err != nil {
		return Config{}, fmt.Errorf("%w: assets: %v", ErrInvalidConfig, err)
	}
	for i, entry := range assets {
		asset, limit, err := entry.parse()
		if err != nil {
			return Config{}, fmt.Errorf("asset %d: %w", i, err)
		}
		cfg.Assets = append(cfg.Assets, asset)
		if limit != nil {
			cfg.Limits[asset.Address] = *limit
		}
	}

	var factory factoryEntry
	if err := v.UnmarshalKey("uniswapv2-factory", &factory); err != nil {
		return Config{}, fmt.Errorf("%w: uniswapv2-factory: %v", ErrInvalidConfig, err)
	}

	var pools []poolEntry
	if err := v.UnmarshalKey("pools", &pools); err != nil {
		return Config{}, fmt.Errorf("%w: pools: %v", ErrInvalidConfig, err)
	}
	for i, entry := range pools {
		s, err := entry.parse(factory)
		if err != nil {
			return Config{}, fmt.Errorf("pool %d: %w", i, err)
		}
		cfg.Pools = append(cfg.Pools, s)
	}

	return cfg, nil
}

func (e assetEntry) parse() (engine.Asset, *arbitrage.Limit, error) {
	address, err := parseAddress("address", e.Address)
	if err != nil {
		return engine.Asset{}, nil, err
	}
	asset := engine.Asset{Address: address, Symbol: e.Symbol, Decimals: e.Decimals}
	if e.MinInput == "" && e.MaxInput == "" {
		return asset, nil, nil
	}

	var limit arbitrage.Limit
	if limit.Min, err = parseBig("min-input", e.MinInput); err != nil {
		return engine.Asset{}, nil, err
	}
	if limit.Max, err = parseBig("max-input", e.MaxInput); err != nil {
		return engine.Asset{}, nil, err
	}
	return asset, &limit, nil
}

func (e poolEntry) parse(factory factoryEntry) (simulator.Snapshot, error) {
	variant, err := engine.ParseVariant(e.Variant)
	if err != nil {
		return simulator.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	token0, err := parseAddress("token0", e.Token0)
	if err != nil {
		return simulator.Snapshot{}, err
	}
	token1, err := parseAddress("token1", e.Token1)
	if err != nil {
		return simulator.Snapshot{}, err
	}

	var address common.Address
	switch {
	case e.Address != "":
		if address, err = parseAddress("address", e.Address); err != nil {
			return simulator.Snapshot{}, err
		}
	case variant == engine.ConstantProduct && factory.Address != "":
		factoryAddress, err := parseAddress("uniswapv2-factory.address", factory.Address)
		if err != nil {
			return simulator.Snapshot{}, err
		}
		initCodeHash, err := parseHash("uniswapv2-factory.init-code-hash", factory.InitCodeHash)
		if err != nil {
			return simulator.Snapshot{}, err
		}
		address = uniswapv2.ComputeAddress(factoryAddress, initCodeHash, token0, token1)
	default:
		return simulator.Snapshot{}, fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}

	pool := engine.Pool{
		Address:     address,
		Token0:      token0,
		Token1:      token1,
		Fee:         e.Fee,
		Variant:     variant,
		TickSpacing: e.TickSpacing,
	}
	marker := engine.EndOfBlock(e.Block)

	if variant == engine.ConstantProduct {
		state := uniswapv2.Pool{Address: address, Token0: token0, Token1: token1, Fee: e.Fee}
		if state.Reserve0, err = parseBig("reserve0", e.Reserve0); err != nil {
			return simulator.Snapshot{}, err
		}
		if state.Reserve1, err = parseBig("reserve1", e.Reserve1); err != nil {
			return simulator.Snapshot{}, err
		}
		return simulator.NewConstantProduct(pool, marker, state)
	}

	state := uniswapv3.Pool{
		Address:     address,
		Token0:      token0,
		Token1:      token1,
		Fee:         e.Fee,
		TickSpacing: e.TickSpacing,
		Tick:        e.Tick,
		Ticks:       make([]uniswapv3.TickInfo, len(e.Ticks)),
	}
	if state.SqrtPriceX96, err = parseBig("sqrt-price-x96", e.SqrtPriceX96); err != nil {
		return simulator.Snapshot{}, err
	}
	if state.Liquidity, err = parseBig("liquidity", e.Liquidity); err != nil {
		return simulator.Snapshot{}, err
	}
	for i, t := range e.Ticks {
		state.Ticks[i].Index = t.Index
		if state.Ticks[i].LiquidityGross, err = parseBig("liquidity-gross", t.LiquidityGross); err != nil {
			return simulator.Snapshot{}, err
		}
		if state.Ticks[i].LiquidityNet, err = parseBig("liquidity-net", t.LiquidityNet); err != nil {
			return simulator.Snapshot{}, err
		}
	}
	return simulator.NewConcentratedLiquidity(pool, marker, state)
}

// parseBig reads a base 10 integer. Amounts are kept as strings in config
// files since most exceed what YAML and JSON numbers hold exactly.
func parseBig(field, s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q is not an integer", ErrInvalidConfig, field, s)
	}
	return n, nil
}

func parseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %s %q is not an address", ErrInvalidConfig, field, s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(field, s string) (common.Hash, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != 2*common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %s %q is not a 32 byte hash", ErrInvalidConfig, field, s)
	}
	return common.HexToHash(s), nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return cleanStrings(strings.Split(typed, ","))
	case []any:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
