// Package config defines the bot config and transaction-stream config
// schemas of spec.md §6, loaded from YAML with env var overrides via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BotConfig is the top-level `--config` YAML document (spec.md §6 "Bot
// config YAML").
type BotConfig struct {
	Dexes         []DexConfig      `mapstructure:"dexes"`
	Detector      DetectorConfig   `mapstructure:"detector"`
	Gas           GasSettings      `mapstructure:"gas"`
	Risk          RiskConfig       `mapstructure:"risk"`
	Oracle        OracleConfig     `mapstructure:"oracle"`
	Logging       LoggingConfig    `mapstructure:"logging"`
	Dashboard     DashboardConfig  `mapstructure:"dashboard"`
	AssetDecimals map[string]int32 `mapstructure:"asset_decimals"` // asset -> decimal exponent; unlisted assets default to 0
}

// DexConfig describes one configured DEX: its address, RPC endpoint, the
// asset pairs it trades, and (optionally) the event type suffixes the event
// extractor should treat as relevant for it.
type DexConfig struct {
	Name               string   `mapstructure:"name"`
	ModuleAddr         string   `mapstructure:"module_addr"`
	FullnodeRPC        string   `mapstructure:"fullnode_rpc"`
	Pairs              []string `mapstructure:"pairs"`
	RelevantEventTypes []string `mapstructure:"relevant_event_types"`
	Pools              []string `mapstructure:"pools"` // may be empty only when all_pools is set
	AllPools           bool     `mapstructure:"all_pools"`
}

// DetectorConfig tunes the arbitrage detector (spec.md §4.F, §6).
type DetectorConfig struct {
	IntervalMS     uint64   `mapstructure:"interval_ms"`
	MinProfitPct   float64  `mapstructure:"min_profit_pct"`
	MinNetProfit   float64  `mapstructure:"min_net_profit"`
	AllowedPairs   []string `mapstructure:"allowed_pairs"`
	SizeFraction   float64  `mapstructure:"size_fraction"`
	SlippageCapPct float64  `mapstructure:"slippage_cap_pct"`
	MinSize        float64  `mapstructure:"min_size"`
	MaxSize        float64  `mapstructure:"max_size"`
	DedupTTL       time.Duration `mapstructure:"dedup_ttl"`
	PruneTTL       time.Duration `mapstructure:"prune_ttl"`
}

// GasSettings configures the gas estimator's linear model and optional RPC
// simulate call (spec.md §4.F step 5).
type GasSettings struct {
	BaseGasCost       uint64        `mapstructure:"base_gas_cost"`
	GasPerHop         uint64        `mapstructure:"gas_per_hop"`
	GasUnitPrice      float64       `mapstructure:"gas_unit_price"`
	MaxGasLimit       uint64        `mapstructure:"max_gas_limit"`
	EstimationBuffer  float64       `mapstructure:"estimation_buffer"`
	SimulateEndpoint  string        `mapstructure:"simulate_endpoint"`
	SimulateTimeout   time.Duration `mapstructure:"simulate_timeout"`
	SimulateAPIKey    string        `mapstructure:"simulate_api_key"`
}

// RiskConfig tunes the reference downstream RiskManager (§12.3): a
// net-profit threshold plus a rolling realized-loss circuit breaker,
// adapted from the teacher's per-market USD exposure limits.
type RiskConfig struct {
	MinNetProfit      float64       `mapstructure:"min_net_profit"`
	MaxRollingLoss    float64       `mapstructure:"max_rolling_loss"`
	RollingWindow     time.Duration `mapstructure:"rolling_window"`
	CooldownAfterKill time.Duration `mapstructure:"cooldown_after_kill"`
}

// OracleConfig configures the reference REST+cache Oracle (§12.3).
type OracleConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// LoggingConfig selects the slog handler level/format, matching the
// teacher's convention exactly.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the optional opportunity-stream dashboard.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads the bot config YAML and unmarshals it, with ARB_* env var
// overrides available for any field (mirroring the teacher's POLY_* prefix
// convention, retargeted).
func Load(path string) (*BotConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg BotConfig
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDetectorDefaults(&cfg.Detector)
	applyGasDefaults(&cfg.Gas)
	applyRiskDefaults(&cfg.Risk)

	return &cfg, nil
}

// Watch re-loads the bot config whenever the underlying file changes,
// invoking onChange with the freshly validated config. Repurposes viper's
// fsnotify-backed WatchConfig instead of a hand-rolled poller (§12 ambient
// enrichment — a DEX list can be appended without a restart).
func Watch(path string, onChange func(*BotConfig)) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	v.OnConfigChange(func(fsnotify.Event) {
		var cfg BotConfig
		if err := v.UnmarshalExact(&cfg); err != nil {
			return
		}
		applyDetectorDefaults(&cfg.Detector)
		applyGasDefaults(&cfg.Gas)
		applyRiskDefaults(&cfg.Risk)
		if err := cfg.Validate(); err != nil {
			return
		}
		onChange(&cfg)
	})
	v.WatchConfig()
	return nil
}

func applyDetectorDefaults(d *DetectorConfig) {
	if d.SizeFraction == 0 {
		d.SizeFraction = 0.05
	}
	if d.SlippageCapPct == 0 {
		d.SlippageCapPct = 0.05
	}
	if d.MinSize == 0 {
		d.MinSize = 0.000001
	}
	if d.MaxSize == 0 {
		d.MaxSize = 10000
	}
	if d.DedupTTL == 0 {
		d.DedupTTL = 2 * time.Minute
	}
	if d.PruneTTL == 0 {
		d.PruneTTL = 5 * time.Minute
	}
}

func applyGasDefaults(g *GasSettings) {
	if g.BaseGasCost == 0 {
		g.BaseGasCost = 1000
	}
	if g.GasPerHop == 0 {
		g.GasPerHop = 500
	}
	if g.MaxGasLimit == 0 {
		g.MaxGasLimit = 2_000_000
	}
	if g.EstimationBuffer == 0 {
		g.EstimationBuffer = 1.2
	}
	if g.SimulateTimeout == 0 {
		g.SimulateTimeout = 2 * time.Second
	}
}

func applyRiskDefaults(r *RiskConfig) {
	if r.RollingWindow == 0 {
		r.RollingWindow = 10 * time.Minute
	}
	if r.CooldownAfterKill == 0 {
		r.CooldownAfterKill = time.Minute
	}
}

// Validate checks the requirements of spec.md §4.I / §6: at least one DEX,
// every DEX has the required fields and either a pool whitelist or an
// explicit all-pools marker, and detector timing/profit bounds are sane.
func (c *BotConfig) Validate() error {
	if len(c.Dexes) == 0 {
		return fmt.Errorf("at least one dex must be configured")
	}
	for i, d := range c.Dexes {
		if d.Name == "" {
			return fmt.Errorf("dexes[%d].name is required", i)
		}
		if d.ModuleAddr == "" {
			return fmt.Errorf("dexes[%d].module_addr is required", i)
		}
		if len(d.RelevantEventTypes) == 0 {
			return fmt.Errorf("dexes[%d].relevant_event_types must have at least one entry", i)
		}
		if !d.AllPools && len(d.Pools) == 0 {
			return fmt.Errorf("dexes[%d] must set all_pools or list at least one pool", i)
		}
	}
	if c.Detector.IntervalMS == 0 {
		return fmt.Errorf("detector.interval_ms must be > 0")
	}
	if c.Detector.MinNetProfit < 0 {
		return fmt.Errorf("detector.min_net_profit must be >= 0")
	}
	return nil
}

// StreamConfig is the `--mdi-config` YAML document (spec.md §6 "Transaction
// stream YAML").
type StreamConfig struct {
	TransactionStream TransactionStreamConfig `mapstructure:"transaction_stream_config"`
	MarketData        MarketDataConfig        `mapstructure:"market_data_config"`
}

// TransactionStreamConfig configures the out-of-scope gRPC transaction
// stream. Only a contract is required by spec.md §1; this struct exists so
// the YAML round-trips and validates, not because the core consumes it.
type TransactionStreamConfig struct {
	StartingVersion                *uint64 `mapstructure:"starting_version"`
	IndexerGRPCDataServiceAddress  string  `mapstructure:"indexer_grpc_data_service_address"`
	AuthToken                      string  `mapstructure:"auth_token"`
	RequestNameHeader              string  `mapstructure:"request_name_header"`
}

// DataSourceConfig selects between a live gRPC feed and a file replay.
type DataSourceConfig struct {
	Type        string  `mapstructure:"type"` // "grpc" | "file"
	Path        string  `mapstructure:"path"`
	ReplaySpeed float64 `mapstructure:"replay_speed"`
}

// FilterConfig selects the PoolFilter mode (spec.md §4.C / internal/ingest).
type FilterConfig struct {
	Mode       string     `mapstructure:"mode"` // "all" | "token" | "token_pairs"
	Token      string     `mapstructure:"token"`
	TokenPairs [][2]string `mapstructure:"token_pairs"`
}

// MarketDataConfig is the ingest-side configuration: data source, filters,
// and the per-DEX event-name mapping the extractor uses.
type MarketDataConfig struct {
	DataSource DataSourceConfig     `mapstructure:"data_source"`
	Filters    FilterConfig         `mapstructure:"filters"`
	Dexs       []IngestDexConfig    `mapstructure:"dexs"`
}

// IngestDexConfig names the logical event names -> wire event-type suffixes
// for one DEX, as consumed by internal/ingest.EventExtractorStep. Events must
// carry a "pool_snapshot" and a "swap" key naming the fully-qualified wire
// event type strings for this DEX, mirroring original_source's
// DexConfig.pool_snapshot_event_name/swap_event_name.
type IngestDexConfig struct {
	Name          string            `mapstructure:"name"`
	ModuleAddress string            `mapstructure:"module_address"`
	Events        map[string]string `mapstructure:"events"`
	Pools         []string          `mapstructure:"pools"` // empty = no pool filter, all pools pass
	Settings      map[string]any    `mapstructure:"settings"`
}

// LoadStream reads the transaction-stream YAML document.
func LoadStream(path string) (*StreamConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read stream config: %w", err)
	}

	var cfg StreamConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal stream config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the transaction-stream config has enough to start a
// source (either a live gRPC address or a replay file path).
func (c *StreamConfig) Validate() error {
	switch c.MarketData.DataSource.Type {
	case "grpc":
		if c.TransactionStream.IndexerGRPCDataServiceAddress == "" {
			return fmt.Errorf("market_data_config.data_source.type=grpc requires transaction_stream_config.indexer_grpc_data_service_address")
		}
	case "file":
		if c.MarketData.DataSource.Path == "" {
			return fmt.Errorf("market_data_config.data_source.type=file requires data_source.path")
		}
	default:
		return fmt.Errorf("market_data_config.data_source.type must be %q or %q", "grpc", "file")
	}
	switch c.MarketData.Filters.Mode {
	case "all", "token", "token_pairs":
	default:
		return fmt.Errorf("market_data_config.filters.mode must be one of all, token, token_pairs")
	}
	if len(c.MarketData.Dexs) == 0 {
		return fmt.Errorf("market_data_config.dexs must have at least one entry")
	}
	return nil
}
