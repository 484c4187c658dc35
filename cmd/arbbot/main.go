// arbbot — an on-chain arbitrage detection engine for a block-based
// smart-contract chain.
//
// Architecture:
//
//	main.go                 — entry point: flags, config, logger, pipeline wiring, signal handling
//	internal/adapter/       — per-DEX event decoding (hyperion, thala, tapp)
//	internal/ingest/        — event extractor, pool filter, and the file-replay -> DetectorMessage pipeline
//	internal/translator/    — MarketUpdate -> price graph Edge
//	internal/graph/         — the price graph, quoting, and the stale-pool janitor
//	internal/detector/      — trade sizing, gas estimation, Bellman-Ford cycle search, strategies, dedup
//	internal/service/       — the block-synchronous engine tying detection to dispatch
//	internal/downstream/    — RiskManager/Executor/Oracle contracts plus reference implementations
//	internal/rpc/           — shared rate-limited, optionally HMAC-signed HTTP client
//	internal/api/           — the optional opportunity-stream dashboard
//
// How it finds opportunities:
//
//	Every configured DEX emits PoolSnapshot/Swap events as on-chain
//	transactions land. The pipeline decodes those events into MarketUpdate
//	records, folds them into a directed price graph keyed by asset, and at
//	every block boundary searches that graph for negative-weight cycles in
//	log-space — a cycle there is a sequence of trades that returns more of
//	an asset than it started with. Surviving opportunities, net of gas and
//	slippage, are handed to a downstream risk gate and executor.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"arbbot/internal/adapter"
	"arbbot/internal/api"
	"arbbot/internal/config"
	"arbbot/internal/detector"
	"arbbot/internal/downstream"
	"arbbot/internal/graph"
	"arbbot/internal/ingest"
	"arbbot/internal/service"
	"arbbot/internal/translator"
	"arbbot/pkg/types"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code per spec.md §6: 0 clean shutdown, 1
// config/startup failure, 2 a fatal runtime error surfaced after startup.
func run() int {
	var configPath, streamConfigPath string
	pflag.StringVar(&configPath, "config", "configs/config.yaml", "path to the bot config YAML")
	pflag.StringVar(&streamConfigPath, "mdi-config", "configs/stream.yaml", "path to the transaction-stream config YAML")
	pflag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", configPath)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		return 1
	}

	streamCfg, err := config.LoadStream(streamConfigPath)
	if err != nil {
		slog.Error("failed to load transaction-stream config", "error", err, "path", streamConfigPath)
		return 1
	}
	if err := streamCfg.Validate(); err != nil {
		slog.Error("invalid transaction-stream config", "error", err)
		return 1
	}

	logger := newLogger(cfg.Logging)

	svc, pipeline, janitor, apiServer, err := wire(*cfg, *streamCfg, logger)
	if err != nil {
		logger.Error("failed to wire engine", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages := make(chan types.DetectorMessage, 256)
	svc.Start(ctx, messages)
	go janitor.Run(ctx)

	source, err := newSource(streamCfg.MarketData.DataSource, logger)
	if err != nil {
		logger.Error("failed to build transaction source", "error", err)
		cancel()
		return 1
	}
	runErr := make(chan error, 1)
	go driveSource(ctx, source, pipeline, messages, runErr)

	if apiServer != nil {
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	logger.Info("arbbot started",
		"dexes", len(cfg.Dexes),
		"min_net_profit", cfg.Risk.MinNetProfit,
		"dashboard", cfg.Dashboard.Enabled,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-runErr:
		if err != nil {
			logger.Error("transaction source failed", "error", err)
			exitCode = 2
		} else {
			logger.Info("transaction source exhausted, shutting down")
		}
	}

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}
	cancel()
	svc.Stop()

	return exitCode
}

// transactionSource produces recorded blocks for the pipeline to decode. The
// live gRPC indexer feed is an out-of-scope external collaborator (spec.md
// §1); only the file-replay source is implemented here.
type transactionSource interface {
	Blocks(ctx context.Context) (<-chan ingest.RecordedBlock, <-chan error)
}

func newSource(cfg config.DataSourceConfig, log *slog.Logger) (transactionSource, error) {
	switch cfg.Type {
	case "file":
		return ingest.NewFileReplaySource(cfg.Path, cfg.ReplaySpeed, log), nil
	case "grpc":
		return nil, fmt.Errorf("data_source.type=grpc is not implemented: the live indexer transaction stream is an external collaborator, not part of this module (spec.md §1)")
	default:
		return nil, fmt.Errorf("unknown data_source.type %q", cfg.Type)
	}
}

// driveSource reads blocks from source, decodes each through pipeline, and
// forwards the resulting DetectorMessages to out until the source is
// exhausted, ctx is cancelled, or the source reports a fatal error.
func driveSource(ctx context.Context, source transactionSource, pipeline *ingest.Pipeline, out chan<- types.DetectorMessage, result chan<- error) {
	blocks, errc := source.Blocks(ctx)
	for block := range blocks {
		for _, msg := range pipeline.ProcessBlock(block.BlockNumber, time.Now(), block.Transactions) {
			select {
			case out <- msg:
			case <-ctx.Done():
				result <- nil
				return
			}
		}
	}
	result <- <-errc
}

// wire constructs every Component A-K collaborator per SPEC_FULL.md §13 and
// returns the pieces main needs to start and stop the engine.
func wire(cfg config.BotConfig, streamCfg config.StreamConfig, logger *slog.Logger) (*service.Service, *ingest.Pipeline, *graph.Janitor, *api.Server, error) {
	g := graph.New()

	exchangeNames := make([]string, 0, len(cfg.Dexes))
	for _, d := range cfg.Dexes {
		exchangeNames = append(exchangeNames, d.Name)
	}
	tr := translator.New(cfg.AssetDecimals, exchangeNames)

	oracle, err := downstream.NewCachedOracle(cfg.Oracle, logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("build oracle: %w", err)
	}

	gasCfg := detector.GasConfig{
		BaseGasCost:      cfg.Gas.BaseGasCost,
		GasPerHop:        cfg.Gas.GasPerHop,
		GasUnitPrice:     cfg.Gas.GasUnitPrice,
		MaxGasLimit:      cfg.Gas.MaxGasLimit,
		EstimationBuffer: cfg.Gas.EstimationBuffer,
		SimulateEndpoint: cfg.Gas.SimulateEndpoint,
		SimulateTimeout:  cfg.Gas.SimulateTimeout,
		SimulateAPIKey:   cfg.Gas.SimulateAPIKey,
	}
	gasCalc := detector.NewGasCalculator(gasCfg, oracle, logger)

	sizer := detector.NewTradeSizer(detector.SizingConfig{
		SizeFraction: cfg.Detector.SizeFraction,
		SlippageCap:  cfg.Detector.SlippageCapPct,
		MinSize:      cfg.Detector.MinSize,
		MaxSize:      cfg.Detector.MaxSize,
	})

	minNetProfit := types.QuantityFromFloat(cfg.Detector.MinNetProfit)
	strategies := []detector.Strategy{
		detector.NewNCycleStrategy(sizer, gasCalc, cfg.Detector.MinProfitPct, minNetProfit),
		detector.NewCrossDexStrategy(gasCalc, cfg.Detector.MinProfitPct, minNetProfit),
	}

	dedup := detector.NewDeduplicator(cfg.Detector.DedupTTL)
	risk := downstream.NewThresholdRiskManager(cfg.Risk, logger)
	executor := downstream.NewNoopExecutor(logger)

	svc := service.New(service.DefaultConfig(), g, tr, strategies, dedup, risk, executor, logger)

	janitorInterval := time.Duration(cfg.Detector.IntervalMS) * time.Millisecond
	janitor := graph.NewJanitor(g, cfg.Detector.PruneTTL, janitorInterval, logger)

	pipeline, err := newPipeline(streamCfg.MarketData, logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, svc, g, risk, cfg, logger)
	}

	return svc, pipeline, janitor, apiServer, nil
}

// newPipeline builds Component C's ingest pipeline from the transaction-
// stream document's market_data_config: one adapter (internal/adapter.New)
// per listed DEX, an extractor built from the same list's wire event names,
// and a PoolFilter built from the configured filter mode.
func newPipeline(cfg config.MarketDataConfig, logger *slog.Logger) (*ingest.Pipeline, error) {
	adapters := make(map[string]adapter.DexAdapter, len(cfg.Dexs))
	for _, d := range cfg.Dexs {
		a, err := adapter.New(d.Name)
		if err != nil {
			return nil, fmt.Errorf("build adapter for dex %q: %w", d.Name, err)
		}
		adapters[d.Name] = a
	}

	extractor := ingest.NewEventExtractorStep(logger, cfg.Dexs)
	filter, err := ingest.NewPoolFilter(cfg.Filters)
	if err != nil {
		return nil, fmt.Errorf("build pool filter: %w", err)
	}

	return ingest.NewPipeline(extractor, adapters, ingest.NewFilterStep(filter), logger), nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
