// Package detector implements the per-block arbitrage detection pipeline of
// spec.md §4.F: trade-size generation, per-source log-space Bellman-Ford
// cycle search, slippage-gated re-simulation, gas accounting, and
// deduplication.
//
// Grounded on original_source/crates/detector/src/{sizing,bellman_ford,gas,
// deduplicator,strategies/{mod,cross_dex}}.rs, adapted from rust_decimal
// math to shopspring/decimal and from the Rust single-source Bellman-Ford
// reference to the per-source sweep spec.md §4.F requires (see DESIGN.md).
package detector

import (
	"math"

	"github.com/shopspring/decimal"

	"arbbot/internal/graph"
	"arbbot/pkg/types"
)

// SizingConfig tunes trade-size generation (spec.md §4.F step 1), mirroring
// original_source's sizing.rs SizingConfig defaults.
type SizingConfig struct {
	SizeFraction float64
	SlippageCap  float64
	MinSize      float64
	MaxSize      float64
}

// DefaultSizingConfig matches sizing.rs's Default impl.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		SizeFraction: 0.05,
		SlippageCap:  0.05,
		MinSize:      0.000001,
		MaxSize:      10000,
	}
}

// TradeSizer generates the candidate input sizes a strategy probes for each
// source asset, and evaluates achieved rate/slippage for a given path.
type TradeSizer struct {
	cfg SizingConfig
}

// NewTradeSizer builds a TradeSizer from a SizingConfig.
func NewTradeSizer(cfg SizingConfig) *TradeSizer {
	return &TradeSizer{cfg: cfg}
}

// CalculateMaxSize bounds an asset's max probe size by the smallest liquidity
// touching it, scaled by size_fraction and clamped to [min_size, max_size]
// (sizing.rs calculate_max_size).
func (s *TradeSizer) CalculateMaxSize(snap *graph.Snapshot, asset types.Asset) float64 {
	minLiquidity := s.findMinLiquidityForAsset(snap, asset)
	size := minLiquidity * s.cfg.SizeFraction
	if size < s.cfg.MinSize {
		size = s.cfg.MinSize
	}
	if size > s.cfg.MaxSize {
		size = s.cfg.MaxSize
	}
	return size
}

// findMinLiquidityForAsset mirrors sizing.rs find_min_liquidity_for_asset:
// the minimum, across every edge touching asset as its source, of the
// liquidity on asset's side of that edge (CPMM: reserve_x; CL: sum of
// liquidity_gross across ticks).
func (s *TradeSizer) findMinLiquidityForAsset(snap *graph.Snapshot, asset types.Asset) float64 {
	id, ok := snap.AssetID(asset)
	if !ok {
		return s.cfg.MaxSize
	}

	minLiquidity := math.Inf(1)
	found := false
	for _, e := range snap.Neighbors(id) {
		var liquidity float64
		switch e.Model.Kind {
		case types.ConstantProductKind:
			f, _ := e.Model.ReserveX.Float64()
			liquidity = f
		case types.ConcentratedLiquidityKind:
			total := decimal.Zero
			for _, t := range e.Model.Ticks {
				total = total.Add(t.LiquidityGross)
			}
			f, _ := total.Float64()
			liquidity = f
		}
		if liquidity <= 0 {
			continue
		}
		found = true
		if liquidity < minLiquidity {
			minLiquidity = liquidity
		}
	}
	if !found {
		return s.cfg.MaxSize
	}
	return minLiquidity
}

// GenerateTradeSizes returns the deduplicated, ascending candidate sizes
// {min_size, 0.25·max, 0.50·max, 0.75·max, max} filtered to [min_size,
// max_size] (sizing.rs generate_trade_sizes).
func (s *TradeSizer) GenerateTradeSizes(maxSize float64) []float64 {
	candidates := []float64{
		s.cfg.MinSize,
		0.25 * maxSize,
		0.50 * maxSize,
		0.75 * maxSize,
		maxSize,
	}

	seen := make(map[float64]bool, len(candidates))
	out := make([]float64, 0, len(candidates))
	for _, c := range candidates {
		if c < s.cfg.MinSize || c > s.cfg.MaxSize {
			continue
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// CalculateRate returns amountOut/amountIn, or 0 if amountIn is 0.
func (s *TradeSizer) CalculateRate(amountIn, amountOut float64) float64 {
	if amountIn == 0 {
		return 0
	}
	return amountOut / amountIn
}

// CalculateSlippage compares the rate achieved at size against the rate at
// a near-zero reference size: |base-current|/base, or +Inf if base is zero
// (sizing.rs calculate_slippage).
func (s *TradeSizer) CalculateSlippage(baseRate, currentRate float64) float64 {
	if baseRate == 0 {
		return math.Inf(1)
	}
	return math.Abs(baseRate-currentRate) / baseRate
}

// CalculatePriceImpact is an alias view of slippage expressed against the
// baseline rate at the sizer's configured min_size; kept distinct from
// CalculateSlippage because callers reason about it against a path's own
// reference rate, not a pairwise one (sizing.rs calculate_price_impact).
func (s *TradeSizer) CalculatePriceImpact(baseRate, currentRate float64) float64 {
	return s.CalculateSlippage(baseRate, currentRate)
}

// MinProbeSize is the floor used when computing a path's reference rate for
// the slippage gate: min_size.max(1e-8) (bellman_ford.rs evaluate_cycle).
func (s *TradeSizer) MinProbeSize() float64 {
	if s.cfg.MinSize > 1e-8 {
		return s.cfg.MinSize
	}
	return 1e-8
}

// SlippageCap exposes the configured cap for the re-simulation gate.
func (s *TradeSizer) SlippageCap() float64 {
	return s.cfg.SlippageCap
}
