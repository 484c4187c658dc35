package detector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"arbbot/internal/errs"
	"arbbot/internal/rpc"
	"arbbot/pkg/types"
)

// GasConfig tunes the gas estimator (spec.md §4.F step 5; gas.rs GasConfig).
type GasConfig struct {
	BaseGasCost      uint64
	GasPerHop        uint64
	GasUnitPrice     float64
	MaxGasLimit      uint64
	EstimationBuffer float64
	SimulateEndpoint string // empty disables RPC simulate
	SimulateTimeout  time.Duration
	SimulateAPIKey   string
}

// Oracle converts between assets for gas-cost accounting (spec.md §4.F step
// 5 "... converted to the opportunity's starting asset via an oracle").
type Oracle interface {
	// PriceInAsset returns how much of quote one unit of base is worth, or
	// an error wrapping errs.ErrOracleMiss if unknown.
	PriceInAsset(ctx context.Context, base, quote types.Asset) (float64, error)
}

// GasCalculator estimates a cycle's gas cost, preferring an RPC simulate
// call when configured and falling back to a linear model otherwise — the
// linear model is always available, unlike gas.rs's evaluate_cycle_with_gas
// which calls simulate_transaction unconditionally with no fallback path
// (see DESIGN.md).
type GasCalculator struct {
	cfg    GasConfig
	oracle Oracle
	client *rpc.Client
	log    *slog.Logger
}

// NewGasCalculator builds a GasCalculator. oracle may be nil only if every
// opportunity's starting asset is the native gas asset
// ("0x1::aptos_coin::AptosCoin"); the gas asset name matches gas.rs's
// special-casing of AptosCoin. If the simulate client cannot be built, it
// stays disabled and the linear model is used, consistent with every other
// simulate failure mode (see DESIGN.md).
func NewGasCalculator(cfg GasConfig, oracle Oracle, log *slog.Logger) *GasCalculator {
	if log == nil {
		log = slog.Default()
	}
	var client *rpc.Client
	if cfg.SimulateEndpoint != "" {
		c, err := rpc.NewClient(rpc.Config{Timeout: cfg.SimulateTimeout, APIKey: cfg.SimulateAPIKey}, log)
		if err != nil {
			log.Warn("gas simulate client disabled, falling back to linear model", "error", err)
		} else {
			client = c
		}
	}
	return &GasCalculator{cfg: cfg, oracle: oracle, client: client, log: log.With("component", "gas_calculator")}
}

const nativeGasAsset = types.Asset("0x1::aptos_coin::AptosCoin")

// EstimateGasCost returns the estimated gas units for a path of the given
// hop count, using the linear model: (base + gas_per_hop*hops) *
// estimation_buffer, capped at max_gas_limit (gas.rs estimate_gas_cost).
func (g *GasCalculator) EstimateGasCost(hops int) uint64 {
	raw := float64(g.cfg.BaseGasCost) + float64(g.cfg.GasPerHop)*float64(hops)
	buffered := raw * g.cfg.EstimationBuffer
	gasUnits := uint64(buffered)
	if gasUnits > g.cfg.MaxGasLimit {
		gasUnits = g.cfg.MaxGasLimit
	}
	return gasUnits
}

type simulatePayload struct {
	Path []types.SerializableEdge `json:"path"`
}

type simulateResponse struct {
	GasUsed uint64 `json:"gas_used"`
}

// SimulateTransaction calls the configured simulate endpoint for a more
// precise gas_used figure (gas.rs simulate_transaction / build_transaction_payload).
// It returns (0, false, nil) when no endpoint is configured, so callers fall
// back to the linear model rather than treating that as an error.
func (g *GasCalculator) SimulateTransaction(ctx context.Context, path []types.SerializableEdge) (uint64, bool, error) {
	if g.client == nil {
		return 0, false, nil
	}

	var result simulateResponse
	resp, err := g.client.PostJSON(ctx, g.cfg.SimulateEndpoint, simulatePayload{Path: path}, &result)
	if err != nil {
		g.log.Warn("gas simulate request failed, falling back to linear model", "error", err)
		return 0, false, nil
	}
	if resp.IsError() {
		g.log.Warn("gas simulate returned error status, falling back to linear model", "status", resp.StatusCode())
		return 0, false, nil
	}
	return result.GasUsed, true, nil
}

// EstimateGasUnits resolves the gas-unit estimate for a path: RPC simulate
// takes precedence when configured and succeeds, else the linear model
// (spec.md §4.F step 5).
func (g *GasCalculator) EstimateGasUnits(ctx context.Context, path []types.SerializableEdge) uint64 {
	if units, ok, err := g.SimulateTransaction(ctx, path); err == nil && ok {
		return units
	}
	return g.EstimateGasCost(len(path))
}

// CalculateGasCostInAsset converts a gas-unit estimate into the cycle's
// starting asset: direct when startAsset is the native gas asset, else
// routed through the oracle (gas.rs calculate_gas_cost_in_asset).
func (g *GasCalculator) CalculateGasCostInAsset(ctx context.Context, gasUnits uint64, startAsset types.Asset) (types.Quantity, error) {
	gasCostNative := float64(gasUnits) * g.cfg.GasUnitPrice

	if gasCostNative == 0 || startAsset == nativeGasAsset {
		return types.QuantityFromFloat(gasCostNative), nil
	}
	if g.oracle == nil {
		return types.Zero, fmt.Errorf("gas cost conversion for %s: %w", startAsset, errs.ErrOracleMiss)
	}

	aptPriceInStart, err := g.oracle.PriceInAsset(ctx, nativeGasAsset, startAsset)
	if err != nil {
		return types.Zero, fmt.Errorf("gas cost conversion for %s: %w", startAsset, err)
	}
	return types.QuantityFromFloat(gasCostNative * aptPriceInStart), nil
}

// EvaluateCycleWithGas computes the gas cost (in the cycle's starting
// asset) and the resulting net profit for a candidate opportunity that has
// already passed the slippage gate (gas.rs evaluate_cycle_with_gas).
func (g *GasCalculator) EvaluateCycleWithGas(ctx context.Context, opp types.ArbitrageOpportunity) (types.ArbitrageOpportunity, error) {
	startAsset := opp.Path[0].AssetX

	gasUnits := g.EstimateGasUnits(ctx, opp.Path)
	gasCost, err := g.CalculateGasCostInAsset(ctx, gasUnits, startAsset)
	if err != nil {
		return opp, err
	}

	opp.GasEstimate = gasCost
	opp.ExpectedNetProfit = opp.ExpectedGrossProfit.Sub(gasCost)
	return opp, nil
}

// FilterProfitableCycles drops every opportunity whose net profit falls
// below minNetProfit (gas.rs filter_profitable_cycles).
func FilterProfitableCycles(opps []types.ArbitrageOpportunity, minNetProfit types.Quantity) []types.ArbitrageOpportunity {
	out := make([]types.ArbitrageOpportunity, 0, len(opps))
	for _, o := range opps {
		if o.ExpectedNetProfit.GreaterThan(minNetProfit) || o.ExpectedNetProfit.Equal(minNetProfit.Decimal) {
			out = append(out, o)
		}
	}
	return out
}
