package detector

import (
	"context"
	"math"

	"github.com/shopspring/decimal"

	"arbbot/internal/graph"
	"arbbot/pkg/types"
)

// Strategy is one arbitrage-detection algorithm run against a graph view at
// BlockEnd (spec.md §4.F/§4.G), grounded on original_source's
// strategies/mod.rs ArbitrageStrategy trait.
type Strategy interface {
	// Name identifies the strategy in ArbitrageOpportunity.Strategy and in
	// logs/metrics.
	Name() string

	// RequiredView tells the service which part of the graph this strategy
	// needs materialized for it at BlockEnd.
	RequiredView() types.GraphView

	// Detect searches the given snapshot for opportunities at blockNumber.
	Detect(ctx context.Context, snap *graph.Snapshot, blockNumber uint64) ([]types.ArbitrageOpportunity, error)
}

// NCycleStrategy finds arbitrage cycles of any length via the per-source
// Bellman-Ford sweep (spec.md §4.F) — the general n-hop counterpart to
// CrossDexStrategy's fixed 2-hop comparison.
type NCycleStrategy struct {
	sizer             *TradeSizer
	gasCalc           *GasCalculator
	minGrossProfitPct float64
	minNetProfit      types.Quantity
}

// NewNCycleStrategy builds the Bellman-Ford cycle-search strategy.
func NewNCycleStrategy(sizer *TradeSizer, gasCalc *GasCalculator, minGrossProfitPct float64, minNetProfit types.Quantity) *NCycleStrategy {
	return &NCycleStrategy{sizer: sizer, gasCalc: gasCalc, minGrossProfitPct: minGrossProfitPct, minNetProfit: minNetProfit}
}

func (s *NCycleStrategy) Name() string { return "n_cycle_arbitrage" }

func (s *NCycleStrategy) RequiredView() types.GraphView {
	return types.GraphView{Kind: types.GraphViewAll}
}

func (s *NCycleStrategy) Detect(ctx context.Context, snap *graph.Snapshot, blockNumber uint64) ([]types.ArbitrageOpportunity, error) {
	return Detect(ctx, snap, s.sizer, s.gasCalc, DetectConfig{
		StrategyName:      s.Name(),
		BlockNumber:       blockNumber,
		MinGrossProfitPct: s.minGrossProfitPct,
		MinNetProfit:      s.minNetProfit,
	})
}

// CrossDexStrategy compares every pair of DEXes quoting the same asset pair
// and flags a two-hop round trip (buy on the cheaper, sell on the dearer)
// whenever the closed-form optimal input is profitable — grounded on
// strategies/cross_dex.rs's CrossDexArbitrage, translated from
// rust_decimal's sqrt to shopspring/decimal's.
type CrossDexStrategy struct {
	gasCalc           *GasCalculator
	minGrossProfitPct float64
	minNetProfit      types.Quantity
}

// NewCrossDexStrategy builds the pairwise cross-DEX comparison strategy.
func NewCrossDexStrategy(gasCalc *GasCalculator, minGrossProfitPct float64, minNetProfit types.Quantity) *CrossDexStrategy {
	return &CrossDexStrategy{gasCalc: gasCalc, minGrossProfitPct: minGrossProfitPct, minNetProfit: minNetProfit}
}

func (s *CrossDexStrategy) Name() string { return "cross_dex_arbitrage" }

func (s *CrossDexStrategy) RequiredView() types.GraphView {
	return types.GraphView{Kind: types.GraphViewAll}
}

func (s *CrossDexStrategy) Detect(ctx context.Context, snap *graph.Snapshot, blockNumber uint64) ([]types.ArbitrageOpportunity, error) {
	assets := snap.Assets()
	processedPairs := make(map[types.AssetPair]bool)
	var opportunities []types.ArbitrageOpportunity

	for _, sourceID := range assets {
		assetX, ok := snap.Asset(sourceID)
		if !ok {
			continue
		}
		for _, forward := range snap.Neighbors(sourceID) {
			assetY := forward.AssetY
			pair := types.AssetPair{Base: assetX, Quote: assetY}
			if assetY < assetX {
				pair = types.AssetPair{Base: assetY, Quote: assetX}
			}
			if processedPairs[pair] {
				continue
			}
			processedPairs[pair] = true

			targetID, ok := snap.AssetID(assetY)
			if !ok {
				continue
			}

			var forwardEdges, reverseEdges []types.Edge
			for _, e := range snap.Neighbors(sourceID) {
				if e.AssetY == assetY {
					forwardEdges = append(forwardEdges, e)
				}
			}
			for _, e := range snap.Neighbors(targetID) {
				if e.AssetY == assetX {
					reverseEdges = append(reverseEdges, e)
				}
			}

			for _, buyEdge := range forwardEdges {
				for _, sellEdge := range reverseEdges {
					if buyEdge.Exchange == sellEdge.Exchange {
						continue
					}
					opp, ok := s.evaluatePair(buyEdge, sellEdge, assetX, assetY, blockNumber)
					if !ok {
						continue
					}
					opportunities = append(opportunities, opp)
				}
			}
		}
	}

	priced := make([]types.ArbitrageOpportunity, 0, len(opportunities))
	for _, opp := range opportunities {
		p, err := s.gasCalc.EvaluateCycleWithGas(ctx, opp)
		if err != nil {
			continue
		}
		priced = append(priced, p)
	}
	return FilterProfitableCycles(priced, s.minNetProfit), nil
}

// evaluatePair mirrors cross_dex.rs's closed-form optimal-input derivation
// for two constant-product pools quoting the same pair: it only fires when
// both edges are constant-product and the round-trip spot rate
// price1*price2 exceeds 1, and it sizes the input at the fee-free optimum of
// the two pools chained into one constant-product curve.
func (s *CrossDexStrategy) evaluatePair(buyEdge, sellEdge types.Edge, assetX, assetY types.Asset, blockNumber uint64) (types.ArbitrageOpportunity, bool) {
	if buyEdge.Model.Kind != types.ConstantProductKind || sellEdge.Model.Kind != types.ConstantProductKind {
		return types.ArbitrageOpportunity{}, false
	}

	reserveX1 := buyEdge.Model.ReserveX.Decimal
	reserveY1 := buyEdge.Model.ReserveY.Decimal
	reserveX2 := sellEdge.Model.ReserveX.Decimal
	reserveY2 := sellEdge.Model.ReserveY.Decimal

	if reserveX1.Sign() <= 0 || reserveY1.Sign() <= 0 || reserveX2.Sign() <= 0 || reserveY2.Sign() <= 0 {
		return types.ArbitrageOpportunity{}, false
	}

	price1 := reserveY1.Div(reserveX1)
	price2 := reserveY2.Div(reserveX2)

	priceProduct, ok := price1.Mul(price2).Float64()
	if !ok || priceProduct <= 1 {
		return types.ArbitrageOpportunity{}, false
	}
	sqrtPrice := decimal.NewFromFloat(math.Sqrt(priceProduct))

	// (sqrt(price1*price2) - 1) * reserveX1 * reserveX2 / (reserveX2 + reserveY1)
	optimalInput := sqrtPrice.Mul(reserveX1).Sub(reserveX1).Mul(reserveX2).Div(reserveX2.Add(reserveY1))
	if optimalInput.Sign() <= 0 {
		return types.ArbitrageOpportunity{}, false
	}

	amountOut, ok := graph.Quote(buyEdge, types.Quantity{Decimal: optimalInput}, assetX)
	if !ok {
		return types.ArbitrageOpportunity{}, false
	}
	finalAmount, ok := graph.Quote(sellEdge, amountOut, assetY)
	if !ok {
		return types.ArbitrageOpportunity{}, false
	}

	profit := finalAmount.Decimal.Sub(optimalInput)
	if profit.Sign() <= 0 {
		return types.ArbitrageOpportunity{}, false
	}
	grossF, ok := profit.Float64()
	inputF, ok2 := optimalInput.Float64()
	if !ok || !ok2 || inputF <= 0 || grossF/inputF < s.minGrossProfitPct {
		return types.ArbitrageOpportunity{}, false
	}

	return types.ArbitrageOpportunity{
		Strategy: s.Name(),
		Path: []types.SerializableEdge{
			buyEdge.ToSerializable(),
			sellEdge.ToSerializable(),
		},
		InputAmount:         types.Quantity{Decimal: optimalInput},
		ExpectedGrossProfit: types.Quantity{Decimal: profit},
		BlockNumber:         blockNumber,
	}, true
}
