package graph

import (
	"sort"

	"github.com/shopspring/decimal"

	"arbbot/pkg/types"
)

var (
	decimalOne      = decimal.NewFromInt(1)
	decimalTenThou  = decimal.NewFromInt(10000)
)

// invertPrice returns 1/p, used to derive a CL reverse edge's tick prices.
// A non-positive price has no sensible inverse and is left at zero so the
// tick is simply unusable (Quote skips non-positive liquidity/price ticks;
// construction does not filter them out).
func invertPrice(p decimal.Decimal) decimal.Decimal {
	if p.Sign() <= 0 {
		return decimal.Zero
	}
	return decimalOne.DivRound(p, 34)
}

// Quote computes the output amount for amountIn of assetIn through edge,
// per spec.md §4.E "Edge quoting". It returns (zero, false) whenever the
// spec says to reject: wrong input asset, non-positive reserves/ticks,
// liquidity exhaustion, or a fee_bps >= 10000 misconfiguration.
func Quote(edge types.Edge, amountIn types.Quantity, assetIn types.Asset) (types.Quantity, bool) {
	if assetIn != edge.AssetX {
		return types.Zero, false
	}
	if uint32(edge.Model.FeeBps) >= 10000 {
		return types.Zero, false
	}

	switch edge.Model.Kind {
	case types.ConstantProductKind:
		return quoteConstantProduct(edge.Model, amountIn)
	case types.ConcentratedLiquidityKind:
		return quoteConcentratedLiquidity(edge.Model, amountIn)
	default:
		return types.Zero, false
	}
}

func quoteConstantProduct(m types.PoolModel, amountIn types.Quantity) (types.Quantity, bool) {
	if !m.ReserveX.IsPositive() || !m.ReserveY.IsPositive() || amountIn.Decimal.IsZero() {
		return types.Zero, false
	}

	feeFraction := decimal.NewFromInt(int64(m.FeeBps)).Div(decimalTenThou)
	dxEff := amountIn.Decimal.Mul(decimalOne.Sub(feeFraction))

	dy := m.ReserveY.Decimal.Mul(dxEff).Div(m.ReserveX.Decimal.Add(dxEff))

	if dy.Sign() <= 0 || dy.GreaterThan(m.ReserveY.Decimal) {
		return types.Zero, false
	}
	return types.Quantity{Decimal: dy}, true
}

func quoteConcentratedLiquidity(m types.PoolModel, amountIn types.Quantity) (types.Quantity, bool) {
	if amountIn.Decimal.IsZero() {
		return types.Zero, false
	}

	feeFraction := decimal.NewFromInt(int64(m.FeeBps)).Div(decimalTenThou)
	remaining := amountIn.Decimal.Mul(decimalOne.Sub(feeFraction))
	if remaining.Sign() <= 0 {
		return types.Zero, false
	}

	ticks := make([]types.Tick, len(m.Ticks))
	copy(ticks, m.Ticks)
	sort.Slice(ticks, func(i, j int) bool {
		return ticks[i].Price.GreaterThan(ticks[j].Price)
	})

	total := decimal.Zero
	for _, t := range ticks {
		if !remaining.IsPositive() {
			break
		}
		if t.Price.Sign() <= 0 || t.LiquidityGross.Sign() <= 0 {
			continue
		}
		consumed := decimal.Min(remaining, t.LiquidityGross)
		total = total.Add(consumed.Mul(t.Price))
		remaining = remaining.Sub(consumed)
	}

	if total.Sign() <= 0 {
		return types.Zero, false
	}
	return types.Quantity{Decimal: total}, true
}
