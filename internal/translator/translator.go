// Package translator converts canonical MarketUpdate records into price
// graph edges (spec.md §4.D). It is the boundary between the on-chain wire
// representation (raw u128 sqrt price/liquidity, integer ticks) and the
// decimal pool models the detector reasons about.
//
// Grounded on original_source/crates/detector/src/translator.rs, adapted to
// choose ConstantProduct vs ConcentratedLiquidity by tick-map emptiness per
// spec.md §4.D rather than always emitting ConcentratedLiquidity.
package translator

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"arbbot/internal/errs"
	"arbbot/pkg/types"
)

// tickBase is the CL tick price base: p(i) = 1.0001^i.
var tickBase = decimal.RequireFromString("1.0001")

// Translator converts MarketUpdate records into Edges, scaling raw on-chain
// integers by each asset's configured decimal exponent.
type Translator struct {
	decimals      map[types.Asset]int32
	knownExchange map[string]bool
}

// New builds a Translator. decimals maps an asset to its on-chain decimal
// exponent (e.g. 8 for an 8-decimal coin); assets absent from the map are
// treated as exponent 0. knownExchanges lists the Exchange names this
// translator accepts; any dex_name outside it fails translation (spec.md
// §4.D "unknown names fail the translation").
func New(decimals map[string]int32, knownExchanges []string) *Translator {
	d := make(map[types.Asset]int32, len(decimals))
	for k, v := range decimals {
		d[types.Asset(k)] = v
	}
	known := make(map[string]bool, len(knownExchanges))
	for _, e := range knownExchanges {
		known[e] = true
	}
	return &Translator{decimals: d, knownExchange: known}
}

// Transform converts one MarketUpdate into an Edge. It returns an error
// (rather than a dropped update) only for the dex_name mapping failure the
// spec names explicitly; every other shape issue is a panic-free zero value
// the caller can inspect via Model.Tradeable().
func (t *Translator) Transform(update types.MarketUpdate) (types.Edge, error) {
	if !t.knownExchange[update.DexName] {
		return types.Edge{}, fmt.Errorf("invalid exchange: %s: %w", update.DexName, errs.ErrUnknownExchange)
	}

	assetX := types.Asset(update.TokenPair.Token0)
	assetY := types.Asset(update.TokenPair.Token1)

	var model types.PoolModel
	if len(update.TickMap) == 0 {
		model = t.constantProductModel(update, assetX, assetY)
	} else {
		model = t.concentratedLiquidityModel(update)
	}

	return types.Edge{
		AssetX:      assetX,
		AssetY:      assetY,
		Exchange:    types.Exchange(update.DexName),
		PoolAddress: update.PoolAddress,
		Model:       model,
		LastUpdated: time.Now(),
	}, nil
}

// constantProductModel derives reserves from liquidity and sqrt_price using
// the Uniswap-V2-style identities reserve_y = L/sqrt(P), reserve_x = L*sqrt(P)
// (spec.md §4.D), scaling each side by its asset's decimal exponent.
func (t *Translator) constantProductModel(update types.MarketUpdate, assetX, assetY types.Asset) types.PoolModel {
	liquidity := decimal.NewFromBigInt(bigOrZero(update.Liquidity), 0)
	sqrtPrice := decimal.NewFromBigInt(bigOrZero(update.SqrtPrice), 0)

	var reserveY, reserveX decimal.Decimal
	if sqrtPrice.IsZero() {
		reserveY, reserveX = decimal.Zero, decimal.Zero
	} else {
		reserveY = liquidity.Div(sqrtPrice)
		reserveX = liquidity.Mul(sqrtPrice)
	}

	reserveX = reserveX.Shift(-t.decimalsFor(assetX))
	reserveY = reserveY.Shift(-t.decimalsFor(assetY))

	return types.NewConstantProduct(types.Quantity{Decimal: reserveX}, types.Quantity{Decimal: reserveY}, uint16(update.FeeBps))
}

// concentratedLiquidityModel builds the tick list: price = 1.0001^tick_index
// via high-precision decimal exponentiation (never f64, per spec.md §4.D),
// liquidity_gross copied through as-is.
func (t *Translator) concentratedLiquidityModel(update types.MarketUpdate) types.PoolModel {
	ticks := make([]types.Tick, 0, len(update.TickMap))
	for idx, info := range update.TickMap {
		ticks = append(ticks, types.Tick{
			Price:          decimalPow(tickBase, idx),
			LiquidityGross: decimal.NewFromBigInt(bigOrZero(info.LiquidityGross), 0),
		})
	}
	return types.NewConcentratedLiquidity(ticks, uint16(update.FeeBps))
}

func (t *Translator) decimalsFor(a types.Asset) int32 {
	return t.decimals[a]
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// decimalPow computes base^exp exactly via repeated squaring for an integer
// exponent, which may be negative. This avoids any float round-trip for the
// CL tick-price mapping (spec.md §9).
func decimalPow(base decimal.Decimal, exp int64) decimal.Decimal {
	if exp == 0 {
		return decimal.NewFromInt(1)
	}
	neg := exp < 0
	if neg {
		exp = -exp
	}

	result := decimal.NewFromInt(1)
	b := base
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(b)
		}
		b = b.Mul(b)
		exp >>= 1
	}
	if neg {
		result = decimal.NewFromInt(1).DivRound(result, 34)
	}
	return result
}
