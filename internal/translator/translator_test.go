package translator

import (
	"math/big"
	"testing"

	"arbbot/pkg/types"
)

func testTranslator() *Translator {
	return New(map[string]int32{}, []string{"hyperion", "thala", "tapp"})
}

func TestTransformEmptyTickMapProducesConstantProduct(t *testing.T) {
	t.Parallel()
	tr := testTranslator()

	update := types.MarketUpdate{
		PoolAddress: "0x1234",
		DexName:     "hyperion",
		TokenPair:   types.TokenPair{Token0: "0x1::aptos_coin::AptosCoin", Token1: "0x1::coin::USDC"},
		SqrtPrice:   big.NewInt(2),
		Liquidity:   big.NewInt(100),
		FeeBps:      30,
	}

	edge, err := tr.Transform(update)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if edge.Model.Kind != types.ConstantProductKind {
		t.Fatalf("expected ConstantProduct model, got kind %v", edge.Model.Kind)
	}
	if !edge.Model.ReserveY.Equal(edge.Model.ReserveY.Decimal) {
		t.Fatalf("sanity check failed")
	}
	wantReserveY := "50" // 100 / 2
	wantReserveX := "200" // 100 * 2
	if edge.Model.ReserveY.String() != wantReserveY {
		t.Fatalf("reserve_y = %s, want %s", edge.Model.ReserveY.String(), wantReserveY)
	}
	if edge.Model.ReserveX.String() != wantReserveX {
		t.Fatalf("reserve_x = %s, want %s", edge.Model.ReserveX.String(), wantReserveX)
	}
	if edge.Model.FeeBps != 30 {
		t.Fatalf("fee_bps = %d, want 30", edge.Model.FeeBps)
	}
}

func TestTransformNonEmptyTickMapProducesConcentratedLiquidity(t *testing.T) {
	t.Parallel()
	tr := testTranslator()

	update := types.MarketUpdate{
		PoolAddress: "0x1234",
		DexName:     "tapp",
		TokenPair:   types.TokenPair{Token0: "0x1::aptos_coin::AptosCoin", Token1: "0x1::coin::USDC"},
		SqrtPrice:   big.NewInt(123456789),
		Liquidity:   big.NewInt(100000),
		Tick:        123,
		FeeBps:      30,
		TickMap: map[int64]types.TickInfo{
			-20: {LiquidityNet: big.NewInt(1000), LiquidityGross: big.NewInt(10000)},
			10:  {LiquidityNet: big.NewInt(-500), LiquidityGross: big.NewInt(5000)},
		},
	}

	edge, err := tr.Transform(update)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if edge.Model.Kind != types.ConcentratedLiquidityKind {
		t.Fatalf("expected ConcentratedLiquidity model, got kind %v", edge.Model.Kind)
	}
	if len(edge.Model.Ticks) != 2 {
		t.Fatalf("expected 2 ticks, got %d", len(edge.Model.Ticks))
	}

	expectedPriceMinus20 := decimalPow(tickBase, -20)
	expectedPrice10 := decimalPow(tickBase, 10)

	found := map[string]bool{}
	for _, tk := range edge.Model.Ticks {
		switch {
		case tk.Price.Equal(expectedPriceMinus20):
			if tk.LiquidityGross.String() != "10000" {
				t.Fatalf("tick -20 liquidity_gross = %s, want 10000", tk.LiquidityGross.String())
			}
			found["-20"] = true
		case tk.Price.Equal(expectedPrice10):
			if tk.LiquidityGross.String() != "5000" {
				t.Fatalf("tick 10 liquidity_gross = %s, want 5000", tk.LiquidityGross.String())
			}
			found["10"] = true
		}
	}
	if !found["-20"] || !found["10"] {
		t.Fatalf("not all expected ticks found: %+v", found)
	}
}

func TestTransformRejectsUnknownExchange(t *testing.T) {
	t.Parallel()
	tr := testTranslator()

	_, err := tr.Transform(types.MarketUpdate{
		DexName:   "InvalidDex",
		TokenPair: types.TokenPair{Token0: "A", Token1: "B"},
		SqrtPrice: big.NewInt(1),
		Liquidity: big.NewInt(1),
	})
	if err == nil {
		t.Fatal("expected an error for an unrecognized exchange")
	}
}

func TestDecimalPowMatchesRepeatedMultiplication(t *testing.T) {
	t.Parallel()
	got := decimalPow(tickBase, 3)
	want := tickBase.Mul(tickBase).Mul(tickBase)
	if !got.Equal(want) {
		t.Fatalf("decimalPow(base, 3) = %s, want %s", got.String(), want.String())
	}
}
