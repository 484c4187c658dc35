package graph

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arbbot/pkg/types"
)

func q(v string) types.Quantity {
	return types.Quantity{Decimal: decimal.RequireFromString(v)}
}

func cpmmEdge(assetX, assetY types.Asset, reserveX, reserveY string, feeBps uint16) types.Edge {
	return types.Edge{
		AssetX:      assetX,
		AssetY:      assetY,
		Exchange:    "hyperion",
		PoolAddress: "0x1",
		Model:       types.NewConstantProduct(q(reserveX), q(reserveY), feeBps),
	}
}

func TestUpsertPoolInsertsSymmetricReverseEdge(t *testing.T) {
	t.Parallel()
	g := New()
	g.UpsertPool(cpmmEdge("USDC", "APT", "10000", "1000", 25))

	forward := g.Neighbors("USDC")
	if len(forward) != 1 {
		t.Fatalf("expected 1 forward edge, got %d", len(forward))
	}
	if forward[0].Model.ReserveX.String() != "10000" || forward[0].Model.ReserveY.String() != "1000" {
		t.Fatalf("unexpected forward reserves: %+v", forward[0].Model)
	}

	reverse := g.Neighbors("APT")
	if len(reverse) != 1 {
		t.Fatalf("expected 1 reverse edge, got %d", len(reverse))
	}
	if reverse[0].AssetX != "APT" || reverse[0].AssetY != "USDC" {
		t.Fatalf("reverse edge has wrong direction: %+v", reverse[0])
	}
	if reverse[0].Model.ReserveX.String() != "1000" || reverse[0].Model.ReserveY.String() != "10000" {
		t.Fatalf("reverse edge reserves not swapped: %+v", reverse[0].Model)
	}
}

func TestPruneStaleRemovesOldEdgesOnly(t *testing.T) {
	t.Parallel()
	g := New()
	g.UpsertPool(cpmmEdge("USDC", "APT", "1000", "100", 30))
	g.UpsertPool(cpmmEdge("APT", "ETH", "50", "1", 30))

	// Age only the APT->ETH (and its reverse ETH->APT) edge past the TTL.
	g.mu.Lock()
	for source, adj := range g.adjacency {
		fresh := make(assetAdjacency, len(adj))
		for k, e := range adj {
			if (e.AssetX == "APT" && e.AssetY == "ETH") || (e.AssetX == "ETH" && e.AssetY == "APT") {
				e.LastUpdated = time.Now().Add(-10 * time.Second)
			}
			fresh[k] = e
		}
		g.adjacency[source] = fresh
	}
	g.mu.Unlock()

	g.PruneStale(5 * time.Second)

	if len(g.Neighbors("USDC")) != 1 {
		t.Fatalf("fresh edge USDC->APT should survive prune, got %d", len(g.Neighbors("USDC")))
	}
	for _, e := range g.Neighbors("APT") {
		if e.AssetY == "ETH" {
			t.Fatalf("stale edge APT->ETH should have been pruned")
		}
	}
	if len(g.Neighbors("ETH")) != 0 {
		t.Fatalf("stale reverse edge ETH->APT should have been pruned, got %d", len(g.Neighbors("ETH")))
	}
}

func TestSnapshotIsUnaffectedByLaterMutation(t *testing.T) {
	t.Parallel()
	g := New()
	g.UpsertPool(cpmmEdge("USDC", "APT", "10000", "1000", 25))

	snap := g.Snapshot()
	id, ok := snap.AssetID("USDC")
	if !ok {
		t.Fatal("expected USDC to be present in snapshot")
	}
	before := snap.Neighbors(id)
	if len(before) != 1 {
		t.Fatalf("expected 1 edge in snapshot, got %d", len(before))
	}

	g.UpsertPool(cpmmEdge("USDC", "ETH", "500", "50", 30))

	after := snap.Neighbors(id)
	if len(after) != 1 {
		t.Fatalf("snapshot must not observe edges added after it was taken, got %d edges", len(after))
	}
}

func TestQuoteRejectsWrongInputAsset(t *testing.T) {
	t.Parallel()
	edge := cpmmEdge("USDC", "APT", "10000", "1000", 25)
	if _, ok := Quote(edge, q("100"), "APT"); ok {
		t.Fatal("expected quote to reject the non-asset_x input side")
	}
}

func TestQuoteConstantProductMatchesManualCalculation(t *testing.T) {
	t.Parallel()
	edge := cpmmEdge("USDC", "APT", "10000", "1000", 25)

	out, ok := Quote(edge, q("100"), "USDC")
	if !ok {
		t.Fatal("expected a valid quote")
	}

	dxEff := decimal.RequireFromString("100").Mul(decimal.NewFromInt(1).Sub(decimal.RequireFromString("0.0025")))
	want := decimal.RequireFromString("1000").Mul(dxEff).Div(decimal.RequireFromString("10000").Add(dxEff))
	if !out.Decimal.Round(8).Equal(want.Round(8)) {
		t.Fatalf("quote = %s, want %s", out.Decimal, want)
	}
}

func TestQuoteConstantProductRejectsZeroReserve(t *testing.T) {
	t.Parallel()
	edge := cpmmEdge("USDC", "APT", "0", "10", 25)
	if _, ok := Quote(edge, q("10"), "USDC"); ok {
		t.Fatal("expected zero reserve_x to reject the quote")
	}
}

func TestQuoteConcentratedLiquidityConsumesBestPriceFirst(t *testing.T) {
	t.Parallel()
	edge := types.Edge{
		AssetX:      "A",
		AssetY:      "B",
		Exchange:    "tapp",
		PoolAddress: "0x2",
		Model: types.NewConcentratedLiquidity([]types.Tick{
			{Price: decimal.RequireFromString("90"), LiquidityGross: decimal.RequireFromString("5")},
			{Price: decimal.RequireFromString("100"), LiquidityGross: decimal.RequireFromString("10")},
		}, 0),
	}

	out, ok := Quote(edge, q("10"), "A")
	if !ok {
		t.Fatal("expected a valid CL quote")
	}
	want := decimal.RequireFromString("10").Mul(decimal.RequireFromString("100"))
	if !out.Decimal.Equal(want) {
		t.Fatalf("quote = %s, want %s (best tick consumed first)", out.Decimal, want)
	}
}
