package adapter

import (
	"encoding/json"
	"testing"
)

func snapshotPayload(t *testing.T, poolID string, sqrtPrice, liquidity string, tick int64) json.RawMessage {
	t.Helper()
	raw := map[string]any{
		"pool_id":    poolID,
		"sqrt_price": sqrtPrice,
		"liquidity":  liquidity,
		"tick":       tick,
		"fee_rate":   30,
		"token_a":    "0x1::aptos_coin::AptosCoin",
		"token_b":    "0x1::usdc::USDC",
		"tick_map": map[string]any{
			"0": map[string]any{"liquidity_net": "0x10", "liquidity_gross": "0x10"},
		},
	}
	b, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal snapshot payload: %v", err)
	}
	return b
}

func swapPayload(t *testing.T, poolID string, sqrtPrice, liquidity string, tick int64) json.RawMessage {
	t.Helper()
	raw := map[string]any{
		"pool_id":    poolID,
		"sqrt_price": sqrtPrice,
		"liquidity":  liquidity,
		"tick":       tick,
	}
	b, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal swap payload: %v", err)
	}
	return b
}

func TestHyperionSnapshotEmitsNoMarketUpdate(t *testing.T) {
	t.Parallel()
	a := NewHyperionAdapter()

	update, err := a.ParseEvent(Event{
		TypeStr: "0x1::hyperion::PoolSnapshot",
		Data:    snapshotPayload(t, "pool-1", "0x100", "0x200", 5),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update != nil {
		t.Fatalf("snapshot must not emit a market update, got %+v", update)
	}
}

func TestHyperionSwapAfterSnapshotEmitsUpdate(t *testing.T) {
	t.Parallel()
	a := NewHyperionAdapter()

	if _, err := a.ParseEvent(Event{
		TypeStr: "0x1::hyperion::PoolSnapshot",
		Data:    snapshotPayload(t, "pool-1", "0x100", "0x200", 5),
	}); err != nil {
		t.Fatalf("unexpected snapshot error: %v", err)
	}

	update, err := a.ParseEvent(Event{
		TypeStr: "0x1::hyperion::SwapEvent",
		Data:    swapPayload(t, "pool-1", "0x150", "0x210", 6),
	})
	if err != nil {
		t.Fatalf("unexpected swap error: %v", err)
	}
	if update == nil {
		t.Fatal("expected a market update after a known pool's swap")
	}
	if update.PoolAddress != "pool-1" || update.DexName != "hyperion" {
		t.Fatalf("unexpected update identity: %+v", update)
	}
	if update.SqrtPrice.Int64() != 0x150 || update.Liquidity.Int64() != 0x210 || update.Tick != 6 {
		t.Fatalf("swap scalars not carried through: %+v", update)
	}
	if update.TokenPair.Token0 != "0x1::aptos_coin::AptosCoin" || update.TokenPair.Token1 != "0x1::usdc::USDC" {
		t.Fatalf("token pair should be carried forward from the snapshot: %+v", update.TokenPair)
	}
	if update.FeeBps != 30 {
		t.Fatalf("fee should be carried forward from the snapshot, got %d", update.FeeBps)
	}
	if len(update.TickMap) != 1 {
		t.Fatalf("tick map should be carried forward from the snapshot, got %v", update.TickMap)
	}
}

func TestSwapWithNoPriorSnapshotIsSilentlyDropped(t *testing.T) {
	t.Parallel()
	a := NewHyperionAdapter()

	update, err := a.ParseEvent(Event{
		TypeStr: "0x1::hyperion::SwapEvent",
		Data:    swapPayload(t, "unknown-pool", "0x1", "0x1", 0),
	})
	if err != nil {
		t.Fatalf("cache miss must not be an error, got %v", err)
	}
	if update != nil {
		t.Fatalf("cache miss must not emit a market update, got %+v", update)
	}
}

func TestUnknownEventTypeIsIgnored(t *testing.T) {
	t.Parallel()
	a := NewHyperionAdapter()

	update, err := a.ParseEvent(Event{
		TypeStr: "0x1::hyperion::LiquidityAddedEvent",
		Data:    json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("unrecognized event types must not error: %v", err)
	}
	if update != nil {
		t.Fatalf("unrecognized event types must not emit an update, got %+v", update)
	}
}

// TestEventOrderIntegrity is spec.md §8 scenario S4: a snapshot followed by
// three swaps on the same pool must leave the cache holding the snapshot's
// static fields (token pair, fee, tick map) with the last swap's scalars.
func TestEventOrderIntegrity(t *testing.T) {
	t.Parallel()
	a := NewThalaAdapter()

	if _, err := a.ParseEvent(Event{
		TypeStr: "0x1::thala::PoolSnapshot",
		Data:    snapshotPayload(t, "pool-9", "0x10", "0x20", 1),
	}); err != nil {
		t.Fatalf("unexpected snapshot error: %v", err)
	}

	swaps := []struct {
		sqrtPrice, liquidity string
		tick                 int64
	}{
		{"0x11", "0x21", 2},
		{"0x12", "0x22", 3},
		{"0x13", "0x23", 4},
	}

	var last *json.RawMessage
	_ = last
	var update *updateResult
	for _, s := range swaps {
		u, err := a.ParseEvent(Event{
			TypeStr: "0x1::thala::SwapAfterEvent",
			Data:    swapPayload(t, "pool-9", s.sqrtPrice, s.liquidity, s.tick),
		})
		if err != nil {
			t.Fatalf("unexpected swap error: %v", err)
		}
		if u == nil {
			t.Fatal("expected a market update for a known pool's swap")
		}
		update = &updateResult{sqrtPrice: u.SqrtPrice.Int64(), liquidity: u.Liquidity.Int64(), tick: u.Tick, feeBps: u.FeeBps, tickMapLen: len(u.TickMap)}
	}

	if update.sqrtPrice != 0x13 || update.liquidity != 0x23 || update.tick != 4 {
		t.Fatalf("final cache state should reflect only the last swap's scalars, got %+v", update)
	}
	if update.feeBps != 30 {
		t.Fatalf("fee must survive from the original snapshot, got %d", update.feeBps)
	}
	if update.tickMapLen != 1 {
		t.Fatalf("tick map must survive from the original snapshot, got len %d", update.tickMapLen)
	}
}

type updateResult struct {
	sqrtPrice, liquidity, tick int64
	feeBps                     uint32
	tickMapLen                 int
}

func TestTappAdapterSharesHyperionBehavior(t *testing.T) {
	t.Parallel()
	a := NewTappAdapter()

	if a.ID() != "tapp" {
		t.Fatalf("unexpected adapter id: %s", a.ID())
	}

	if _, err := a.ParseEvent(Event{
		TypeStr: "0x1::tapp::PoolSnapshot",
		Data:    snapshotPayload(t, "pool-5", "0x1", "0x2", 0),
	}); err != nil {
		t.Fatalf("unexpected snapshot error: %v", err)
	}

	update, err := a.ParseEvent(Event{
		TypeStr: "0x1::tapp::SwapEvent",
		Data:    swapPayload(t, "pool-5", "0x3", "0x4", 1),
	})
	if err != nil {
		t.Fatalf("unexpected swap error: %v", err)
	}
	if update == nil {
		t.Fatal("expected a market update")
	}
}

func TestNewBuildsRegisteredAdapters(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"hyperion", "thala", "tapp"} {
		a, err := New(name)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if a.ID() != name {
			t.Errorf("New(%q).ID() = %q", name, a.ID())
		}
	}
}

func TestNewRejectsUnknownDex(t *testing.T) {
	t.Parallel()
	if _, err := New("unknown-dex"); err == nil {
		t.Fatal("expected an error for an unregistered dex name")
	}
}
