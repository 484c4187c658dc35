// Package adapter implements per-DEX event decoding (spec.md §4.B). Each
// adapter owns a concurrent-safe pool-state cache keyed by pool address and
// turns PoolSnapshot/Swap/SwapAfter events into canonical MarketUpdate
// records, or silently drops them per the rules below.
package adapter

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"arbbot/internal/errs"
	"arbbot/pkg/types"
)

// Event is a single decoded on-chain event: its fully-qualified type string
// and its raw JSON payload, exactly as the event extractor (internal/ingest)
// forwards it.
type Event struct {
	TypeStr string
	Data    json.RawMessage
}

// DexAdapter is the capability surface spec.md §4.B defines: an identity
// and a pure event-to-market-update translation.
type DexAdapter interface {
	// ID returns the adapter's exchange name, used as types.Exchange.
	ID() string

	// ParseEvent decodes one event. It returns (nil, nil) when the event is
	// state-only (a snapshot) or irrelevant; (update, nil) when a trade
	// mutated a known pool; and a non-nil error only for malformed payloads
	// (spec.md §7 "Decode" — the caller logs and skips, never aborts).
	ParseEvent(event Event) (*types.MarketUpdate, error)
}

// poolState is the adapter-local cache entry (spec.md §3 "Pool state
// cache").
type poolState struct {
	tokenPair types.TokenPair
	sqrtPrice *hexutil.Big
	liquidity *hexutil.Big
	tick      int64
	feeBps    uint32
	tickMap   map[int64]types.TickInfo
}

// poolSnapshotWire is the wire shape of a PoolSnapshot event. Numeric fields
// are hex strings so that u128 values decode exactly, without a float
// round-trip (spec.md §4.B "Numeric decoding must be exact").
type poolSnapshotWire struct {
	PoolID    string                    `json:"pool_id"`
	SqrtPrice *hexutil.Big              `json:"sqrt_price"`
	Liquidity *hexutil.Big              `json:"liquidity"`
	Tick      int64                     `json:"tick"`
	FeeRate   uint32                    `json:"fee_rate"`
	TokenA    string                    `json:"token_a"`
	TokenB    string                    `json:"token_b"`
	TickMap   map[string]tickInfoWire   `json:"tick_map"`
}

type tickInfoWire struct {
	LiquidityNet   *hexutil.Big `json:"liquidity_net"`
	LiquidityGross *hexutil.Big `json:"liquidity_gross"`
}

// swapEventWire is the wire shape of a Swap/SwapAfter event: the post-swap
// scalar state only (the tick map and fee are carried forward from the
// cached snapshot, per spec.md §4.B).
type swapEventWire struct {
	PoolID    string       `json:"pool_id"`
	SqrtPrice *hexutil.Big `json:"sqrt_price"`
	Liquidity *hexutil.Big `json:"liquidity"`
	Tick      int64        `json:"tick"`
}

// snapshotSwapAdapter implements the shared snapshot/swap/cache-miss
// behaviour every adapter in this pack exercises identically (Hyperion and
// Thala per original_source/crates/dex-adapters/src/lib.rs; Tapp per
// SPEC_FULL.md §12.4, since its wire format was never specified in the
// retained source). DEX-specific adapters differ only in ID() and the event
// name aliases they accept.
type snapshotSwapAdapter struct {
	id             string
	snapshotEvents map[string]bool
	swapEvents     map[string]bool

	pools sync.Map // pool_id (string) -> *poolState
}

func newSnapshotSwapAdapter(id string, snapshotNames, swapNames []string) *snapshotSwapAdapter {
	a := &snapshotSwapAdapter{
		id:             id,
		snapshotEvents: make(map[string]bool, len(snapshotNames)),
		swapEvents:     make(map[string]bool, len(swapNames)),
	}
	for _, n := range snapshotNames {
		a.snapshotEvents[n] = true
	}
	for _, n := range swapNames {
		a.swapEvents[n] = true
	}
	return a
}

func (a *snapshotSwapAdapter) ID() string { return a.id }

func (a *snapshotSwapAdapter) ParseEvent(event Event) (*types.MarketUpdate, error) {
	name := eventSuffix(event.TypeStr)

	switch {
	case a.snapshotEvents[name]:
		return a.handleSnapshot(event.Data)
	case a.swapEvents[name]:
		return a.handleSwap(event.Data)
	default:
		return nil, nil
	}
}

func (a *snapshotSwapAdapter) handleSnapshot(data json.RawMessage) (*types.MarketUpdate, error) {
	var wire poolSnapshotWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%s: decode pool snapshot: %w", a.id, err)
	}
	tickMap := make(map[int64]types.TickInfo, len(wire.TickMap))
	for k, v := range wire.TickMap {
		idx, err := parseTickIndex(k)
		if err != nil {
			return nil, fmt.Errorf("%s: decode tick index %q: %w", a.id, k, err)
		}
		tickMap[idx] = types.TickInfo{
			LiquidityNet:   bigOrZero(v.LiquidityNet),
			LiquidityGross: bigOrZero(v.LiquidityGross),
		}
	}

	state := &poolState{
		tokenPair: types.TokenPair{Token0: types.Asset(wire.TokenA), Token1: types.Asset(wire.TokenB)},
		sqrtPrice: wire.SqrtPrice,
		liquidity: wire.Liquidity,
		tick:      wire.Tick,
		feeBps:    wire.FeeRate,
		tickMap:   tickMap,
	}
	a.pools.Store(wire.PoolID, state)

	// A snapshot only updates internal state; it never emits a market
	// update (spec.md §4.B).
	return nil, nil
}

func (a *snapshotSwapAdapter) handleSwap(data json.RawMessage) (*types.MarketUpdate, error) {
	var wire swapEventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%s: decode swap event: %w", a.id, err)
	}

	v, ok := a.pools.Load(wire.PoolID)
	if !ok {
		// Cache miss: a swap for a pool we have no prior snapshot for.
		// Silently dropped per spec.md §3/§7 — a later snapshot heals it.
		return nil, nil
	}
	prev := v.(*poolState)

	updated := &poolState{
		tokenPair: prev.tokenPair,
		sqrtPrice: wire.SqrtPrice,
		liquidity: wire.Liquidity,
		tick:      wire.Tick,
		feeBps:    prev.feeBps,
		tickMap:   prev.tickMap,
	}
	a.pools.Store(wire.PoolID, updated)

	tickMap := make(map[int64]types.TickInfo, len(updated.tickMap))
	for k, v := range updated.tickMap {
		tickMap[k] = v
	}

	return &types.MarketUpdate{
		PoolAddress: wire.PoolID,
		DexName:     a.id,
		TokenPair:   updated.tokenPair,
		SqrtPrice:   updated.sqrtPrice.ToInt(),
		Liquidity:   updated.liquidity.ToInt(),
		Tick:        updated.tick,
		FeeBps:      updated.feeBps,
		TickMap:     tickMap,
	}, nil
}

// New builds the adapter registered under name, or an error if name is not
// one of the DEXes this pack ships an adapter for. Used by cmd/arbbot to
// build the adapter registry from the configured DEX list.
func New(name string) (DexAdapter, error) {
	switch name {
	case "hyperion":
		return NewHyperionAdapter(), nil
	case "thala":
		return NewThalaAdapter(), nil
	case "tapp":
		return NewTappAdapter(), nil
	default:
		return nil, fmt.Errorf("adapter: no adapter registered for dex %q", name)
	}
}

// CacheMissError wraps errs.ErrCacheMiss for callers that want to
// distinguish "no update, because cache miss" from "no update, not
// relevant" — ParseEvent itself never returns this; it is exposed for
// tests and for adapters that want to log the distinction explicitly.
func CacheMissError(poolID string) error {
	return fmt.Errorf("%s: pool %q: %w", "adapter", poolID, errs.ErrCacheMiss)
}

func bigOrZero(v *hexutil.Big) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v.ToInt()
}

// eventSuffix takes the last "::"-separated component of a fully-qualified
// on-chain event type string, e.g. "0x1::hyperion::SwapEvent" -> "SwapEvent".
func eventSuffix(typeStr string) string {
	parts := strings.Split(typeStr, "::")
	return parts[len(parts)-1]
}

// parseTickIndex parses a tick map key, which may be rendered as a decimal
// or a hex string depending on the upstream encoder.
func parseTickIndex(s string) (int64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "-0x") {
		v, err := hexutil.DecodeBig(strings.TrimPrefix(s, "-"))
		if err != nil {
			return 0, err
		}
		idx := v.Int64()
		if strings.HasPrefix(s, "-") {
			idx = -idx
		}
		return idx, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
