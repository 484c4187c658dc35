// Package types defines the canonical data vocabulary of the arbitrage
// detection engine — assets, decimal quantities, pool models, market
// updates, and opportunity records. It has no dependencies on internal
// packages, so it can be imported by any layer.
package types

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Assets and quantities
// ————————————————————————————————————————————————————————————————————————

// Asset is an opaque on-chain asset identifier, typically a fully-qualified
// type string (e.g. "0x1::aptos_coin::AptosCoin"). Equality and hashing are
// by exact string; case is semantically significant and is never folded.
type Asset string

// AssetId is a dense, stable integer assigned to an Asset on first sight by
// a PriceGraph. It is stable for the lifetime of the graph that assigned it
// but carries no meaning across graphs.
type AssetId uint64

// AssetPair orders two assets for lexicographic comparison and filtering.
type AssetPair struct {
	Base  Asset
	Quote Asset
}

// Less gives a stable total order over pairs, used for deterministic
// iteration (spec: "ordering of BF edge iterations must be stable").
func (p AssetPair) Less(o AssetPair) bool {
	if p.Base != o.Base {
		return p.Base < o.Base
	}
	return p.Quote < o.Quote
}

// Quantity is a signed, bank-grade decimal (≥28 significant digits). Money
// and pool-reserve math is never represented as a float; only the
// Bellman-Ford log-space weight and the slippage comparison use float64,
// per spec.md §9.
type Quantity struct {
	decimal.Decimal
}

// Zero is the additive identity.
var Zero = Quantity{decimal.Zero}

// NewQuantity builds a Quantity from an integer mantissa and a power-of-ten
// exponent, mirroring decimal.New.
func NewQuantity(value int64, exp int32) Quantity {
	return Quantity{decimal.New(value, exp)}
}

// QuantityFromFloat constructs a Quantity from a float64. Used only at
// config/test boundaries — never on the hot quoting path.
func QuantityFromFloat(f float64) Quantity {
	return Quantity{decimal.NewFromFloat(f)}
}

// ParseQuantity parses a decimal string exactly, with no float round-trip.
func ParseQuantity(s string) (Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Quantity{}, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return Quantity{d}, nil
}

// QuantityFromBigInt scales an exact on-chain integer (already decoded from
// hex without loss) down by 10^decimals.
func QuantityFromBigInt(v *big.Int, decimals int32) Quantity {
	return Quantity{decimal.NewFromBigInt(v, -decimals)}
}

func (q Quantity) Add(o Quantity) Quantity { return Quantity{q.Decimal.Add(o.Decimal)} }
func (q Quantity) Sub(o Quantity) Quantity { return Quantity{q.Decimal.Sub(o.Decimal)} }
func (q Quantity) Mul(o Quantity) Quantity { return Quantity{q.Decimal.Mul(o.Decimal)} }
func (q Quantity) IsPositive() bool        { return q.Decimal.IsPositive() }
func (q Quantity) IsZero() bool            { return q.Decimal.IsZero() }
func (q Quantity) LessThanOrEqual(o Quantity) bool {
	return q.Decimal.LessThanOrEqual(o.Decimal)
}
func (q Quantity) GreaterThan(o Quantity) bool { return q.Decimal.GreaterThan(o.Decimal) }

// ————————————————————————————————————————————————————————————————————————
// Pool model
// ————————————————————————————————————————————————————————————————————————

// Exchange identifies the DEX a pool belongs to. Unlike the closed Rust enum
// this expands from, it is open: any non-empty lowercase name is valid so a
// new DEX can be added purely through configuration (spec.md §6 "dexes:
// name").
type Exchange string

// PoolKind discriminates the PoolModel tagged union.
type PoolKind int

const (
	ConstantProductKind PoolKind = iota
	ConcentratedLiquidityKind
)

// Tick is a discrete price level in a concentrated-liquidity pool.
// Price is asset_y / asset_x at that tick.
type Tick struct {
	Price          decimal.Decimal
	LiquidityGross decimal.Decimal
}

// PoolModel is the tagged union over constant-product and
// concentrated-liquidity pool shapes (spec.md §3). Exactly one of the two
// field groups is meaningful, selected by Kind.
type PoolModel struct {
	Kind PoolKind

	// ConstantProduct fields.
	ReserveX Quantity
	ReserveY Quantity

	// ConcentratedLiquidity fields.
	Ticks []Tick

	FeeBps uint16
}

// NewConstantProduct builds a ConstantProduct pool model.
func NewConstantProduct(reserveX, reserveY Quantity, feeBps uint16) PoolModel {
	return PoolModel{Kind: ConstantProductKind, ReserveX: reserveX, ReserveY: reserveY, FeeBps: feeBps}
}

// NewConcentratedLiquidity builds a ConcentratedLiquidity pool model. Ticks
// are copied, not aliased, so the caller's slice can be reused.
func NewConcentratedLiquidity(ticks []Tick, feeBps uint16) PoolModel {
	cp := make([]Tick, len(ticks))
	copy(cp, ticks)
	return PoolModel{Kind: ConcentratedLiquidityKind, Ticks: cp, FeeBps: feeBps}
}

// Tradeable reports the invariant each kind must hold to be quotable:
// CPMM needs both reserves strictly positive; CL needs at least one tick
// with positive liquidity.
func (m PoolModel) Tradeable() bool {
	switch m.Kind {
	case ConstantProductKind:
		return m.ReserveX.IsPositive() && m.ReserveY.IsPositive()
	case ConcentratedLiquidityKind:
		for _, t := range m.Ticks {
			if t.LiquidityGross.IsPositive() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ————————————————————————————————————————————————————————————————————————
// Edge
// ————————————————————————————————————————————————————————————————————————

// Edge is a directed, quoted trading relation asset_x -> asset_y through one
// specific pool on one specific DEX (spec.md §3). Equality excludes
// LastUpdated so that graph identity is deterministic and does not depend
// on wall-clock time.
type Edge struct {
	AssetX      Asset
	AssetY      Asset
	Exchange    Exchange
	PoolAddress string
	Model       PoolModel
	LastUpdated time.Time
}

// Equal compares two edges ignoring LastUpdated.
func (e Edge) Equal(o Edge) bool {
	if e.AssetX != o.AssetX || e.AssetY != o.AssetY || e.Exchange != o.Exchange || e.PoolAddress != o.PoolAddress {
		return false
	}
	if e.Model.Kind != o.Model.Kind || e.Model.FeeBps != o.Model.FeeBps {
		return false
	}
	switch e.Model.Kind {
	case ConstantProductKind:
		return e.Model.ReserveX.Equal(o.Model.ReserveX.Decimal) && e.Model.ReserveY.Equal(o.Model.ReserveY.Decimal)
	case ConcentratedLiquidityKind:
		if len(e.Model.Ticks) != len(o.Model.Ticks) {
			return false
		}
		for i := range e.Model.Ticks {
			if !e.Model.Ticks[i].Price.Equal(o.Model.Ticks[i].Price) ||
				!e.Model.Ticks[i].LiquidityGross.Equal(o.Model.Ticks[i].LiquidityGross) {
				return false
			}
		}
		return true
	}
	return true
}

// SerializableEdge is the flattened, JSON/logging-friendly form of an Edge's
// identity, used inside ArbitrageOpportunity paths and dashboard output.
type SerializableEdge struct {
	AssetX      Asset    `json:"asset_x"`
	AssetY      Asset    `json:"asset_y"`
	Exchange    Exchange `json:"exchange"`
	PoolAddress string   `json:"pool_address"`
}

// ToSerializable strips quoting state, keeping only the edge's identity.
func (e Edge) ToSerializable() SerializableEdge {
	return SerializableEdge{AssetX: e.AssetX, AssetY: e.AssetY, Exchange: e.Exchange, PoolAddress: e.PoolAddress}
}

// ————————————————————————————————————————————————————————————————————————
// Market update (canonical wire form produced by the ingest layer)
// ————————————————————————————————————————————————————————————————————————

// TokenPair names the two sides of a pool in wire order (not necessarily
// asset_x/asset_y order — the translator decides direction).
type TokenPair struct {
	Token0 Asset
	Token1 Asset
}

// TickInfo is the per-tick liquidity delta/gross pair carried in a pool's
// tick map (spec.md §3).
type TickInfo struct {
	LiquidityNet   *big.Int // signed delta crossing this tick
	LiquidityGross *big.Int // unsigned gross liquidity referencing this tick
}

// MarketUpdate is the canonical wire form the ingest layer produces from a
// DEX adapter (spec.md §3). sqrt_price/liquidity are exact on-chain u128
// values decoded via hexutil; tick is i32-range but carried as int64 here to
// avoid a second narrowing conversion at the translator boundary.
type MarketUpdate struct {
	PoolAddress string
	DexName     string
	TokenPair   TokenPair
	SqrtPrice   *big.Int
	Liquidity   *big.Int
	Tick        int64
	FeeBps      uint32
	TickMap     map[int64]TickInfo
}

// ————————————————————————————————————————————————————————————————————————
// DetectorMessage — the block-aligned ingest stream
// ————————————————————————————————————————————————————————————————————————

// MessageKind discriminates the DetectorMessage tagged union.
type MessageKind int

const (
	BlockStartKind MessageKind = iota
	MarketUpdateKind
	BlockEndKind
)

// DetectorMessage is the tagged union `{BlockStart | MarketUpdate | BlockEnd}`
// of spec.md §3. Messages for one block arrive contiguously and in the order
// BlockStart, MarketUpdate*, BlockEnd; the transport guarantees per-block
// FIFO.
type DetectorMessage struct {
	Kind MessageKind

	BlockNumber uint64    // BlockStart, BlockEnd
	Timestamp   time.Time // BlockStart

	Update MarketUpdate // MarketUpdateKind only
}

// NewBlockStart builds a BlockStart message.
func NewBlockStart(blockNumber uint64, ts time.Time) DetectorMessage {
	return DetectorMessage{Kind: BlockStartKind, BlockNumber: blockNumber, Timestamp: ts}
}

// NewMarketUpdateMessage builds a MarketUpdate message.
func NewMarketUpdateMessage(u MarketUpdate) DetectorMessage {
	return DetectorMessage{Kind: MarketUpdateKind, Update: u}
}

// NewBlockEnd builds a BlockEnd message.
func NewBlockEnd(blockNumber uint64) DetectorMessage {
	return DetectorMessage{Kind: BlockEndKind, BlockNumber: blockNumber}
}

// ————————————————————————————————————————————————————————————————————————
// Arbitrage opportunities
// ————————————————————————————————————————————————————————————————————————

// GraphViewKind discriminates the view a Strategy requests from the service.
type GraphViewKind int

const (
	GraphViewAll GraphViewKind = iota
	GraphViewPairFiltered
)

// GraphView describes which part of the graph a strategy needs to see at
// BlockEnd (spec.md §4.G).
type GraphView struct {
	Kind  GraphViewKind
	Pairs []AssetPair // meaningful only when Kind == GraphViewPairFiltered
}

// ArbitrageOpportunity is the final, rankable output of the detector
// (spec.md §3). ID is a deterministic hash of path+amount+strategy, not of
// timestamps, so that the deduplicator can suppress re-emission across
// blocks.
type ArbitrageOpportunity struct {
	ID                 [32]byte
	Strategy           string
	Path               []SerializableEdge
	InputAmount        Quantity
	ExpectedGrossProfit Quantity
	GasEstimate        Quantity
	ExpectedNetProfit  Quantity
	BlockNumber        uint64
	Timestamp          time.Time
}

// pathTriples renders each path edge as an "asset_x->asset_y#exchange#pool"
// triple, in path order. FingerprintInput sorts these triples before hashing
// (spec.md §4.H: "sorted path triples"), so two opportunities listing the
// same edges in a different order share a fingerprint.
func (o ArbitrageOpportunity) pathTriples() []string {
	out := make([]string, len(o.Path))
	for i, e := range o.Path {
		out[i] = string(e.AssetX) + "->" + string(e.AssetY) + "#" + string(e.Exchange) + "#" + e.PoolAddress
	}
	return out
}

// FingerprintInput renders the exact byte sequence the deduplicator hashes:
// sorted path triples, the quantized input amount, and the strategy name —
// never timestamps (spec.md §4.H).
func (o ArbitrageOpportunity) FingerprintInput(quantizedInput string) []byte {
	triples := o.pathTriples()
	sort.Strings(triples)
	buf := make([]byte, 0, 256)
	buf = append(buf, []byte(o.Strategy)...)
	buf = append(buf, '|')
	buf = append(buf, []byte(quantizedInput)...)
	for _, t := range triples {
		buf = append(buf, '|')
		buf = append(buf, []byte(t)...)
	}
	return buf
}
