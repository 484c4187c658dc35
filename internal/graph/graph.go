// Package graph implements the price graph of spec.md §4.E: a directed,
// multi-edge graph over interned assets, safe for concurrent readers and a
// single mutating writer, with copy-on-write snapshots.
//
// Grounded on internal/market/book.go (teacher)'s RWMutex-guarded mutable
// state with derived read accessors, and on
// original_source/crates/detector/src/graph/{mod,state}.rs for the asset
// interning and prune_stale shape — adapted to a custom multi-edge adjacency
// (keyed by target/exchange/pool_address) rather than petgraph::DiGraphMap,
// and to insert the reverse edge atomically, which the Rust state.rs does
// not do (spec.md §3's symmetric-edge invariant; see DESIGN.md).
package graph

import (
	"sort"
	"sync"
	"time"

	"arbbot/pkg/types"
)

// edgeKey identifies one multi-edge slot out of a source asset: distinct
// DEXes or distinct pools on the same asset pair are different edges.
type edgeKey struct {
	target      types.AssetId
	exchange    types.Exchange
	poolAddress string
}

// assetAdjacency is one source asset's out-edges. Mutations never modify an
// assetAdjacency in place; UpsertPool and PruneStale always build a new map
// and swap the pointer under the write lock, which is what makes Snapshot's
// copy-on-write guarantee hold without per-edge locking.
type assetAdjacency map[edgeKey]types.Edge

// PriceGraph is the single shared mutable resource strategies read from
// concurrently (spec.md §4.G "Concurrency model"). Mutation takes the write
// lock only for the duration of the map-swap; Snapshot never blocks on it
// for longer than a pointer copy.
type PriceGraph struct {
	mu sync.RWMutex

	assetMapping   map[types.AssetId]types.Asset
	reverseMapping map[types.Asset]types.AssetId
	nextID         types.AssetId

	adjacency map[types.AssetId]assetAdjacency
}

// New builds an empty price graph.
func New() *PriceGraph {
	return &PriceGraph{
		assetMapping:   make(map[types.AssetId]types.Asset),
		reverseMapping: make(map[types.Asset]types.AssetId),
		adjacency:      make(map[types.AssetId]assetAdjacency),
	}
}

// UpsertPool inserts or replaces the forward edge keyed by
// (source, target, exchange, pool_address), and atomically inserts the
// reverse edge with the pool model transformed to keep quoting semantics
// correct (spec.md §3, §4.E). Replacing an edge refreshes LastUpdated.
func (g *PriceGraph) UpsertPool(edge types.Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	edge.LastUpdated = time.Now()

	sourceID := g.getOrCreateAssetID(edge.AssetX)
	targetID := g.getOrCreateAssetID(edge.AssetY)

	g.insertEdgeLocked(sourceID, edgeKey{target: targetID, exchange: edge.Exchange, poolAddress: edge.PoolAddress}, edge)

	reverse := reverseEdge(edge)
	g.insertEdgeLocked(targetID, edgeKey{target: sourceID, exchange: edge.Exchange, poolAddress: edge.PoolAddress}, reverse)
}

// insertEdgeLocked must be called with g.mu held for writing. It performs
// the copy-on-write swap: a fresh map is allocated, the old contents copied
// in, and the new edge set, before the pointer is published.
func (g *PriceGraph) insertEdgeLocked(source types.AssetId, key edgeKey, edge types.Edge) {
	old := g.adjacency[source]
	fresh := make(assetAdjacency, len(old)+1)
	for k, v := range old {
		fresh[k] = v
	}
	fresh[key] = edge
	g.adjacency[source] = fresh
}

// getOrCreateAssetID must be called with g.mu held for writing.
func (g *PriceGraph) getOrCreateAssetID(asset types.Asset) types.AssetId {
	if id, ok := g.reverseMapping[asset]; ok {
		return id
	}
	id := g.nextID
	g.nextID++
	g.assetMapping[id] = asset
	g.reverseMapping[asset] = id
	return id
}

// PruneStale removes every edge whose LastUpdated is older than now-ttl.
// Atomicity is per source asset, not global: a reader who snapshotted
// mid-prune sees either the pre- or post-prune adjacency for each asset,
// never a torn one (spec.md §4.E).
func (g *PriceGraph) PruneStale(ttl time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	for source, adj := range g.adjacency {
		var fresh assetAdjacency
		changed := false
		for k, e := range adj {
			if e.LastUpdated.Before(cutoff) {
				changed = true
				continue
			}
			if fresh == nil {
				fresh = make(assetAdjacency, len(adj))
			}
			fresh[k] = e
		}
		if changed {
			g.adjacency[source] = fresh
		}
	}
}

// Neighbors returns the out-edges of asset, in a stable order (sorted by
// target asset id, then exchange, then pool address) within one call.
func (g *PriceGraph) Neighbors(asset types.Asset) []types.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, ok := g.reverseMapping[asset]
	if !ok {
		return nil
	}
	return sortedEdges(g.adjacency[id])
}

// Stats reports the current vertex and edge counts, for dashboard and
// logging use. Equivalent to Snapshot().Stats() but avoids the snapshot copy.
func (g *PriceGraph) Stats() (vertices, edges int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	vertices = len(g.assetMapping)
	for _, adj := range g.adjacency {
		edges += len(adj)
	}
	return vertices, edges
}

func sortedEdges(adj assetAdjacency) []types.Edge {
	keys := make([]edgeKey, 0, len(adj))
	for k := range adj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].target != keys[j].target {
			return keys[i].target < keys[j].target
		}
		if keys[i].exchange != keys[j].exchange {
			return keys[i].exchange < keys[j].exchange
		}
		return keys[i].poolAddress < keys[j].poolAddress
	})
	out := make([]types.Edge, 0, len(keys))
	for _, k := range keys {
		out = append(out, adj[k])
	}
	return out
}

// reverseEdge derives the opposite-direction edge for a newly upserted pool:
// CPMM swaps reserves, CL inverts each tick price (1/p) while preserving
// gross liquidity (spec.md §3 "Invariant: for every forward edge...").
func reverseEdge(e types.Edge) types.Edge {
	model := e.Model
	switch model.Kind {
	case types.ConstantProductKind:
		model = types.NewConstantProduct(e.Model.ReserveY, e.Model.ReserveX, e.Model.FeeBps)
	case types.ConcentratedLiquidityKind:
		inverted := make([]types.Tick, len(e.Model.Ticks))
		for i, t := range e.Model.Ticks {
			inverted[i] = types.Tick{
				Price:          invertPrice(t.Price),
				LiquidityGross: t.LiquidityGross,
			}
		}
		model = types.NewConcentratedLiquidity(inverted, e.Model.FeeBps)
	}
	return types.Edge{
		AssetX:      e.AssetY,
		AssetY:      e.AssetX,
		Exchange:    e.Exchange,
		PoolAddress: e.PoolAddress,
		Model:       model,
		LastUpdated: e.LastUpdated,
	}
}
