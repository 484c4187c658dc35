package graph

import (
	"sort"

	"arbbot/pkg/types"
)

// Snapshot is an immutable, cheaply-clonable view of a PriceGraph at one
// instant (spec.md §4.E "snapshot()"). It shares its adjacency maps with the
// PriceGraph that produced it via copy-on-write: PriceGraph.UpsertPool and
// PruneStale always allocate a new per-asset map rather than mutating one in
// place, so a Snapshot's view of the graph is frozen the moment it is taken,
// regardless of mutations afterward.
type Snapshot struct {
	assetMapping   map[types.AssetId]types.Asset
	reverseMapping map[types.Asset]types.AssetId
	adjacency      map[types.AssetId]assetAdjacency
}

// Snapshot captures the entire current graph. Readers never observe partial
// mutations: the copy made here is a flat copy of the outer maps only — the
// per-asset adjacency values are shared pointers that UpsertPool/PruneStale
// never mutate in place, so this is equivalent to a full deep copy from the
// caller's perspective at a fraction of the cost.
func (g *PriceGraph) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	assetMapping := make(map[types.AssetId]types.Asset, len(g.assetMapping))
	for k, v := range g.assetMapping {
		assetMapping[k] = v
	}
	reverseMapping := make(map[types.Asset]types.AssetId, len(g.reverseMapping))
	for k, v := range g.reverseMapping {
		reverseMapping[k] = v
	}
	adjacency := make(map[types.AssetId]assetAdjacency, len(g.adjacency))
	for k, v := range g.adjacency {
		adjacency[k] = v
	}

	return &Snapshot{assetMapping: assetMapping, reverseMapping: reverseMapping, adjacency: adjacency}
}

// Assets returns every asset known to the snapshot, in AssetId order for a
// deterministic per-source Bellman-Ford iteration order (spec.md §4.F).
func (s *Snapshot) Assets() []types.AssetId {
	ids := make([]types.AssetId, 0, len(s.assetMapping))
	for id := range s.assetMapping {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Asset resolves an AssetId back to its canonical Asset.
func (s *Snapshot) Asset(id types.AssetId) (types.Asset, bool) {
	a, ok := s.assetMapping[id]
	return a, ok
}

// AssetID resolves an Asset to its dense id within this snapshot.
func (s *Snapshot) AssetID(asset types.Asset) (types.AssetId, bool) {
	id, ok := s.reverseMapping[asset]
	return id, ok
}

// Neighbors returns the out-edges of an asset id, sorted for stable
// iteration within this snapshot (spec.md §4.E "order ... stable within one
// snapshot").
func (s *Snapshot) Neighbors(id types.AssetId) []types.Edge {
	return sortedEdges(s.adjacency[id])
}

// Stats reports the vertex and edge counts of the snapshot, for dashboard
// and logging use (spec.md §12.5's graph-size panel).
func (s *Snapshot) Stats() (vertices, edges int) {
	vertices = len(s.assetMapping)
	for _, adj := range s.adjacency {
		edges += len(adj)
	}
	return vertices, edges
}

// Quote delegates to the package-level Quote function; exposed as a method
// so strategies hold only a *Snapshot reference while walking edges.
func (s *Snapshot) Quote(edge types.Edge, amountIn types.Quantity, assetIn types.Asset) (types.Quantity, bool) {
	return Quote(edge, amountIn, assetIn)
}

// Filtered returns the subset of this snapshot's edges touching any of the
// given asset pairs, materialized as a standalone Snapshot — a real
// implementation of GraphViewPairFiltered (spec.md §12.2), rather than
// handing the strategy the unfiltered graph as original_source's
// create_view does for PairFiltered.
func (s *Snapshot) Filtered(pairs []types.AssetPair) *Snapshot {
	if len(pairs) == 0 {
		return s
	}

	wanted := make(map[types.AssetPair]bool, len(pairs)*2)
	for _, p := range pairs {
		wanted[p] = true
		wanted[types.AssetPair{Base: p.Quote, Quote: p.Base}] = true
	}

	adjacency := make(map[types.AssetId]assetAdjacency, len(s.adjacency))
	for sourceID, adj := range s.adjacency {
		sourceAsset, ok := s.assetMapping[sourceID]
		if !ok {
			continue
		}
		var fresh assetAdjacency
		for k, e := range adj {
			if !wanted[types.AssetPair{Base: sourceAsset, Quote: e.AssetY}] {
				continue
			}
			if fresh == nil {
				fresh = make(assetAdjacency, len(adj))
			}
			fresh[k] = e
		}
		if fresh != nil {
			adjacency[sourceID] = fresh
		}
	}

	return &Snapshot{assetMapping: s.assetMapping, reverseMapping: s.reverseMapping, adjacency: adjacency}
}
