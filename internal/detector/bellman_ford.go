package detector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"arbbot/internal/errs"
	"arbbot/internal/graph"
	"arbbot/pkg/types"
)

// predEdge records the edge used to relax into a vertex, and the source
// vertex it was relaxed from, so a cycle can be walked backward.
type predEdge struct {
	from types.AssetId
	edge types.Edge
}

// detectForSize runs Bellman-Ford in log-weight space from one source asset
// for one candidate trade size, over the deterministic vertex/edge ordering
// a Snapshot provides, and returns every negative cycle reachable within
// |V| relaxation rounds (bellman_ford.rs detect_for_size, adapted to run
// from an arbitrary source rather than a single fixed index — see
// DESIGN.md).
func detectForSize(snap *graph.Snapshot, assets []types.AssetId, sourceID types.AssetId, size float64) [][]predEdgeWithTarget {
	const inf = math.Inf(1)

	dist := make(map[types.AssetId]float64, len(assets))
	pred := make(map[types.AssetId]predEdge, len(assets))
	for _, id := range assets {
		dist[id] = inf
	}
	dist[sourceID] = 0

	// Exactly |V| relaxation rounds, no early exit (spec.md §4.F): the
	// algorithm must observe the same number of rounds regardless of
	// convergence so a cycle's negative weight has fully propagated.
	for round := 0; round < len(assets); round++ {
		relaxAll(snap, assets, dist, pred, size)
	}

	// One further round: any vertex still relaxable is on, or reachable
	// from, a negative cycle.
	onCycle := make(map[types.AssetId]bool)
	for _, u := range assets {
		if math.IsInf(dist[u], 1) {
			continue
		}
		for _, e := range snap.Neighbors(u) {
			v, ok := snap.AssetID(e.AssetY)
			if !ok {
				continue
			}
			w, ok := edgeLogWeight(e, size)
			if !ok {
				continue
			}
			if dist[u]+w < dist[v]-1e-12 {
				dist[v] = dist[u] + w
				pred[v] = predEdge{from: u, edge: e}
				onCycle[v] = true
			}
		}
	}

	var cycles [][]predEdgeWithTarget
	seen := make(map[types.AssetId]bool)
	for v := range onCycle {
		if seen[v] {
			continue
		}
		cycle, ok := reconstructCycle(v, pred, len(assets))
		if !ok {
			continue
		}
		for _, pe := range cycle {
			seen[pe.target] = true
		}
		cycles = append(cycles, cycle)
	}
	return cycles
}

func relaxAll(snap *graph.Snapshot, assets []types.AssetId, dist map[types.AssetId]float64, pred map[types.AssetId]predEdge, size float64) {
	for _, u := range assets {
		if math.IsInf(dist[u], 1) {
			continue
		}
		for _, e := range snap.Neighbors(u) {
			v, ok := snap.AssetID(e.AssetY)
			if !ok {
				continue
			}
			w, ok := edgeLogWeight(e, size)
			if !ok {
				continue
			}
			if dist[u]+w < dist[v] {
				dist[v] = dist[u] + w
				pred[v] = predEdge{from: u, edge: e}
			}
		}
	}
}

// edgeLogWeight is bellman_ford.rs's calculate_log_weight(rate) = -ln(rate),
// where rate is the marginal exchange rate an edge offers at the candidate
// trade size. A quote rejection (insufficient liquidity, wrong fee config)
// means the edge is untraversable at this size, signalled by ok=false so the
// caller treats it as absent rather than infinitely cheap.
func edgeLogWeight(e types.Edge, size float64) (float64, bool) {
	amountIn := types.QuantityFromFloat(size)
	out, ok := graph.Quote(e, amountIn, e.AssetX)
	if !ok {
		return 0, false
	}
	outF, _ := out.Float64()
	if outF <= 0 || size <= 0 {
		return 0, false
	}
	rate := outF / size
	if rate <= 0 {
		return 0, false
	}
	return -math.Log(rate), true
}

// predEdgeWithTarget pairs a traversed edge with the vertex it lands on, so
// a reconstructed cycle can be read forward in path order.
type predEdgeWithTarget struct {
	target types.AssetId
	edge   types.Edge
}

// reconstructCycle walks the predecessor chain backward from start, up to
// |V| steps, until a vertex repeats — that repeat closes the cycle
// (bellman_ford.rs reconstruct_cycle). The returned slice is in forward
// path order (first hop first).
func reconstructCycle(start types.AssetId, pred map[types.AssetId]predEdge, maxSteps int) ([]predEdgeWithTarget, bool) {
	visited := make(map[types.AssetId]int)
	order := make([]predEdgeWithTarget, 0, maxSteps)
	cur := start

	for step := 0; step <= maxSteps; step++ {
		if idx, ok := visited[cur]; ok {
			cycle := order[idx:]
			forward := make([]predEdgeWithTarget, len(cycle))
			for i, pe := range cycle {
				forward[len(cycle)-1-i] = pe
			}
			return forward, true
		}
		p, ok := pred[cur]
		if !ok {
			return nil, false
		}
		visited[cur] = len(order)
		order = append(order, predEdgeWithTarget{target: cur, edge: p.edge})
		cur = p.from
	}
	return nil, false
}

// evaluateCycle re-simulates a reconstructed cycle with real decimal
// quoting at the candidate size, gates it against a slippage cap computed
// relative to the near-zero reference rate, discards it if the gross
// profit ratio falls below minGrossProfitPct, and returns a priced
// opportunity (bellman_ford.rs evaluate_cycle).
func evaluateCycle(sizer *TradeSizer, cycle []predEdgeWithTarget, size float64, strategyName string, blockNumber uint64, minGrossProfitPct float64) (types.ArbitrageOpportunity, error) {
	if len(cycle) == 0 {
		return types.ArbitrageOpportunity{}, errs.ErrCycleNotClosed
	}

	finalAtSize, ok := simulatePath(cycle, types.QuantityFromFloat(size))
	if !ok {
		return types.ArbitrageOpportunity{}, fmt.Errorf("simulate at size %v: %w", size, errs.ErrQuoteRejected)
	}
	finalAtSizeF, _ := finalAtSize.Float64()

	probeSize := sizer.MinProbeSize()
	finalAtProbe, ok := simulatePath(cycle, types.QuantityFromFloat(probeSize))
	if !ok {
		return types.ArbitrageOpportunity{}, fmt.Errorf("simulate at probe size: %w", errs.ErrQuoteRejected)
	}
	finalAtProbeF, _ := finalAtProbe.Float64()

	baseRate := sizer.CalculateRate(probeSize, finalAtProbeF)
	currentRate := sizer.CalculateRate(size, finalAtSizeF)
	slippage := sizer.CalculateSlippage(baseRate, currentRate)
	if slippage > sizer.SlippageCap() {
		return types.ArbitrageOpportunity{}, fmt.Errorf("slippage %.6f exceeds cap %.6f: %w", slippage, sizer.SlippageCap(), errs.ErrSlippageExceeded)
	}

	inputAmount := types.QuantityFromFloat(size)
	profit := finalAtSize.Sub(inputAmount)
	if !profit.IsPositive() {
		return types.ArbitrageOpportunity{}, fmt.Errorf("non-positive profit: %w", errs.ErrQuoteRejected)
	}
	grossF, _ := profit.Float64()
	if size > 0 && grossF/size < minGrossProfitPct {
		return types.ArbitrageOpportunity{}, fmt.Errorf("gross ratio %.6f below min %.6f: %w", grossF/size, minGrossProfitPct, errs.ErrQuoteRejected)
	}

	path := make([]types.SerializableEdge, len(cycle))
	for i, pe := range cycle {
		path[i] = pe.edge.ToSerializable()
	}

	return types.ArbitrageOpportunity{
		Strategy:            strategyName,
		Path:                path,
		InputAmount:         inputAmount,
		ExpectedGrossProfit: profit,
		BlockNumber:         blockNumber,
		Timestamp:           time.Now(),
	}, nil
}

// simulatePath propagates an exact decimal amount through each hop of the
// cycle in order and returns the final amount, or false if any hop rejects
// the quote (e.g. liquidity exhausted at this size).
func simulatePath(cycle []predEdgeWithTarget, amount types.Quantity) (types.Quantity, bool) {
	current := amount
	for _, pe := range cycle {
		out, ok := graph.Quote(pe.edge, current, pe.edge.AssetX)
		if !ok {
			return types.Zero, false
		}
		current = out
	}
	return current, true
}

// DetectConfig bundles the tunables detect needs beyond the snapshot.
type DetectConfig struct {
	StrategyName      string
	BlockNumber       uint64
	MinGrossProfitPct float64
	MinNetProfit      types.Quantity
}

// detectFromSource runs the per-size Bellman-Ford sweep seeded at one source
// asset: every candidate trade size derived from that asset's available
// liquidity is searched for a negative-weight cycle, re-simulated,
// slippage-gated, and gas-priced.
func detectFromSource(ctx context.Context, snap *graph.Snapshot, assets []types.AssetId, sourceID types.AssetId, sizer *TradeSizer, gasCalc *GasCalculator, cfg DetectConfig) []types.ArbitrageOpportunity {
	sourceAsset, ok := snap.Asset(sourceID)
	if !ok {
		return nil
	}

	var opportunities []types.ArbitrageOpportunity
	maxSize := sizer.CalculateMaxSize(snap, sourceAsset)
	for _, size := range sizer.GenerateTradeSizes(maxSize) {
		for _, cycle := range detectForSize(snap, assets, sourceID, size) {
			opp, err := evaluateCycle(sizer, cycle, size, cfg.StrategyName, cfg.BlockNumber, cfg.MinGrossProfitPct)
			if err != nil {
				continue
			}
			priced, err := gasCalc.EvaluateCycleWithGas(ctx, opp)
			if err != nil {
				continue
			}
			opportunities = append(opportunities, priced)
		}
	}
	return opportunities
}

// Detect runs the per-source, per-size Bellman-Ford sweep of spec.md §4.F
// over the entire snapshot: every source asset is searched concurrently
// (each reads the same immutable Snapshot, so no coordination is needed),
// candidate cycles are re-simulated and slippage-gated, priced for gas, and
// the net-profitable survivors are returned sorted by net profit descending
// (bellman_ford.rs detect_arbitrage, fanned out per source per spec.md §4.F
// via sourcegraph/conc/pool; see DESIGN.md).
func Detect(ctx context.Context, snap *graph.Snapshot, sizer *TradeSizer, gasCalc *GasCalculator, cfg DetectConfig) ([]types.ArbitrageOpportunity, error) {
	assets := snap.Assets()
	if len(assets) == 0 {
		return nil, nil
	}

	p := pool.NewWithResults[[]types.ArbitrageOpportunity]().WithContext(ctx)
	for _, sourceID := range assets {
		sourceID := sourceID
		p.Go(func(ctx context.Context) ([]types.ArbitrageOpportunity, error) {
			return detectFromSource(ctx, snap, assets, sourceID, sizer, gasCalc, cfg), nil
		})
	}
	perSource, err := p.Wait()
	if err != nil {
		return nil, fmt.Errorf("per-source detection: %w", err)
	}

	var opportunities []types.ArbitrageOpportunity
	for _, found := range perSource {
		opportunities = append(opportunities, found...)
	}

	opportunities = FilterProfitableCycles(opportunities, cfg.MinNetProfit)
	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].ExpectedNetProfit.GreaterThan(opportunities[j].ExpectedNetProfit)
	})
	return opportunities, nil
}
