package graph

import (
	"context"
	"log/slog"
	"time"
)

// Janitor periodically prunes stale edges from a PriceGraph (spec.md §12.6),
// repurposing internal/market/scanner.go (teacher)'s ticker-driven polling
// loop for a maintenance task instead of a data-fetch one.
type Janitor struct {
	graph    *PriceGraph
	ttl      time.Duration
	interval time.Duration
	log      *slog.Logger
}

// NewJanitor builds a Janitor that prunes edges older than ttl, checking
// every interval.
func NewJanitor(g *PriceGraph, ttl, interval time.Duration, log *slog.Logger) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	return &Janitor{graph: g, ttl: ttl, interval: interval, log: log.With("component", "graph_janitor")}
}

// Run blocks, pruning on every tick, until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.graph.PruneStale(j.ttl)
			j.log.Debug("pruned stale edges", "ttl", j.ttl)
		}
	}
}
