package api

import (
	"time"

	"arbbot/internal/config"
)

// Provider supplies the service-level state BuildSnapshot needs; satisfied
// by *service.Service.
type Provider interface {
	StateLabel() string
	DroppedDownstream() uint64
}

// GraphStatsProvider supplies the price graph's current size; satisfied by
// *graph.PriceGraph.
type GraphStatsProvider interface {
	Stats() (vertices, edges int)
}

// RiskStatusProvider reports whether a risk manager's circuit breaker is
// tripped; satisfied by *downstream.ThresholdRiskManager. Optional — a nil
// value reports "not tripped" rather than panicking.
type RiskStatusProvider interface {
	IsTripped() bool
}

// BuildSnapshot aggregates live service, graph, and risk state into a
// dashboard snapshot. recent is the ring buffer of the most recently emitted
// opportunities, newest first.
func BuildSnapshot(provider Provider, graphStats GraphStatsProvider, risk RiskStatusProvider, recent []OpportunityView, cfg config.BotConfig) DashboardSnapshot {
	var vertices, edges int
	if graphStats != nil {
		vertices, edges = graphStats.Stats()
	}

	tripped := false
	if risk != nil {
		tripped = risk.IsTripped()
	}

	return DashboardSnapshot{
		Timestamp:         time.Now(),
		State:             provider.StateLabel(),
		GraphAssets:       vertices,
		GraphEdges:        edges,
		DroppedDownstream: provider.DroppedDownstream(),
		RiskTripped:       tripped,
		Opportunities:     recent,
		Config:            NewConfigSummary(cfg),
	}
}
