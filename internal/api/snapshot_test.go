package api

import (
	"testing"

	"arbbot/internal/config"
)

type stubProvider struct {
	state   string
	dropped uint64
}

func (p stubProvider) StateLabel() string        { return p.state }
func (p stubProvider) DroppedDownstream() uint64 { return p.dropped }

type stubGraphStats struct{ vertices, edges int }

func (s stubGraphStats) Stats() (int, int) { return s.vertices, s.edges }

type stubRiskStatus struct{ tripped bool }

func (s stubRiskStatus) IsTripped() bool { return s.tripped }

func TestBuildSnapshotAggregatesProviderAndGraphStats(t *testing.T) {
	t.Parallel()
	snap := BuildSnapshot(
		stubProvider{state: "collecting", dropped: 3},
		stubGraphStats{vertices: 10, edges: 42},
		stubRiskStatus{tripped: true},
		nil,
		config.BotConfig{},
	)

	if snap.State != "collecting" {
		t.Errorf("State = %q, want collecting", snap.State)
	}
	if snap.GraphAssets != 10 || snap.GraphEdges != 42 {
		t.Errorf("graph stats = (%d, %d), want (10, 42)", snap.GraphAssets, snap.GraphEdges)
	}
	if snap.DroppedDownstream != 3 {
		t.Errorf("DroppedDownstream = %d, want 3", snap.DroppedDownstream)
	}
	if !snap.RiskTripped {
		t.Error("expected RiskTripped = true")
	}
}

func TestBuildSnapshotToleratesNilGraphStatsAndRisk(t *testing.T) {
	t.Parallel()
	snap := BuildSnapshot(stubProvider{state: "idle"}, nil, nil, nil, config.BotConfig{})
	if snap.GraphAssets != 0 || snap.GraphEdges != 0 {
		t.Errorf("expected zero graph stats without a provider, got (%d, %d)", snap.GraphAssets, snap.GraphEdges)
	}
	if snap.RiskTripped {
		t.Error("expected RiskTripped = false without a risk provider")
	}
}
