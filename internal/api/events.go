package api

import "time"

// DashboardEvent wraps every message pushed to connected WebSocket clients.
type DashboardEvent struct {
	Type      string      `json:"type"` // "snapshot" or "opportunity"
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewSnapshotEvent wraps a full snapshot, sent on connect and on request.
func NewSnapshotEvent(snap DashboardSnapshot) DashboardEvent {
	return DashboardEvent{Type: "snapshot", Timestamp: time.Now(), Data: snap}
}

// NewOpportunityEvent wraps a single freshly detected opportunity, pushed as
// soon as the service emits it.
func NewOpportunityEvent(opp OpportunityView) DashboardEvent {
	return DashboardEvent{Type: "opportunity", Timestamp: time.Now(), Data: opp}
}
