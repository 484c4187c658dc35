package api

import (
	"fmt"
	"time"

	"arbbot/internal/config"
	"arbbot/pkg/types"
)

// DashboardSnapshot is the full point-in-time view served from /api/snapshot
// and sent as the first message to every new WebSocket client (spec.md
// §12.5's opportunity-stream dashboard).
type DashboardSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state"`

	GraphAssets int `json:"graph_assets"`
	GraphEdges  int `json:"graph_edges"`

	DroppedDownstream uint64 `json:"dropped_downstream"`
	RiskTripped       bool   `json:"risk_tripped"`

	Opportunities []OpportunityView `json:"opportunities"`
	Config        ConfigSummary     `json:"config"`
}

// OpportunityView is the JSON-friendly projection of
// types.ArbitrageOpportunity: Quantity fields render as decimal strings so
// the dashboard never loses precision parsing a float.
type OpportunityView struct {
	ID          string    `json:"id"`
	Strategy    string    `json:"strategy"`
	Path        []string  `json:"path"`
	InputAmount string    `json:"input_amount"`
	GrossProfit string    `json:"gross_profit"`
	GasEstimate string    `json:"gas_estimate"`
	NetProfit   string    `json:"net_profit"`
	BlockNumber uint64    `json:"block_number"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewOpportunityView projects a detected opportunity into its wire form.
func NewOpportunityView(opp types.ArbitrageOpportunity) OpportunityView {
	path := make([]string, 0, len(opp.Path))
	for _, edge := range opp.Path {
		path = append(path, string(edge.AssetX)+"->"+string(edge.AssetY)+"@"+string(edge.Exchange))
	}
	return OpportunityView{
		ID:          fmt.Sprintf("%x", opp.ID[:]),
		Strategy:    opp.Strategy,
		Path:        path,
		InputAmount: opp.InputAmount.String(),
		GrossProfit: opp.ExpectedGrossProfit.String(),
		GasEstimate: opp.GasEstimate.String(),
		NetProfit:   opp.ExpectedNetProfit.String(),
		BlockNumber: opp.BlockNumber,
		Timestamp:   opp.Timestamp,
	}
}

// ConfigSummary mirrors the operationally relevant slice of BotConfig shown
// on the dashboard.
type ConfigSummary struct {
	DexCount          int     `json:"dex_count"`
	MinNetProfit      float64 `json:"min_net_profit"`
	MaxRollingLoss    float64 `json:"max_rolling_loss"`
	RollingWindow     string  `json:"rolling_window"`
	CooldownAfterKill string  `json:"cooldown_after_kill"`
}

// NewConfigSummary builds a ConfigSummary from the loaded bot config.
func NewConfigSummary(cfg config.BotConfig) ConfigSummary {
	return ConfigSummary{
		DexCount:          len(cfg.Dexes),
		MinNetProfit:      cfg.Risk.MinNetProfit,
		MaxRollingLoss:    cfg.Risk.MaxRollingLoss,
		RollingWindow:     cfg.Risk.RollingWindow.String(),
		CooldownAfterKill: cfg.Risk.CooldownAfterKill.String(),
	}
}
