// Package downstream defines the three contracts spec.md §6 places outside
// the detector's boundary — RiskManager, Executor, Oracle — and supplies one
// reference implementation of each. The detector never imports this package
// directly; only cmd/arbbot wires them in, so a caller is free to swap in
// its own risk policy, execution path, or price feed without touching
// detection logic.
package downstream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"arbbot/internal/config"
	"arbbot/pkg/types"
)

// RiskManager gates an opportunity before execution (spec.md §6 "assess(opportunity)
// → bool | Error"). Asynchronous by contract: the service fans opportunities
// out to Assess independently of further detection, so a slow risk check
// never stalls the block pipeline.
type RiskManager interface {
	Assess(ctx context.Context, opp types.ArbitrageOpportunity) (bool, error)
}

// lossEvent records one realized loss for the rolling-window circuit
// breaker, mirroring the teacher's priceAnchor: a value plus the time it was
// observed.
type lossEvent struct {
	amount types.Quantity
	at     time.Time
}

// ThresholdRiskManager approves an opportunity when its net profit clears a
// configured minimum and no circuit breaker is tripped. It is adapted from
// risk_manager.rs's DummyRiskManager (net-profit threshold) combined with
// the teacher's Manager (rolling exposure + kill-switch cooldown) — but
// re-based on realized losses from executed trades rather than per-market
// USD exposure, since this domain has no open positions to mark.
type ThresholdRiskManager struct {
	cfg config.RiskConfig
	log *slog.Logger

	mu        sync.Mutex
	losses    []lossEvent
	killUntil time.Time
}

// NewThresholdRiskManager builds a ThresholdRiskManager from the configured
// thresholds.
func NewThresholdRiskManager(cfg config.RiskConfig, log *slog.Logger) *ThresholdRiskManager {
	if log == nil {
		log = slog.Default()
	}
	return &ThresholdRiskManager{cfg: cfg, log: log.With("component", "risk_manager")}
}

// Assess rejects while the circuit breaker is cooling down, then approves
// iff the opportunity's net profit meets the configured minimum
// (risk_manager.rs DummyRiskManager.assess_risk).
func (m *ThresholdRiskManager) Assess(ctx context.Context, opp types.ArbitrageOpportunity) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if !m.killUntil.IsZero() && now.Before(m.killUntil) {
		m.log.Warn("risk assessment REJECTED: circuit breaker cooling down", "until", m.killUntil)
		return false, nil
	}

	threshold := types.QuantityFromFloat(m.cfg.MinNetProfit)
	approved := opp.ExpectedNetProfit.GreaterThan(threshold) || opp.ExpectedNetProfit.Equal(threshold.Decimal)
	if approved {
		m.log.Info("risk assessment APPROVED",
			"net_profit", opp.ExpectedNetProfit.String(),
			"threshold", threshold.String())
	} else {
		m.log.Warn("risk assessment REJECTED: below profit threshold",
			"net_profit", opp.ExpectedNetProfit.String(),
			"threshold", threshold.String())
	}
	return approved, nil
}

// RecordLoss registers a realized loss from an executed trade. If the sum of
// losses within RollingWindow exceeds MaxRollingLoss, the circuit breaker
// trips and Assess rejects every opportunity for CooldownAfterKill
// (internal/risk/manager.go's checkPriceMovement/emitKill pattern, re-based
// on realized loss rather than mid-price movement).
func (m *ThresholdRiskManager) RecordLoss(amount types.Quantity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.losses = append(m.losses, lossEvent{amount: amount, at: now})
	m.pruneLosses(now)

	var total types.Quantity
	for _, l := range m.losses {
		total = total.Add(l.amount)
	}

	limit := types.QuantityFromFloat(m.cfg.MaxRollingLoss)
	if m.cfg.MaxRollingLoss > 0 && total.GreaterThan(limit) {
		m.killUntil = now.Add(m.cfg.CooldownAfterKill)
		m.log.Error("RISK CIRCUIT BREAKER TRIPPED",
			"rolling_loss", total.String(),
			"limit", limit.String(),
			"cooldown_until", m.killUntil)
	}
}

// pruneLosses drops loss events older than RollingWindow. Caller holds m.mu.
func (m *ThresholdRiskManager) pruneLosses(now time.Time) {
	cutoff := now.Add(-m.cfg.RollingWindow)
	kept := m.losses[:0]
	for _, l := range m.losses {
		if l.at.After(cutoff) {
			kept = append(kept, l)
		}
	}
	m.losses = kept
}

// IsTripped reports whether the circuit breaker is currently cooling down.
func (m *ThresholdRiskManager) IsTripped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.killUntil.IsZero() && time.Now().Before(m.killUntil)
}
