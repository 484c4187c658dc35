package downstream

import (
	"context"
	"testing"
	"time"

	"arbbot/internal/config"
	"arbbot/pkg/types"
)

func q(v string) types.Quantity {
	quantity, err := types.ParseQuantity(v)
	if err != nil {
		panic(err)
	}
	return quantity
}

func opportunityWithNetProfit(netProfit types.Quantity) types.ArbitrageOpportunity {
	return types.ArbitrageOpportunity{Strategy: "n_cycle_arbitrage", ExpectedNetProfit: netProfit}
}

func TestThresholdRiskManagerApprovesAboveThreshold(t *testing.T) {
	t.Parallel()
	m := NewThresholdRiskManager(config.RiskConfig{MinNetProfit: 1}, nil)
	approved, err := m.Assess(context.Background(), opportunityWithNetProfit(q("5")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approved {
		t.Fatal("expected approval for net profit above threshold")
	}
}

func TestThresholdRiskManagerRejectsBelowThreshold(t *testing.T) {
	t.Parallel()
	m := NewThresholdRiskManager(config.RiskConfig{MinNetProfit: 1}, nil)
	approved, err := m.Assess(context.Background(), opportunityWithNetProfit(q("0.5")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approved {
		t.Fatal("expected rejection for net profit below threshold")
	}
}

func TestThresholdRiskManagerTripsCircuitBreakerOnRollingLoss(t *testing.T) {
	t.Parallel()
	m := NewThresholdRiskManager(config.RiskConfig{
		MinNetProfit:      0,
		MaxRollingLoss:    10,
		RollingWindow:     time.Minute,
		CooldownAfterKill: time.Hour,
	}, nil)

	m.RecordLoss(q("6"))
	if m.IsTripped() {
		t.Fatal("circuit breaker should not trip below the rolling-loss limit")
	}

	m.RecordLoss(q("5"))
	if !m.IsTripped() {
		t.Fatal("expected circuit breaker to trip once rolling loss exceeds the limit")
	}

	approved, err := m.Assess(context.Background(), opportunityWithNetProfit(q("1000")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approved {
		t.Fatal("expected every opportunity to be rejected while the circuit breaker cools down")
	}
}

func TestThresholdRiskManagerPrunesLossesOutsideWindow(t *testing.T) {
	t.Parallel()
	m := NewThresholdRiskManager(config.RiskConfig{
		MaxRollingLoss:    10,
		RollingWindow:     time.Millisecond,
		CooldownAfterKill: time.Hour,
	}, nil)

	m.RecordLoss(q("6"))
	time.Sleep(5 * time.Millisecond)
	m.RecordLoss(q("6"))

	if m.IsTripped() {
		t.Fatal("expected the first loss to have aged out of the rolling window")
	}
}
