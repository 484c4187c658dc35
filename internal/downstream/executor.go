package downstream

import (
	"context"
	"log/slog"

	"arbbot/pkg/types"
)

// Executor submits an approved opportunity for execution (spec.md §6
// "execute(opportunity) → () | Error"). Invoked only after RiskManager.Assess
// has returned true.
type Executor interface {
	Execute(ctx context.Context, opp types.ArbitrageOpportunity) error
}

// NoopExecutor logs every opportunity it receives instead of submitting a
// transaction. It is the default wired in cmd/arbbot/main.go, matching
// spec.md's "no execution" non-goal: actual on-chain submission is outside
// this module's scope, but the contract still needs a concrete value to
// wire the pipeline end to end.
type NoopExecutor struct {
	log *slog.Logger
}

// NewNoopExecutor builds a logging-only Executor.
func NewNoopExecutor(log *slog.Logger) *NoopExecutor {
	if log == nil {
		log = slog.Default()
	}
	return &NoopExecutor{log: log.With("component", "executor")}
}

// Execute logs the opportunity it would have submitted and returns nil.
func (e *NoopExecutor) Execute(ctx context.Context, opp types.ArbitrageOpportunity) error {
	e.log.Info("execute (noop)",
		"strategy", opp.Strategy,
		"input_amount", opp.InputAmount.String(),
		"net_profit", opp.ExpectedNetProfit.String(),
		"hops", len(opp.Path),
		"block", opp.BlockNumber,
	)
	return nil
}
