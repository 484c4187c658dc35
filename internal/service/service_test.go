package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"arbbot/internal/detector"
	"arbbot/internal/graph"
	"arbbot/internal/translator"
	"arbbot/pkg/types"
)

type stubStrategy struct {
	name string
	opp  types.ArbitrageOpportunity
	emit bool
	err  error
}

func (s *stubStrategy) Name() string                  { return s.name }
func (s *stubStrategy) RequiredView() types.GraphView { return types.GraphView{Kind: types.GraphViewAll} }
func (s *stubStrategy) Detect(ctx context.Context, snap *graph.Snapshot, blockNumber uint64) ([]types.ArbitrageOpportunity, error) {
	if s.err != nil {
		return nil, s.err
	}
	if !s.emit {
		return nil, nil
	}
	opp := s.opp
	opp.BlockNumber = blockNumber
	return []types.ArbitrageOpportunity{opp}, nil
}

type stubRiskManager struct {
	mu       sync.Mutex
	approve  bool
	assessed []types.ArbitrageOpportunity
}

func (r *stubRiskManager) Assess(ctx context.Context, opp types.ArbitrageOpportunity) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assessed = append(r.assessed, opp)
	return r.approve, nil
}

func (r *stubRiskManager) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.assessed)
}

type stubExecutor struct {
	mu       sync.Mutex
	executed []types.ArbitrageOpportunity
}

func (e *stubExecutor) Execute(ctx context.Context, opp types.ArbitrageOpportunity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, opp)
	return nil
}

func (e *stubExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.executed)
}

func testOpportunity() types.ArbitrageOpportunity {
	return types.ArbitrageOpportunity{
		Strategy: "stub",
		Path: []types.SerializableEdge{
			{AssetX: "USDC", AssetY: "APT", Exchange: "hyperion", PoolAddress: "0x1"},
			{AssetX: "APT", AssetY: "USDC", Exchange: "thala", PoolAddress: "0x2"},
		},
		InputAmount:       types.QuantityFromFloat(100),
		ExpectedNetProfit: types.QuantityFromFloat(5),
	}
}

func newTestService(strategies []detector.Strategy, risk *stubRiskManager, exec *stubExecutor) *Service {
	g := graph.New()
	tr := translator.New(nil, []string{"hyperion", "thala"})
	dedup := detector.NewDeduplicator(time.Minute)
	return New(DefaultConfig(), g, tr, strategies, dedup, risk, exec, nil)
}

func TestServiceDetectsAndEmitsOnBlockEnd(t *testing.T) {
	t.Parallel()
	strat := &stubStrategy{name: "stub", opp: testOpportunity(), emit: true}
	risk := &stubRiskManager{approve: true}
	exec := &stubExecutor{}
	svc := newTestService([]detector.Strategy{strat}, risk, exec)

	messages := make(chan types.DetectorMessage, 8)
	svc.Start(context.Background(), messages)
	defer svc.Stop()

	messages <- types.NewBlockStart(1, time.Now())
	messages <- types.NewBlockEnd(1)

	select {
	case opp := <-svc.Opportunities():
		if opp.BlockNumber != 1 {
			t.Fatalf("expected block number 1, got %d", opp.BlockNumber)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an opportunity to be emitted")
	}

	deadline := time.Now().Add(time.Second)
	for exec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if risk.count() != 1 {
		t.Fatalf("expected exactly 1 risk assessment, got %d", risk.count())
	}
	if exec.count() != 1 {
		t.Fatalf("expected exactly 1 execution, got %d", exec.count())
	}
}

func TestServiceDoesNotExecuteWhenRiskRejects(t *testing.T) {
	t.Parallel()
	strat := &stubStrategy{name: "stub", opp: testOpportunity(), emit: true}
	risk := &stubRiskManager{approve: false}
	exec := &stubExecutor{}
	svc := newTestService([]detector.Strategy{strat}, risk, exec)

	messages := make(chan types.DetectorMessage, 8)
	svc.Start(context.Background(), messages)
	defer svc.Stop()

	messages <- types.NewBlockStart(1, time.Now())
	messages <- types.NewBlockEnd(1)

	<-svc.Opportunities()
	time.Sleep(50 * time.Millisecond)
	if exec.count() != 0 {
		t.Fatalf("expected no execution when risk rejects, got %d", exec.count())
	}
}

func TestServiceDedupsAcrossBlocks(t *testing.T) {
	t.Parallel()
	strat := &stubStrategy{name: "stub", opp: testOpportunity(), emit: true}
	risk := &stubRiskManager{approve: true}
	exec := &stubExecutor{}
	svc := newTestService([]detector.Strategy{strat}, risk, exec)

	messages := make(chan types.DetectorMessage, 8)
	svc.Start(context.Background(), messages)
	defer svc.Stop()

	messages <- types.NewBlockStart(1, time.Now())
	messages <- types.NewBlockEnd(1)
	<-svc.Opportunities()

	messages <- types.NewBlockStart(2, time.Now())
	messages <- types.NewBlockEnd(2)

	select {
	case <-svc.Opportunities():
		t.Fatal("expected the repeated opportunity to be suppressed by dedup")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestServiceIgnoresMarketUpdateOutsideCollectingBlock(t *testing.T) {
	t.Parallel()
	svc := newTestService(nil, &stubRiskManager{}, &stubExecutor{})

	messages := make(chan types.DetectorMessage, 8)
	svc.Start(context.Background(), messages)
	defer svc.Stop()

	messages <- types.NewMarketUpdateMessage(types.MarketUpdate{PoolAddress: "0x1", DexName: "hyperion"})
	time.Sleep(20 * time.Millisecond)
	if got := svc.State(); got != Idle {
		t.Fatalf("expected state to remain idle, got %v", got)
	}
}

func TestServiceResetsToCollectingOnUnexpectedBlockStart(t *testing.T) {
	t.Parallel()
	svc := newTestService(nil, &stubRiskManager{}, &stubExecutor{})

	messages := make(chan types.DetectorMessage, 8)
	svc.Start(context.Background(), messages)
	defer svc.Stop()

	messages <- types.NewBlockStart(1, time.Now())
	time.Sleep(10 * time.Millisecond)
	messages <- types.NewBlockStart(2, time.Now())
	time.Sleep(10 * time.Millisecond)

	if got := svc.State(); got != Collecting {
		t.Fatalf("expected state to remain collecting after the unexpected BlockStart, got %v", got)
	}
}
