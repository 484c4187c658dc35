// Package service drives the block-synchronous engine of spec.md §4.G: it
// consumes the block-aligned DetectorMessage stream, mutates the price
// graph, fans registered strategies out at BlockEnd, deduplicates their
// merged output, and dispatches survivors to the downstream risk/executor
// contracts.
//
// Lifecycle mirrors the teacher's internal/engine package: New() → Start(ctx,
// messages) → [runs until ctx cancelled or the message channel closes] →
// Stop().
package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"arbbot/internal/detector"
	"arbbot/internal/downstream"
	"arbbot/internal/graph"
	"arbbot/internal/translator"
	"arbbot/pkg/types"
)

// State is the per-block state machine of spec.md §4.G: Idle ->(BlockStart)->
// Collecting ->(BlockEnd)-> Detecting ->(done)-> Idle.
type State int

const (
	Idle State = iota
	Collecting
	Detecting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	case Detecting:
		return "detecting"
	default:
		return "unknown"
	}
}

// Config tunes the service's downstream dispatch.
type Config struct {
	DownstreamQueueSize int           // buffered opportunities awaiting risk assessment
	DownstreamWorkers   int           // concurrent Assess/Execute workers
	AssessTimeout       time.Duration // per-opportunity context deadline for Assess+Execute
}

// DefaultConfig returns sane defaults matching the teacher's channel-buffer
// conventions (tradeCh/orderCh sized 64 in internal/engine).
func DefaultConfig() Config {
	return Config{DownstreamQueueSize: 256, DownstreamWorkers: 4, AssessTimeout: 5 * time.Second}
}

// Service is the block-synchronous orchestrator of Component G. It owns the
// PriceGraph (the single shared mutable resource, per spec.md §5) and the
// registered strategy set.
type Service struct {
	cfg        Config
	graph      *graph.PriceGraph
	translator *translator.Translator
	strategies []detector.Strategy
	dedup      *detector.Deduplicator
	risk       downstream.RiskManager
	executor   downstream.Executor
	log        *slog.Logger

	state atomic.Int32 // State, read/written via loadState/storeState

	opportunities     chan types.ArbitrageOpportunity // fan-out to dashboard/other observers
	downstreamCh      chan types.ArbitrageOpportunity
	droppedDownstream atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a Service. strategies must be non-empty for detection to do
// anything; dedup, risk, and executor are required collaborators.
func New(cfg Config, g *graph.PriceGraph, tr *translator.Translator, strategies []detector.Strategy, dedup *detector.Deduplicator, risk downstream.RiskManager, executor downstream.Executor, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.DownstreamQueueSize == 0 {
		cfg.DownstreamQueueSize = 256
	}
	if cfg.DownstreamWorkers == 0 {
		cfg.DownstreamWorkers = 4
	}
	if cfg.AssessTimeout == 0 {
		cfg.AssessTimeout = 5 * time.Second
	}

	s := &Service{
		cfg:          cfg,
		graph:        g,
		translator:   tr,
		strategies:   strategies,
		dedup:        dedup,
		risk:         risk,
		executor:     executor,
		log:          log.With("component", "service"),
		opportunities: make(chan types.ArbitrageOpportunity, 256),
		downstreamCh: make(chan types.ArbitrageOpportunity, cfg.DownstreamQueueSize),
	}
	s.state.Store(int32(Idle))
	return s
}

// State reports the current block-processing state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// StateLabel reports the current block-processing state as a string, for
// consumers (the dashboard) that want a label rather than the State enum.
func (s *Service) StateLabel() string {
	return s.State().String()
}

// Opportunities returns the channel every detected, deduplicated opportunity
// is published to, regardless of risk/executor outcome — for the dashboard
// or any other observer.
func (s *Service) Opportunities() <-chan types.ArbitrageOpportunity {
	return s.opportunities
}

// DroppedDownstream returns how many opportunities were dropped because the
// downstream queue was full (spec.md §7 "Downstream send: bounded queue
// full -> drop with a counter increment").
func (s *Service) DroppedDownstream() uint64 {
	return s.droppedDownstream.Load()
}

// Start launches the consumption loop and the downstream worker pool as
// background goroutines, reading from messages until ctx is cancelled or the
// channel is closed.
func (s *Service) Start(ctx context.Context, messages <-chan types.DetectorMessage) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	for i := 0; i < s.cfg.DownstreamWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runDownstreamWorker()
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(messages)
	}()
}

// Stop cancels the service's context and waits for every goroutine it
// started to exit.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// run is the single-threaded per-block state machine (spec.md §4.G). It
// never processes BlockEnd for block N+1 until detection for block N has
// returned, since detectBlock runs synchronously here.
func (s *Service) run(messages <-chan types.DetectorMessage) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			s.handleMessage(msg)
		}
	}
}

func (s *Service) handleMessage(msg types.DetectorMessage) {
	switch msg.Kind {
	case types.BlockStartKind:
		if s.State() == Collecting {
			s.log.Warn("BlockStart received without a preceding BlockEnd; resetting to collecting", "block", msg.BlockNumber)
		}
		s.state.Store(int32(Collecting))

	case types.MarketUpdateKind:
		if s.State() != Collecting {
			s.log.Warn("MarketUpdate received outside a collecting block; dropping", "state", s.State())
			return
		}
		edge, err := s.translator.Transform(msg.Update)
		if err != nil {
			s.log.Debug("dropping market update that failed to translate", "pool", msg.Update.PoolAddress, "error", err)
			return
		}
		s.graph.UpsertPool(edge)

	case types.BlockEndKind:
		if s.State() != Collecting {
			s.log.Warn("BlockEnd received outside a collecting block; ignoring", "state", s.State())
			return
		}
		s.state.Store(int32(Detecting))
		s.detectBlock(msg.BlockNumber)
		s.state.Store(int32(Idle))
	}
}

// detectBlock fans every registered strategy out over a single snapshot
// (spec.md §4.G "strategies run in parallel"), merges their opportunities,
// deduplicates, and dispatches each survivor to the dashboard channel and
// the bounded downstream queue.
func (s *Service) detectBlock(blockNumber uint64) {
	if len(s.strategies) == 0 {
		return
	}
	snap := s.graph.Snapshot()

	g, ctx := errgroup.WithContext(s.ctx)
	results := make([][]types.ArbitrageOpportunity, len(s.strategies))
	for i, strat := range s.strategies {
		i, strat := i, strat
		g.Go(func() error {
			view := snap
			if req := strat.RequiredView(); req.Kind == types.GraphViewPairFiltered {
				view = snap.Filtered(req.Pairs)
			}
			opps, err := strat.Detect(ctx, view, blockNumber)
			if err != nil {
				s.log.Warn("strategy detection failed", "strategy", strat.Name(), "error", err)
				return nil
			}
			results[i] = opps
			return nil
		})
	}
	// errgroup.Wait's error is always nil here: every strategy failure is
	// logged and swallowed inside its goroutine so one bad strategy never
	// halts the others or the block pipeline (spec.md §7).
	_ = g.Wait()

	var merged []types.ArbitrageOpportunity
	for _, opps := range results {
		merged = append(merged, opps...)
	}
	merged = s.dedup.Filter(merged)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].ExpectedNetProfit.GreaterThan(merged[j].ExpectedNetProfit)
	})

	for _, opp := range merged {
		s.emit(opp)
		s.dispatchDownstream(opp)
	}
}

// emit publishes an opportunity to the dashboard channel, dropping silently
// if no one is keeping up (internal/engine.go's emitDashboardEvent pattern).
func (s *Service) emit(opp types.ArbitrageOpportunity) {
	select {
	case s.opportunities <- opp:
	default:
	}
}

// dispatchDownstream enqueues an opportunity for risk assessment, dropping
// it and incrementing the counter if the bounded queue is full rather than
// blocking block processing (spec.md §7).
func (s *Service) dispatchDownstream(opp types.ArbitrageOpportunity) {
	select {
	case s.downstreamCh <- opp:
	default:
		s.droppedDownstream.Add(1)
		s.log.Warn("downstream queue full, dropping opportunity", "strategy", opp.Strategy)
	}
}

// runDownstreamWorker assesses and, if approved, executes opportunities
// pulled off the bounded downstream queue. Asynchronous by design (spec.md
// §6 "Risk manager ... may be slow"): a slow Assess call blocks only this
// worker, never block detection.
func (s *Service) runDownstreamWorker() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case opp, ok := <-s.downstreamCh:
			if !ok {
				return
			}
			s.processDownstream(opp)
		}
	}
}

func (s *Service) processDownstream(opp types.ArbitrageOpportunity) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.AssessTimeout)
	defer cancel()

	approved, err := s.risk.Assess(ctx, opp)
	if err != nil {
		s.log.Warn("risk assessment error", "strategy", opp.Strategy, "error", err)
		return
	}
	if !approved {
		return
	}
	if err := s.executor.Execute(ctx, opp); err != nil {
		s.log.Warn("execution error", "strategy", opp.Strategy, "error", err)
	}
}
