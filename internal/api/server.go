package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"arbbot/internal/config"
	"arbbot/pkg/types"
)

// OpportunityStreamer supplies the live opportunity feed the server
// broadcasts to WebSocket clients and folds into the recent-opportunities
// ring buffer; satisfied by *service.Service.
type OpportunityStreamer interface {
	Opportunities() <-chan types.ArbitrageOpportunity
}

// ServiceProvider is everything the dashboard needs from the running
// service.
type ServiceProvider interface {
	Provider
	OpportunityStreamer
}

// Server runs the HTTP/WebSocket API for the opportunity-stream dashboard
// (spec.md §12.5).
type Server struct {
	cfg        config.DashboardConfig
	provider   ServiceProvider
	graphStats GraphStatsProvider
	risk       RiskStatusProvider
	recent     *recentOpportunities
	hub        *Hub
	handlers   *Handlers
	server     *http.Server
	logger     *slog.Logger
}

// NewServer creates a new API server. graphStats and risk may be nil, in
// which case the dashboard reports zero graph size and an untripped breaker.
func NewServer(
	cfg config.DashboardConfig,
	provider ServiceProvider,
	graphStats GraphStatsProvider,
	risk RiskStatusProvider,
	fullCfg config.BotConfig,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	recent := newRecentOpportunities(50)
	hub := NewHub(logger, func() DashboardSnapshot {
		return BuildSnapshot(provider, graphStats, risk, recent.list(), fullCfg)
	})
	handlers := NewHandlers(provider, graphStats, risk, recent, fullCfg, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/snapshot", handlers.HandleSnapshot)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)
	mux.Handle("/", http.FileServer(http.Dir("web")))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:        cfg,
		provider:   provider,
		graphStats: graphStats,
		risk:       risk,
		recent:     recent,
		hub:        hub,
		handlers:   handlers,
		server:     server,
		logger:     logger.With("component", "api-server"),
	}
}

// Start starts the API server, the WebSocket hub, and the opportunity event
// consumer. Blocks until the server stops.
func (s *Server) Start() error {
	go s.hub.Run()
	go s.consumeOpportunities()

	s.logger.Info("dashboard server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info("stopping dashboard server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// consumeOpportunities reads every opportunity the service emits, folds it
// into the recent-opportunities ring buffer, and broadcasts it to connected
// clients.
func (s *Server) consumeOpportunities() {
	for opp := range s.provider.Opportunities() {
		view := NewOpportunityView(opp)
		s.recent.add(view)
		s.hub.BroadcastOpportunity(view)
	}
}
