package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solboard/service/config"
	"github.com/brojonat/solboard/service/db"
	"github.com/brojonat/solboard/service/lookup"
	"github.com/brojonat/solboard/service/metrics"
	"github.com/brojonat/solboard/service/ranking"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is reported by GET /version. Set at build time with -ldflags.
var Version = "dev"

// sessionPruneInterval is how often idle lookup sessions are swept.
const sessionPruneInterval = time.Minute

// Server represents the HTTP server for the explorer and the leaderboard.
type Server struct {
	addr         string
	cfg          *config.Config
	history      lookup.Fetcher
	sessions     *lookup.Sessions
	board        *ranking.Board
	store        *db.Store
	ssePublisher *SSEPublisher
	renderer     *TemplateRenderer
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
	stopPrune    context.CancelFunc
}

// New creates a new HTTP server with the given dependencies.
// The store is optional - if nil, the lookup audit endpoint won't be available.
// The ssePublisher is optional - if nil, SSE endpoints won't be available.
// The metrics is optional - if nil, metrics endpoints won't be available.
func New(addr string, cfg *config.Config, history lookup.Fetcher, sessions *lookup.Sessions, board *ranking.Board, store *db.Store, ssePublisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:         addr,
		cfg:          cfg,
		history:      history,
		sessions:     sessions,
		board:        board,
		store:        store,
		ssePublisher: ssePublisher,
		metrics:      m,
		logger:       logger,
	}
}

// WithTemplates adds template rendering support to the server using embedded files
func (s *Server) WithTemplates() error {
	renderer, err := NewTemplateRenderer(s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}
	s.renderer = renderer
	s.logger.Info("HTML templates loaded from embedded files")
	return nil
}

// Handler builds the routed handler. Start serves it; tests call it directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "GET /api/v1/wallets/{address}/history", handleWalletHistory(s.history, s.cfg, s.logger))
	s.handle(mux, "POST /api/v1/lookup", handleSubmitLookup(s.sessions, s.logger))
	s.handle(mux, "GET /api/v1/lookup", handleGetLookup(s.sessions))
	s.handle(mux, "GET /api/v1/users", handleListUsers(s.board, s.logger))
	s.handle(mux, "GET /api/v1/metric-definitions", handleMetricDefinitions(s.board.Registry()))

	// Lookup audit log (if a database is configured)
	if s.store != nil {
		s.handle(mux, "GET /api/v1/lookups", handleListLookups(s.store, s.logger))
	} else {
		s.logger.Warn("database not configured, lookup audit endpoint disabled")
	}

	// SSE streaming endpoints (if SSE publisher is configured)
	if s.ssePublisher != nil {
		s.handle(mux, "GET /api/v1/stream/lookups/{address}", handleStreamLookups(s.ssePublisher, s.metrics, s.logger))
		s.handle(mux, "GET /api/v1/stream/lookups", handleStreamLookups(s.ssePublisher, s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoints disabled")
	}

	// HTML pages (if template renderer is configured)
	if s.renderer != nil {
		s.handle(mux, "GET /{$}", handleWalletPage(s.renderer, s.sessions, s.cfg))
		s.handle(mux, "GET /wallet", handleWalletPage(s.renderer, s.sessions, s.cfg))
		s.handle(mux, "GET /creators", handleCreatorsPage(s.renderer, s.board))
		mux.HandleFunc("GET /favicon.ico", handleFavicon())
		mux.HandleFunc("GET /favicon.svg", handleFavicon())
		s.logger.Info("HTML page endpoints enabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"version": Version}, http.StatusOK)
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	// Wrap mux with CORS middleware
	return corsMiddleware(mux)
}

// handle registers h under pattern, instrumented with the pattern as its
// handler label.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, pattern)(h))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopPrune = cancel
	go s.pruneSessions(ctx)

	// History fetches can run up to the fetch timeout; SSE handlers clear
	// their own write deadline.
	writeTimeout := 15 * time.Second
	if s.cfg.FetchTimeout > 0 {
		writeTimeout += s.cfg.FetchTimeout
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func (s *Server) pruneSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.Prune(s.cfg.SessionMaxIdle); n > 0 {
				s.logger.Debug("pruned idle lookup sessions", "pruned", n, "remaining", s.sessions.Len())
			}
		}
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.stopPrune != nil {
		s.stopPrune()
	}

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}

	// Then shutdown HTTP server
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers for all requests
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Pass through to next handler
		next.ServeHTTP(w, r)
	})
}
