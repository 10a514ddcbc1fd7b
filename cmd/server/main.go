package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solboard/service/config"
	"github.com/brojonat/solboard/service/db"
	"github.com/brojonat/solboard/service/lookup"
	"github.com/brojonat/solboard/service/metrics"
	natspkg "github.com/brojonat/solboard/service/nats"
	"github.com/brojonat/solboard/service/ranking"
	"github.com/brojonat/solboard/service/server"
	"github.com/brojonat/solboard/service/solana"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"cluster", cfg.SolanaCluster,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Initialize Solana RPC client
	// Note: For premium RPC endpoints, include API key in the URL
	solanaClient, err := newSolanaClient(cfg, m, logger)
	if err != nil {
		logger.Error("failed to create solana RPC client", "error", err)
		os.Exit(1)
	}
	logger.Info("initialized solana RPC client",
		"endpoints", len(cfg.SolanaRPCURLs),
		"classifier", cfg.ClassifierPolicy,
	)

	var observers []lookup.Observer

	// Initialize database store (optional unless it backs the leaderboard)
	var store *db.Store
	if cfg.DatabaseURL != "" {
		dbPool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()
		logger.Info("connected to database")

		store = db.NewStore(dbPool, m)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		observers = append(observers, db.LookupRecorder(store, logger))
	}

	// Initialize NATS publisher and SSE streaming (optional)
	var ssePublisher *server.SSEPublisher
	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		observers = append(observers, natspkg.Observer(publisher, logger))

		ssePublisher, err = server.NewSSEPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to create SSE publisher", "error", err)
			os.Exit(1)
		}
	}

	sessions := lookup.NewSessions(func(id string) *lookup.View {
		return lookup.NewView(id, solanaClient, lookup.Options{
			History:   cfg.HistoryOptions(),
			Timeout:   cfg.FetchTimeout,
			Observers: observers,
		}, m, logger)
	}, m)

	var source ranking.DataSource
	switch cfg.UserSource {
	case config.UserSourcePostgres:
		source = db.NewUserSource(store)
	default:
		source = ranking.NewMockSource(cfg.MockUserCount, cfg.MockUserSeed)
	}
	board := ranking.NewBoard(source, ranking.DefaultRegistry(), m, logger)
	logger.Info("initialized leaderboard", "source", source.Name())

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, cfg, solanaClient, sessions, board, store, ssePublisher, m, logger)
	if err := httpServer.WithTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	logger.Info("server initialized, all dependencies ready",
		"database", store != nil,
		"nats", cfg.NATSURL != "",
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// newSolanaClient builds the history fetcher. RPC URLs may carry API keys, so
// metrics are labelled with the cluster name and never with the URLs.
func newSolanaClient(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*solana.Client, error) {
	rpcClient, err := solana.NewEndpointPool(cfg.SolanaRPCURLs)
	if err != nil {
		return nil, err
	}
	return solana.NewClient(rpcClient, cfg.SolanaCluster, m, logger).
		WithClassifier(solana.ClassifierForPolicy(cfg.ClassifierPolicy)).
		WithCluster(cfg.SolanaCluster), nil
}
