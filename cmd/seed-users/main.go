package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/brojonat/solboard/service/config"
	"github.com/brojonat/solboard/service/db"
	"github.com/brojonat/solboard/service/ranking"
	"github.com/joho/godotenv"
)

// seed-users fills the creators table with the same synthetic creators the
// mock source serves, so USER_SOURCE=postgres starts with a populated board.
// MOCK_USER_COUNT and MOCK_USER_SEED control the generated set.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("starting creator seed")

	_ = godotenv.Load()

	// Load configuration
	cfg := config.MustLoad()
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	// Connect to database
	ctx := context.Background()
	dbPool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	logger.Info("connected to database")

	store := db.NewStore(dbPool, nil)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	users, err := ranking.NewMockSource(cfg.MockUserCount, cfg.MockUserSeed).ListUsers(ctx)
	if err != nil {
		logger.Error("failed to generate creators", "error", err)
		os.Exit(1)
	}
	logger.Info("generated creators", "count", len(users), "seed", cfg.MockUserSeed)

	successCount := 0
	errorCount := 0

	for _, u := range users {
		if _, err := store.UpsertCreator(ctx, db.CreatorParams(u)); err != nil {
			logger.Error("failed to upsert creator",
				"id", u.ID,
				"username", u.Username,
				"error", err,
			)
			errorCount++
			continue
		}
		successCount++
	}

	logger.Info("seed complete",
		"total", len(users),
		"success", successCount,
		"errors", errorCount,
	)

	if errorCount > 0 {
		os.Exit(1)
	}
}
