package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/solboard/service/solana"
)

// User sources for the creator dashboard.
const (
	UserSourceMock     = "mock"
	UserSourcePostgres = "postgres"
)

// DefaultSolanaRPCURL is the public mainnet endpoint.
const DefaultSolanaRPCURL = "https://api.mainnet-beta.solana.com"

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr     string
	LogLevel       string
	SessionMaxIdle time.Duration

	// Solana configuration
	SolanaRPCURLs    []string
	SolanaCluster    string
	ClassifierPolicy solana.Policy

	// History pipeline tuning
	SignatureLimit  int
	BatchSize       int
	InterBatchDelay time.Duration
	FetchTimeout    time.Duration

	// Creator dashboard data
	UserSource    string
	MockUserCount int
	MockUserSeed  uint64

	// Database configuration (required when UserSource is postgres)
	DatabaseURL string

	// NATS configuration (optional; enables lookup events and the SSE stream)
	NATSURL string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	maxIdle, err := parseDuration("SESSION_MAX_IDLE", "30m")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SessionMaxIdle = maxIdle
	}

	// Solana configuration
	cfg.SolanaRPCURLs = splitList(getEnvOrDefault("SOLANA_RPC_URL", DefaultSolanaRPCURL))
	if len(cfg.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	cfg.SolanaCluster = getEnvOrDefault("SOLANA_CLUSTER", solana.ClusterMainnet)
	if !validCluster(cfg.SolanaCluster) {
		errs = append(errs, fmt.Errorf("SOLANA_CLUSTER: unknown cluster %q", cfg.SolanaCluster))
	}

	policy, err := solana.ParsePolicy(os.Getenv("CLASSIFIER_POLICY"))
	if err != nil {
		errs = append(errs, fmt.Errorf("CLASSIFIER_POLICY: %w", err))
	} else {
		cfg.ClassifierPolicy = policy
	}

	// History pipeline tuning
	limit, err := parseInt("SIGNATURE_LIMIT", solana.DefaultSignatureLimit)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SignatureLimit = limit
	}

	batchSize, err := parseInt("BATCH_SIZE", solana.DefaultBatchSize)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.BatchSize = batchSize
	}

	delay, err := parseDuration("INTER_BATCH_DELAY", solana.DefaultInterBatchDelay.String())
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.InterBatchDelay = delay
	}

	timeout, err := parseDuration("FETCH_TIMEOUT", "60s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.FetchTimeout = timeout
	}

	// Creator dashboard data
	cfg.UserSource = getEnvOrDefault("USER_SOURCE", UserSourceMock)

	count, err := parseInt("MOCK_USER_COUNT", 50)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MockUserCount = count
	}

	seed, err := parseInt("MOCK_USER_SEED", 1)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MockUserSeed = uint64(seed)
	}

	// Database and NATS
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.SignatureLimit < 1 || c.SignatureLimit > solana.MaxSignatureLimit {
		errs = append(errs, fmt.Errorf("SignatureLimit must be between 1 and %d", solana.MaxSignatureLimit))
	}

	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("BatchSize must be at least 1"))
	}

	if c.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("FetchTimeout cannot be negative"))
	}

	switch c.UserSource {
	case UserSourceMock:
		if c.MockUserCount < 0 {
			errs = append(errs, fmt.Errorf("MockUserCount cannot be negative"))
		}
	case UserSourcePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DatabaseURL is required when UserSource is %q", UserSourcePostgres))
		}
	default:
		errs = append(errs, fmt.Errorf("UserSource must be %q or %q, got %q", UserSourceMock, UserSourcePostgres, c.UserSource))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// HistoryOptions returns the pipeline tuning as fetch options.
func (c *Config) HistoryOptions() solana.HistoryOptions {
	return solana.HistoryOptions{
		SignatureLimit:  c.SignatureLimit,
		BatchSize:       c.BatchSize,
		InterBatchDelay: c.InterBatchDelay,
	}
}

func validCluster(cluster string) bool {
	switch cluster {
	case solana.ClusterMainnet, solana.ClusterDevnet, solana.ClusterTestnet:
		return true
	}
	return false
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
