package config

import (
	"testing"
	"time"

	"github.com/brojonat/solboard/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"SERVER_ADDR", "LOG_LEVEL", "SESSION_MAX_IDLE",
	"SOLANA_RPC_URL", "SOLANA_CLUSTER", "CLASSIFIER_POLICY",
	"SIGNATURE_LIMIT", "BATCH_SIZE", "INTER_BATCH_DELAY", "FETCH_TIMEOUT",
	"USER_SOURCE", "MOCK_USER_COUNT", "MOCK_USER_SEED",
	"DATABASE_URL", "NATS_URL",
}

// clearEnv blanks every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.SessionMaxIdle)
	assert.Equal(t, []string{DefaultSolanaRPCURL}, cfg.SolanaRPCURLs)
	assert.Equal(t, solana.ClusterMainnet, cfg.SolanaCluster)
	assert.Equal(t, solana.PolicyStructural, cfg.ClassifierPolicy)
	assert.Equal(t, solana.DefaultHistoryOptions(), cfg.HistoryOptions())
	assert.Equal(t, 60*time.Second, cfg.FetchTimeout)
	assert.Equal(t, UserSourceMock, cfg.UserSource)
	assert.Equal(t, 50, cfg.MockUserCount)
	assert.Equal(t, uint64(1), cfg.MockUserSeed)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.NATSURL)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SOLANA_RPC_URL", "https://a.example, https://b.example,,")
	t.Setenv("SOLANA_CLUSTER", "devnet")
	t.Setenv("CLASSIFIER_POLICY", "heuristic")
	t.Setenv("SIGNATURE_LIMIT", "1000")
	t.Setenv("BATCH_SIZE", "5")
	t.Setenv("INTER_BATCH_DELAY", "1s")
	t.Setenv("USER_SOURCE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/solboard")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.SolanaRPCURLs)
	assert.Equal(t, solana.ClusterDevnet, cfg.SolanaCluster)
	assert.Equal(t, solana.PolicyHeuristic, cfg.ClassifierPolicy)
	assert.Equal(t, solana.HistoryOptions{SignatureLimit: 1000, BatchSize: 5, InterBatchDelay: time.Second}, cfg.HistoryOptions())
	assert.Equal(t, UserSourcePostgres, cfg.UserSource)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad duration", map[string]string{"INTER_BATCH_DELAY": "soon"}, "invalid duration"},
		{"bad integer", map[string]string{"BATCH_SIZE": "many"}, "invalid integer"},
		{"limit too large", map[string]string{"SIGNATURE_LIMIT": "1001"}, "SignatureLimit must be between"},
		{"unknown cluster", map[string]string{"SOLANA_CLUSTER": "localnet"}, "unknown cluster"},
		{"unknown policy", map[string]string{"CLASSIFIER_POLICY": "magic"}, "unknown classifier policy"},
		{"postgres without database", map[string]string{"USER_SOURCE": "postgres"}, "DatabaseURL is required"},
		{"unknown user source", map[string]string{"USER_SOURCE": "csv"}, "UserSource must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_AccumulatesErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOLANA_CLUSTER", "localnet")
	t.Setenv("FETCH_TIMEOUT", "never")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cluster")
	assert.Contains(t, err.Error(), "FETCH_TIMEOUT")
}

func TestMustLoad_Panics(t *testing.T) {
	clearEnv(t)
	t.Setenv("USER_SOURCE", "csv")

	assert.Panics(t, func() { MustLoad() })
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a"}, splitList(" a "))
	assert.Equal(t, []string{"a", "b"}, splitList("a,,b,"))
}
