package db

import (
	"context"
	"testing"
	"time"

	"github.com/brojonat/solboard/service/lookup"
	"github.com/brojonat/solboard/service/ranking"
	"github.com/brojonat/solboard/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupParams(t *testing.T) {
	completed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	ok := lookupParams(lookup.Event{
		SessionID: "s", Generation: 4, Address: "w", Success: true,
		Balance: solana.LamportsToSOL(250_000_000), Transactions: 3, Dropped: 1,
		Duration: time.Second, CompletedAt: completed,
	})
	assert.Equal(t, int64(4), ok.Generation)
	assert.InDelta(t, 0.25, ok.Balance, 1e-9)
	assert.Nil(t, ok.Error)
	assert.Equal(t, completed, ok.CompletedAt)

	failed := lookupParams(lookup.Event{Address: "w", Err: "Invalid public key input"})
	require.NotNil(t, failed.Error)
	assert.Equal(t, "Invalid public key input", *failed.Error)
	assert.False(t, failed.Success)
}

func TestCreatorParams(t *testing.T) {
	p := CreatorParams(ranking.User{ID: 7, Username: "u7", DisplayName: "U", Metrics: map[string]int64{"tips": 3}})
	assert.Equal(t, 7, p.ID)
	assert.Equal(t, "u7", p.Username)
	assert.Equal(t, int64(3), p.Metrics["tips"])
}

func TestUserSource(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	mock, err := ranking.NewMockSource(5, 1).ListUsers(ctx)
	require.NoError(t, err)
	for _, u := range mock {
		_, err := store.UpsertCreator(ctx, CreatorParams(u))
		require.NoError(t, err)
	}

	src := NewUserSource(store.Store)
	assert.Equal(t, "postgres", src.Name())

	users, err := src.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 5)
	assert.Equal(t, 1, users[0].ID)
	assert.NotEmpty(t, users[0].Metrics)
}
