package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreators(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	t.Run("upsert inserts", func(t *testing.T) {
		c, err := store.UpsertCreator(ctx, UpsertCreatorParams{
			ID:          2,
			Username:    "coolninja2",
			DisplayName: "Cool Ninja",
			Metrics:     map[string]int64{"followers": 1500, "avg_rating": 425},
		})
		require.NoError(t, err)

		assert.Equal(t, 2, c.ID)
		assert.Equal(t, "coolninja2", c.Username)
		assert.Equal(t, int64(1500), c.Metrics["followers"])
		assert.WithinDuration(t, time.Now(), c.CreatedAt, 5*time.Second)
	})

	t.Run("upsert replaces", func(t *testing.T) {
		c, err := store.UpsertCreator(ctx, UpsertCreatorParams{
			ID:          2,
			Username:    "coolninja2",
			DisplayName: "Cooler Ninja",
			Metrics:     map[string]int64{"followers": 1600},
		})
		require.NoError(t, err)

		assert.Equal(t, "Cooler Ninja", c.DisplayName)
		assert.Equal(t, map[string]int64{"followers": 1600}, c.Metrics)
	})

	t.Run("nil metrics stored as empty object", func(t *testing.T) {
		c, err := store.UpsertCreator(ctx, UpsertCreatorParams{ID: 1, Username: "swiftfox1", DisplayName: "Swift Fox"})
		require.NoError(t, err)
		assert.NotNil(t, c.Metrics)
		assert.Empty(t, c.Metrics)
	})

	t.Run("list orders by id", func(t *testing.T) {
		creators, err := store.ListCreators(ctx)
		require.NoError(t, err)
		require.Len(t, creators, 2)
		assert.Equal(t, 1, creators[0].ID)
		assert.Equal(t, 2, creators[1].ID)

		n, err := store.CountCreators(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := store.GetCreator(ctx, 99)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("delete all", func(t *testing.T) {
		n, err := store.DeleteCreators(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

func TestLookups(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	failure := "Invalid public key input"

	_, err := store.RecordLookup(ctx, RecordLookupParams{
		SessionID: "s1", Generation: 1, Address: "walletA", Success: true,
		Balance: 1.5, Transactions: 10, Dropped: 1, Duration: 1500 * time.Millisecond,
		CompletedAt: now.Add(-time.Hour),
	})
	require.NoError(t, err)

	bad, err := store.RecordLookup(ctx, RecordLookupParams{
		SessionID: "s1", Generation: 2, Address: "walletB", Error: &failure, CompletedAt: now,
	})
	require.NoError(t, err)
	require.NotNil(t, bad.Error)
	assert.Equal(t, failure, *bad.Error)
	assert.False(t, bad.Success)

	t.Run("newest first", func(t *testing.T) {
		all, err := store.ListLookups(ctx, ListLookupsParams{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "walletB", all[0].Address)
		assert.Equal(t, "walletA", all[1].Address)
		assert.Nil(t, all[1].Error)
		assert.Equal(t, 1500*time.Millisecond, all[1].Duration)
		assert.WithinDuration(t, now.Add(-time.Hour), all[1].CompletedAt, time.Microsecond)
	})

	t.Run("filter by address", func(t *testing.T) {
		got, err := store.ListLookups(ctx, ListLookupsParams{Address: "walletA", Limit: 10})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 10, got[0].Transactions)
	})

	t.Run("prune", func(t *testing.T) {
		n, err := store.DeleteLookupsOlderThan(ctx, now.Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
