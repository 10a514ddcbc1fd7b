package nats

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/brojonat/solboard/service/lookup"
	"github.com/brojonat/solboard/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromLookupEvent(t *testing.T) {
	completed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	e := FromLookupEvent(lookup.Event{
		SessionID:    "s1",
		Generation:   3,
		Address:      "wallet",
		Success:      true,
		Balance:      solana.LamportsToSOL(1_500_000_000),
		Transactions: 9,
		Dropped:      1,
		Duration:     1500 * time.Millisecond,
		CompletedAt:  completed,
	})

	assert.Equal(t, "s1", e.SessionID)
	assert.Equal(t, uint64(3), e.Generation)
	assert.Equal(t, "1.5000", e.Balance)
	assert.Equal(t, int64(1500), e.DurationMS)
	assert.Equal(t, completed, e.CompletedAt)
	assert.False(t, e.PublishedAt.IsZero())
	assert.Equal(t, "lookups.wallet", SubjectFor(e.Address))
}

func TestObserver(t *testing.T) {
	pub := NewMockPublisher()
	var logs bytes.Buffer
	obs := Observer(pub, slog.New(slog.NewTextHandler(&logs, nil)))

	obs.LookupCompleted(context.Background(), lookup.Event{Address: "a", Success: true})
	obs.LookupCompleted(context.Background(), lookup.Event{Address: "b", Err: "boom"})

	events := pub.GetPublishedEvents()
	require.Len(t, events, 2)
	assert.Len(t, pub.GetPublishedEventsForAddress("b"), 1)
	assert.Equal(t, "boom", events[1].Error)

	pub.SetPublishError(errors.New("nats down"))
	obs.LookupCompleted(context.Background(), lookup.Event{Address: "c"})
	assert.Len(t, pub.GetPublishedEvents(), 2)
	assert.Contains(t, logs.String(), "failed to publish lookup event")
}
