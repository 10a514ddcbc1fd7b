package db

import (
	"context"
	"log/slog"

	"github.com/brojonat/solboard/service/lookup"
	"github.com/brojonat/solboard/service/ranking"
)

// UserSource serves the creators table as a ranking data source.
type UserSource struct {
	store *Store
}

// NewUserSource wraps store as a ranking.DataSource.
func NewUserSource(store *Store) *UserSource {
	return &UserSource{store: store}
}

// Name identifies the source in metrics.
func (u *UserSource) Name() string { return "postgres" }

// ListUsers returns every creator in id order.
func (u *UserSource) ListUsers(ctx context.Context) ([]ranking.User, error) {
	creators, err := u.store.ListCreators(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]ranking.User, 0, len(creators))
	for _, c := range creators {
		users = append(users, ranking.User{
			ID:          c.ID,
			Username:    c.Username,
			DisplayName: c.DisplayName,
			AvatarURL:   c.AvatarURL,
			Metrics:     c.Metrics,
		})
	}
	return users, nil
}

// CreatorParams converts a ranking user into upsert parameters.
func CreatorParams(u ranking.User) UpsertCreatorParams {
	return UpsertCreatorParams{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Metrics:     u.Metrics,
	}
}

// LookupRecorder persists committed lookups. Write failures are logged and
// never fail the lookup.
func LookupRecorder(store *Store, logger *slog.Logger) lookup.Observer {
	return lookup.ObserverFunc(func(ctx context.Context, e lookup.Event) {
		if _, err := store.RecordLookup(ctx, lookupParams(e)); err != nil {
			logger.WarnContext(ctx, "failed to record lookup",
				"address", e.Address,
				"error", err,
			)
		}
	})
}

func lookupParams(e lookup.Event) RecordLookupParams {
	params := RecordLookupParams{
		SessionID:    e.SessionID,
		Generation:   int64(e.Generation),
		Address:      e.Address,
		Success:      e.Success,
		Balance:      float64(e.Balance),
		Transactions: e.Transactions,
		Dropped:      e.Dropped,
		Duration:     e.Duration,
		CompletedAt:  e.CompletedAt,
	}
	if e.Err != "" {
		msg := e.Err
		params.Error = &msg
	}
	return params
}
