package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/solboard/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Store provides database operations for the service.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If metrics is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) (err error) {
	defer s.observe("ensure_schema", "all", time.Now(), &err)
	if _, err = s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Store) observe(op, table string, start time.Time, err *error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(op, table, time.Since(start).Seconds(), *err)
	}
}

// Creator is a row of the creators table: one user of the creator dashboard.
type Creator struct {
	ID          int
	Username    string
	DisplayName string
	AvatarURL   string
	Metrics     map[string]int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UpsertCreatorParams contains the parameters for inserting or replacing a creator.
type UpsertCreatorParams struct {
	ID          int
	Username    string
	DisplayName string
	AvatarURL   string
	Metrics     map[string]int64
}

const creatorColumns = `id, username, display_name, avatar_url, metrics, created_at, updated_at`

func scanCreator(row pgx.Row) (*Creator, error) {
	var c Creator
	if err := row.Scan(&c.ID, &c.Username, &c.DisplayName, &c.AvatarURL, &c.Metrics, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if c.Metrics == nil {
		c.Metrics = map[string]int64{}
	}
	return &c, nil
}

// UpsertCreator inserts a creator or replaces the one with the same id.
func (s *Store) UpsertCreator(ctx context.Context, params UpsertCreatorParams) (_ *Creator, err error) {
	defer s.observe("upsert", "creators", time.Now(), &err)

	values := params.Metrics
	if values == nil {
		values = map[string]int64{}
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO creators (id, username, display_name, avatar_url, metrics)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			metrics = EXCLUDED.metrics,
			updated_at = NOW()
		RETURNING `+creatorColumns,
		params.ID, params.Username, params.DisplayName, params.AvatarURL, values)

	c, err := scanCreator(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert creator %d: %w", params.ID, err)
	}
	return c, nil
}

// GetCreator retrieves a creator by id.
func (s *Store) GetCreator(ctx context.Context, id int) (_ *Creator, err error) {
	defer s.observe("get", "creators", time.Now(), &err)

	c, err := scanCreator(s.pool.QueryRow(ctx, `SELECT `+creatorColumns+` FROM creators WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("creator %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCreators returns every creator ordered by id.
func (s *Store) ListCreators(ctx context.Context) (_ []*Creator, err error) {
	defer s.observe("list", "creators", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `SELECT `+creatorColumns+` FROM creators ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	creators := make([]*Creator, 0)
	for rows.Next() {
		c, err := scanCreator(rows)
		if err != nil {
			return nil, err
		}
		creators = append(creators, c)
	}
	return creators, rows.Err()
}

// CountCreators returns the number of creators.
func (s *Store) CountCreators(ctx context.Context) (n int64, err error) {
	defer s.observe("count", "creators", time.Now(), &err)
	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM creators`).Scan(&n)
	return n, err
}

// DeleteCreators removes every creator and returns how many were removed.
func (s *Store) DeleteCreators(ctx context.Context) (_ int64, err error) {
	defer s.observe("delete", "creators", time.Now(), &err)
	tag, err := s.pool.Exec(ctx, `DELETE FROM creators`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Lookup is one committed wallet lookup.
type Lookup struct {
	ID           int64
	SessionID    string
	Generation   int64
	Address      string
	Success      bool
	Error        *string // nil when the lookup succeeded
	Balance      float64
	Transactions int
	Dropped      int
	Duration     time.Duration
	CompletedAt  time.Time
}

// RecordLookupParams contains the parameters for recording a lookup.
type RecordLookupParams struct {
	SessionID    string
	Generation   int64
	Address      string
	Success      bool
	Error        *string
	Balance      float64
	Transactions int
	Dropped      int
	Duration     time.Duration
	CompletedAt  time.Time
}

// ListLookupsParams filters the lookup log. An empty Address lists all wallets.
type ListLookupsParams struct {
	Address string
	Limit   int32
}

const lookupColumns = `id, session_id, generation, address, success, error, balance, transactions, dropped, duration_ms, completed_at`

func scanLookup(row pgx.Row) (*Lookup, error) {
	var (
		l          Lookup
		errText    pgtype.Text
		durationMS int64
	)
	if err := row.Scan(&l.ID, &l.SessionID, &l.Generation, &l.Address, &l.Success, &errText,
		&l.Balance, &l.Transactions, &l.Dropped, &durationMS, &l.CompletedAt); err != nil {
		return nil, err
	}
	l.Error = stringPtrFromPgtext(errText)
	l.Duration = time.Duration(durationMS) * time.Millisecond
	return &l, nil
}

// RecordLookup appends a lookup to the log.
func (s *Store) RecordLookup(ctx context.Context, params RecordLookupParams) (_ *Lookup, err error) {
	defer s.observe("insert", "lookups", time.Now(), &err)

	completedAt := params.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO lookups (session_id, generation, address, success, error, balance, transactions, dropped, duration_ms, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+lookupColumns,
		params.SessionID, params.Generation, params.Address, params.Success,
		pgtextFromStringPtr(params.Error), params.Balance, params.Transactions, params.Dropped,
		params.Duration.Milliseconds(), completedAt)

	l, err := scanLookup(row)
	if err != nil {
		return nil, fmt.Errorf("failed to record lookup: %w", err)
	}
	return l, nil
}

// ListLookups returns the most recent lookups first.
func (s *Store) ListLookups(ctx context.Context, params ListLookupsParams) (_ []*Lookup, err error) {
	defer s.observe("list", "lookups", time.Now(), &err)

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+lookupColumns+` FROM lookups
		WHERE $1 = '' OR address = $1
		ORDER BY completed_at DESC, id DESC
		LIMIT $2`, params.Address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lookups := make([]*Lookup, 0)
	for rows.Next() {
		l, err := scanLookup(rows)
		if err != nil {
			return nil, err
		}
		lookups = append(lookups, l)
	}
	return lookups, rows.Err()
}

// DeleteLookupsOlderThan prunes the lookup log.
func (s *Store) DeleteLookupsOlderThan(ctx context.Context, before time.Time) (_ int64, err error) {
	defer s.observe("delete", "lookups", time.Now(), &err)
	tag, err := s.pool.Exec(ctx, `DELETE FROM lookups WHERE completed_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func pgtextFromStringPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}
