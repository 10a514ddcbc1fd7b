package lookup

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/solboard/service/metrics"
	"github.com/brojonat/solboard/service/solana"
)

// ErrSuperseded is returned by Submit when a newer submission replaced this
// one before it finished. Its result was discarded.
var ErrSuperseded = errors.New("lookup superseded by a newer request")

// Fetcher runs the wallet history pipeline.
type Fetcher interface {
	FetchWalletHistory(ctx context.Context, address string, opts solana.HistoryOptions) (*solana.WalletSnapshot, error)
}

// State is what the wallet page shows for one session.
type State struct {
	Generation uint64                 `json:"generation"`
	Address    string                 `json:"address,omitempty"`
	Loading    bool                   `json:"loading"`
	Err        string                 `json:"error,omitempty"`
	Snapshot   *solana.WalletSnapshot `json:"snapshot,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Event describes a committed lookup.
type Event struct {
	SessionID    string        `json:"session_id"`
	Generation   uint64        `json:"generation"`
	Address      string        `json:"address"`
	Success      bool          `json:"success"`
	Err          string        `json:"error,omitempty"`
	Balance      solana.SOL    `json:"balance"`
	Transactions int           `json:"transactions"`
	Dropped      int           `json:"dropped"`
	Duration     time.Duration `json:"duration"`
	CompletedAt  time.Time     `json:"completed_at"`
}

// Observer is notified of every committed lookup. Superseded lookups are
// never observed.
type Observer interface {
	LookupCompleted(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event)

func (f ObserverFunc) LookupCompleted(ctx context.Context, event Event) { f(ctx, event) }

// View serializes lookups for one session. Each Begin takes a new
// generation and cancels the previous fetch; only the latest generation
// may commit.
type View struct {
	id        string
	fetcher   Fetcher
	opts      solana.HistoryOptions
	timeout   time.Duration
	observers []Observer
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	lastUsed time.Time
}

// Options configures a View.
type Options struct {
	History   solana.HistoryOptions
	Timeout   time.Duration // zero means no per-lookup deadline
	Observers []Observer
}

// NewView creates an idle view. If metrics is nil, no metrics will be recorded.
func NewView(id string, fetcher Fetcher, opts Options, m *metrics.Metrics, logger *slog.Logger) *View {
	return &View{
		id:        id,
		fetcher:   fetcher,
		opts:      opts.History,
		timeout:   opts.Timeout,
		observers: opts.Observers,
		metrics:   m,
		logger:    logger.With("session", id),
		lastUsed:  time.Now(),
	}
}

// ID returns the session id.
func (v *View) ID() string { return v.id }

// State returns a copy of the visible state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastUsed = time.Now()
	return v.state
}

// Begin starts a new generation for address and cancels any fetch still
// running. The returned context is cancelled when a newer generation begins.
func (v *View) Begin(ctx context.Context, address string) (context.Context, uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel != nil {
		v.cancel()
	}
	var fetchCtx context.Context
	var cancel context.CancelFunc
	if v.timeout > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, v.timeout)
	} else {
		fetchCtx, cancel = context.WithCancel(ctx)
	}
	v.cancel = cancel

	v.state.Generation++
	v.state.Address = address
	v.state.Loading = true
	v.state.Err = ""
	v.state.UpdatedAt = time.Now().UTC()
	v.lastUsed = time.Now()
	return fetchCtx, v.state.Generation
}

// Commit publishes the outcome of generation gen. It returns false and
// leaves the state untouched when gen is no longer the latest generation.
// A failed fetch clears the snapshot and records the raw error message.
func (v *View) Commit(gen uint64, snapshot *solana.WalletSnapshot, err error) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if gen != v.state.Generation {
		return false
	}
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}

	v.state.Loading = false
	v.state.UpdatedAt = time.Now().UTC()
	if err != nil {
		v.state.Snapshot = nil
		v.state.Err = err.Error()
	} else {
		v.state.Snapshot = snapshot
		v.state.Err = ""
	}
	return true
}

// Submit runs one lookup to completion. The returned state is the view's
// state after the attempt. The error is the fetch error, or ErrSuperseded
// when a newer Submit won the race.
func (v *View) Submit(ctx context.Context, address string) (State, error) {
	start := time.Now()
	fetchCtx, gen := v.Begin(ctx, address)

	v.logger.DebugContext(ctx, "lookup started", "address", address, "generation", gen)
	snapshot, err := v.fetcher.FetchWalletHistory(fetchCtx, address, v.opts)

	if !v.Commit(gen, snapshot, err) {
		v.logger.InfoContext(ctx, "discarding superseded lookup", "address", address, "generation", gen)
		if v.metrics != nil {
			v.metrics.RecordLookupSuperseded()
		}
		return v.State(), ErrSuperseded
	}

	status := "success"
	if err != nil {
		status = "error"
		v.logger.WarnContext(ctx, "lookup failed", "address", address, "generation", gen, "error", err)
	}
	if v.metrics != nil {
		v.metrics.RecordLookup(status)
	}

	event := Event{
		SessionID:   v.id,
		Generation:  gen,
		Address:     address,
		Success:     err == nil,
		Duration:    time.Since(start),
		CompletedAt: time.Now().UTC(),
	}
	if err != nil {
		event.Err = err.Error()
	} else {
		event.Balance = snapshot.Balance
		event.Transactions = len(snapshot.Transactions)
		event.Dropped = snapshot.Dropped
	}
	notifyCtx := context.WithoutCancel(ctx)
	for _, o := range v.observers {
		o.LookupCompleted(notifyCtx, event)
	}

	return v.State(), err
}

// Close cancels any fetch in flight.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
}

func (v *View) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state.Loading {
		return time.Now()
	}
	return v.lastUsed
}
