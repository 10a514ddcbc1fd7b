package nats

import (
	"fmt"
	"time"

	"github.com/brojonat/solboard/service/lookup"
)

// LookupEvent represents a committed wallet lookup published to NATS.
// This is published to the subject "lookups.{address}" in JetStream.
type LookupEvent struct {
	// Lookup identifiers
	SessionID  string `json:"session_id"`
	Generation uint64 `json:"generation"`

	// Wallet information
	Address string `json:"address"`
	Balance string `json:"balance"` // SOL, 4 decimals

	// Outcome
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	Transactions int    `json:"transactions"`
	Dropped      int    `json:"dropped"`

	// Timing information
	DurationMS  int64     `json:"duration_ms"`
	CompletedAt time.Time `json:"completed_at"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}

// FromLookupEvent converts a committed lookup to a LookupEvent for publishing.
func FromLookupEvent(e lookup.Event) *LookupEvent {
	return &LookupEvent{
		SessionID:    e.SessionID,
		Generation:   e.Generation,
		Address:      e.Address,
		Balance:      e.Balance.String(),
		Success:      e.Success,
		Error:        e.Err,
		Transactions: e.Transactions,
		Dropped:      e.Dropped,
		DurationMS:   e.Duration.Milliseconds(),
		CompletedAt:  e.CompletedAt,
		PublishedAt:  time.Now().UTC(),
	}
}

// SubjectFor returns the subject an address's lookups are published to.
func SubjectFor(address string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, address)
}
