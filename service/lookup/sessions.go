package lookup

import (
	"sync"
	"time"

	"github.com/brojonat/solboard/service/metrics"
	"github.com/google/uuid"
)

// Sessions maps session ids to views.
type Sessions struct {
	mu      sync.Mutex
	views   map[string]*View
	factory func(id string) *View
	metrics *metrics.Metrics
}

// NewSessions creates an empty registry. factory builds the view for a new
// session id.
func NewSessions(factory func(id string) *View, m *metrics.Metrics) *Sessions {
	return &Sessions{
		views:   make(map[string]*View),
		factory: factory,
		metrics: m,
	}
}

// Get returns the view for id.
func (s *Sessions) Get(id string) (*View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[id]
	return v, ok
}

// GetOrCreate returns the view for id, creating a session with a fresh id
// when id is empty or unknown.
func (s *Sessions) GetOrCreate(id string) *View {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.views[id]; ok {
		return v
	}
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	v := s.factory(id)
	s.views[id] = v
	s.updateGauge()
	return v
}

// Delete closes and forgets a session.
func (s *Sessions) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.views[id]; ok {
		v.Close()
		delete(s.views, id)
		s.updateGauge()
	}
}

// Prune removes sessions idle for longer than maxIdle and returns how many
// were removed. Sessions with a lookup in flight are kept.
func (s *Sessions) Prune(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for id, v := range s.views {
		if v.idleSince().Before(cutoff) {
			v.Close()
			delete(s.views, id)
			removed++
		}
	}
	if removed > 0 {
		s.updateGauge()
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

func (s *Sessions) updateGauge() {
	if s.metrics != nil {
		s.metrics.SetLookupSessions(len(s.views))
	}
}
