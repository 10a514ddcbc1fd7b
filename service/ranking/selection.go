package ranking

import (
	"fmt"
	"slices"
)

// Selection is the ordered set of displayed metrics plus the sort metric.
// The sort metric is always displayed.
type Selection struct {
	registry *Registry
	display  []string
	sort     string
}

// NewSelection validates sort and display against the registry. The sort
// metric is appended to display when missing; duplicates are dropped.
func NewSelection(registry *Registry, sort string, display ...string) (*Selection, error) {
	s := &Selection{registry: registry}
	for _, id := range display {
		if err := s.Select(id); err != nil {
			return nil, err
		}
	}
	if err := s.SetSort(sort); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Selection) check(id string) error {
	if !s.registry.Has(id) {
		return fmt.Errorf("%w: %q", ErrUnknownMetric, id)
	}
	return nil
}

// Select adds id to the display set.
func (s *Selection) Select(id string) error {
	if err := s.check(id); err != nil {
		return err
	}
	if !slices.Contains(s.display, id) {
		s.display = append(s.display, id)
	}
	return nil
}

// Deselect removes id from the display set. Removing the sort metric moves
// the sort to the first remaining metric; removing it when it is the only
// displayed metric fails with ErrLastSortMetric.
func (s *Selection) Deselect(id string) error {
	if err := s.check(id); err != nil {
		return err
	}
	i := slices.Index(s.display, id)
	if i < 0 {
		return nil
	}
	if id == s.sort && len(s.display) == 1 {
		return ErrLastSortMetric
	}
	s.display = slices.Delete(s.display, i, i+1)
	if id == s.sort {
		s.sort = s.display[0]
	}
	return nil
}

// SetSort makes id the sort metric, selecting it if needed.
func (s *Selection) SetSort(id string) error {
	if err := s.Select(id); err != nil {
		return err
	}
	s.sort = id
	return nil
}

// Sort returns the active sort metric.
func (s *Selection) Sort() string { return s.sort }

// Display returns a copy of the displayed metric ids in selection order.
func (s *Selection) Display() []string { return slices.Clone(s.display) }

// IsSelected reports whether id is displayed.
func (s *Selection) IsSelected(id string) bool { return slices.Contains(s.display, id) }
