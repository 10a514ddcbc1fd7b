package ranking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Format(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		id    string
		value int64
		want  string
	}{
		{MetricEngagementRate, 12, "12%"},
		{MetricWatchTime, 750, "12.5h"},
		{MetricWatchTime, 0, "0.0h"},
		{MetricRevenue, 1234, "$1,234"},
		{MetricRevenue, -50, "-$50"},
		{MetricFollowers, 1234, "1,234"},
		{MetricFollowers, 1234567, "1,234,567"},
		{MetricAvgRating, 425, "4.25"},
		{MetricAvgRating, 500, "5.00"},
		{"not_a_metric", 9876543, "9,876,543"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			first := r.Format(tt.id, tt.value)
			assert.Equal(t, tt.want, first)
			assert.Equal(t, first, r.Format(tt.id, tt.value))
		})
	}
}

func TestNewRegistry_DuplicateID(t *testing.T) {
	_, err := NewRegistry(
		Category{Name: "A", Metrics: []Metric{{ID: "x", Kind: KindCount}}},
		Category{Name: "B", Metrics: []Metric{{ID: "x", Kind: KindPercent}}},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateMetric))
}

func TestNewRegistry_CustomFormat(t *testing.T) {
	r, err := NewRegistry(Category{Name: "A", Metrics: []Metric{
		{ID: "x", Label: "X", Format: func(v int64) string { return "custom" }},
	}})
	require.NoError(t, err)

	assert.Equal(t, "custom", r.Format("x", 1))
	m, ok := r.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "A", m.Category)
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	require.Len(t, r.Categories(), 3)
	assert.Equal(t, "Audience", r.Categories()[0].Name)
	assert.Len(t, r.Metrics(), 8)
	assert.Equal(t, MetricFollowers, r.IDs()[0])
	assert.True(t, r.Has(DefaultSortMetric))
	for _, id := range DefaultDisplay {
		assert.True(t, r.Has(id), id)
	}
}
