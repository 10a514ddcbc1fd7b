package ranking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/brojonat/solboard/service/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSource struct{}

func (failingSource) ListUsers(ctx context.Context) ([]User, error) {
	return nil, errors.New("connection refused")
}

func (failingSource) Name() string { return "failing" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixtureUsers = StaticSource{
	{ID: 1, Username: "coolninja1", DisplayName: "Cool Ninja", Metrics: map[string]int64{
		MetricFollowers: 1500, MetricRevenue: 20, MetricAvgRating: 450,
	}},
	{ID: 2, Username: "swiftfox2", DisplayName: "Swift Fox", Metrics: map[string]int64{
		MetricFollowers: 900, MetricRevenue: 3000,
	}},
	{ID: 3, Username: "coolotter3", DisplayName: "Cool Otter", Metrics: map[string]int64{
		MetricFollowers: 2500, MetricRevenue: 5,
	}},
}

func TestBoard_QueryDefaults(t *testing.T) {
	b := NewBoard(fixtureUsers, DefaultRegistry(), nil, testLogger())

	page, err := b.Query(context.Background(), Query{})
	require.NoError(t, err)

	assert.Equal(t, DefaultSortMetric, page.Sort)
	assert.Equal(t, DefaultDisplay, page.Display)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Rows, 3)
	assert.Equal(t, 3, page.Rows[0].ID)
	assert.Equal(t, 1, page.Rows[0].Rank)
	require.Len(t, page.Columns, len(DefaultDisplay))
	assert.True(t, page.Columns[0].Sorted)
	assert.Equal(t, "Followers", page.Columns[0].Label)
	assert.Equal(t, "2,500", page.Rows[0].Cells[0].Display)
}

func TestBoard_QueryFilterAndSort(t *testing.T) {
	b := NewBoard(fixtureUsers, DefaultRegistry(), nil, testLogger())

	page, err := b.Query(context.Background(), Query{
		Text:    "COOL",
		Sort:    MetricRevenue,
		Display: []string{MetricAvgRating},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{MetricAvgRating, MetricRevenue}, page.Display)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, 1, page.Rows[0].ID)
	assert.Equal(t, "4.50", page.Rows[0].Cells[0].Display)
	assert.Equal(t, "$20", page.Rows[0].Cells[1].Display)
	assert.Equal(t, 3, page.Rows[1].ID)
	assert.Equal(t, "0.00", page.Rows[1].Cells[0].Display)
	assert.Equal(t, 3, page.Total)
}

func TestBoard_QueryErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	b := NewBoard(fixtureUsers, DefaultRegistry(), m, testLogger())
	_, err := b.Query(context.Background(), Query{Sort: "bogus"})
	assert.ErrorIs(t, err, ErrUnknownMetric)

	b = NewBoard(failingSource{}, DefaultRegistry(), m, testLogger())
	_, err = b.Query(context.Background(), Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestBoard_QueryUnknownSortsShareOneSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	b := NewBoard(fixtureUsers, DefaultRegistry(), m, testLogger())

	for i := 0; i < 50; i++ {
		_, err := b.Query(context.Background(), Query{Sort: fmt.Sprintf("bogus-%d", i)})
		require.Error(t, err)
	}
	_, err := b.Query(context.Background(), Query{Sort: MetricRevenue})
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "ranking_queries_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	expected := `
# HELP ranking_queries_total Total number of ranking queries by sort metric and status
# TYPE ranking_queries_total counter
ranking_queries_total{sort_metric="invalid",status="error"} 50
ranking_queries_total{sort_metric="revenue",status="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ranking_queries_total"))
}

func TestMockSource_Deterministic(t *testing.T) {
	a, err := NewMockSource(25, 42).ListUsers(context.Background())
	require.NoError(t, err)
	b, err := NewMockSource(25, 42).ListUsers(context.Background())
	require.NoError(t, err)

	require.Len(t, a, 25)
	assert.Equal(t, a, b)

	reg := DefaultRegistry()
	for _, u := range a {
		assert.Equal(t, strings.ToLower(u.Username), u.Username)
		assert.NotEmpty(t, u.DisplayName)
		for _, id := range reg.IDs() {
			assert.Contains(t, u.Metrics, id)
		}
		assert.LessOrEqual(t, u.Metric(MetricAvgRating), int64(500))
	}
}
