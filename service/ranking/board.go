package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solboard/service/metrics"
)

// Board ranks the users of a DataSource against a metric registry.
type Board struct {
	source   DataSource
	registry *Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewBoard creates a board. If metrics is nil, no metrics will be recorded.
func NewBoard(source DataSource, registry *Registry, m *metrics.Metrics, logger *slog.Logger) *Board {
	return &Board{source: source, registry: registry, metrics: m, logger: logger}
}

// Registry returns the board's metric registry.
func (b *Board) Registry() *Registry { return b.registry }

// Query is one view request. Empty Sort and Display select the defaults.
type Query struct {
	Text    string
	Sort    string
	Display []string
}

// Column is one displayed metric.
type Column struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Kind   Kind   `json:"kind"`
	Sorted bool   `json:"sorted"`
}

// Cell is a formatted metric value.
type Cell struct {
	MetricID string `json:"metric_id"`
	Value    int64  `json:"value"`
	Display  string `json:"display"`
}

// Row is a ranked user with its displayed cells in column order.
type Row struct {
	RankedUser
	Cells []Cell `json:"cells"`
}

// Page is the rendered result of a Query.
type Page struct {
	Query   string   `json:"query"`
	Sort    string   `json:"sort"`
	Display []string `json:"display"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
	Total   int      `json:"total"` // users before filtering
}

// Selection resolves the query's sort and display set.
func (b *Board) Selection(q Query) (*Selection, error) {
	sort := q.Sort
	if sort == "" {
		sort = DefaultSortMetric
	}
	display := q.Display
	if len(display) == 0 {
		display = DefaultDisplay
	}
	return NewSelection(b.registry, sort, display...)
}

// Query filters, sorts and formats the source's users. Queries naming an
// unknown metric are recorded under the "invalid" sort label.
func (b *Board) Query(ctx context.Context, q Query) (*Page, error) {
	start := time.Now()

	sortLabel := "invalid"
	var page *Page
	sel, err := b.Selection(q)
	if err == nil {
		sortLabel = sel.Sort()
		page, err = b.query(ctx, q, sel)
	}

	status := "success"
	results := 0
	if err != nil {
		status = "error"
	} else {
		results = len(page.Rows)
	}
	if b.metrics != nil {
		b.metrics.RecordRankingQuery(sortLabel, status, b.source.Name(), results, time.Since(start).Seconds())
	}
	return page, err
}

func (b *Board) query(ctx context.Context, q Query, sel *Selection) (*Page, error) {
	users, err := b.source.ListUsers(ctx)
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to list users", "source", b.source.Name(), "error", err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	display := sel.Display()
	columns := make([]Column, 0, len(display))
	for _, id := range display {
		m, _ := b.registry.Lookup(id)
		columns = append(columns, Column{ID: id, Label: m.Label, Kind: m.Kind, Sorted: id == sel.Sort()})
	}

	ranked := ApplyFilterAndSort(users, q.Text, sel.Sort())
	rows := make([]Row, 0, len(ranked))
	for _, ru := range ranked {
		cells := make([]Cell, 0, len(display))
		for _, id := range display {
			v := ru.Metric(id)
			cells = append(cells, Cell{MetricID: id, Value: v, Display: b.registry.Format(id, v)})
		}
		rows = append(rows, Row{RankedUser: ru, Cells: cells})
	}

	b.logger.DebugContext(ctx, "ranked users",
		"source", b.source.Name(),
		"query", q.Text,
		"sort", sel.Sort(),
		"results", len(rows),
		"total", len(users),
	)

	return &Page{
		Query:   q.Text,
		Sort:    sel.Sort(),
		Display: display,
		Columns: columns,
		Rows:    rows,
		Total:   len(users),
	}, nil
}
