package ranking

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	ErrUnknownMetric   = errors.New("unknown metric")
	ErrDuplicateMetric = errors.New("duplicate metric id")
	ErrLastSortMetric  = errors.New("cannot deselect the only displayed sort metric")
)

// Kind selects the display transform of a metric.
type Kind string

const (
	KindPercent  Kind = "percent"
	KindHours    Kind = "hours" // stored as minutes
	KindCurrency Kind = "currency"
	KindCount    Kind = "count"
	KindScore    Kind = "score" // stored as 0..500, shown as 0..5
)

// Metric is a named numeric user attribute.
type Metric struct {
	ID       string                  `json:"id"`
	Label    string                  `json:"label"`
	Kind     Kind                    `json:"kind"`
	Category string                  `json:"category"`
	Format   func(value int64) string `json:"-"`
}

// Category groups metrics for display.
type Category struct {
	Name    string   `json:"name"`
	Metrics []Metric `json:"metrics"`
}

// Registry is the full metric set. Ids are unique across all categories.
type Registry struct {
	categories []Category
	byID       map[string]Metric
	order      []string
}

// NewRegistry indexes categories. Metrics without a Format get the
// transform for their Kind.
func NewRegistry(categories ...Category) (*Registry, error) {
	r := &Registry{byID: make(map[string]Metric)}
	for _, cat := range categories {
		out := Category{Name: cat.Name, Metrics: make([]Metric, 0, len(cat.Metrics))}
		for _, m := range cat.Metrics {
			if _, ok := r.byID[m.ID]; ok {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateMetric, m.ID)
			}
			m.Category = cat.Name
			if m.Format == nil {
				m.Format = formatterFor(m.Kind)
			}
			r.byID[m.ID] = m
			r.order = append(r.order, m.ID)
			out.Metrics = append(out.Metrics, m)
		}
		r.categories = append(r.categories, out)
	}
	return r, nil
}

// Lookup returns the metric with the given id.
func (r *Registry) Lookup(id string) (Metric, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// Has reports whether id is a known metric.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Format renders value with the metric's transform. Unknown ids fall back
// to English digit grouping.
func (r *Registry) Format(id string, value int64) string {
	if m, ok := r.byID[id]; ok {
		return m.Format(value)
	}
	return formatCount(value)
}

// Categories returns the categories in registration order.
func (r *Registry) Categories() []Category {
	return r.categories
}

// Metrics returns every metric in registration order.
func (r *Registry) Metrics() []Metric {
	out := make([]Metric, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns every metric id in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

var printer = message.NewPrinter(language.English)

func formatterFor(k Kind) func(int64) string {
	switch k {
	case KindPercent:
		return formatPercent
	case KindHours:
		return formatHours
	case KindCurrency:
		return formatCurrency
	case KindScore:
		return formatScore
	default:
		return formatCount
	}
}

func formatCount(v int64) string {
	return printer.Sprintf("%d", v)
}

func formatPercent(v int64) string {
	return fmt.Sprintf("%d%%", v)
}

func formatHours(minutes int64) string {
	return printer.Sprintf("%.1fh", float64(minutes)/60)
}

func formatCurrency(v int64) string {
	if v < 0 {
		return "-$" + formatCount(-v)
	}
	return "$" + formatCount(v)
}

func formatScore(v int64) string {
	return fmt.Sprintf("%.2f", float64(v)/100)
}

// Default metric ids.
const (
	MetricFollowers      = "followers"
	MetricSubscribers    = "subscribers"
	MetricEngagementRate = "engagement_rate"
	MetricPosts          = "posts"
	MetricWatchTime      = "watch_time"
	MetricAvgRating      = "avg_rating"
	MetricRevenue        = "revenue"
	MetricTips           = "tips"
)

// DefaultSortMetric is the sort metric of a fresh board.
const DefaultSortMetric = MetricFollowers

// DefaultDisplay is the display set of a fresh board.
var DefaultDisplay = []string{MetricFollowers, MetricEngagementRate, MetricWatchTime, MetricRevenue}

// DefaultCategories is the creator dashboard's metric set.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Audience", Metrics: []Metric{
			{ID: MetricFollowers, Label: "Followers", Kind: KindCount},
			{ID: MetricSubscribers, Label: "Subscribers", Kind: KindCount},
			{ID: MetricEngagementRate, Label: "Engagement", Kind: KindPercent},
		}},
		{Name: "Content", Metrics: []Metric{
			{ID: MetricPosts, Label: "Posts", Kind: KindCount},
			{ID: MetricWatchTime, Label: "Watch Time", Kind: KindHours},
			{ID: MetricAvgRating, Label: "Avg Rating", Kind: KindScore},
		}},
		{Name: "Earnings", Metrics: []Metric{
			{ID: MetricRevenue, Label: "Revenue", Kind: KindCurrency},
			{ID: MetricTips, Label: "Tips", Kind: KindCurrency},
		}},
	}
}

// DefaultRegistry builds the registry for DefaultCategories.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultCategories()...)
	if err != nil {
		panic(err)
	}
	return r
}
