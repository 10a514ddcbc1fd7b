package ranking

import (
	"sort"
	"strings"
)

// User is one row of the creator dashboard.
type User struct {
	ID          int              `json:"id"`
	Username    string           `json:"username"`
	DisplayName string           `json:"display_name"`
	AvatarURL   string           `json:"avatar_url"`
	Metrics     map[string]int64 `json:"metrics"`
}

// Metric returns the user's value for id; a missing metric is 0.
func (u User) Metric(id string) int64 {
	return u.Metrics[id]
}

// RankedUser is a user positioned in one filtered, sorted view.
type RankedUser struct {
	User
	Rank int `json:"rank"`
}

// Matches reports whether query is a case-insensitive substring of the
// username or the display name. A blank query matches everyone.
func (u User) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(u.Username), q) ||
		strings.Contains(strings.ToLower(u.DisplayName), q)
}

// ApplyFilterAndSort filters users by query, sorts them by sortMetricID
// descending and assigns ranks 1..N over the result. Ties keep input order.
// The input slice is not modified.
func ApplyFilterAndSort(users []User, query, sortMetricID string) []RankedUser {
	out := make([]RankedUser, 0, len(users))
	for _, u := range users {
		if u.Matches(query) {
			out = append(out, RankedUser{User: u})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Metric(sortMetricID) > out[j].Metric(sortMetricID)
	})

	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
