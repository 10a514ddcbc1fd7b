package ranking

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
)

// DataSource supplies the users a board ranks.
type DataSource interface {
	ListUsers(ctx context.Context) ([]User, error)
	// Name labels the source in logs and metrics.
	Name() string
}

// StaticSource serves a fixed user list.
type StaticSource []User

func (s StaticSource) ListUsers(ctx context.Context) ([]User, error) {
	return append([]User(nil), s...), nil
}

func (s StaticSource) Name() string { return "static" }

// MockSource serves synthetic creators generated from a seed. The same
// seed and count always produce the same users.
type MockSource struct {
	users []User
}

var (
	mockAdjectives = []string{"Cool", "Swift", "Cosmic", "Lucky", "Neon", "Silent", "Brave", "Pixel", "Golden", "Wild"}
	mockNouns      = []string{"Ninja", "Falcon", "Panda", "Wizard", "Rider", "Otter", "Comet", "Fox", "Ghost", "Tiger"}
)

// NewMockSource generates count users.
func NewMockSource(count int, seed uint64) *MockSource {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	users := make([]User, 0, count)
	for i := 1; i <= count; i++ {
		adj := mockAdjectives[rng.IntN(len(mockAdjectives))]
		noun := mockNouns[rng.IntN(len(mockNouns))]
		username := fmt.Sprintf("%s%s%d", strings.ToLower(adj), strings.ToLower(noun), i)
		users = append(users, User{
			ID:          i,
			Username:    username,
			DisplayName: adj + " " + noun,
			AvatarURL:   "https://api.dicebear.com/7.x/identicon/svg?seed=" + username,
			Metrics: map[string]int64{
				MetricFollowers:      rng.Int64N(1_000_000),
				MetricSubscribers:    rng.Int64N(100_000),
				MetricEngagementRate: rng.Int64N(101),
				MetricPosts:          rng.Int64N(2_000),
				MetricWatchTime:      rng.Int64N(600_000),
				MetricAvgRating:      rng.Int64N(501),
				MetricRevenue:        rng.Int64N(250_000),
				MetricTips:           rng.Int64N(20_000),
			},
		})
	}
	return &MockSource{users: users}
}

func (s *MockSource) ListUsers(ctx context.Context) ([]User, error) {
	return append([]User(nil), s.users...), nil
}

func (s *MockSource) Name() string { return "mock" }
