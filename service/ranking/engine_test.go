package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(ranked []RankedUser) []int {
	out := make([]int, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.ID)
	}
	return out
}

func TestApplyFilterAndSort_StableTies(t *testing.T) {
	users := []User{
		{ID: 1, Metrics: map[string]int64{"m": 5}},
		{ID: 2, Metrics: map[string]int64{"m": 5}},
		{ID: 3, Metrics: map[string]int64{"m": 9}},
	}

	ranked := ApplyFilterAndSort(users, "", "m")

	require.Len(t, ranked, 3)
	assert.Equal(t, []int{3, 1, 2}, ids(ranked))
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 2, ranked[1].Rank)
	assert.Equal(t, 3, ranked[2].Rank)
}

func TestApplyFilterAndSort_MissingMetricIsZero(t *testing.T) {
	users := []User{
		{ID: 1},
		{ID: 2, Metrics: map[string]int64{"m": -1}},
		{ID: 3, Metrics: map[string]int64{"m": 1}},
	}

	assert.Equal(t, []int{3, 1, 2}, ids(ApplyFilterAndSort(users, "", "m")))
}

func TestApplyFilterAndSort_Filter(t *testing.T) {
	users := []User{
		{ID: 1, Username: "coolninja1", DisplayName: "Cool Ninja", Metrics: map[string]int64{"m": 1}},
		{ID: 2, Username: "swiftfox2", DisplayName: "Swift Fox", Metrics: map[string]int64{"m": 2}},
		{ID: 3, Username: "pixelcool3", DisplayName: "Pixel Otter", Metrics: map[string]int64{"m": 3}},
	}

	t.Run("case insensitive display name", func(t *testing.T) {
		ranked := ApplyFilterAndSort(users, "COOL", "m")
		assert.Equal(t, []int{3, 1}, ids(ranked))
	})

	t.Run("ranks are local to the view", func(t *testing.T) {
		ranked := ApplyFilterAndSort(users, "ninja", "m")
		require.Len(t, ranked, 1)
		assert.Equal(t, 1, ranked[0].Rank)
	})

	t.Run("blank query matches all", func(t *testing.T) {
		assert.Len(t, ApplyFilterAndSort(users, "   ", "m"), 3)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, ApplyFilterAndSort(users, "zebra", "m"))
	})

	t.Run("input order untouched", func(t *testing.T) {
		ApplyFilterAndSort(users, "", "m")
		assert.Equal(t, 1, users[0].ID)
		assert.Equal(t, 3, users[2].ID)
	})
}
