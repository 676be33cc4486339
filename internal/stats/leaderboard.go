package stats

import (
	"sort"

	"github.com/example/wordbot/pkg/models"
)

// DefaultLeaderboardLimit is used when a query gives no limit.
const DefaultLeaderboardLimit = 10

// Rank drops non-positive scores, orders entries by score desc, ReachedAt asc
// (missing last) and user ID, then assigns 1-based ranks and applies limit.
func Rank(entries []models.LeaderboardEntry, limit int) []models.LeaderboardEntry {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	ranked := make([]models.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		if e.Score > 0 {
			ranked = append(ranked, e)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

func less(a, b models.LeaderboardEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	switch {
	case a.ReachedAt != nil && b.ReachedAt != nil:
		if !a.ReachedAt.Equal(*b.ReachedAt) {
			return a.ReachedAt.Before(*b.ReachedAt)
		}
	case a.ReachedAt != nil:
		return true
	case b.ReachedAt != nil:
		return false
	}
	return a.UserID < b.UserID
}
