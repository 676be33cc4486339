package stats

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/example/wordbot/internal/database/dbtest"
	"github.com/example/wordbot/pkg/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) // Wednesday

func at(d time.Duration) *time.Time {
	t := t0.Add(d)
	return &t
}

func TestRank_TotalOrder(t *testing.T) {
	entries := []models.LeaderboardEntry{
		{UserID: 5, Score: 3, ReachedAt: at(time.Hour)},
		{UserID: 4, Score: 3, ReachedAt: nil},
		{UserID: 3, Score: 3, ReachedAt: at(time.Minute)},
		{UserID: 2, Score: 7, ReachedAt: at(time.Hour)},
		{UserID: 1, Score: 3, ReachedAt: at(time.Minute)},
		{UserID: 6, Score: 0, ReachedAt: at(0)},
		{UserID: 7, Score: -4, ReachedAt: at(0)},
		{UserID: 8, Score: 3, ReachedAt: nil},
	}
	want := []int64{2, 1, 3, 5, 4, 8}

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20; i++ {
		shuffled := append([]models.LeaderboardEntry(nil), entries...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		ranked := Rank(shuffled, 0)
		got := make([]int64, 0, len(ranked))
		for i, e := range ranked {
			assert.Equal(t, i+1, e.Rank)
			got = append(got, e.UserID)
		}
		require.Equal(t, want, got)
	}

	assert.Len(t, Rank(entries, 2), 2)
}

func TestPeriodBounds(t *testing.T) {
	tashkent := time.FixedZone("UZT", 5*3600)
	asOf := time.Date(2024, 4, 30, 21, 30, 0, 0, time.UTC) // already May 1st in UTC+5

	from, to, err := PeriodBounds(models.ScopeDaily, asOf, tashkent)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, tashkent), from)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, tashkent), to)

	from, to, err = PeriodBounds(models.ScopeWeekly, asOf, tashkent)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 29, 0, 0, 0, 0, tashkent), from)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, tashkent), to)

	sunday := time.Date(2024, 5, 5, 10, 0, 0, 0, time.UTC)
	from, _, err = PeriodBounds(models.ScopeWeekly, sunday, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, from.Weekday())
	assert.Equal(t, 29, from.Day())

	from, to, err = PeriodBounds(models.ScopeMonthly, asOf, tashkent)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, tashkent), from)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, tashkent), to)

	_, _, err = PeriodBounds(models.ScopePoints, asOf, time.UTC)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func newService(t *testing.T) (*Service, *testStore) {
	t.Helper()
	log, _ := test.NewNullLogger()
	s := dbtest.New(t)
	return NewService(s, nil, time.UTC, log), &testStore{t: t, svc: s}
}

func TestLeaderboard_Scopes(t *testing.T) {
	svc, ts := newService(t)
	ctx := context.Background()
	ts.user(1, "ann")
	ts.user(2, "bob")
	ts.user(3, "cid")
	w1 := ts.word(0, "a")
	w2 := ts.word(0, "b")

	ts.mastered(1, w1.ID, t0.Add(2*time.Hour))
	ts.mastered(2, w1.ID, t0.Add(time.Hour))
	ts.mastered(2, w2.ID, t0.Add(3*time.Hour))
	ts.mastered(3, w1.ID, t0.Add(time.Hour))

	board, err := svc.Leaderboard(ctx, LeaderboardQuery{})
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, []int64{2, 3, 1}, userIDs(board))
	assert.Equal(t, 2, board[0].Score)
	assert.Equal(t, "bob", board[0].Username)

	// points: ann answers yesterday and today, bob only today
	ts.answer(1, 0, 7, t0.Add(-24*time.Hour))
	ts.answer(1, 1, 5, t0)
	ts.answer(2, 0, 5, t0.Add(time.Minute))
	ts.answer(2, 1, -4, t0.Add(2*time.Minute))
	ts.points(1, 12)
	ts.points(2, 1)

	daily, err := svc.Leaderboard(ctx, LeaderboardQuery{Scope: models.ScopeDaily, AsOf: t0})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, userIDs(daily))
	assert.Equal(t, 5, daily[0].Score)
	assert.Equal(t, 1, daily[1].Score)

	weekly, err := svc.Leaderboard(ctx, LeaderboardQuery{Scope: models.ScopeWeekly, AsOf: t0})
	require.NoError(t, err)
	assert.Equal(t, 12, weekly[0].Score)

	points, err := svc.Leaderboard(ctx, LeaderboardQuery{Scope: models.ScopePoints, Limit: 1})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, int64(1), points[0].UserID)
	require.NotNil(t, points[0].ReachedAt)
	assert.True(t, points[0].ReachedAt.Equal(t0))

	_, err = svc.Leaderboard(ctx, LeaderboardQuery{Scope: "yearly"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestLeaderboard_StableAcrossCalls(t *testing.T) {
	svc, ts := newService(t)
	w := ts.word(0, "a")
	for id := int64(1); id <= 5; id++ {
		ts.user(id, "")
		ts.mastered(id, w.ID, t0)
	}

	first, err := svc.Leaderboard(context.Background(), LeaderboardQuery{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := svc.Leaderboard(context.Background(), LeaderboardQuery{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, userIDs(first))
}

func TestUserStats(t *testing.T) {
	svc, ts := newService(t)
	ctx := context.Background()

	empty, err := svc.UserStats(ctx, 1, t0)
	require.NoError(t, err)
	assert.Equal(t, models.UserStats{UserID: 1, Today: models.DailyActivity{Day: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}}, empty)

	ts.user(1, "ann")
	w1 := ts.word(0, "a")
	ts.word(1, "b")
	ts.word(2, "c")
	ts.mastered(1, w1.ID, t0.Add(-48*time.Hour))
	ts.answer(1, 0, 5, t0)
	ts.answer(1, 1, -4, t0.Add(time.Minute))
	ts.answer(1, 2, 5, t0.Add(-24*time.Hour))
	ts.points(1, 6)
	ts.result(models.SessionResult{SessionID: "a", UserID: 1, Mode: models.ModeQuiz, Total: 4, Answered: 4, Correct: 3, StartedAt: t0, FinishedAt: t0, Outcome: models.StatusComplete})
	ts.result(models.SessionResult{SessionID: "b", UserID: 1, Mode: models.ModeBlitz, Total: 30, Answered: 2, Correct: 1, StartedAt: t0, FinishedAt: t0, Outcome: models.StatusExpired})

	st, err := svc.UserStats(ctx, 1, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalWords)
	assert.Equal(t, models.MasteryBreakdown{New: 1, Mastered: 1}, st.Breakdown)
	assert.Equal(t, 2, st.SessionsCompleted)
	assert.InDelta(t, 0.625, st.AverageScore, 1e-9)
	assert.Equal(t, 6, st.Points)
	assert.Equal(t, 0, st.DueNow)
	assert.Equal(t, 1, st.Today.Correct)
	assert.Equal(t, 1, st.Today.Wrong)

	later, err := svc.UserStats(ctx, 1, t0.Add(200*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, later.DueNow)
}

func userIDs(entries []models.LeaderboardEntry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.UserID)
	}
	return out
}
