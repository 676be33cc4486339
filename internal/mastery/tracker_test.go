package mastery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/example/wordbot/internal/database/dbtest"
	"github.com/example/wordbot/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTracker(t *testing.T) (*Tracker, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return NewTracker(dbtest.New(t), nil, 0, log), hook
}

func TestRecordAnswer_CorrectRunReachesMastered(t *testing.T) {
	tr, hook := newTracker(t)
	w := dbtest.Word(t, tr.store, 0, "apple", "olma")
	ctx := context.Background()

	prev := models.LevelNew
	var p models.UserProgress
	var err error
	for i := 0; i < 6; i++ {
		p, err = tr.RecordAnswer(ctx, 1, w.ID, true, t0.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		require.GreaterOrEqual(t, p.Level, prev)
		require.False(t, p.NextDue.Before(*p.LastReviewed))
		prev = p.Level
	}

	assert.Equal(t, models.LevelMastered, p.Level)
	require.NotNil(t, p.MasteredAt)

	stored, err := tr.Progress(ctx, 1, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LevelMastered, stored.Level)
	assert.True(t, stored.NextDue.Equal(t0.Add(5*time.Hour+168*time.Hour)))

	assert.Len(t, hook.AllEntries(), 3)
}

func TestRecordAnswer_IncorrectOnNewStaysNew(t *testing.T) {
	tr, _ := newTracker(t)
	w := dbtest.Word(t, tr.store, 0, "apple", "olma")

	p, err := tr.RecordAnswer(context.Background(), 1, w.ID, false, t0)
	require.NoError(t, err)
	assert.Equal(t, models.LevelNew, p.Level)
	assert.Equal(t, 1, p.Incorrect)
	assert.Equal(t, 0, p.Streak)
}

func TestRecordAnswer_NotVisible(t *testing.T) {
	tr, _ := newTracker(t)
	w := dbtest.Word(t, tr.store, 2, "secret", "sir")

	_, err := tr.RecordAnswer(context.Background(), 1, w.ID, true, t0)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = tr.RecordAnswer(context.Background(), 1, 999, true, t0)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRecordAnswer_ConcurrentWritersApplyEveryAnswer(t *testing.T) {
	tr, _ := newTracker(t)
	w := dbtest.Word(t, tr.store, 0, "apple", "olma")

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := tr.RecordAnswer(context.Background(), 1, w.ID, false, t0.Add(time.Duration(i)*time.Second))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	p, err := tr.Progress(context.Background(), 1, w.ID)
	require.NoError(t, err)
	assert.Equal(t, n, p.Incorrect)
	assert.Empty(t, tr.locks.locks)
}

func TestWordsDueForReview(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	empty, err := tr.WordsDueForReview(ctx, 1, t0, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	var words []models.Word
	for _, src := range []string{"a", "b", "c", "d"} {
		words = append(words, dbtest.Word(t, tr.store, 0, src, src+"!"))
	}
	dbtest.Progress(t, tr.store, models.UserProgress{UserID: 1, WordID: words[0].ID, NextDue: t0.Add(-time.Minute)})
	dbtest.Progress(t, tr.store, models.UserProgress{UserID: 1, WordID: words[1].ID, NextDue: t0.Add(-time.Hour)})
	dbtest.Progress(t, tr.store, models.UserProgress{UserID: 1, WordID: words[2].ID, NextDue: t0.Add(time.Millisecond)})
	dbtest.Progress(t, tr.store, models.UserProgress{UserID: 1, WordID: words[3].ID, NextDue: t0})

	due, err := tr.WordsDueForReview(ctx, 1, t0, 0)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, []int64{words[1].ID, words[0].ID, words[3].ID}, []int64{due[0].ID, due[1].ID, due[2].ID})
	for _, w := range due {
		p, err := tr.Progress(ctx, 1, w.ID)
		require.NoError(t, err)
		assert.False(t, p.NextDue.After(t0))
	}

	capped, err := tr.WordsDueForReview(ctx, 1, t0, 1)
	require.NoError(t, err)
	assert.Len(t, capped, 1)
}

func TestProgressSnapshot(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	a := dbtest.Word(t, tr.store, 0, "a", "1")
	dbtest.Word(t, tr.store, 1, "b", "2")
	dbtest.Word(t, tr.store, 2, "c", "3")

	for i := 0; i < 2; i++ {
		_, err := tr.RecordAnswer(ctx, 1, a.ID, true, t0)
		require.NoError(t, err)
	}

	snap, err := tr.ProgressSnapshot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.MasteryBreakdown{New: 1, Learning: 1}, snap)
}

func TestDueInGroupAndNewWords(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()

	g := &models.Group{OwnerID: 1, Name: "Animals"}
	require.NoError(t, tr.store.Groups.Create(ctx, g))
	cat := models.Word{OwnerID: 1, GroupID: &g.ID, Source: "cat", Target: "mushuk"}
	require.NoError(t, tr.store.Words.Create(ctx, &cat))
	dog := models.Word{OwnerID: 1, GroupID: &g.ID, Source: "dog", Target: "it"}
	require.NoError(t, tr.store.Words.Create(ctx, &dog))
	sun := dbtest.Word(t, tr.store, 1, "sun", "quyosh")

	seen := t0.Add(-25 * time.Hour)
	dbtest.Progress(t, tr.store, models.UserProgress{UserID: 1, WordID: cat.ID, LastReviewed: &seen, NextDue: t0.Add(-time.Hour)})
	dbtest.Progress(t, tr.store, models.UserProgress{UserID: 1, WordID: sun.ID, NextDue: t0.Add(-2 * time.Hour)})

	all, err := tr.WordsDueForReview(ctx, 1, t0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{sun.ID, cat.ID}, []int64{all[0].ID, all[1].ID})

	inGroup, err := tr.DueInGroup(ctx, 1, &g.ID, t0, 0)
	require.NoError(t, err)
	require.Len(t, inGroup, 1)
	assert.Equal(t, cat.ID, inGroup[0].ID)

	fresh, err := tr.NewWords(ctx, 1, &g.ID, 10)
	require.NoError(t, err)
	// never-seen words come before reviewed ones
	require.Len(t, fresh, 2)
	assert.Equal(t, dog.ID, fresh[0].ID)
	assert.Equal(t, cat.ID, fresh[1].ID)
}
