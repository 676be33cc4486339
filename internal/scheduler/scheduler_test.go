package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/wordbot/internal/database"
	"github.com/example/wordbot/internal/database/dbtest"
	"github.com/example/wordbot/pkg/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	mu        sync.Mutex
	reminders map[int64]int
	summaries []models.SessionResult
	failFor   int64
}

func (f *fakeNotifier) SendReminders(_ context.Context, userID int64, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if userID == f.failFor {
		return errors.New("chat blocked")
	}
	if f.reminders == nil {
		f.reminders = map[int64]int{}
	}
	f.reminders[userID] = count
	return nil
}

func (f *fakeNotifier) SendSessionSummary(_ context.Context, s models.SessionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, s)
	return nil
}

type fakeExpirer struct {
	mu    sync.Mutex
	calls int
	out   []models.SessionResult
}

func (f *fakeExpirer) ExpireSessions(context.Context, time.Time) ([]models.SessionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := f.out
	f.out = nil
	return out, nil
}

func (f *fakeExpirer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func seed(t *testing.T) *database.Store {
	s := dbtest.New(t)
	var words []models.Word
	for _, src := range []string{"a", "b", "c"} {
		words = append(words, dbtest.Word(t, s, 0, src, src+"!"))
	}
	for _, w := range words {
		dbtest.Progress(t, s, models.UserProgress{UserID: 7, WordID: w.ID, NextDue: t0.Add(-time.Hour)})
	}
	dbtest.Progress(t, s, models.UserProgress{UserID: 3, WordID: words[0].ID, NextDue: t0})
	dbtest.Progress(t, s, models.UserProgress{UserID: 9, WordID: words[0].ID, NextDue: t0.Add(time.Hour)})
	return s
}

func newScheduler(t *testing.T, store *database.Store, n Notifier, e SessionExpirer, mutate ...func(*Config)) *Scheduler {
	log, _ := test.NewNullLogger()
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	return New(store, e, n, cfg, log)
}

func TestDueReminders(t *testing.T) {
	s := newScheduler(t, seed(t), &fakeNotifier{}, nil)

	got, err := s.DueReminders(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, []models.Reminder{{UserID: 3, DueCount: 1}, {UserID: 7, DueCount: 3}}, got)

	none, err := s.DueReminders(context.Background(), t0.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCheckReminders(t *testing.T) {
	n := &fakeNotifier{failFor: 3}
	s := newScheduler(t, seed(t), n, nil, func(c *Config) { c.DueLimit = 2 })

	sent, err := s.CheckReminders(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, map[int64]int{7: 2}, n.reminders)
}

func TestCheckReminders_QuietHours(t *testing.T) {
	n := &fakeNotifier{}
	tashkent := time.FixedZone("UZT", 5*3600)
	s := newScheduler(t, seed(t), n, nil, func(c *Config) { c.Location = tashkent })

	// 12:00 UTC is 17:00 local
	assert.True(t, s.InWindow(t0))
	// 18:00 UTC is 23:00 local
	late := t0.Add(6 * time.Hour)
	assert.False(t, s.InWindow(late))

	sent, err := s.CheckReminders(context.Background(), late)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, n.reminders)
}

func TestInWindow_WrapsMidnight(t *testing.T) {
	s := newScheduler(t, dbtest.New(t), &fakeNotifier{}, nil, func(c *Config) {
		c.StartHour = 20
		c.EndHour = 6
	})
	assert.True(t, s.InWindow(time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)))
	assert.True(t, s.InWindow(time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)))
	assert.False(t, s.InWindow(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
}

func TestRunManualCheck(t *testing.T) {
	n := &fakeNotifier{}
	s := newScheduler(t, seed(t), n, nil)
	s.now = func() time.Time { return t0 }

	require.NoError(t, s.RunManualCheck(context.Background(), 7))
	require.NoError(t, s.RunManualCheck(context.Background(), 9))
	assert.Equal(t, map[int64]int{7: 3}, n.reminders)
}

func TestSweepSessions(t *testing.T) {
	n := &fakeNotifier{}
	e := &fakeExpirer{out: []models.SessionResult{{SessionID: "s1", UserID: 7, Outcome: models.StatusExpired}}}
	s := newScheduler(t, dbtest.New(t), n, e)

	sent, err := s.SweepSessions(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, n.summaries, 1)
	assert.Equal(t, "s1", n.summaries[0].SessionID)
}

func TestStart_RunsSweep(t *testing.T) {
	e := &fakeExpirer{}
	s := newScheduler(t, dbtest.New(t), &fakeNotifier{}, e, func(c *Config) {
		c.SweepInterval = 20 * time.Millisecond
	})
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return e.callCount() >= 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestCheckReminders_UserSettings(t *testing.T) {
	ctx := context.Background()
	store := seed(t)
	hour := 23
	require.NoError(t, store.Settings.Save(ctx, &models.UserSettings{UserID: 3}))
	require.NoError(t, store.Settings.Save(ctx, &models.UserSettings{UserID: 7, RemindersEnabled: true, RemindHour: &hour, DailyLimit: 2}))

	n := &fakeNotifier{}
	s := newScheduler(t, store, n, nil)
	s.now = func() time.Time { return t0 }

	// 3 opted out and 7 only wants 23:00
	sent, err := s.CheckReminders(ctx, t0)
	require.NoError(t, err)
	assert.Zero(t, sent)

	// a chosen hour outside the notification window still gets its reminder
	at23 := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)
	require.False(t, s.InWindow(at23))
	sent, err = s.CheckReminders(ctx, at23)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, map[int64]int{7: 2}, n.reminders)

	// asking explicitly works even with reminders off
	require.NoError(t, s.RunManualCheck(ctx, 3))
	assert.Equal(t, 1, n.reminders[3])
}
