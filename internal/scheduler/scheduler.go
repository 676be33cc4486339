package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/example/wordbot/internal/database"
	"github.com/example/wordbot/pkg/models"
	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// Default notification window, local hours inclusive
const (
	DefaultNotificationStartHour = 8
	DefaultNotificationEndHour   = 22
)

// Notifier delivers scheduler output to users
type Notifier interface {
	SendReminders(ctx context.Context, userID int64, count int) error
	SendSessionSummary(ctx context.Context, summary models.SessionResult) error
}

// SessionExpirer finalizes blitz sessions whose budget ran out
type SessionExpirer interface {
	ExpireSessions(ctx context.Context, asOf time.Time) ([]models.SessionResult, error)
}

// Config controls job intervals and the notification window
type Config struct {
	ReminderInterval time.Duration
	SweepInterval    time.Duration
	StartHour        int
	EndHour          int
	Location         *time.Location
	DueLimit         int // Caps the count sent in a reminder; users may set a lower cap
}

// DefaultConfig returns hourly reminders and a 5s blitz sweep
func DefaultConfig() Config {
	return Config{
		ReminderInterval: time.Hour,
		SweepInterval:    5 * time.Second,
		StartHour:        DefaultNotificationStartHour,
		EndHour:          DefaultNotificationEndHour,
		Location:         time.UTC,
		DueLimit:         20,
	}
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	store     *database.Store
	expirer   SessionExpirer
	notifier  Notifier
	cfg       Config
	log       logrus.FieldLogger
	now       func() time.Time
}

// New creates a new scheduler instance
func New(store *database.Store, expirer SessionExpirer, notifier Notifier, cfg Config, log logrus.FieldLogger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		store:     store,
		expirer:   expirer,
		notifier:  notifier,
		cfg:       cfg,
		log:       log.WithField("component", "scheduler"),
		now:       time.Now,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.cfg.ReminderInterval).SingletonMode().Do(s.reminderJob); err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}
	if s.expirer != nil {
		if _, err := s.scheduler.Every(s.cfg.SweepInterval).SingletonMode().Do(s.sweepJob); err != nil {
			return fmt.Errorf("schedule session sweep: %w", err)
		}
	}
	s.scheduler.StartAsync()
	s.log.WithFields(logrus.Fields{
		"reminder_interval": s.cfg.ReminderInterval,
		"sweep_interval":    s.cfg.SweepInterval,
	}).Info("scheduler started")
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) reminderJob() {
	if _, err := s.CheckReminders(context.Background(), s.now()); err != nil {
		s.log.WithError(err).Error("reminder check failed")
	}
}

func (s *Scheduler) sweepJob() {
	if _, err := s.SweepSessions(context.Background(), s.now()); err != nil {
		s.log.WithError(err).Error("session sweep failed")
	}
}

// DueReminders returns, per user with due words, how many are due at asOf
func (s *Scheduler) DueReminders(ctx context.Context, asOf time.Time) ([]models.Reminder, error) {
	return s.store.Progress.DueByUser(ctx, asOf)
}

// InWindow reports whether t falls in the notification hours. A window whose
// start is after its end wraps past midnight.
func (s *Scheduler) InWindow(t time.Time) bool {
	h := t.In(s.cfg.Location).Hour()
	if s.cfg.StartHour <= s.cfg.EndHour {
		return h >= s.cfg.StartHour && h <= s.cfg.EndHour
	}
	return h >= s.cfg.StartHour || h <= s.cfg.EndHour
}

// CheckReminders sends one reminder per user who has due words and wants a
// reminder at this local hour, and returns how many were sent. Users without a
// preferred hour are reminded inside the notification window; users who turned
// reminders off are skipped. Failures for one user are logged and do not stop the scan.
func (s *Scheduler) CheckReminders(ctx context.Context, asOf time.Time) (int, error) {
	hour := asOf.In(s.cfg.Location).Hour()
	inWindow := s.InWindow(asOf)

	reminders, err := s.store.Progress.DueForNotification(ctx, asOf, hour, inWindow)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range reminders {
		if err := s.notifier.SendReminders(ctx, r.UserID, s.capped(r.DueCount, r.Limit)); err != nil {
			s.log.WithError(err).WithField("user_id", r.UserID).Warn("failed to send reminder")
			continue
		}
		sent++
	}
	s.log.WithFields(logrus.Fields{
		"hour":      hour,
		"in_window": inWindow,
		"due_users": len(reminders),
		"sent":      sent,
	}).Info("reminders sent")
	return sent, nil
}

// SweepSessions expires finished blitz budgets and sends their summaries
func (s *Scheduler) SweepSessions(ctx context.Context, asOf time.Time) (int, error) {
	summaries, err := s.expirer.ExpireSessions(ctx, asOf)
	sent := 0
	for _, sum := range summaries {
		if nerr := s.notifier.SendSessionSummary(ctx, sum); nerr != nil {
			s.log.WithError(nerr).WithFields(logrus.Fields{
				"user_id":    sum.UserID,
				"session_id": sum.SessionID,
			}).Warn("failed to send session summary")
			continue
		}
		sent++
	}
	return sent, err
}

// RunManualCheck forces a check for a specific user, ignoring the hour and the
// on/off preference but honouring the user's cap
func (s *Scheduler) RunManualCheck(ctx context.Context, userID int64) error {
	count, err := s.store.Progress.CountDue(ctx, userID, s.now())
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	st, err := s.store.Settings.Get(ctx, userID)
	if err != nil {
		return err
	}
	return s.notifier.SendReminders(ctx, userID, s.capped(count, st.DailyLimit))
}

// capped limits n by the global limit and by the user's own when set
func (s *Scheduler) capped(n, userLimit int) int {
	if s.cfg.DueLimit > 0 && n > s.cfg.DueLimit {
		n = s.cfg.DueLimit
	}
	if userLimit > 0 && n > userLimit {
		n = userLimit
	}
	return n
}
