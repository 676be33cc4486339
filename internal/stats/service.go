// Package stats derives per-user statistics and leaderboards from stored progress and answers.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/wordbot/internal/database"
	"github.com/example/wordbot/internal/mastery"
	"github.com/example/wordbot/pkg/models"
	"github.com/sirupsen/logrus"
)

// Service computes statistics on demand. Nothing is cached.
type Service struct {
	store   *database.Store
	tracker *mastery.Tracker
	loc     *time.Location
	log     logrus.FieldLogger
}

// LeaderboardQuery selects a leaderboard
type LeaderboardQuery struct {
	Scope models.LeaderboardScope // Empty means mastered
	Limit int
	AsOf  time.Time // Picks the period for daily, weekly and monthly; zero means now
}

// NewService creates a statistics service. loc defines day boundaries; a nil
// tracker uses the default policy.
func NewService(store *database.Store, tracker *mastery.Tracker, loc *time.Location, log logrus.FieldLogger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if tracker == nil {
		tracker = mastery.NewTracker(store, nil, 0, log)
	}
	return &Service{store: store, tracker: tracker, loc: loc, log: log.WithField("component", "stats")}
}

// UserStats returns the user's aggregate view at asOf
func (s *Service) UserStats(ctx context.Context, userID int64, asOf time.Time) (models.UserStats, error) {
	out := models.UserStats{UserID: userID}

	total, err := s.store.Words.Count(ctx, database.WordFilter{UserID: userID})
	if err != nil {
		return out, fmt.Errorf("user stats: %w", err)
	}
	out.TotalWords = total

	if out.Breakdown, err = s.tracker.ProgressSnapshot(ctx, userID); err != nil {
		return out, fmt.Errorf("user stats: %w", err)
	}
	if out.SessionsCompleted, out.AverageScore, err = s.store.Statistics.SessionTotals(ctx, userID); err != nil {
		return out, fmt.Errorf("user stats: %w", err)
	}

	user, err := s.store.Users.GetByID(ctx, userID)
	switch {
	case err == nil:
		out.Points = user.Points
	case !errors.Is(err, models.ErrNotFound):
		return out, fmt.Errorf("user stats: %w", err)
	}

	if out.DueNow, err = s.store.Progress.CountDue(ctx, userID, asOf); err != nil {
		return out, fmt.Errorf("user stats: %w", err)
	}
	if out.Today, err = s.DailyActivity(ctx, userID, asOf); err != nil {
		return out, err
	}
	return out, nil
}

// DailyActivity counts answers and added words on the local day containing day
func (s *Service) DailyActivity(ctx context.Context, userID int64, day time.Time) (models.DailyActivity, error) {
	from, to := DayBounds(day, s.loc)
	out := models.DailyActivity{Day: from}

	var err error
	if out.Correct, out.Wrong, err = s.store.Statistics.AnswerCounts(ctx, userID, from, to); err != nil {
		return out, fmt.Errorf("daily activity: %w", err)
	}
	if out.Added, err = s.store.Words.CountAdded(ctx, userID, from, to); err != nil {
		return out, fmt.Errorf("daily activity: %w", err)
	}
	return out, nil
}

// Leaderboard ranks users for the query's scope
func (s *Service) Leaderboard(ctx context.Context, q LeaderboardQuery) ([]models.LeaderboardEntry, error) {
	if q.Scope == "" {
		q.Scope = models.ScopeMastered
	}
	if q.AsOf.IsZero() {
		q.AsOf = time.Now()
	}

	var (
		entries []models.LeaderboardEntry
		err     error
	)
	switch q.Scope {
	case models.ScopeMastered:
		entries, err = s.store.Statistics.MasteredScores(ctx)
	case models.ScopePoints:
		entries, err = s.store.Statistics.PointScores(ctx)
	case models.ScopeDaily, models.ScopeWeekly, models.ScopeMonthly:
		from, to, perr := PeriodBounds(q.Scope, q.AsOf, s.loc)
		if perr != nil {
			return nil, perr
		}
		entries, err = s.store.Statistics.PeriodScores(ctx, from, to)
	default:
		return nil, models.NewValidationError("scope", fmt.Sprintf("unknown leaderboard %q", q.Scope))
	}
	if err != nil {
		return nil, fmt.Errorf("leaderboard %s: %w", q.Scope, err)
	}

	ranked := Rank(entries, q.Limit)
	s.log.WithFields(logrus.Fields{"scope": q.Scope, "entries": len(ranked)}).Debug("leaderboard built")
	return ranked, nil
}

// ParseScope maps user input onto a leaderboard scope.
func ParseScope(s string) (models.LeaderboardScope, error) {
	switch scope := models.LeaderboardScope(s); scope {
	case "":
		return models.ScopeMastered, nil
	case models.ScopeMastered, models.ScopePoints, models.ScopeDaily, models.ScopeWeekly, models.ScopeMonthly:
		return scope, nil
	}
	return "", models.NewValidationError("scope", fmt.Sprintf("unknown leaderboard %q", s))
}
