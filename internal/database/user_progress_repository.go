package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/wordbot/pkg/models"
)

// UserProgressRepository handles database operations for user progress
type UserProgressRepository struct {
	*conn
}

const progressColumns = `user_id, word_id, streak, incorrect, level, last_reviewed, next_due, mastered_at, created_at, updated_at`

// Get returns progress for a specific user and word. With lock set the row is
// locked for the rest of the transaction where the database supports it.
func (r *UserProgressRepository) Get(ctx context.Context, userID, wordID int64, lock bool) (*models.UserProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = ? AND word_id = ?`
	if lock {
		query += r.forUpdate()
	}
	var progress models.UserProgress
	if err := r.get(ctx, &progress, query, userID, wordID); err != nil {
		return nil, wrapErr(err, fmt.Sprintf("failed to get progress for word %d", wordID))
	}
	return &progress, nil
}

// Upsert creates or replaces a progress row
func (r *UserProgressRepository) Upsert(ctx context.Context, p *models.UserProgress) error {
	if err := p.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO user_progress (` + progressColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, word_id) DO UPDATE SET
			streak = excluded.streak,
			incorrect = excluded.incorrect,
			level = excluded.level,
			last_reviewed = excluded.last_reviewed,
			next_due = excluded.next_due,
			mastered_at = excluded.mastered_at,
			updated_at = excluded.updated_at
	`
	_, err := r.exec(ctx, query,
		p.UserID, p.WordID, p.Streak, p.Incorrect, p.Level,
		utcPtr(p.LastReviewed), utc(p.NextDue), utcPtr(p.MasteredAt),
		utc(p.CreatedAt), utc(p.UpdatedAt))
	if err != nil {
		return wrapErr(err, fmt.Sprintf("failed to save progress for word %d", p.WordID))
	}
	return nil
}

// GetByUser returns all progress rows of a user ordered by word
func (r *UserProgressRepository) GetByUser(ctx context.Context, userID int64) ([]models.UserProgress, error) {
	var rows []models.UserProgress
	err := r.sel(ctx, &rows, `SELECT `+progressColumns+` FROM user_progress WHERE user_id = ? ORDER BY word_id`, userID)
	if err != nil {
		return nil, wrapErr(err, "failed to get progress")
	}
	return rows, nil
}

// LevelCounts counts visible words per level. Words never reviewed count as new.
func (r *UserProgressRepository) LevelCounts(ctx context.Context, userID int64) (models.MasteryBreakdown, error) {
	var rows []struct {
		Level models.MasteryLevel `db:"level"`
		N     int                 `db:"n"`
	}
	query := `
		SELECT COALESCE(p.level, 0) AS level, COUNT(*) AS n
		FROM words w
		LEFT JOIN user_progress p ON p.word_id = w.id AND p.user_id = ?
		WHERE ` + visibleTo + `
		GROUP BY COALESCE(p.level, 0)
	`
	var out models.MasteryBreakdown
	if err := r.sel(ctx, &rows, query, userID, userID); err != nil {
		return out, wrapErr(err, "failed to count levels")
	}
	for _, row := range rows {
		out.Add(row.Level, row.N)
	}
	return out, nil
}

// CountDue returns how many of the user's words are due at asOf
func (r *UserProgressRepository) CountDue(ctx context.Context, userID int64, asOf time.Time) (int, error) {
	var n int
	err := r.get(ctx, &n, `SELECT COUNT(*) FROM user_progress WHERE user_id = ? AND next_due <= ?`, userID, utc(asOf))
	if err != nil {
		return 0, wrapErr(err, "failed to count due words")
	}
	return n, nil
}

// DueByUser groups due rows per user in one query, ordered by user ID
func (r *UserProgressRepository) DueByUser(ctx context.Context, asOf time.Time) ([]models.Reminder, error) {
	query := `
		SELECT user_id, COUNT(*) AS due_count
		FROM user_progress
		WHERE next_due <= ?
		GROUP BY user_id
		ORDER BY user_id
	`
	var reminders []models.Reminder
	if err := r.sel(ctx, &reminders, query, utc(asOf)); err != nil {
		return nil, wrapErr(err, "failed to group due words")
	}
	return reminders, nil
}

// DueForNotification is DueByUser restricted to users who want a reminder at
// localHour. Users without a preferred hour are included only when inWindow is set.
func (r *UserProgressRepository) DueForNotification(ctx context.Context, asOf time.Time, localHour int, inWindow bool) ([]models.Reminder, error) {
	hourCond := `s.remind_hour = ?`
	if inWindow {
		hourCond = `(s.remind_hour IS NULL OR s.remind_hour = ?)`
	}
	query := `
		SELECT p.user_id, COUNT(*) AS due_count, COALESCE(MAX(s.daily_limit), 0) AS daily_limit
		FROM user_progress p
		LEFT JOIN user_settings s ON s.user_id = p.user_id
		WHERE p.next_due <= ?
			AND (s.user_id IS NULL OR s.remind_enabled = TRUE)
			AND ` + hourCond + `
		GROUP BY p.user_id
		ORDER BY p.user_id
	`
	var reminders []models.Reminder
	if err := r.sel(ctx, &reminders, query, utc(asOf), localHour); err != nil {
		return nil, wrapErr(err, "failed to select users to remind")
	}
	return reminders, nil
}
