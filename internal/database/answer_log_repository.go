package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/wordbot/pkg/models"
)

// AnswerLogRepository stores scored prompts
type AnswerLogRepository struct {
	*conn
}

// Create inserts an answer. A second answer for the same prompt fails with ErrDuplicate.
func (r *AnswerLogRepository) Create(ctx context.Context, a *models.AnswerLog) error {
	query := `
		INSERT INTO answer_log (session_id, prompt_index, user_id, word_id, correct, timed_out, points, answered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := r.get(ctx, &a.ID, query,
		a.SessionID, a.PromptIndex, a.UserID, a.WordID, a.Correct, a.TimedOut, a.Points, utc(a.AnsweredAt))
	if err != nil {
		return wrapErr(err, fmt.Sprintf("failed to log answer %s/%d", a.SessionID, a.PromptIndex))
	}
	return nil
}

// GetBySession returns the answers of a session in prompt order
func (r *AnswerLogRepository) GetBySession(ctx context.Context, sessionID string) ([]models.AnswerLog, error) {
	var logs []models.AnswerLog
	query := `
		SELECT id, session_id, prompt_index, user_id, word_id, correct, timed_out, points, answered_at
		FROM answer_log WHERE session_id = ? ORDER BY prompt_index
	`
	if err := r.sel(ctx, &logs, query, sessionID); err != nil {
		return nil, wrapErr(err, "failed to get answers")
	}
	return logs, nil
}

// LastAnswerAt returns the time of the user's latest answer, or nil
func (r *AnswerLogRepository) LastAnswerAt(ctx context.Context, userID int64) (*time.Time, error) {
	var t NullTime
	if err := r.get(ctx, &t, `SELECT MAX(answered_at) FROM answer_log WHERE user_id = ?`, userID); err != nil {
		return nil, wrapErr(err, "failed to get last answer")
	}
	return t.Ptr(), nil
}
