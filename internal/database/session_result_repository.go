package database

import (
	"context"
	"fmt"

	"github.com/example/wordbot/pkg/models"
)

// SessionResultRepository handles database operations for finished sessions
type SessionResultRepository struct {
	*conn
}

const resultColumns = `session_id, user_id, mode, total, answered, correct, score, started_at, finished_at, outcome`

// Create stores a session summary. A session is recorded at most once.
func (r *SessionResultRepository) Create(ctx context.Context, res *models.SessionResult) error {
	query := `INSERT INTO session_results (` + resultColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.exec(ctx, query,
		res.SessionID, res.UserID, res.Mode, res.Total, res.Answered, res.Correct, res.Score,
		utc(res.StartedAt), utc(res.FinishedAt), res.Outcome)
	if err != nil {
		return wrapErr(err, fmt.Sprintf("failed to save result of session %s", res.SessionID))
	}
	return nil
}

// GetByID returns the result of a session
func (r *SessionResultRepository) GetByID(ctx context.Context, sessionID string) (*models.SessionResult, error) {
	var res models.SessionResult
	if err := r.get(ctx, &res, `SELECT `+resultColumns+` FROM session_results WHERE session_id = ?`, sessionID); err != nil {
		return nil, wrapErr(err, fmt.Sprintf("failed to get result of session %s", sessionID))
	}
	return &res, nil
}

// GetByUser returns the user's most recent results first
func (r *SessionResultRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]models.SessionResult, error) {
	var results []models.SessionResult
	query := `SELECT ` + resultColumns + ` FROM session_results WHERE user_id = ? ORDER BY finished_at DESC, session_id LIMIT ?`
	if err := r.sel(ctx, &results, query, userID, limit); err != nil {
		return nil, wrapErr(err, "failed to get session results")
	}
	return results, nil
}
