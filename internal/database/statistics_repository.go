package database

import (
	"context"
	"time"

	"github.com/example/wordbot/pkg/models"
)

// StatisticsRepository runs the aggregate queries behind stats and leaderboards
type StatisticsRepository struct {
	*conn
}

// SessionTotals returns the number of finished sessions and their mean accuracy
func (r *StatisticsRepository) SessionTotals(ctx context.Context, userID int64) (int, float64, error) {
	var row struct {
		N   int     `db:"n"`
		Avg float64 `db:"avg"`
	}
	query := `
		SELECT COUNT(*) AS n,
			COALESCE(AVG(CASE WHEN answered > 0 THEN CAST(correct AS REAL) / answered ELSE 0 END), 0) AS avg
		FROM session_results
		WHERE user_id = ?
	`
	if err := r.get(ctx, &row, query, userID); err != nil {
		return 0, 0, wrapErr(err, "failed to get session totals")
	}
	return row.N, row.Avg, nil
}

// AnswerCounts returns correct and wrong answers in [from, to)
func (r *StatisticsRepository) AnswerCounts(ctx context.Context, userID int64, from, to time.Time) (int, int, error) {
	var row struct {
		Correct int `db:"correct"`
		Wrong   int `db:"wrong"`
	}
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN correct THEN 1 ELSE 0 END), 0) AS correct,
			COALESCE(SUM(CASE WHEN correct THEN 0 ELSE 1 END), 0) AS wrong
		FROM answer_log
		WHERE user_id = ? AND answered_at >= ? AND answered_at < ?
	`
	if err := r.get(ctx, &row, query, userID, utc(from), utc(to)); err != nil {
		return 0, 0, wrapErr(err, "failed to count answers")
	}
	return row.Correct, row.Wrong, nil
}

type scoreRow struct {
	UserID    int64    `db:"user_id"`
	Username  string   `db:"username"`
	Score     int      `db:"score"`
	ReachedAt NullTime `db:"reached_at"`
}

func (s scoreRow) entry() models.LeaderboardEntry {
	return models.LeaderboardEntry{
		UserID:    s.UserID,
		Username:  s.Username,
		Score:     s.Score,
		ReachedAt: s.ReachedAt.Ptr(),
	}
}

func (r *StatisticsRepository) scores(ctx context.Context, query string, args ...any) ([]models.LeaderboardEntry, error) {
	var rows []scoreRow
	if err := r.sel(ctx, &rows, query, args...); err != nil {
		return nil, wrapErr(err, "failed to get leaderboard scores")
	}
	out := make([]models.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.entry())
	}
	return out, nil
}

// MasteredScores counts mastered words per user. ReachedAt is the latest mastery time.
func (r *StatisticsRepository) MasteredScores(ctx context.Context) ([]models.LeaderboardEntry, error) {
	return r.scores(ctx, `
		SELECT p.user_id, COALESCE(u.username, '') AS username, COUNT(*) AS score, MAX(p.mastered_at) AS reached_at
		FROM user_progress p
		LEFT JOIN users u ON u.id = p.user_id
		WHERE p.level = ?
		GROUP BY p.user_id, u.username
	`, models.LevelMastered)
}

// PointScores returns stored points per user. ReachedAt is the latest answer time.
func (r *StatisticsRepository) PointScores(ctx context.Context) ([]models.LeaderboardEntry, error) {
	return r.scores(ctx, `
		SELECT u.id AS user_id, u.username, u.points AS score,
			(SELECT MAX(a.answered_at) FROM answer_log a WHERE a.user_id = u.id) AS reached_at
		FROM users u
		WHERE u.points > 0
	`)
}

// PeriodScores sums answer points per user in [from, to). ReachedAt is the last answer in range.
func (r *StatisticsRepository) PeriodScores(ctx context.Context, from, to time.Time) ([]models.LeaderboardEntry, error) {
	return r.scores(ctx, `
		SELECT a.user_id, COALESCE(u.username, '') AS username, SUM(a.points) AS score, MAX(a.answered_at) AS reached_at
		FROM answer_log a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.answered_at >= ? AND a.answered_at < ?
		GROUP BY a.user_id, u.username
	`, utc(from), utc(to))
}
