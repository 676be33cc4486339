package models

import "time"

// MasteryBreakdown counts words per mastery level
type MasteryBreakdown struct {
	New      int `json:"new"`
	Learning int `json:"learning"`
	Known    int `json:"known"`
	Mastered int `json:"mastered"`
}

// Add increments the counter for level by n.
func (b *MasteryBreakdown) Add(level MasteryLevel, n int) {
	switch level {
	case LevelNew:
		b.New += n
	case LevelLearning:
		b.Learning += n
	case LevelKnown:
		b.Known += n
	case LevelMastered:
		b.Mastered += n
	}
}

// Count returns the counter for level.
func (b MasteryBreakdown) Count(level MasteryLevel) int {
	switch level {
	case LevelNew:
		return b.New
	case LevelLearning:
		return b.Learning
	case LevelKnown:
		return b.Known
	case LevelMastered:
		return b.Mastered
	}
	return 0
}

// Total sums every level.
func (b MasteryBreakdown) Total() int {
	return b.New + b.Learning + b.Known + b.Mastered
}

// DailyActivity tracks what a user did on one local day
type DailyActivity struct {
	Day     time.Time `json:"day"`
	Correct int       `json:"correct"`
	Wrong   int       `json:"wrong"`
	Added   int       `json:"added"` // Words created by the user that day
}

// UserStats is the aggregate view shown by /stats
type UserStats struct {
	UserID            int64            `json:"user_id"`
	TotalWords        int              `json:"total_words"`
	Breakdown         MasteryBreakdown `json:"breakdown"`
	SessionsCompleted int              `json:"sessions_completed"`
	AverageScore      float64          `json:"average_score"` // Mean accuracy in [0,1]
	Points            int              `json:"points"`
	DueNow            int              `json:"due_now"`
	Today             DailyActivity    `json:"today"`
}

// LeaderboardScope selects how leaderboard scores are computed.
type LeaderboardScope string

const (
	ScopeMastered LeaderboardScope = "mastered"
	ScopePoints   LeaderboardScope = "points"
	ScopeDaily    LeaderboardScope = "daily"
	ScopeWeekly   LeaderboardScope = "weekly"
	ScopeMonthly  LeaderboardScope = "monthly"
)

// LeaderboardEntry is a ranked user
type LeaderboardEntry struct {
	UserID    int64      `json:"user_id" db:"user_id"`
	Username  string     `json:"username" db:"username"`
	Score     int        `json:"score" db:"score"`
	ReachedAt *time.Time `json:"reached_at,omitempty" db:"reached_at"`
	Rank      int        `json:"rank" db:"-"`
}

// Reminder says how many words a user has due
type Reminder struct {
	UserID   int64 `json:"user_id" db:"user_id"`
	DueCount int   `json:"due_count" db:"due_count"`
	Limit    int   `json:"limit,omitempty" db:"daily_limit"` // User's own cap, 0 when unset
}
