package models

import "time"

// SessionResult is the persisted summary of a finished session
type SessionResult struct {
	SessionID  string        `json:"session_id" db:"session_id"`
	UserID     int64         `json:"user_id" db:"user_id"`
	Mode       Mode          `json:"mode" db:"mode"`
	Total      int           `json:"total" db:"total"`
	Answered   int           `json:"answered" db:"answered"`
	Correct    int           `json:"correct" db:"correct"`
	Score      int           `json:"score" db:"score"`
	StartedAt  time.Time     `json:"started_at" db:"started_at"`
	FinishedAt time.Time     `json:"finished_at" db:"finished_at"`
	Outcome    SessionStatus `json:"outcome" db:"outcome"`
}

// Wrong returns the number of answered prompts that were not correct.
func (r *SessionResult) Wrong() int {
	return r.Answered - r.Correct
}

// Accuracy returns Correct/Answered, or 0 when nothing was answered.
func (r *SessionResult) Accuracy() float64 {
	if r.Answered == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Answered)
}

// AnswerLog records one scored prompt. (SessionID, PromptIndex) is unique.
type AnswerLog struct {
	ID          int64     `json:"id" db:"id"`
	SessionID   string    `json:"session_id" db:"session_id"`
	PromptIndex int       `json:"prompt_index" db:"prompt_index"`
	UserID      int64     `json:"user_id" db:"user_id"`
	WordID      int64     `json:"word_id" db:"word_id"`
	Correct     bool      `json:"correct" db:"correct"`
	TimedOut    bool      `json:"timed_out" db:"timed_out"`
	Points      int       `json:"points" db:"points"`
	AnsweredAt  time.Time `json:"answered_at" db:"answered_at"`
}
