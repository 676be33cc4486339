package models

import "time"

// Mode selects the session flavour.
type Mode string

const (
	ModeQuiz  Mode = "quiz"
	ModeBlitz Mode = "blitz"
)

// Direction of a prompt: forward asks Source and expects Target, reverse the opposite.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusComplete  SessionStatus = "complete"
	StatusExpired   SessionStatus = "expired"
	StatusAbandoned SessionStatus = "abandoned"
)

// Prompt is a single question within a session
type Prompt struct {
	WordID    int64      `json:"word_id"`
	Direction Direction  `json:"direction"`
	Question  string     `json:"question"`
	Expected  []string   `json:"expected"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	Deadline  *time.Time `json:"deadline,omitempty"` // Blitz only
}

// Session is an in-progress quiz or blitz run. It lives only in the session cache.
type Session struct {
	ID         string        `json:"id"`
	UserID     int64         `json:"user_id"`
	Mode       Mode          `json:"mode"`
	Seed       int64         `json:"seed"`
	GroupID    *int64        `json:"group_id,omitempty"`
	Prompts    []Prompt      `json:"prompts"`
	Current    int           `json:"current"`
	Correct    int           `json:"correct"`
	Answered   int           `json:"answered"`
	Score      int           `json:"score"`
	Status     SessionStatus `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	Deadline   *time.Time    `json:"deadline,omitempty"` // End of the blitz budget
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Version    int64         `json:"version"`
}

// Done reports whether every prompt has been answered.
func (s *Session) Done() bool {
	return s.Current >= len(s.Prompts)
}

// CurrentPrompt returns the prompt awaiting an answer, or nil when done.
func (s *Session) CurrentPrompt() *Prompt {
	if s.Done() {
		return nil
	}
	return &s.Prompts[s.Current]
}

// Expired reports whether a blitz budget has run out at t.
func (s *Session) Expired(t time.Time) bool {
	return s.Deadline != nil && t.After(*s.Deadline)
}

// Clone returns a deep copy safe to mutate.
func (s *Session) Clone() *Session {
	c := *s
	c.GroupID = clonePtr(s.GroupID)
	c.Deadline = clonePtr(s.Deadline)
	c.FinishedAt = clonePtr(s.FinishedAt)
	c.Prompts = make([]Prompt, len(s.Prompts))
	for i, p := range s.Prompts {
		p.Expected = append([]string(nil), p.Expected...)
		p.IssuedAt = clonePtr(p.IssuedAt)
		p.Deadline = clonePtr(p.Deadline)
		c.Prompts[i] = p
	}
	return &c
}

// Result builds the completion summary for the session.
func (s *Session) Result(outcome SessionStatus, finishedAt time.Time) SessionResult {
	return SessionResult{
		SessionID:  s.ID,
		UserID:     s.UserID,
		Mode:       s.Mode,
		Total:      len(s.Prompts),
		Answered:   s.Answered,
		Correct:    s.Correct,
		Score:      s.Score,
		StartedAt:  s.StartedAt,
		FinishedAt: finishedAt,
		Outcome:    outcome,
	}
}

// AnswerResult is returned for every accepted submission
type AnswerResult struct {
	Correct  bool           `json:"correct"`
	TimedOut bool           `json:"timed_out"`
	Expected []string       `json:"expected"`
	Progress UserProgress   `json:"progress"`
	Points   int            `json:"points"` // Delta applied for this answer
	Score    int            `json:"score"`  // Session total so far
	Next     *Prompt        `json:"next,omitempty"`
	Done     bool           `json:"done"`
	Summary  *SessionResult `json:"summary,omitempty"`
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
