package models

import (
	"fmt"
	"strings"
	"time"
)

// MasteryLevel is an ordered category of how well a user knows a word.
type MasteryLevel int

const (
	LevelNew MasteryLevel = iota
	LevelLearning
	LevelKnown
	LevelMastered
)

// Levels lists every level in ascending order.
var Levels = []MasteryLevel{LevelNew, LevelLearning, LevelKnown, LevelMastered}

func (l MasteryLevel) String() string {
	switch l {
	case LevelNew:
		return "new"
	case LevelLearning:
		return "learning"
	case LevelKnown:
		return "known"
	case LevelMastered:
		return "mastered"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Valid reports whether l is one of the defined levels.
func (l MasteryLevel) Valid() bool {
	return l >= LevelNew && l <= LevelMastered
}

// Next returns the level above l, saturating at mastered.
func (l MasteryLevel) Next() MasteryLevel {
	if l >= LevelMastered {
		return LevelMastered
	}
	return l + 1
}

// Prev returns the level below l, saturating at new.
func (l MasteryLevel) Prev() MasteryLevel {
	if l <= LevelNew {
		return LevelNew
	}
	return l - 1
}

func (l MasteryLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid mastery level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *MasteryLevel) UnmarshalText(b []byte) error {
	parsed, err := ParseMasteryLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseMasteryLevel parses the lowercase level name.
func ParseMasteryLevel(s string) (MasteryLevel, error) {
	for _, l := range Levels {
		if strings.EqualFold(strings.TrimSpace(s), l.String()) {
			return l, nil
		}
	}
	return LevelNew, NewValidationError("level", fmt.Sprintf("unknown mastery level %q", s))
}

// UserProgress tracks a user's progress with a specific word
type UserProgress struct {
	UserID       int64        `json:"user_id" db:"user_id"`
	WordID       int64        `json:"word_id" db:"word_id"`
	Streak       int          `json:"streak" db:"streak"`       // Consecutive correct answers at the current level
	Incorrect    int          `json:"incorrect" db:"incorrect"` // Total incorrect answers
	Level        MasteryLevel `json:"level" db:"level"`
	LastReviewed *time.Time   `json:"last_reviewed,omitempty" db:"last_reviewed"`
	NextDue      time.Time    `json:"next_due" db:"next_due"`
	MasteredAt   *time.Time   `json:"mastered_at,omitempty" db:"mastered_at"` // Set while the word is mastered
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// NewProgress returns the state of a word on first exposure.
func NewProgress(userID, wordID int64, at time.Time) UserProgress {
	return UserProgress{
		UserID:    userID,
		WordID:    wordID,
		Level:     LevelNew,
		NextDue:   at,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// Validate checks the scheduling invariants.
func (p *UserProgress) Validate() error {
	switch {
	case !p.Level.Valid():
		return NewValidationError("level", fmt.Sprintf("unknown mastery level %d", int(p.Level)))
	case p.Streak < 0:
		return NewValidationError("streak", "must not be negative")
	case p.Incorrect < 0:
		return NewValidationError("incorrect", "must not be negative")
	case p.NextDue.IsZero():
		return NewValidationError("next_due", "must be set")
	case p.LastReviewed != nil && p.NextDue.Before(*p.LastReviewed):
		return NewValidationError("next_due", "earlier than last_reviewed")
	case p.Level == LevelMastered && p.MasteredAt == nil:
		return NewValidationError("mastered_at", "must be set for mastered words")
	}
	return nil
}
