package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// SharedOwner marks a word visible to every user.
const SharedOwner int64 = 0

const (
	maxWordLen  = 200
	maxGroupLen = 100
)

// Word represents a source/target vocabulary pair
type Word struct {
	ID        int64      `json:"id" db:"id"`
	OwnerID   int64      `json:"owner_id" db:"owner_id"`
	GroupID   *int64     `json:"group_id,omitempty" db:"group_id"`
	Source    string     `json:"source" db:"source"`
	Target    string     `json:"target" db:"target"`
	Example   string     `json:"example,omitempty" db:"example"`
	Variants  StringList `json:"variants,omitempty" db:"variants"` // Extra accepted renderings of Target
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// IsShared reports whether the word belongs to the global list.
func (w *Word) IsShared() bool {
	return w.OwnerID == SharedOwner
}

// VisibleTo reports whether userID may be quizzed on the word.
func (w *Word) VisibleTo(userID int64) bool {
	return w.IsShared() || w.OwnerID == userID
}

// AcceptedTargets returns Target followed by its variants, without duplicates.
func (w *Word) AcceptedTargets() []string {
	out := []string{w.Target}
	seen := map[string]bool{strings.ToLower(w.Target): true}
	for _, v := range w.Variants {
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// Normalize trims text fields and drops empty variants.
func (w *Word) Normalize() {
	w.Source = strings.TrimSpace(w.Source)
	w.Target = strings.TrimSpace(w.Target)
	w.Example = strings.TrimSpace(w.Example)
	variants := make(StringList, 0, len(w.Variants))
	for _, v := range w.Variants {
		if v = strings.TrimSpace(v); v != "" {
			variants = append(variants, v)
		}
	}
	w.Variants = variants
}

// Validate checks the word after Normalize.
func (w *Word) Validate() error {
	switch {
	case w.Source == "":
		return NewValidationError("source", "must not be empty")
	case w.Target == "":
		return NewValidationError("target", "must not be empty")
	case utf8.RuneCountInString(w.Source) > maxWordLen:
		return NewValidationError("source", fmt.Sprintf("longer than %d characters", maxWordLen))
	case utf8.RuneCountInString(w.Target) > maxWordLen:
		return NewValidationError("target", fmt.Sprintf("longer than %d characters", maxWordLen))
	case w.OwnerID < 0:
		return NewValidationError("owner_id", "must not be negative")
	}
	return nil
}

// StringList is stored as a JSON array in a TEXT column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("marshal string list: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan string list: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("parse string list: %w", err)
	}
	*l = out
	return nil
}
