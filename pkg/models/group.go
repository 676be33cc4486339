package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Group is a named, user-owned collection of words
type Group struct {
	ID        int64     `json:"id" db:"id"`
	OwnerID   int64     `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Validate trims the name and checks it.
func (g *Group) Validate() error {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return NewValidationError("name", "must not be empty")
	}
	if utf8.RuneCountInString(g.Name) > maxGroupLen {
		return NewValidationError("name", fmt.Sprintf("longer than %d characters", maxGroupLen))
	}
	if g.OwnerID <= 0 {
		return NewValidationError("owner_id", "must be a user")
	}
	return nil
}

// GroupSummary is a group with the number of words in it
type GroupSummary struct {
	Group
	Words int `json:"words" db:"word_count"`
}
