package models

import "time"

// User represents a chat user using the bot
type User struct {
	ID        int64     `json:"id" db:"id"` // Chat user ID
	Username  string    `json:"username" db:"username"`
	Points    int       `json:"points" db:"points"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MaxDailyLimit bounds the per-user reminder cap
const MaxDailyLimit = 500

// UserSettings holds a user's reminder preferences
type UserSettings struct {
	UserID           int64     `json:"user_id" db:"user_id"`
	RemindersEnabled bool      `json:"reminders_enabled" db:"remind_enabled"`
	RemindHour       *int      `json:"remind_hour,omitempty" db:"remind_hour"` // Local hour; nil follows the notification window
	DailyLimit       int       `json:"daily_limit" db:"daily_limit"`           // Caps the reminder count; 0 uses the global limit
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultSettings returns the preferences of a user who never changed them
func DefaultSettings(userID int64) UserSettings {
	return UserSettings{UserID: userID, RemindersEnabled: true}
}

// Validate checks the hour and the limit
func (s *UserSettings) Validate() error {
	switch {
	case s.UserID <= 0:
		return NewValidationError("user_id", "must be positive")
	case s.RemindHour != nil && (*s.RemindHour < 0 || *s.RemindHour > 23):
		return NewValidationError("remind_hour", "must be between 0 and 23")
	case s.DailyLimit < 0 || s.DailyLimit > MaxDailyLimit:
		return NewValidationError("daily_limit", "must be between 0 and 500")
	}
	return nil
}
