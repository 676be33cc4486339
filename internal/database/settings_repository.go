package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/wordbot/pkg/models"
)

// SettingsRepository stores per-user reminder preferences
type SettingsRepository struct {
	*conn
}

// Get returns the user's settings, or the defaults when none were saved
func (r *SettingsRepository) Get(ctx context.Context, userID int64) (models.UserSettings, error) {
	var st models.UserSettings
	err := r.get(ctx, &st, `
		SELECT user_id, remind_enabled, remind_hour, daily_limit, updated_at
		FROM user_settings WHERE user_id = ?`, userID)
	if err != nil {
		err = wrapErr(err, fmt.Sprintf("failed to get settings for user %d", userID))
		if errors.Is(err, models.ErrNotFound) {
			return models.DefaultSettings(userID), nil
		}
		return models.UserSettings{}, err
	}
	return st, nil
}

// Save creates or replaces the user's settings
func (r *SettingsRepository) Save(ctx context.Context, st *models.UserSettings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now()
	}
	st.UpdatedAt = utc(st.UpdatedAt)
	query := `
		INSERT INTO user_settings (user_id, remind_enabled, remind_hour, daily_limit, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			remind_enabled = excluded.remind_enabled,
			remind_hour = excluded.remind_hour,
			daily_limit = excluded.daily_limit,
			updated_at = excluded.updated_at
	`
	if _, err := r.exec(ctx, query, st.UserID, st.RemindersEnabled, st.RemindHour, st.DailyLimit, st.UpdatedAt); err != nil {
		return wrapErr(err, fmt.Sprintf("failed to save settings for user %d", st.UserID))
	}
	return nil
}
