package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/wordbot/pkg/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	*conn
}

// Ensure creates the user on first interaction and refreshes the username afterwards
func (r *UserRepository) Ensure(ctx context.Context, id int64, username string, at time.Time) error {
	if id <= 0 {
		return models.NewValidationError("user_id", "must be positive")
	}
	at = utc(at)
	query := `
		INSERT INTO users (id, username, points, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = CASE WHEN excluded.username = '' THEN users.username ELSE excluded.username END,
			updated_at = excluded.updated_at
	`
	if _, err := r.exec(ctx, query, id, username, at, at); err != nil {
		return wrapErr(err, fmt.Sprintf("failed to ensure user %d", id))
	}
	return nil
}

// GetByID returns a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.get(ctx, &user, `SELECT id, username, points, created_at, updated_at FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, wrapErr(err, fmt.Sprintf("failed to get user %d", id))
	}
	return &user, nil
}

// GetAll returns all users ordered by ID
func (r *UserRepository) GetAll(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.sel(ctx, &users, `SELECT id, username, points, created_at, updated_at FROM users ORDER BY id`)
	if err != nil {
		return nil, wrapErr(err, "failed to get users")
	}
	return users, nil
}

// AddPoints applies delta to the user's points, never going below zero, and returns the new total
func (r *UserRepository) AddPoints(ctx context.Context, id int64, delta int, at time.Time) (int, error) {
	query := fmt.Sprintf(`
		UPDATE users SET points = %s(points + ?, 0), updated_at = ?
		WHERE id = ?
		RETURNING points
	`, r.greatest())
	var points int
	if err := r.get(ctx, &points, query, delta, utc(at), id); err != nil {
		return 0, wrapErr(err, fmt.Sprintf("failed to add points for user %d", id))
	}
	return points, nil
}
