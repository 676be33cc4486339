package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/wordbot/pkg/models"
)

// WordRepository handles database operations for words
type WordRepository struct {
	*conn
}

const wordColumns = `w.id, w.owner_id, w.group_id, w.source, w.target, w.example, w.variants, w.created_at, w.updated_at`

// visibleTo restricts w to the user's words and the shared list.
const visibleTo = `(w.owner_id = ? OR w.owner_id = 0)`

// WordFilter narrows List
type WordFilter struct {
	UserID    int64  // Words visible to this user
	GroupID   *int64 // Only this group
	OwnedOnly bool   // Skip shared words
}

func (f WordFilter) where() (string, []any) {
	var conds []string
	var args []any
	if f.OwnedOnly {
		conds = append(conds, "w.owner_id = ?")
	} else {
		conds = append(conds, visibleTo)
	}
	args = append(args, f.UserID)
	if f.GroupID != nil {
		conds = append(conds, "w.group_id = ?")
		args = append(args, *f.GroupID)
	}
	return strings.Join(conds, " AND "), args
}

// Create inserts a new word
func (r *WordRepository) Create(ctx context.Context, word *models.Word) error {
	word.Normalize()
	if err := word.Validate(); err != nil {
		return err
	}
	if word.CreatedAt.IsZero() {
		word.CreatedAt = time.Now()
	}
	word.CreatedAt = utc(word.CreatedAt)
	word.UpdatedAt = word.CreatedAt

	query := `
		INSERT INTO words (owner_id, group_id, source, target, example, variants, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := r.get(ctx, &word.ID, query,
		word.OwnerID, word.GroupID, word.Source, word.Target, word.Example, word.Variants,
		word.CreatedAt, word.UpdatedAt)
	if err != nil {
		return wrapErr(err, fmt.Sprintf("failed to create word %q", word.Source))
	}
	return nil
}

// Update edits an owned word
func (r *WordRepository) Update(ctx context.Context, word *models.Word) error {
	word.Normalize()
	if err := word.Validate(); err != nil {
		return err
	}
	if word.UpdatedAt.IsZero() {
		word.UpdatedAt = time.Now()
	}
	word.UpdatedAt = utc(word.UpdatedAt)

	query := `
		UPDATE words SET group_id = ?, source = ?, target = ?, example = ?, variants = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`
	res, err := r.exec(ctx, query,
		word.GroupID, word.Source, word.Target, word.Example, word.Variants, word.UpdatedAt,
		word.ID, word.OwnerID)
	if err != nil {
		return wrapErr(err, fmt.Sprintf("failed to update word %d", word.ID))
	}
	return expectRow(res, fmt.Sprintf("failed to update word %d", word.ID))
}

// Delete removes an owned word together with its progress rows
func (r *WordRepository) Delete(ctx context.Context, ownerID, id int64) error {
	res, err := r.exec(ctx, `DELETE FROM words WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return wrapErr(err, fmt.Sprintf("failed to delete word %d", id))
	}
	return expectRow(res, fmt.Sprintf("failed to delete word %d", id))
}

// GetByID returns a word by ID
func (r *WordRepository) GetByID(ctx context.Context, id int64) (*models.Word, error) {
	var word models.Word
	if err := r.get(ctx, &word, `SELECT `+wordColumns+` FROM words w WHERE w.id = ?`, id); err != nil {
		return nil, wrapErr(err, fmt.Sprintf("failed to get word %d", id))
	}
	return &word, nil
}

// GetVisible returns the word when userID may see it, ErrNotFound otherwise
func (r *WordRepository) GetVisible(ctx context.Context, userID, id int64) (*models.Word, error) {
	var word models.Word
	err := r.get(ctx, &word, `SELECT `+wordColumns+` FROM words w WHERE w.id = ? AND `+visibleTo, id, userID)
	if err != nil {
		return nil, wrapErr(err, fmt.Sprintf("failed to get word %d", id))
	}
	return &word, nil
}

// List returns words matching the filter ordered by ID
func (r *WordRepository) List(ctx context.Context, f WordFilter) ([]models.Word, error) {
	where, args := f.where()
	var words []models.Word
	if err := r.sel(ctx, &words, `SELECT `+wordColumns+` FROM words w WHERE `+where+` ORDER BY w.id`, args...); err != nil {
		return nil, wrapErr(err, "failed to get words")
	}
	return words, nil
}

// Count returns the number of words matching the filter
func (r *WordRepository) Count(ctx context.Context, f WordFilter) (int, error) {
	where, args := f.where()
	var n int
	if err := r.get(ctx, &n, `SELECT COUNT(*) FROM words w WHERE `+where, args...); err != nil {
		return 0, wrapErr(err, "failed to count words")
	}
	return n, nil
}

// GetDue returns visible words whose progress is due at asOf, oldest-due first, ties by ID
func (r *WordRepository) GetDue(ctx context.Context, userID int64, asOf time.Time, groupID *int64, limit int) ([]models.Word, error) {
	query := `
		SELECT ` + wordColumns + `
		FROM user_progress p
		JOIN words w ON w.id = p.word_id
		WHERE p.user_id = ? AND p.next_due <= ? AND ` + visibleTo
	args := []any{userID, utc(asOf), userID}
	if groupID != nil {
		query += ` AND w.group_id = ?`
		args = append(args, *groupID)
	}
	query += ` ORDER BY p.next_due, w.id LIMIT ?`
	args = append(args, limit)

	var words []models.Word
	if err := r.sel(ctx, &words, query, args...); err != nil {
		return nil, wrapErr(err, "failed to get due words")
	}
	return words, nil
}

// GetFresh returns visible words still at level new, never-seen first, then least recently reviewed
func (r *WordRepository) GetFresh(ctx context.Context, userID int64, groupID *int64, limit int) ([]models.Word, error) {
	query := `
		SELECT ` + wordColumns + `
		FROM words w
		LEFT JOIN user_progress p ON p.word_id = w.id AND p.user_id = ?
		WHERE ` + visibleTo + ` AND (p.level IS NULL OR p.level = 0)`
	args := []any{userID, userID}
	if groupID != nil {
		query += ` AND w.group_id = ?`
		args = append(args, *groupID)
	}
	query += `
		ORDER BY CASE WHEN p.last_reviewed IS NULL THEN 0 ELSE 1 END, p.last_reviewed, w.id
		LIMIT ?`
	args = append(args, limit)

	var words []models.Word
	if err := r.sel(ctx, &words, query, args...); err != nil {
		return nil, wrapErr(err, "failed to get new words")
	}
	return words, nil
}

// CountAdded returns words the user created in [from, to)
func (r *WordRepository) CountAdded(ctx context.Context, ownerID int64, from, to time.Time) (int, error) {
	var n int
	err := r.get(ctx, &n, `SELECT COUNT(*) FROM words WHERE owner_id = ? AND created_at >= ? AND created_at < ?`,
		ownerID, utc(from), utc(to))
	if err != nil {
		return 0, wrapErr(err, "failed to count added words")
	}
	return n, nil
}

func expectRow(res interface{ RowsAffected() (int64, error) }, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(err, op)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}
