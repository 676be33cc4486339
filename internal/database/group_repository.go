package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/wordbot/pkg/models"
)

// GroupRepository handles database operations for word groups
type GroupRepository struct {
	*conn
}

const groupColumns = `id, owner_id, name, created_at`

// Create inserts a new group
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	if err := group.Validate(); err != nil {
		return err
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now()
	}
	group.CreatedAt = utc(group.CreatedAt)
	err := r.get(ctx, &group.ID,
		`INSERT INTO word_groups (owner_id, name, created_at) VALUES (?, ?, ?) RETURNING id`,
		group.OwnerID, group.Name, group.CreatedAt)
	if err != nil {
		return wrapErr(err, fmt.Sprintf("failed to create group %q", group.Name))
	}
	return nil
}

// GetByID returns a group by ID
func (r *GroupRepository) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	var group models.Group
	if err := r.get(ctx, &group, `SELECT `+groupColumns+` FROM word_groups WHERE id = ?`, id); err != nil {
		return nil, wrapErr(err, fmt.Sprintf("failed to get group %d", id))
	}
	return &group, nil
}

// GetByName returns the owner's group with the given name
func (r *GroupRepository) GetByName(ctx context.Context, ownerID int64, name string) (*models.Group, error) {
	var group models.Group
	err := r.get(ctx, &group, `SELECT `+groupColumns+` FROM word_groups WHERE owner_id = ? AND name = ?`, ownerID, name)
	if err != nil {
		return nil, wrapErr(err, fmt.Sprintf("failed to get group %q", name))
	}
	return &group, nil
}

// GetOrCreate returns the named group, creating it when missing
func (r *GroupRepository) GetOrCreate(ctx context.Context, ownerID int64, name string, at time.Time) (*models.Group, error) {
	group := &models.Group{OwnerID: ownerID, Name: name, CreatedAt: at}
	if err := group.Validate(); err != nil {
		return nil, err
	}
	existing, err := r.GetByName(ctx, ownerID, group.Name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if err := r.Create(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// GetByOwner returns all groups of a user
func (r *GroupRepository) GetByOwner(ctx context.Context, ownerID int64) ([]models.Group, error) {
	var groups []models.Group
	err := r.sel(ctx, &groups, `SELECT `+groupColumns+` FROM word_groups WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, wrapErr(err, "failed to get groups")
	}
	return groups, nil
}

// Summaries returns the owner's groups with their word counts
func (r *GroupRepository) Summaries(ctx context.Context, ownerID int64) ([]models.GroupSummary, error) {
	query := `
		SELECT g.id, g.owner_id, g.name, g.created_at, COUNT(w.id) AS word_count
		FROM word_groups g
		LEFT JOIN words w ON w.group_id = g.id
		WHERE g.owner_id = ?
		GROUP BY g.id, g.owner_id, g.name, g.created_at
		ORDER BY g.name
	`
	var out []models.GroupSummary
	if err := r.sel(ctx, &out, query, ownerID); err != nil {
		return nil, wrapErr(err, "failed to list groups")
	}
	return out, nil
}

// Rename changes the name of an owned group
func (r *GroupRepository) Rename(ctx context.Context, ownerID, id int64, name string) error {
	g := models.Group{OwnerID: ownerID, Name: name}
	if err := g.Validate(); err != nil {
		return err
	}
	res, err := r.exec(ctx, `UPDATE word_groups SET name = ? WHERE id = ? AND owner_id = ?`, g.Name, id, ownerID)
	if err != nil {
		return wrapErr(err, fmt.Sprintf("failed to rename group %d", id))
	}
	return expectRow(res, fmt.Sprintf("failed to rename group %d", id))
}

// Delete removes an owned group and the owner's words in it, returning how many
// words went. Progress on those words is removed by cascade. Run it in a transaction.
func (r *GroupRepository) Delete(ctx context.Context, ownerID, id int64) (int, error) {
	res, err := r.exec(ctx, `DELETE FROM words WHERE group_id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return 0, wrapErr(err, fmt.Sprintf("failed to delete words of group %d", id))
	}
	words, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr(err, fmt.Sprintf("failed to delete words of group %d", id))
	}
	res, err = r.exec(ctx, `DELETE FROM word_groups WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return 0, wrapErr(err, fmt.Sprintf("failed to delete group %d", id))
	}
	if err := expectRow(res, fmt.Sprintf("failed to delete group %d", id)); err != nil {
		return 0, err
	}
	return int(words), nil
}
