// Package dbtest opens throwaway SQLite stores for tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/example/wordbot/internal/database"
	"github.com/example/wordbot/pkg/models"
	"github.com/stretchr/testify/require"
)

// New returns a migrated in-memory store closed at test cleanup.
func New(t testing.TB) *database.Store {
	t.Helper()
	s, err := database.Open(context.Background(), database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// User creates a user.
func User(t testing.TB, s *database.Store, id int64, username string) {
	t.Helper()
	require.NoError(t, s.Users.Ensure(context.Background(), id, username, time.Now()))
}

// Word creates a word owned by ownerID (0 for the shared list) and returns it.
func Word(t testing.TB, s *database.Store, ownerID int64, source, target string, variants ...string) models.Word {
	t.Helper()
	w := models.Word{OwnerID: ownerID, Source: source, Target: target, Variants: variants}
	require.NoError(t, s.Words.Create(context.Background(), &w))
	return w
}

// Progress stores a progress row as given.
func Progress(t testing.TB, s *database.Store, p models.UserProgress) {
	t.Helper()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.NextDue
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.NextDue
	}
	require.NoError(t, s.Progress.Upsert(context.Background(), &p))
}
