package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/example/wordbot/internal/database"
	"github.com/example/wordbot/internal/database/dbtest"
	"github.com/example/wordbot/pkg/models"
	"github.com/stretchr/testify/require"
)

type testStore struct {
	t   *testing.T
	svc *database.Store
}

func (s *testStore) user(id int64, name string) {
	dbtest.User(s.t, s.svc, id, name)
}

func (s *testStore) word(owner int64, source string) models.Word {
	return dbtest.Word(s.t, s.svc, owner, source, source+"!")
}

func (s *testStore) mastered(userID, wordID int64, when time.Time) {
	dbtest.Progress(s.t, s.svc, models.UserProgress{
		UserID:       userID,
		WordID:       wordID,
		Level:        models.LevelMastered,
		LastReviewed: &when,
		MasteredAt:   &when,
		NextDue:      when.Add(168 * time.Hour),
	})
}

func (s *testStore) answer(userID int64, idx, points int, when time.Time) {
	a := models.AnswerLog{
		SessionID:   fmt.Sprintf("s-%d", userID),
		PromptIndex: idx,
		UserID:      userID,
		WordID:      1,
		Correct:     points > 0,
		Points:      points,
		AnsweredAt:  when,
	}
	require.NoError(s.t, s.svc.Answers.Create(context.Background(), &a))
}

func (s *testStore) points(userID int64, n int) {
	_, err := s.svc.Users.AddPoints(context.Background(), userID, n, t0)
	require.NoError(s.t, err)
}

func (s *testStore) result(r models.SessionResult) {
	require.NoError(s.t, s.svc.Results.Create(context.Background(), &r))
}
