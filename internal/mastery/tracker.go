// Package mastery records answers against per-word progress and answers due-review queries.
package mastery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/wordbot/internal/database"
	"github.com/example/wordbot/internal/spaced_repetition"
	"github.com/example/wordbot/pkg/models"
	"github.com/sirupsen/logrus"
)

// DefaultDueLimit caps WordsDueForReview when no limit is given.
const DefaultDueLimit = 20

// Tracker is the single writer of UserProgress
type Tracker struct {
	store    *database.Store
	policy   *spaced_repetition.Policy
	dueLimit int
	log      logrus.FieldLogger
	locks    keyedMutex
}

// NewTracker creates a tracker. A nil policy uses the defaults.
func NewTracker(store *database.Store, policy *spaced_repetition.Policy, dueLimit int, log logrus.FieldLogger) *Tracker {
	if policy == nil {
		policy = spaced_repetition.NewPolicy()
	}
	if dueLimit <= 0 {
		dueLimit = DefaultDueLimit
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Tracker{
		store:    store,
		policy:   policy,
		dueLimit: dueLimit,
		log:      log.WithField("component", "mastery"),
	}
}

// Policy returns the repetition policy in use.
func (t *Tracker) Policy() *spaced_repetition.Policy {
	return t.policy
}

// Lock serializes writers of one (user, word) pair. Callers that run Apply
// inside their own transaction must hold it and take it before opening the transaction.
func (t *Tracker) Lock(userID, wordID int64) (unlock func()) {
	return t.locks.lock(progressKey{userID: userID, wordID: wordID})
}

// RecordAnswer applies one answer and returns the updated progress
func (t *Tracker) RecordAnswer(ctx context.Context, userID, wordID int64, correct bool, at time.Time) (models.UserProgress, error) {
	unlock := t.Lock(userID, wordID)
	defer unlock()

	var out models.UserProgress
	err := t.store.WithinTx(ctx, func(tx *database.Store) error {
		p, err := t.Apply(ctx, tx, userID, wordID, correct, at)
		out = p
		return err
	})
	if err != nil {
		return models.UserProgress{}, err
	}
	return out, nil
}

// Apply updates progress inside tx. The caller holds Lock(userID, wordID).
func (t *Tracker) Apply(ctx context.Context, tx *database.Store, userID, wordID int64, correct bool, at time.Time) (models.UserProgress, error) {
	if _, err := tx.Words.GetVisible(ctx, userID, wordID); err != nil {
		return models.UserProgress{}, fmt.Errorf("record answer: %w", err)
	}

	progress, err := tx.Progress.Get(ctx, userID, wordID, true)
	switch {
	case errors.Is(err, models.ErrNotFound):
		fresh := models.NewProgress(userID, wordID, at)
		progress = &fresh
	case err != nil:
		return models.UserProgress{}, fmt.Errorf("record answer: %w", err)
	}

	before := progress.Level
	t.policy.Process(progress, correct, at)
	if err := tx.Progress.Upsert(ctx, progress); err != nil {
		return models.UserProgress{}, fmt.Errorf("record answer: %w", err)
	}

	if before != progress.Level {
		t.log.WithFields(logrus.Fields{
			"user_id": userID,
			"word_id": wordID,
			"from":    before.String(),
			"to":      progress.Level.String(),
		}).Debug("mastery level changed")
	}
	return *progress, nil
}

// WordsDueForReview returns words whose NextDue is not after asOf, oldest-due first.
// A non-positive limit uses the configured default.
func (t *Tracker) WordsDueForReview(ctx context.Context, userID int64, asOf time.Time, limit int) ([]models.Word, error) {
	return t.DueInGroup(ctx, userID, nil, asOf, limit)
}

// DueInGroup is WordsDueForReview restricted to one group when groupID is set.
func (t *Tracker) DueInGroup(ctx context.Context, userID int64, groupID *int64, asOf time.Time, limit int) ([]models.Word, error) {
	if limit <= 0 {
		limit = t.dueLimit
	}
	words, err := t.store.Words.GetDue(ctx, userID, asOf, groupID, limit)
	if err != nil {
		return nil, err
	}
	if words == nil {
		words = []models.Word{}
	}
	return words, nil
}

// NewWords returns words still at level new, never-seen first, then least recently reviewed.
func (t *Tracker) NewWords(ctx context.Context, userID int64, groupID *int64, limit int) ([]models.Word, error) {
	if limit <= 0 {
		limit = t.dueLimit
	}
	return t.store.Words.GetFresh(ctx, userID, groupID, limit)
}

// ProgressSnapshot counts the user's visible words per level
func (t *Tracker) ProgressSnapshot(ctx context.Context, userID int64) (models.MasteryBreakdown, error) {
	return t.store.Progress.LevelCounts(ctx, userID)
}

// Progress returns the stored progress of one word, ErrNotFound before first exposure.
func (t *Tracker) Progress(ctx context.Context, userID, wordID int64) (*models.UserProgress, error) {
	return t.store.Progress.Get(ctx, userID, wordID, false)
}
