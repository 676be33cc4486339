// Package quiz builds quiz and blitz sessions, scores answers and applies them to mastery.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/example/wordbot/internal/database"
	"github.com/example/wordbot/internal/mastery"
	"github.com/example/wordbot/pkg/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Engine handles quiz and blitz sessions
type Engine struct {
	store    *database.Store
	tracker  *mastery.Tracker
	sessions SessionStore
	cfg      Config
	log      logrus.FieldLogger

	mu         sync.Mutex
	inflight   map[string]*submission
	abandoning map[string]int
}

// submission is the single answer being applied to a session.
type submission struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartRequest asks for a new session
type StartRequest struct {
	UserID   int64
	Username string
	GroupID  *int64        // Restrict to one group
	Seed     *int64        // Fixes prompt directions; random when nil
	Budget   time.Duration // Blitz only, zero uses the default budget
	At       time.Time     // Zero means now
}

// SubmitRequest is one answer to the current prompt
type SubmitRequest struct {
	SessionID   string
	UserID      int64
	PromptIndex int // Must equal the session's current prompt
	Text        string
	SubmittedAt time.Time // Zero means now
}

// NewEngine creates a session engine
func NewEngine(store *database.Store, tracker *mastery.Tracker, sessions SessionStore, cfg Config, log logrus.FieldLogger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("quiz config: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		store:      store,
		tracker:    tracker,
		sessions:   sessions,
		cfg:        cfg,
		log:        log.WithField("component", "quiz"),
		inflight:   make(map[string]*submission),
		abandoning: make(map[string]int),
	}, nil
}

// Config returns the session settings.
func (e *Engine) Config() Config {
	return e.cfg
}

// StartQuiz builds an untimed session of up to WordsPerQuiz words
func (e *Engine) StartQuiz(ctx context.Context, req StartRequest) (*models.Session, error) {
	return e.start(ctx, models.ModeQuiz, req)
}

// StartBlitz builds a timed session of up to BlitzWords words
func (e *Engine) StartBlitz(ctx context.Context, req StartRequest) (*models.Session, error) {
	return e.start(ctx, models.ModeBlitz, req)
}

func (e *Engine) start(ctx context.Context, mode models.Mode, req StartRequest) (*models.Session, error) {
	if req.UserID <= 0 {
		return nil, models.NewValidationError("user_id", "must be positive")
	}
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}

	count := e.cfg.WordsPerQuiz
	var budget time.Duration
	if mode == models.ModeBlitz {
		count = e.cfg.BlitzWords
		b, err := e.cfg.budget(req.Budget)
		if err != nil {
			return nil, err
		}
		budget = b
	}

	words, err := e.selectWords(ctx, req.UserID, req.GroupID, count, at)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", mode, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("start %s for user %d: %w", mode, req.UserID, models.ErrInsufficientWords)
	}

	if err := e.store.Users.Ensure(ctx, req.UserID, req.Username, at); err != nil {
		return nil, err
	}
	if prev, err := e.sessions.ActiveByUser(ctx, req.UserID); err == nil {
		if err := e.Abandon(ctx, prev.ID, req.UserID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("abandon previous session: %w", err)
		}
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	seed := rand.Int64()
	if req.Seed != nil {
		seed = *req.Seed
	}
	sess := &models.Session{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Mode:      mode,
		Seed:      seed,
		GroupID:   req.GroupID,
		Status:    models.StatusActive,
		StartedAt: at,
		Prompts: lo.Map(words, func(w models.Word, _ int) models.Prompt {
			return BuildPrompt(w, e.cfg.DirectionMode.Direction(w.ID, seed))
		}),
	}
	if mode == models.ModeBlitz {
		deadline := at.Add(budget)
		sess.Deadline = &deadline
	}
	e.issue(sess, at)

	if err := e.sessions.Create(ctx, sess, e.ttl(sess)); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"user_id":    req.UserID,
		"session_id": sess.ID,
		"mode":       mode,
		"prompts":    len(sess.Prompts),
	}).Info("session started")
	return sess.Clone(), nil
}

// selectWords takes due words first, then backfills with words still at level new.
func (e *Engine) selectWords(ctx context.Context, userID int64, groupID *int64, n int, asOf time.Time) ([]models.Word, error) {
	due, err := e.tracker.DueInGroup(ctx, userID, groupID, asOf, n)
	if err != nil {
		return nil, err
	}
	if len(due) >= n {
		return due[:n], nil
	}
	fresh, err := e.tracker.NewWords(ctx, userID, groupID, n+len(due))
	if err != nil {
		return nil, err
	}
	words := lo.UniqBy(append(due, fresh...), func(w models.Word) int64 { return w.ID })
	if len(words) > n {
		words = words[:n]
	}
	return words, nil
}

// issue stamps the current prompt. Blitz prompts get a deadline capped by the session's.
func (e *Engine) issue(s *models.Session, at time.Time) {
	p := s.CurrentPrompt()
	if p == nil {
		return
	}
	issued := at
	p.IssuedAt = &issued
	if s.Mode == models.ModeBlitz {
		deadline := at.Add(e.cfg.PromptTimeout)
		if s.Deadline != nil && deadline.After(*s.Deadline) {
			deadline = *s.Deadline
		}
		p.Deadline = &deadline
	}
}

func (e *Engine) ttl(s *models.Session) time.Duration {
	switch {
	case s.Status != models.StatusActive:
		return e.cfg.Retention
	case s.Deadline != nil:
		return s.Deadline.Sub(s.StartedAt) + e.cfg.Retention
	}
	return e.cfg.ActiveTTL
}

func points(mode models.Mode, correct bool) int {
	switch {
	case !correct:
		return WrongPoints
	case mode == models.ModeBlitz:
		return BlitzCorrectPoints
	}
	return QuizCorrectPoints
}

// SubmitAnswer scores an answer to the current prompt. The answer log row, the
// mastery update, the user's points and the final summary commit together.
func (e *Engine) SubmitAnswer(ctx context.Context, req SubmitRequest) (models.AnswerResult, error) {
	at := req.SubmittedAt
	if at.IsZero() {
		at = time.Now()
	}

	subCtx, release, err := e.acquire(ctx, req.SessionID)
	if err != nil {
		return models.AnswerResult{}, err
	}
	defer release()

	sess, err := e.sessions.Get(subCtx, req.SessionID)
	if err != nil {
		return models.AnswerResult{}, err
	}
	if sess.UserID != req.UserID || sess.Status == models.StatusAbandoned {
		return models.AnswerResult{}, fmt.Errorf("session %s: %w", req.SessionID, models.ErrNotFound)
	}
	switch {
	case sess.Status == models.StatusExpired:
		return models.AnswerResult{}, fmt.Errorf("session %s: %w", sess.ID, models.ErrSessionExpired)
	case sess.Status == models.StatusComplete || sess.Done():
		return models.AnswerResult{}, fmt.Errorf("session %s: %w", sess.ID, models.ErrSessionComplete)
	case sess.Expired(at):
		return models.AnswerResult{}, fmt.Errorf("session %s: budget ran out at %s: %w", sess.ID, sess.Deadline.Format(time.RFC3339), models.ErrSessionExpired)
	case req.PromptIndex != sess.Current:
		return models.AnswerResult{}, fmt.Errorf("session %s: answer for prompt %d, current is %d: %w", sess.ID, req.PromptIndex, sess.Current, models.ErrSessionConflict)
	}

	index, expected := sess.Current, sess.Version
	prompt := sess.Prompts[index]
	timedOut := sess.Mode == models.ModeBlitz && prompt.Deadline != nil && at.After(*prompt.Deadline)
	correct := !timedOut && Evaluate(prompt, req.Text)
	delta := points(sess.Mode, correct)

	sess.Current++
	sess.Answered++
	sess.Score += delta
	if correct {
		sess.Correct++
	}
	var summary *models.SessionResult
	if sess.Done() {
		finished := at
		sess.Status = models.StatusComplete
		sess.FinishedAt = &finished
		res := sess.Result(models.StatusComplete, at)
		summary = &res
	} else {
		e.issue(sess, at)
	}

	unlock := e.tracker.Lock(sess.UserID, prompt.WordID)
	var progress models.UserProgress
	err = e.store.WithinTx(subCtx, func(tx *database.Store) error {
		entry := models.AnswerLog{
			SessionID:   sess.ID,
			PromptIndex: index,
			UserID:      sess.UserID,
			WordID:      prompt.WordID,
			Correct:     correct,
			TimedOut:    timedOut,
			Points:      delta,
			AnsweredAt:  at,
		}
		if err := tx.Answers.Create(subCtx, &entry); err != nil {
			return conflictOnDuplicate(err)
		}
		p, err := e.tracker.Apply(subCtx, tx, sess.UserID, prompt.WordID, correct, at)
		if err != nil {
			return err
		}
		progress = p
		if _, err := tx.Users.AddPoints(subCtx, sess.UserID, delta, at); err != nil {
			return err
		}
		if summary != nil {
			if err := tx.Results.Create(subCtx, summary); err != nil {
				return conflictOnDuplicate(err)
			}
		}
		return nil
	})
	unlock()
	if err != nil {
		return models.AnswerResult{}, fmt.Errorf("submit answer: %w", err)
	}

	if err := e.sessions.CompareAndSwap(subCtx, sess, expected, e.ttl(sess)); err != nil {
		return models.AnswerResult{}, err
	}

	log := e.log.WithFields(logrus.Fields{
		"user_id":    sess.UserID,
		"session_id": sess.ID,
		"word_id":    prompt.WordID,
	})
	log.WithFields(logrus.Fields{"correct": correct, "timed_out": timedOut}).Debug("answer scored")
	if summary != nil {
		log.WithField("score", summary.Score).Info("session complete")
	}

	result := models.AnswerResult{
		Correct:  correct,
		TimedOut: timedOut,
		Expected: prompt.Expected,
		Progress: progress,
		Points:   delta,
		Score:    sess.Score,
		Done:     sess.Done(),
		Summary:  summary,
	}
	if next := sess.CurrentPrompt(); next != nil {
		n := *next
		result.Next = &n
	}
	return result, nil
}

func conflictOnDuplicate(err error) error {
	if errors.Is(err, database.ErrDuplicate) {
		return fmt.Errorf("%w: %w", models.ErrSessionConflict, err)
	}
	return err
}

// acquire claims the session's single submission slot.
func (e *Engine) acquire(ctx context.Context, id string) (context.Context, func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.abandoning[id] > 0 {
		return nil, nil, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	if _, busy := e.inflight[id]; busy {
		return nil, nil, fmt.Errorf("session %s: submission in flight: %w", id, models.ErrSessionConflict)
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &submission{cancel: cancel, done: make(chan struct{})}
	e.inflight[id] = s
	release := func() {
		cancel()
		e.mu.Lock()
		delete(e.inflight, id)
		e.mu.Unlock()
		close(s.done)
	}
	return subCtx, release, nil
}

// Abandon stops the session. An in-flight submission is cancelled and waited
// for, so nothing is applied after Abandon returns.
func (e *Engine) Abandon(ctx context.Context, sessionID string, userID int64) error {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.UserID != userID {
		return fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound)
	}

	e.mu.Lock()
	e.abandoning[sessionID]++
	running := e.inflight[sessionID]
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		if e.abandoning[sessionID]--; e.abandoning[sessionID] <= 0 {
			delete(e.abandoning, sessionID)
		}
		e.mu.Unlock()
	}()

	if running != nil {
		running.cancel()
		select {
		case <-running.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": sessionID,
		"answered":   sess.Answered,
	}).Info("session abandoned")
	return nil
}

// ExpireSessions finalizes blitz sessions whose budget ran out before asOf and
// returns their summaries. Sessions busy with a submission are left for the next run.
func (e *Engine) ExpireSessions(ctx context.Context, asOf time.Time) ([]models.SessionResult, error) {
	ids, err := e.sessions.ExpiredBlitz(ctx, asOf)
	if err != nil {
		return nil, err
	}

	var out []models.SessionResult
	for _, id := range ids {
		res, err := e.expire(ctx, id, asOf)
		switch {
		case err == nil:
			if res != nil {
				out = append(out, *res)
			}
		case errors.Is(err, models.ErrSessionConflict):
			continue
		case errors.Is(err, models.ErrNotFound):
			if err := e.sessions.Delete(ctx, id); err != nil {
				return out, err
			}
		default:
			return out, err
		}
	}
	return out, nil
}

func (e *Engine) expire(ctx context.Context, id string, asOf time.Time) (*models.SessionResult, error) {
	subCtx, release, err := e.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := e.sessions.Get(subCtx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.StatusActive || !sess.Expired(asOf) {
		return nil, nil
	}

	expected := sess.Version
	finished := *sess.Deadline
	sess.Status = models.StatusExpired
	sess.FinishedAt = &finished
	res := sess.Result(models.StatusExpired, finished)

	if err := e.store.Results.Create(subCtx, &res); err != nil && !errors.Is(err, database.ErrDuplicate) {
		return nil, err
	}
	if err := e.sessions.CompareAndSwap(subCtx, sess, expected, e.ttl(sess)); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"user_id":    sess.UserID,
		"session_id": sess.ID,
		"answered":   res.Answered,
		"score":      res.Score,
	}).Info("blitz time is up")
	return &res, nil
}

// Current returns the session, including finished tombstones
func (e *Engine) Current(ctx context.Context, sessionID string) (*models.Session, error) {
	return e.sessions.Get(ctx, sessionID)
}

// ActiveSession returns the user's running session
func (e *Engine) ActiveSession(ctx context.Context, userID int64) (*models.Session, error) {
	return e.sessions.ActiveByUser(ctx, userID)
}
