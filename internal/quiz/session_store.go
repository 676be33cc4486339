package quiz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/wordbot/pkg/models"
)

// SessionStore keeps live sessions and their tombstones
type SessionStore interface {
	// Create stores a new session and makes it the user's active one.
	Create(ctx context.Context, s *models.Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*models.Session, error)
	// CompareAndSwap replaces the session only if the stored version equals
	// expected. On success s.Version is bumped.
	CompareAndSwap(ctx context.Context, s *models.Session, expected int64, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	ActiveByUser(ctx context.Context, userID int64) (*models.Session, error)
	// ExpiredBlitz lists active blitz sessions whose deadline is before asOf.
	ExpiredBlitz(ctx context.Context, asOf time.Time) ([]string, error)
}

type memoryEntry struct {
	session   *models.Session
	expiresAt time.Time
}

// MemoryStore is a process-local SessionStore
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	active   map[int64]string
	now      func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		active:   make(map[int64]string),
		now:      time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, s *models.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(s.ID); ok {
		return fmt.Errorf("create session %s: %w", s.ID, models.ErrSessionConflict)
	}
	m.put(s.Clone(), ttl)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.lookup(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) CompareAndSwap(_ context.Context, s *models.Session, expected int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.lookup(s.ID)
	if !ok {
		return fmt.Errorf("session %s: %w", s.ID, models.ErrNotFound)
	}
	if cur.Version != expected {
		return fmt.Errorf("session %s at version %d, expected %d: %w", s.ID, cur.Version, expected, models.ErrSessionConflict)
	}
	s.Version = expected + 1
	m.put(s.Clone(), ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.remove(id)
	return nil
}

func (m *MemoryStore) ActiveByUser(_ context.Context, userID int64) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.active[userID]; ok {
		if s, ok := m.lookup(id); ok && s.Status == models.StatusActive {
			return s.Clone(), nil
		}
	}
	return nil, fmt.Errorf("active session of user %d: %w", userID, models.ErrNotFound)
}

func (m *MemoryStore) ExpiredBlitz(_ context.Context, asOf time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var ids []string
	for id, e := range m.sessions {
		if now.After(e.expiresAt) {
			m.remove(id)
			continue
		}
		s := e.session
		if s.Mode == models.ModeBlitz && s.Status == models.StatusActive && s.Expired(asOf) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// lookup drops the entry when its TTL has passed. Callers hold mu.
func (m *MemoryStore) lookup(id string) (*models.Session, bool) {
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if m.now().After(e.expiresAt) {
		m.remove(id)
		return nil, false
	}
	return e.session, true
}

func (m *MemoryStore) put(s *models.Session, ttl time.Duration) {
	m.sessions[s.ID] = memoryEntry{session: s, expiresAt: m.now().Add(ttl)}
	if s.Status == models.StatusActive {
		m.active[s.UserID] = s.ID
	} else if m.active[s.UserID] == s.ID {
		delete(m.active, s.UserID)
	}
}

func (m *MemoryStore) remove(id string) {
	e, ok := m.sessions[id]
	if !ok {
		return
	}
	delete(m.sessions, id)
	if m.active[e.session.UserID] == id {
		delete(m.active, e.session.UserID)
	}
}
