// Package session manages the per-transport-key conversation: one active
// Session per key, its message history, and context-window trimming at
// assembly time.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/kestrelai/assistant/pkg/models"
)

// Store persists sessions keyed by transport identity (e.g.
// "agent:channel:channel_id").
type Store interface {
	Get(ctx context.Context, key string) (*models.Session, error)
	GetOrCreate(ctx context.Context, key string) (*models.Session, error)
	Save(ctx context.Context, key string, session *models.Session) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps sessions in memory, for tests and single-process
// deployments without the sqlite store wired.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	now      func() time.Time
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.Session), now: time.Now}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil, nil
	}
	clone := *sess
	return &clone, nil
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, key string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[key]; ok {
		clone := *sess
		return &clone, nil
	}
	now := s.now()
	sess := &models.Session{ID: key, CreatedAt: now, UpdatedAt: now}
	s.sessions[key] = sess
	clone := *sess
	return &clone, nil
}

func (s *MemoryStore) Save(ctx context.Context, key string, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *session
	clone.UpdatedAt = s.now()
	s.sessions[key] = &clone
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}
