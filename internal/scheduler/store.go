// Package scheduler persists and drives date/cron/interval jobs: jobs are
// written to a durable Store before they are registered with the
// in-process timer, so a restart can recover every still-pending job from
// the store alone.
package scheduler

import (
	"context"
	"sort"
	"sync"

	"github.com/kestrelai/assistant/pkg/models"
)

// Store is the durable source of truth for scheduled jobs. Writes must be
// serialised by the implementation.
type Store interface {
	Save(ctx context.Context, job models.ScheduledJob) error
	Get(ctx context.Context, id string) (models.ScheduledJob, bool, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.ScheduledJob, error)
}

// MemoryStore is an in-memory Store, primarily for tests and for running
// without the sqlite-backed store wired up.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]models.ScheduledJob
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]models.ScheduledJob)}
}

func (s *MemoryStore) Save(ctx context.Context, job models.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.ScheduledJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return job, ok, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]models.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ScheduledJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
