package orchestrator

import (
	"container/list"
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/kestrelai/assistant/pkg/models"
)

// DefaultBackgroundCapacity bounds the number of resident background tasks;
// the oldest is evicted once a new one would exceed it.
const DefaultBackgroundCapacity = 50

// backgroundStore is a FIFO-ordered map bounded at a fixed capacity: a
// straightforward list+map LRU, the same shape as a bounded cache, applied
// here to eviction-by-age rather than eviction-by-use.
type backgroundStore struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	elems    map[string]*list.Element
}

func newBackgroundStore(capacity int) *backgroundStore {
	if capacity <= 0 {
		capacity = DefaultBackgroundCapacity
	}
	return &backgroundStore{
		capacity: capacity,
		order:    list.New(),
		elems:    make(map[string]*list.Element),
	}
}

// create assigns a new 8-hex-character id, evicts the oldest resident task
// if the store is full, and records the task as pending.
func (s *backgroundStore) create(agentName, description string, createdAt int64) *models.BackgroundTask {
	task := &models.BackgroundTask{
		ID:              newTaskID(),
		AgentName:       agentName,
		TaskDescription: description,
		Status:          models.BackgroundPending,
		CreatedAt:       createdAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order.Len() >= s.capacity {
		oldest := s.order.Front()
		if oldest != nil {
			evicted := oldest.Value.(*models.BackgroundTask)
			delete(s.elems, evicted.ID)
			s.order.Remove(oldest)
		}
	}
	elem := s.order.PushBack(task)
	s.elems[task.ID] = elem
	return task
}

// get returns nil if id was evicted or never existed.
func (s *backgroundStore) get(id string) *models.BackgroundTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.elems[id]
	if !ok {
		return nil
	}
	return elem.Value.(*models.BackgroundTask)
}

// update mutates a still-resident task in place; a no-op if it was evicted
// while the background run was in flight.
func (s *backgroundStore) update(id string, mutate func(*models.BackgroundTask)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.elems[id]
	if !ok {
		return
	}
	mutate(elem.Value.(*models.BackgroundTask))
}

// listAll returns every resident task in creation order.
func (s *backgroundStore) listAll() []models.BackgroundTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.BackgroundTask, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		out = append(out, *e.Value.(*models.BackgroundTask))
	}
	return out
}

func newTaskID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
