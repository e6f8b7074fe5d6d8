package orchestrator

import (
	"testing"

	"github.com/kestrelai/assistant/pkg/models"
)

func TestBackgroundStoreCreateAndGet(t *testing.T) {
	s := newBackgroundStore(10)
	task := s.create("researcher", "find something", 100)
	if task.ID == "" {
		t.Fatal("expected a generated task id")
	}
	got := s.get(task.ID)
	if got == nil || got.AgentName != "researcher" {
		t.Fatalf("got %v, want the created task back", got)
	}
}

func TestBackgroundStoreGetReturnsNilForUnknownID(t *testing.T) {
	s := newBackgroundStore(10)
	if got := s.get("nonexistent"); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestBackgroundStoreEvictsOldestOnCapacity(t *testing.T) {
	s := newBackgroundStore(2)
	first := s.create("a", "task1", 1)
	s.create("b", "task2", 2)
	s.create("c", "task3", 3)

	if got := s.get(first.ID); got != nil {
		t.Fatal("oldest task should have been evicted")
	}
	if len(s.listAll()) != 2 {
		t.Fatalf("got %d resident tasks, want 2", len(s.listAll()))
	}
}

func TestBackgroundStoreUpdateIsNoOpAfterEviction(t *testing.T) {
	s := newBackgroundStore(1)
	first := s.create("a", "task1", 1)
	s.create("b", "task2", 2)

	// Must not panic even though first was evicted.
	s.update(first.ID, func(task *models.BackgroundTask) { task.Status = models.BackgroundDone })
}
