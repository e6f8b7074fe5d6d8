package session

import (
	"context"
	"testing"

	"github.com/kestrelai/assistant/pkg/models"
)

func TestManagerAppendPersistsAndTrims(t *testing.T) {
	store := NewMemoryStore()
	mgr := NewManager(store, 2)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := mgr.Append(ctx, "k", models.Message{Role: models.RoleUser, Content: "msg"}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	sess, err := mgr.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("got %d messages, want 2 after trimming", len(sess.Messages))
	}
}

func TestManagerAppendWithoutTrimmingWhenMaxIsZero(t *testing.T) {
	store := NewMemoryStore()
	mgr := NewManager(store, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := mgr.Append(ctx, "k", models.Message{Role: models.RoleUser, Content: "msg"}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	sess, err := mgr.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(sess.Messages) != 5 {
		t.Fatalf("got %d messages, want 5 with trimming disabled", len(sess.Messages))
	}
}

func TestManagerGetCreatesSessionIfAbsent(t *testing.T) {
	mgr := NewManager(NewMemoryStore(), 10)
	sess, err := mgr.Get(context.Background(), "new-key")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.ID != "new-key" {
		t.Fatalf("got id %q, want %q", sess.ID, "new-key")
	}
	if len(sess.Messages) != 0 {
		t.Fatalf("new session should start empty, got %d messages", len(sess.Messages))
	}
}

func TestManagerResetDeletesHistory(t *testing.T) {
	store := NewMemoryStore()
	mgr := NewManager(store, 10)
	ctx := context.Background()

	if _, err := mgr.Append(ctx, "k", models.Message{Role: models.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mgr.Reset(ctx, "k"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	sess, err := mgr.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(sess.Messages) != 0 {
		t.Fatalf("got %d messages after reset, want 0", len(sess.Messages))
	}
}

func TestManagerSetLastToolCalls(t *testing.T) {
	store := NewMemoryStore()
	mgr := NewManager(store, 10)
	ctx := context.Background()

	calls := []models.ToolCall{{ID: "1", Name: "read_file"}}
	if err := mgr.SetLastToolCalls(ctx, "k", calls); err != nil {
		t.Fatalf("set last tool calls: %v", err)
	}
	sess, err := mgr.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(sess.LastToolCalls) != 1 || sess.LastToolCalls[0].Name != "read_file" {
		t.Fatalf("got %v, want one read_file call", sess.LastToolCalls)
	}
}
