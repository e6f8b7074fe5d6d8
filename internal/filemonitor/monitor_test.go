package filemonitor

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

type recordingDispatcher struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingDispatcher) Send(message string, urgent bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recordingDispatcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func TestEventTypeLabel(t *testing.T) {
	tests := []struct {
		op   fsnotify.Op
		want string
	}{
		{fsnotify.Create, "created"},
		{fsnotify.Write, "modified"},
		{fsnotify.Remove, "removed"},
		{fsnotify.Rename, "renamed"},
		{fsnotify.Chmod, "permissions changed"},
	}
	for _, tt := range tests {
		ev := fsnotify.Event{Op: tt.op, Name: "file.txt"}
		if got := eventTypeLabel(ev); got != tt.want {
			t.Errorf("op %v: got %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestReadPreviewReturnsContentForExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	preview, ok := readPreview(path)
	if !ok || preview != "hello world" {
		t.Fatalf("got %q, ok=%v", preview, ok)
	}
}

func TestReadPreviewMissingFileReturnsFalse(t *testing.T) {
	if _, ok := readPreview(filepath.Join(t.TempDir(), "missing.txt")); ok {
		t.Fatal("expected ok=false for a missing file")
	}
}

func TestNewAppliesDefaultDebounceWindow(t *testing.T) {
	m, err := New(&recordingDispatcher{}, 0, false, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Stop()
}

func TestAddPathIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	m, err := New(&recordingDispatcher{}, time.Second, false, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Stop()

	if err := m.AddPath(dir); err != nil {
		t.Fatalf("AddPath: %v", err)
	}
	if err := m.AddPath(dir); err != nil {
		t.Fatalf("AddPath (second call): %v", err)
	}
}

func TestRemovePathOnUnwatchedPathIsNoOp(t *testing.T) {
	m, err := New(&recordingDispatcher{}, time.Second, false, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Stop()

	if err := m.RemovePath(t.TempDir()); err != nil {
		t.Fatalf("RemovePath on an unwatched path should be a no-op, got %v", err)
	}
}

func TestAddThenRemovePath(t *testing.T) {
	dir := t.TempDir()
	m, err := New(&recordingDispatcher{}, time.Second, false, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Stop()

	if err := m.AddPath(dir); err != nil {
		t.Fatalf("AddPath: %v", err)
	}
	if err := m.RemovePath(dir); err != nil {
		t.Fatalf("RemovePath: %v", err)
	}
}

func TestRunDispatchesDebouncedWriteEvent(t *testing.T) {
	dir := t.TempDir()
	dispatcher := &recordingDispatcher{}
	m, err := New(dispatcher, 20*time.Millisecond, false, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Stop()

	if err := m.AddPath(dir); err != nil {
		t.Fatalf("AddPath: %v", err)
	}
	go m.Run()

	path := filepath.Join(dir, "watched.txt")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if dispatcher.count() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected at least one dispatched message for the file write")
}
