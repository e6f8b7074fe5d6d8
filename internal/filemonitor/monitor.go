// Package filemonitor wraps fsnotify with per-path debounced dispatch: the
// last event within a window cancels its predecessor and reschedules the
// dispatch, matching the reuse-pattern already established by
// internal/debounce for inbound message batching.
package filemonitor

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kestrelai/assistant/internal/debounce"
)

// DefaultDebounce is the default per-path debounce window.
const DefaultDebounce = 2 * time.Second

// PreviewBytes is how much of a changed file's content is attached to a
// dispatch when analysis is enabled.
const PreviewBytes = 2000

// Dispatcher receives the formatted description of a debounced file event.
type Dispatcher interface {
	Send(message string, urgent bool)
}

// Monitor watches a set of filesystem paths and debounces their change
// events before dispatching a description of each.
type Monitor struct {
	watcher     *fsnotify.Watcher
	debouncer   *debounce.Debouncer[fsnotify.Event]
	dispatcher  Dispatcher
	logger      *slog.Logger
	analyze     bool

	mu    sync.Mutex
	paths map[string]bool
}

// New builds a monitor. debounceWindow <= 0 uses DefaultDebounce.
func New(dispatcher Dispatcher, debounceWindow time.Duration, analyze bool, logger *slog.Logger) (*Monitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounceWindow <= 0 {
		debounceWindow = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	m := &Monitor{
		watcher:    watcher,
		dispatcher: dispatcher,
		logger:     logger,
		analyze:    analyze,
		paths:      make(map[string]bool),
	}
	m.debouncer = debounce.NewDebouncer[fsnotify.Event](
		debounce.WithDebounceDuration[fsnotify.Event](debounceWindow),
		debounce.WithBuildKey[fsnotify.Event](func(ev *fsnotify.Event) string { return ev.Name }),
		debounce.WithOnFlush[fsnotify.Event](func(events []*fsnotify.Event) error {
			if len(events) == 0 {
				return nil
			}
			m.dispatch(*events[len(events)-1])
			return nil
		}),
	)

	return m, nil
}

// Run drains fsnotify events until ctx-equivalent Stop is called. Intended
// to run in its own goroutine.
func (m *Monitor) Run() {
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.debouncer.Enqueue(&ev)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("filemonitor: watcher error", "error", err)
		}
	}
}

// Stop tears down the debouncer and the underlying watcher.
func (m *Monitor) Stop() error {
	m.debouncer.Stop()
	return m.watcher.Close()
}

// AddPath starts watching p. Idempotent: re-adding an already-watched path
// is a no-op.
func (m *Monitor) AddPath(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paths[p] {
		return nil
	}
	if err := m.watcher.Add(p); err != nil {
		return fmt.Errorf("watch %s: %w", p, err)
	}
	m.paths[p] = true
	return nil
}

// RemovePath stops watching p. Idempotent: removing a path that was never
// added is a no-op.
func (m *Monitor) RemovePath(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.paths[p] {
		return nil
	}
	delete(m.paths, p)
	if err := m.watcher.Remove(p); err != nil {
		return fmt.Errorf("unwatch %s: %w", p, err)
	}
	return nil
}

func (m *Monitor) dispatch(ev fsnotify.Event) {
	message := fmt.Sprintf("File %s: %s", eventTypeLabel(ev), ev.Name)
	if m.analyze {
		if preview, ok := readPreview(ev.Name); ok {
			message += "\n\n" + preview
		}
	}
	m.dispatcher.Send(message, false)
}

func eventTypeLabel(ev fsnotify.Event) string {
	switch {
	case ev.Op&fsnotify.Create != 0:
		return "created"
	case ev.Op&fsnotify.Write != 0:
		return "modified"
	case ev.Op&fsnotify.Remove != 0:
		return "removed"
	case ev.Op&fsnotify.Rename != 0:
		return "renamed"
	case ev.Op&fsnotify.Chmod != 0:
		return "permissions changed"
	default:
		return "changed"
	}
}

func readPreview(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	buf := make([]byte, PreviewBytes)
	n, _ := f.Read(buf)
	if n == 0 {
		return "", false
	}
	return string(buf[:n]), true
}
