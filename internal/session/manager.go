package session

import (
	"context"

	"github.com/kestrelai/assistant/pkg/models"
)

// Manager is the assembly-time entry point: it resolves a transport key to
// its Session, appends a new turn, trims to the configured context window,
// and persists the result.
type Manager struct {
	store         Store
	maxContextLen int
}

// NewManager builds a manager over store, trimming sessions to
// maxContextMessages at Append time. A non-positive value disables
// trimming.
func NewManager(store Store, maxContextMessages int) *Manager {
	return &Manager{store: store, maxContextLen: maxContextMessages}
}

// Get resolves (creating if absent) the session for key.
func (m *Manager) Get(ctx context.Context, key string) (*models.Session, error) {
	return m.store.GetOrCreate(ctx, key)
}

// Append adds a message to the session identified by key, trims it to the
// context window, and persists it.
func (m *Manager) Append(ctx context.Context, key string, msg models.Message) (*models.Session, error) {
	sess, err := m.store.GetOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}
	sess.Messages = append(sess.Messages, msg)
	sess.Trim(m.maxContextLen)
	if err := m.store.Save(ctx, key, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SetLastToolCalls records the most recent round's tool calls and
// persists the session.
func (m *Manager) SetLastToolCalls(ctx context.Context, key string, calls []models.ToolCall) error {
	sess, err := m.store.GetOrCreate(ctx, key)
	if err != nil {
		return err
	}
	sess.LastToolCalls = calls
	return m.store.Save(ctx, key, sess)
}

// Reset discards a session's history entirely.
func (m *Manager) Reset(ctx context.Context, key string) error {
	return m.store.Delete(ctx, key)
}
