package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kestrelai/assistant/pkg/models"
)

// SQLiteStore persists sessions as a single row per key, with messages and
// last_tool_calls stored as JSON columns — mirroring the teacher's
// prepared-statement CockroachStore shape, adapted to the trimmed session
// model and a pure-Go driver.
type SQLiteStore struct {
	db *sql.DB

	stmtGet  *sql.Stmt
	stmtSave *sql.Stmt
}

// NewSQLiteStore opens (or creates) the sessions table at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			key TEXT PRIMARY KEY,
			messages_json TEXT NOT NULL,
			last_tool_calls_json TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	stmtGet, err := db.Prepare(`
		SELECT messages_json, last_tool_calls_json, created_at, updated_at
		FROM sessions WHERE key = ?
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare get: %w", err)
	}
	stmtSave, err := db.Prepare(`
		INSERT INTO sessions (key, messages_json, last_tool_calls_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			messages_json = excluded.messages_json,
			last_tool_calls_json = excluded.last_tool_calls_json,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare save: %w", err)
	}

	return &SQLiteStore{db: db, stmtGet: stmtGet, stmtSave: stmtSave}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*models.Session, error) {
	sess, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, key string) (*models.Session, error) {
	sess, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}
	// Whole seconds, the precision the row stores, so a later Get of this
	// session returns the same timestamps.
	now := time.Now().UTC().Truncate(time.Second)
	sess = &models.Session{ID: key, CreatedAt: now, UpdatedAt: now}
	if err := s.Save(ctx, key, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLiteStore) get(ctx context.Context, key string) (*models.Session, error) {
	row := s.stmtGet.QueryRowContext(ctx, key)
	var messagesJSON, toolCallsJSON string
	var createdAtUnix, updatedAtUnix int64
	err := row.Scan(&messagesJSON, &toolCallsJSON, &createdAtUnix, &updatedAtUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	sess := &models.Session{
		ID:        key,
		CreatedAt: time.Unix(createdAtUnix, 0).UTC(),
		UpdatedAt: time.Unix(updatedAtUnix, 0).UTC(),
	}
	if err := json.Unmarshal([]byte(messagesJSON), &sess.Messages); err != nil {
		return nil, fmt.Errorf("decode session messages: %w", err)
	}
	if err := json.Unmarshal([]byte(toolCallsJSON), &sess.LastToolCalls); err != nil {
		return nil, fmt.Errorf("decode session tool calls: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) Save(ctx context.Context, key string, session *models.Session) error {
	messagesJSON, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("encode session messages: %w", err)
	}
	toolCallsJSON, err := json.Marshal(session.LastToolCalls)
	if err != nil {
		return fmt.Errorf("encode session tool calls: %w", err)
	}
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.stmtSave.ExecContext(ctx, key, string(messagesJSON), string(toolCallsJSON), createdAt.Unix(), time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
