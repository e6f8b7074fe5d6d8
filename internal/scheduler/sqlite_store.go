package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kestrelai/assistant/pkg/models"
)

// SQLiteStore persists scheduled jobs to a single table:
// (id, description, trigger_type, trigger_args_json, job_type, job_args_json).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the jobs table at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS scheduled_jobs (
			id TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			trigger_type TEXT NOT NULL,
			trigger_args_json TEXT NOT NULL,
			job_type TEXT NOT NULL,
			job_args_json TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create scheduled_jobs table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, job models.ScheduledJob) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (id, description, trigger_type, trigger_args_json, job_type, job_args_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			trigger_type = excluded.trigger_type,
			trigger_args_json = excluded.trigger_args_json,
			job_type = excluded.job_type,
			job_args_json = excluded.job_args_json
	`, job.ID, job.Description, string(job.TriggerType), string(job.TriggerArgs), string(job.JobType), string(job.JobArgs))
	if err != nil {
		return fmt.Errorf("save scheduled job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (models.ScheduledJob, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, description, trigger_type, trigger_args_json, job_type, job_args_json
		FROM scheduled_jobs WHERE id = ?
	`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScheduledJob{}, false, nil
	}
	if err != nil {
		return models.ScheduledJob{}, false, fmt.Errorf("get scheduled job: %w", err)
	}
	return job, true, nil
}

// Delete tolerates deleting an id that no longer exists — one-shot jobs
// may already have been removed by a prior call or a prune pass.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scheduled job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]models.ScheduledJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, trigger_type, trigger_args_json, job_type, job_args_json
		FROM scheduled_jobs ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list scheduled jobs: %w", err)
	}
	defer rows.Close()

	var out []models.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (models.ScheduledJob, error) {
	var job models.ScheduledJob
	var triggerArgs, jobArgs string
	if err := row.Scan(&job.ID, &job.Description, &job.TriggerType, &triggerArgs, &job.JobType, &jobArgs); err != nil {
		return models.ScheduledJob{}, err
	}
	job.TriggerArgs = []byte(triggerArgs)
	job.JobArgs = []byte(jobArgs)
	return job, nil
}
