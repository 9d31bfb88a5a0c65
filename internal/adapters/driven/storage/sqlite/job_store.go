package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// jobStore implements driven.JobStore.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

const jobColumns = `id, kind, payload, status, attempts, max_attempts, backoff_ms, priority,
	run_at, progress, result, last_error, created_at, updated_at, finished_at`

// CreateJob enqueues a new job.
// Returns domain.ErrAlreadyExists if a job with the same ID exists.
func (s *jobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	if job == nil || job.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, string(job.Kind), nullBytes(job.Payload), string(job.Status),
		job.Attempts, job.MaxAttempts, job.Backoff.Milliseconds(), job.Priority,
		unixNanos(job.RunAt), job.Progress, nullBytes(job.Result), nullString(job.LastError),
		unixNanos(job.CreatedAt), unixNanos(job.UpdatedAt), nullableNanos(job.FinishedAt))
	if err != nil {
		if isConstraintViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *jobStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ClaimNext marks the next due pending job as running in a single
// statement, so concurrent workers never claim the same job.
func (s *jobStore) ClaimNext(ctx context.Context, now time.Time) (*domain.Job, error) {
	row := s.store.db.QueryRowContext(ctx, `
		UPDATE jobs
		SET status = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = ? AND run_at <= ?
			ORDER BY priority ASC, run_at ASC, created_at ASC, id ASC
			LIMIT 1
		)
		RETURNING `+jobColumns,
		string(domain.JobRunning), unixNanos(now), string(domain.JobPending), unixNanos(now))

	job, err := scanJob(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}
	return job, nil
}

// UpdateJob persists a job's state.
func (s *jobStore) UpdateJob(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return domain.ErrInvalidInput
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE jobs SET
			status = ?, attempts = ?, max_attempts = ?, backoff_ms = ?, priority = ?,
			run_at = ?, progress = ?, result = ?, last_error = ?, updated_at = ?, finished_at = ?
		WHERE id = ?
	`, string(job.Status), job.Attempts, job.MaxAttempts, job.Backoff.Milliseconds(), job.Priority,
		unixNanos(job.RunAt), job.Progress, nullBytes(job.Result), nullString(job.LastError),
		unixNanos(job.UpdatedAt), nullableNanos(job.FinishedAt), job.ID)
	if err != nil {
		return fmt.Errorf("updating job: %w", err)
	}
	return requireAffected(res)
}

// ListJobs returns jobs matching the filter, newest first.
func (s *jobStore) ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	var (
		where []string
		args  []any
	)
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, sqlLimit(filter.Limit))

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}

	return jobs, nil
}

// RequeueRunning moves running jobs back to pending.
func (s *jobStore) RequeueRunning(ctx context.Context) (int, error) {
	res, err := s.store.db.ExecContext(ctx, "UPDATE jobs SET status = ? WHERE status = ?",
		string(domain.JobPending), string(domain.JobRunning))
	if err != nil {
		return 0, fmt.Errorf("requeueing running jobs: %w", err)
	}
	return affected(res)
}

// DeleteFinishedBefore removes completed or failed jobs finished before the cutoff.
func (s *jobStore) DeleteFinishedBefore(ctx context.Context, before time.Time) (int, error) {
	res, err := s.store.db.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE status IN (?, ?) AND COALESCE(finished_at, 0) < ?
	`, string(domain.JobCompleted), string(domain.JobFailed), unixNanos(before))
	if err != nil {
		return 0, fmt.Errorf("pruning jobs: %w", err)
	}
	return affected(res)
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job                         domain.Job
		kind, status                string
		payload, result, lastError  sql.NullString
		backoffMS                   int64
		runAt, createdAt, updatedAt int64
		finishedAt                  sql.NullInt64
	)

	if err := row.Scan(&job.ID, &kind, &payload, &status, &job.Attempts, &job.MaxAttempts,
		&backoffMS, &job.Priority, &runAt, &job.Progress, &result, &lastError,
		&createdAt, &updatedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)
	if payload.Valid {
		job.Payload = []byte(payload.String)
	}
	if result.Valid {
		job.Result = []byte(result.String)
	}
	job.LastError = lastError.String
	job.Backoff = time.Duration(backoffMS) * time.Millisecond
	job.RunAt = timeFromNanos(runAt)
	job.CreatedAt = timeFromNanos(createdAt)
	job.UpdatedAt = timeFromNanos(updatedAt)
	job.FinishedAt = timeFromNull(finishedAt)

	return &job, nil
}

// nullBytes stores raw JSON as text, or NULL when empty.
func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
