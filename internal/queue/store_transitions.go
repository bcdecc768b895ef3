package queue

import (
	"context"
	"fmt"
	"time"
)

// MarkReady records a successful conversion: the job moves from running to
// ready with its output reference and finish timestamp. Terminal rows are
// never overwritten; marking a job that is not running is an error.
func (s *Store) MarkReady(ctx context.Context, id int64, outputRef string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET status = ?, output_ref = ?, error_message = NULL, finished_at = ?
         WHERE id = ? AND status = ?`,
		StatusReady,
		nullableString(outputRef),
		formatTime(time.Now()),
		id,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark ready rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark ready: job %d is not running", id)
	}
	return nil
}

// MarkFailed records a conversion failure with its error message. Terminal
// rows are never overwritten; marking a job that is not running is an error.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET status = ?, error_message = ?, finished_at = ?
         WHERE id = ? AND status = ?`,
		StatusFailed,
		nullableString(message),
		formatTime(time.Now()),
		id,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark failed rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark failed: job %d is not running", id)
	}
	return nil
}

// ReleaseToPending returns a running job to the queue without recording an
// outcome, clearing its start timestamp. Used when processing was interrupted
// by infrastructure rather than by the job itself.
func (s *Store) ReleaseToPending(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET status = ?, started_at = NULL, finished_at = NULL
         WHERE id = ? AND status = ?`,
		StatusPending,
		id,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("release job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("release job: job %d is not running", id)
	}
	return nil
}

// RecoverStale returns all running jobs to pending. Intended for startup or
// operator recovery after a crash left claims behind; a live worker holding
// one of these jobs will lose it.
func (s *Store) RecoverStale(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET status = ?, started_at = NULL, finished_at = NULL
         WHERE status = ?`,
		StatusPending,
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed enqueues fresh pending jobs for failed rows, preserving the
// failed rows and their error messages as history. With no ids it retries
// every failed job; otherwise only the listed jobs, skipping any that are
// not failed. Returns the number of new jobs created.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := formatTime(time.Now())

	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`INSERT INTO conversion_jobs (source_ref, status, created_at)
             SELECT source_ref, ?, ? FROM conversion_jobs WHERE status = ? ORDER BY id`,
			StatusPending,
			timestamp,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusPending, timestamp, StatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `INSERT INTO conversion_jobs (source_ref, status, created_at)
        SELECT source_ref, ?, ? FROM conversion_jobs
        WHERE status = ? AND id IN (` + placeholders + `) ORDER BY id`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}
