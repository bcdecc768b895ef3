package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ClaimNextPending atomically claims the oldest pending job and marks it
// running with a start timestamp. It returns (nil, nil) when no pending work
// exists or when a competing claimer won the race for the selected row; the
// caller simply polls again.
//
// The row is selected and conditionally updated inside one immediate
// transaction, and the update re-checks the status so at most one claimer can
// ever observe a non-zero row count for a given job.
func (s *Store) ClaimNextPending(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)

	var claimed *Job
	err := retryOnBusy(ctx, func() error {
		claimed = nil

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin claim tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(
			ctx,
			`SELECT `+jobColumns+` FROM conversion_jobs WHERE status = ? ORDER BY id LIMIT 1`,
			StatusPending,
		)
		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return tx.Commit()
		}
		if err != nil {
			return fmt.Errorf("select pending job: %w", err)
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(
			ctx,
			`UPDATE conversion_jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
			StatusRunning,
			formatTime(now),
			job.ID,
			StatusPending,
		)
		if err != nil {
			return fmt.Errorf("claim job %d: %w", job.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			// Lost the race; the row changed under us.
			return tx.Commit()
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit claim: %w", err)
		}

		started := now.Truncate(time.Second)
		job.Status = StatusRunning
		job.StartedAt = &started
		claimed = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}
