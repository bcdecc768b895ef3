package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sheetmill/internal/logging"
	"sheetmill/internal/notifications"
	"sheetmill/internal/queue"
	"sheetmill/internal/services"
)

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	backoff := m.pollInterval
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		store, err := queue.Open(m.cfg)
		if err != nil {
			wait := capDuration(backoff, m.backoffMax)
			m.setLastError(err)
			m.logger.Error("cannot open job store",
				logging.Error(err),
				logging.String(logging.FieldEventType, "store_open_failed"),
				logging.String(logging.FieldErrorHint, "check database path and permissions"),
				logging.Duration("retry_in", wait),
			)
			m.sleep(ctx, wait)
			backoff = nextBackoff(backoff, m.backoffMax)
			continue
		}
		backoff = m.pollInterval

		claimed, err := m.iterate(ctx, store)
		if closeErr := store.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			wait := capDuration(backoff, m.backoffMax)
			m.setLastError(err)
			m.logger.Error("worker loop error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "worker_loop_error"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
				logging.Duration("retry_in", wait),
			)
			m.sleep(ctx, wait)
			backoff = nextBackoff(backoff, m.backoffMax)
			continue
		}
		if !claimed {
			m.waitForJobOrShutdown(ctx)
		}
	}
}

// iterate claims and processes at most one job. It reports whether a job was
// claimed so the caller can choose between an immediate next pass and an
// idle sleep.
func (m *Manager) iterate(ctx context.Context, store *queue.Store) (bool, error) {
	job, err := store.ClaimNextPending(ctx)
	if err != nil {
		return false, fmt.Errorf("claim next job: %w", err)
	}
	if job == nil {
		return false, nil
	}
	return true, m.processJob(ctx, store, job)
}

func (m *Manager) processJob(ctx context.Context, store *queue.Store, job *queue.Job) error {
	// Shutdown must not abort work already claimed: the job context keeps
	// request-scoped values but drops the loop's cancellation.
	jobCtx := services.WithRequestID(context.WithoutCancel(ctx), uuid.NewString())
	jobCtx = services.WithJobID(jobCtx, job.ID)

	stats := m.noteClaim(job)
	logging.WithContext(jobCtx, m.logger).Info("claimed job",
		logging.String(logging.FieldEventType, "job_claimed"),
		logging.String(logging.FieldSourceRef, job.SourceRef),
		logging.Uint64("claimed_total", stats.Claimed),
	)

	input, candidates := m.resolver.Resolve(job.SourceRef)
	if input == "" {
		resolveCtx := services.WithStage(jobCtx, "resolve")
		message := missingInputMessage(job.SourceRef, candidates)
		if err := store.MarkFailed(resolveCtx, job.ID, message); err != nil {
			return fmt.Errorf("record resolution failure: %w", err)
		}
		stats = m.noteFailure(job, message)
		logging.WithContext(resolveCtx, m.logger).Error("uploaded file not found",
			logging.String(logging.FieldEventType, "resolve_failed"),
			logging.String(logging.FieldSourceRef, job.SourceRef),
			logging.Int("candidates", len(candidates)),
			logging.String(logging.FieldErrorHint, "confirm the upload landed under a configured root"),
			logging.Uint64("failed_total", stats.Failed),
		)
		m.publish(resolveCtx, notifications.EventConversionFailed, notifications.Payload{
			"sourceRef": job.SourceRef,
			"error":     message,
		})
		return nil
	}

	convertCtx := services.WithStage(jobCtx, "convert")
	convertLogger := logging.WithContext(convertCtx, m.logger)
	output := m.cfg.OutputPathFor(job.ID)
	started := time.Now()
	convertLogger.Info("conversion started",
		logging.String(logging.FieldEventType, "conversion_start"),
		logging.String("input", input),
		logging.String("output", output),
	)

	if err := m.conv.Convert(convertCtx, input, output, m.cfg.Workers.DefaultSheet); err != nil {
		if services.FailureStatus(err) == queue.StatusPending {
			if relErr := store.ReleaseToPending(convertCtx, job.ID); relErr != nil {
				return fmt.Errorf("release job after transient failure: %w", relErr)
			}
			m.setLastError(err)
			convertLogger.Warn("transient failure, job returned to queue",
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_released"),
			)
			return nil
		}
		if mfErr := store.MarkFailed(convertCtx, job.ID, err.Error()); mfErr != nil {
			return fmt.Errorf("record conversion failure: %w", mfErr)
		}
		stats = m.noteFailure(job, err.Error())
		convertLogger.Error("conversion failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "conversion_failed"),
			logging.String(logging.FieldSourceRef, job.SourceRef),
			logging.Duration("duration", time.Since(started)),
			logging.Uint64("failed_total", stats.Failed),
		)
		m.publish(convertCtx, notifications.EventConversionFailed, notifications.Payload{
			"sourceRef": job.SourceRef,
			"error":     err.Error(),
		})
		return nil
	}

	if err := store.MarkReady(convertCtx, job.ID, output); err != nil {
		return fmt.Errorf("record conversion result: %w", err)
	}
	stats = m.noteSuccess(job, output)
	convertLogger.Info("conversion complete",
		logging.String(logging.FieldEventType, "conversion_complete"),
		logging.String(logging.FieldSourceRef, job.SourceRef),
		logging.String("output", output),
		logging.Duration("duration", time.Since(started)),
		logging.Uint64("converted_total", stats.Converted),
	)
	m.publish(convertCtx, notifications.EventConversionCompleted, notifications.Payload{
		"sourceRef": job.SourceRef,
		"output":    output,
	})
	return nil
}

func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		m.logger.Debug("notification delivery failed",
			logging.Error(err),
			logging.String("event", string(event)),
		)
	}
}

// missingInputMessage enumerates every location probed so the failure is
// diagnosable from the job record alone.
func missingInputMessage(ref string, candidates []string) string {
	if len(candidates) == 0 {
		return fmt.Sprintf("uploaded file not found: %s", ref)
	}
	return fmt.Sprintf("uploaded file not found: %s (tried %s)", ref, strings.Join(candidates, ", "))
}

// nextBackoff doubles the retry delay after an infrastructure failure,
// capped at the configured maximum.
func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

func capDuration(d, limit time.Duration) time.Duration {
	if d > limit {
		return limit
	}
	return d
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	m.sleep(ctx, m.pollInterval)
}
