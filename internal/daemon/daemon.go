package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"sheetmill/internal/config"
	"sheetmill/internal/logging"
	"sheetmill/internal/notifications"
	"sheetmill/internal/queue"
	"sheetmill/internal/worker"
)

// Daemon coordinates the background conversion services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	worker   *worker.Manager
	notifier notifications.Service
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Worker       worker.StatusSummary
	QueueStats   map[queue.Status]int
	QueueDBPath  string
	LockFilePath string
}

// Option configures optional daemon behavior.
type Option func(*Daemon)

// WithNotifier substitutes the notification service (used in tests).
func WithNotifier(n notifications.Service) Option {
	return func(d *Daemon) {
		if n != nil {
			d.notifier = n
		}
	}
}

// WithLogPath records the log file served by the LogTail control method.
func WithLogPath(path string) Option {
	return func(d *Daemon) {
		if strings.TrimSpace(path) != "" {
			d.logPath = path
		}
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wrk *worker.Manager, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wrk == nil {
		return nil, errors.New("daemon requires config, store, logger, and worker manager")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "sheetmill.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		worker:   wrk,
		notifier: notifications.NewService(cfg),
		logPath:  filepath.Join(cfg.Paths.LogDir, "sheetmill.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock and launches the conversion worker. A
// worker that fails to start leaves the daemon running and queryable.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another sheetmill daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.worker.Start(d.ctx); err != nil {
		d.logger.Warn("conversion worker failed to start; daemon remains queryable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "worker_start_failed"),
		)
	}

	d.running.Store(true)
	d.logger.Info("sheetmill daemon started", logging.String("lock", d.lockPath))
	d.publishStarted(d.ctx)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.worker.Stop()
	d.publishStopped(context.Background())
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("sheetmill daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ListQueue returns jobs filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Job, error) {
	if d.store == nil {
		return nil, errors.New("job store unavailable")
	}
	return d.store.List(ctx, statuses...)
}

// DescribeJob returns a single job by id.
func (d *Daemon) DescribeJob(ctx context.Context, id int64) (*queue.Job, error) {
	if d.store == nil {
		return nil, errors.New("job store unavailable")
	}
	return d.store.GetByID(ctx, id)
}

// Enqueue inserts a pending conversion job for the given file reference.
// The reference is stored as provided; resolution happens at claim time.
func (d *Daemon) Enqueue(ctx context.Context, sourceRef string) (*queue.Job, error) {
	if d.store == nil {
		return nil, errors.New("job store unavailable")
	}
	trimmed := strings.TrimSpace(sourceRef)
	if trimmed == "" {
		return nil, errors.New("file reference is required")
	}
	job, err := d.store.Enqueue(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("enqueue file: %w", err)
	}
	d.logger.Info("job enqueued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldSourceRef, trimmed),
	)
	return job, nil
}

// ClearQueue removes all jobs.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("job store unavailable")
	}
	return d.store.Clear(ctx)
}

// ClearCompleted removes only jobs whose conversion finished.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("job store unavailable")
	}
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed jobs.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("job store unavailable")
	}
	return d.store.ClearFailed(ctx)
}

// Recover returns orphaned running jobs to pending for another attempt.
func (d *Daemon) Recover(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("job store unavailable")
	}
	return d.store.RecoverStale(ctx)
}

// RetryFailed re-queues failed jobs (optionally a subset) as fresh pending rows.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	if d.store == nil {
		return 0, errors.New("job store unavailable")
	}
	return d.store.RetryFailed(ctx, ids...)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	if d.store == nil {
		return queue.HealthSummary{}, errors.New("job store unavailable")
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	if d.store == nil {
		return queue.DatabaseHealth{}, errors.New("job store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Worker:       d.worker.Status(),
		QueueStats:   stats,
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

func (d *Daemon) publishStarted(ctx context.Context) {
	payload := notifications.Payload{}
	if stats, err := d.store.Stats(ctx); err == nil {
		payload["pending"] = strconv.Itoa(stats[queue.StatusPending])
	}
	if err := d.notifier.Publish(ctx, notifications.EventDaemonStarted, payload); err != nil {
		d.logger.Debug("start notification failed", logging.Error(err))
	}
}

func (d *Daemon) publishStopped(ctx context.Context) {
	if err := d.notifier.Publish(ctx, notifications.EventDaemonStopped, nil); err != nil {
		d.logger.Debug("stop notification failed", logging.Error(err))
	}
}
