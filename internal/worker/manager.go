package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sheetmill/internal/config"
	"sheetmill/internal/logging"
	"sheetmill/internal/notifications"
	"sheetmill/internal/queue"
	"sheetmill/internal/resolve"
	"sheetmill/internal/services/converter"
)

// Manager coordinates the conversion loop: one claim, one resolve, one
// conversion, one terminal update per iteration.
type Manager struct {
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
	conv     converter.Runner
	resolver *resolve.Resolver

	pollInterval time.Duration
	backoffMax   time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
	stats   Stats
}

// Stats counts loop outcomes since the manager was constructed.
type Stats struct {
	Claimed   uint64 `json:"claimed"`
	Converted uint64 `json:"converted"`
	Failed    uint64 `json:"failed"`
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	runner   converter.Runner
	resolver *resolve.Resolver
}

// WithRunner substitutes the converter invocation (used in tests).
func WithRunner(r converter.Runner) ManagerOption {
	return func(o *managerOptions) { o.runner = r }
}

// WithResolver substitutes the upload path resolver.
func WithResolver(r *resolve.Resolver) ManagerOption {
	return func(o *managerOptions) { o.resolver = r }
}

// NewManager constructs a conversion worker for the configured store.
func NewManager(cfg *config.Config, logger *slog.Logger, notifier notifications.Service, opts ...ManagerOption) (*Manager, error) {
	options := &managerOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.runner == nil {
		client, err := converter.New(cfg.Workers.ConverterBin, cfg.Workers.ConversionTimeoutSeconds)
		if err != nil {
			return nil, fmt.Errorf("configure converter: %w", err)
		}
		options.runner = client
	}
	if options.resolver == nil {
		options.resolver = resolve.New(cfg)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	poll := time.Duration(cfg.Workers.PollIntervalSeconds) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	backoffMax := time.Duration(cfg.Workers.BackoffMaxSeconds) * time.Second
	if backoffMax < poll {
		backoffMax = poll
	}

	return &Manager{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "worker"),
		notifier:     notifier,
		conv:         options.runner,
		resolver:     options.resolver,
		pollInterval: poll,
		backoffMax:   backoffMax,
	}, nil
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.lastErr = nil
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("conversion worker starting",
		logging.String("db_path", m.cfg.Paths.DBPath),
		logging.String("ingests_dir", m.cfg.Paths.IngestsDir),
		logging.Duration("poll_interval", m.pollInterval),
		logging.String("journal_mode", m.cfg.Database.JournalMode),
		logging.Int("busy_timeout_ms", m.cfg.Database.BusyTimeoutMS),
		logging.String(logging.FieldEventType, "worker_start"),
	)

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the current job to
// finish. A conversion already in flight is never interrupted; cancellation
// only stops the loop from claiming further work.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}
