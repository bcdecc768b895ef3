package worker_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"sheetmill/internal/logging"
	"sheetmill/internal/notifications"
	"sheetmill/internal/queue"
	"sheetmill/internal/services"
	"sheetmill/internal/testsupport"
	"sheetmill/internal/worker"
)

type conversionCall struct {
	input  string
	output string
	sheet  int
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []conversionCall
	err     error
	errOnce error
}

func (f *fakeRunner) Convert(_ context.Context, input, output string, sheetIndex int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, conversionCall{input: input, output: output, sheet: sheetIndex})
	if f.errOnce != nil {
		err := f.errOnce
		f.errOnce = nil
		return err
	}
	return f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) firstCall() (conversionCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return conversionCall{}, false
	}
	return f.calls[0], true
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) snapshot() []notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Event(nil), r.events...)
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Job {
	t.Helper()
	ctx := context.Background()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for job %d to reach %s", id, want)
		default:
		}
		job, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job.Status == want {
			return job
		}
		if job.Status == queue.StatusFailed && want != queue.StatusFailed {
			t.Fatalf("job %d failed: %s", id, job.ErrorMessage)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestManagerConvertsClaimedJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	input := filepath.Join(cfg.Paths.DataDir, "uploads", "report.xlsb")
	testsupport.WriteFile(t, input, 128)
	job := testsupport.Enqueue(t, store, "uploads/report.xlsb")

	runner := &fakeRunner{}
	notifier := &recordingNotifier{}
	mgr, err := worker.NewManager(cfg, logging.NewNop(), notifier, worker.WithRunner(runner))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	done := waitForStatus(t, store, job.ID, queue.StatusReady)
	if done.OutputRef != cfg.OutputPathFor(job.ID) {
		t.Fatalf("output ref = %q, want %q", done.OutputRef, cfg.OutputPathFor(job.ID))
	}

	call, ok := runner.firstCall()
	if !ok {
		t.Fatal("converter was never invoked")
	}
	if call.input != input {
		t.Fatalf("converter input = %q, want %q", call.input, input)
	}
	if call.output != cfg.OutputPathFor(job.ID) {
		t.Fatalf("converter output = %q, want %q", call.output, cfg.OutputPathFor(job.ID))
	}
	if call.sheet != cfg.Workers.DefaultSheet {
		t.Fatalf("converter sheet = %d, want %d", call.sheet, cfg.Workers.DefaultSheet)
	}

	mgr.Stop()
	status := mgr.Status()
	if status.Running {
		t.Fatal("expected stopped manager")
	}
	if status.Stats.Claimed != 1 || status.Stats.Converted != 1 || status.Stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", status.Stats)
	}
	if status.LastJob == nil || status.LastJob.Status != queue.StatusReady {
		t.Fatalf("unexpected last job: %+v", status.LastJob)
	}

	events := notifier.snapshot()
	if len(events) != 1 || events[0] != notifications.EventConversionCompleted {
		t.Fatalf("unexpected notifications: %v", events)
	}
}

func TestManagerMarksMissingInputFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLegacyRoots())
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.Enqueue(t, store, "uploads/vanished.xlsb")

	runner := &fakeRunner{}
	notifier := &recordingNotifier{}
	mgr, err := worker.NewManager(cfg, logging.NewNop(), notifier, worker.WithRunner(runner))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	failed := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if !strings.HasPrefix(failed.ErrorMessage, "uploaded file not found: uploads/vanished.xlsb (tried ") {
		t.Fatalf("unexpected error message: %q", failed.ErrorMessage)
	}
	wantCandidate := filepath.Join(cfg.Paths.DataDir, "uploads", "vanished.xlsb")
	if !strings.Contains(failed.ErrorMessage, wantCandidate) {
		t.Fatalf("error message %q does not list %q", failed.ErrorMessage, wantCandidate)
	}
	if got := runner.callCount(); got != 0 {
		t.Fatalf("converter invoked %d times for unresolved input", got)
	}

	mgr.Stop()
	status := mgr.Status()
	if status.Stats.Claimed != 1 || status.Stats.Failed != 1 || status.Stats.Converted != 0 {
		t.Fatalf("unexpected stats: %+v", status.Stats)
	}
	events := notifier.snapshot()
	if len(events) != 1 || events[0] != notifications.EventConversionFailed {
		t.Fatalf("unexpected notifications: %v", events)
	}
}

func TestManagerRecordsConverterFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	input := filepath.Join(cfg.Paths.DataDir, "uploads", "bad.xlsb")
	testsupport.WriteFile(t, input, 64)
	job := testsupport.Enqueue(t, store, "uploads/bad.xlsb")

	diagnostic := "converter exit 2: sheet index 5 out of range (1..1)"
	runner := &fakeRunner{err: errors.New(diagnostic)}
	notifier := &recordingNotifier{}
	mgr, err := worker.NewManager(cfg, logging.NewNop(), notifier, worker.WithRunner(runner))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	failed := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if failed.ErrorMessage != diagnostic {
		t.Fatalf("error message = %q, want %q", failed.ErrorMessage, diagnostic)
	}

	events := notifier.snapshot()
	if len(events) != 1 || events[0] != notifications.EventConversionFailed {
		t.Fatalf("unexpected notifications: %v", events)
	}
}

func TestManagerReleasesJobAfterTransientFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	input := filepath.Join(cfg.Paths.DataDir, "uploads", "retry.xlsb")
	testsupport.WriteFile(t, input, 64)
	job := testsupport.Enqueue(t, store, "uploads/retry.xlsb")

	transient := services.Wrap(services.ErrTransient, "convert", "run converter", "", errors.New("disk hiccup"))
	runner := &fakeRunner{errOnce: transient}
	mgr, err := worker.NewManager(cfg, logging.NewNop(), &recordingNotifier{}, worker.WithRunner(runner))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	done := waitForStatus(t, store, job.ID, queue.StatusReady)
	if done.ErrorMessage != "" {
		t.Fatalf("ready job carries error %q", done.ErrorMessage)
	}
	if got := runner.callCount(); got != 2 {
		t.Fatalf("converter invoked %d times, want 2", got)
	}

	mgr.Stop()
	status := mgr.Status()
	if status.Stats.Claimed != 2 || status.Stats.Converted != 1 || status.Stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", status.Stats)
	}
}

func TestManagerStartGuards(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mgr, err := worker.NewManager(cfg, logging.NewNop(), &recordingNotifier{}, worker.WithRunner(&fakeRunner{}))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	ctx := context.Background()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := mgr.Start(ctx); err == nil || err.Error() != "worker already running" {
		t.Fatalf("expected running guard, got %v", err)
	}
	mgr.Stop()
	mgr.Stop()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	mgr.Stop()
}

func TestManagerRunsConverterSubprocess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	script := filepath.Join(testsupport.BaseDir(cfg), "bin", "fake-convert")
	testsupport.WriteScript(t, script, "printf '[\"ok\"]\\n' > \"$4\"\n")
	cfg.Workers.ConverterBin = script
	cfg.Workers.ConversionTimeoutSeconds = 30

	store := testsupport.MustOpenStore(t, cfg)
	input := filepath.Join(cfg.Paths.DataDir, "uploads", "real.xlsb")
	testsupport.WriteFile(t, input, 64)
	job := testsupport.Enqueue(t, store, "uploads/real.xlsb")

	mgr, err := worker.NewManager(cfg, logging.NewNop(), &recordingNotifier{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	done := waitForStatus(t, store, job.ID, queue.StatusReady)
	payload, err := os.ReadFile(done.OutputRef)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(payload) != "[\"ok\"]\n" {
		t.Fatalf("unexpected output payload: %q", payload)
	}
}

func TestManagerRecordsSubprocessDiagnostic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	script := filepath.Join(testsupport.BaseDir(cfg), "bin", "broken-convert")
	testsupport.WriteScript(t, script, "echo 'workbook is encrypted' >&2\nexit 3\n")
	cfg.Workers.ConverterBin = script
	cfg.Workers.ConversionTimeoutSeconds = 30

	store := testsupport.MustOpenStore(t, cfg)
	input := filepath.Join(cfg.Paths.DataDir, "uploads", "secret.xlsb")
	testsupport.WriteFile(t, input, 64)
	job := testsupport.Enqueue(t, store, "uploads/secret.xlsb")

	mgr, err := worker.NewManager(cfg, logging.NewNop(), &recordingNotifier{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	failed := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if failed.ErrorMessage != "converter exit 3: workbook is encrypted" {
		t.Fatalf("error message = %q", failed.ErrorMessage)
	}
}
