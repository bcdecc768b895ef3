package queue_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"sheetmill/internal/queue"
	"sheetmill/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.Enqueue(ctx, "uploads/report.xlsb")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Fatal("expected created timestamp to be set")
	}
	if job.StartedAt != nil || job.FinishedAt != nil {
		t.Fatalf("expected no start/finish timestamps, got %#v", job)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.SourceRef != "uploads/report.xlsb" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
}

func TestEnqueueRequiresSourceRef(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.Enqueue(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank source reference")
	}
}

func TestClaimNextPendingClaimsOldest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.Enqueue(t, store, "uploads/a.xlsb")
	second := testsupport.Enqueue(t, store, "uploads/b.xlsb")

	claimed, err := store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest job %d claimed, got %#v", first.ID, claimed)
	}
	if claimed.Status != queue.StatusRunning {
		t.Fatalf("expected running status, got %s", claimed.Status)
	}
	if claimed.StartedAt == nil {
		t.Fatal("expected start timestamp on claim")
	}

	claimed, err = store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if claimed == nil || claimed.ID != second.ID {
		t.Fatalf("expected job %d claimed, got %#v", second.ID, claimed)
	}

	claimed, err = store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("empty claim failed: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected no job on empty queue, got %#v", claimed)
	}
}

func TestClaimNextPendingSingleWinner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.Enqueue(t, store, "uploads/contended.xlsb")

	const claimers = 8
	var wg sync.WaitGroup
	results := make(chan *queue.Job, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.ClaimNextPending(ctx)
			if err != nil {
				t.Errorf("ClaimNextPending: %v", err)
				return
			}
			results <- claimed
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for claimed := range results {
		if claimed != nil {
			winners++
			if claimed.ID != job.ID {
				t.Fatalf("unexpected job claimed: %#v", claimed)
			}
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestMarkReadyRecordsOutcome(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.Enqueue(t, store, "uploads/done.xlsb")
	claimed, err := store.ClaimNextPending(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %#v", err, claimed)
	}

	if err := store.MarkReady(ctx, claimed.ID, "/data/ingests/1.jsonl"); err != nil {
		t.Fatalf("MarkReady failed: %v", err)
	}

	job, err := store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != queue.StatusReady {
		t.Fatalf("expected ready, got %s", job.Status)
	}
	if job.OutputRef != "/data/ingests/1.jsonl" {
		t.Fatalf("expected output ref persisted, got %q", job.OutputRef)
	}
	if job.FinishedAt == nil {
		t.Fatal("expected finish timestamp")
	}

	// Terminal rows stay terminal.
	if err := store.MarkFailed(ctx, claimed.ID, "late failure"); err == nil {
		t.Fatal("expected error when failing a ready job")
	}
	job, err = store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID after rejected transition: %v", err)
	}
	if job.Status != queue.StatusReady {
		t.Fatalf("expected ready preserved, got %s", job.Status)
	}
}

func TestMarkFailedRecordsMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.Enqueue(t, store, "uploads/broken.xlsb")
	claimed, err := store.ClaimNextPending(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %#v", err, claimed)
	}

	if err := store.MarkFailed(ctx, claimed.ID, "converter exit 2: bad sheet"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	job, err := store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.ErrorMessage != "converter exit 2: bad sheet" {
		t.Fatalf("expected error message persisted, got %q", job.ErrorMessage)
	}

	if err := store.MarkReady(ctx, claimed.ID, "out.jsonl"); err == nil {
		t.Fatal("expected error when readying a failed job")
	}
}

func TestReleaseToPendingRequeues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.Enqueue(t, store, "uploads/interrupted.xlsb")
	claimed, err := store.ClaimNextPending(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %#v", err, claimed)
	}

	if err := store.ReleaseToPending(ctx, claimed.ID); err != nil {
		t.Fatalf("ReleaseToPending failed: %v", err)
	}

	released, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if released.Status != queue.StatusPending {
		t.Fatalf("expected pending after release, got %s", released.Status)
	}
	if released.StartedAt != nil {
		t.Fatal("expected start timestamp cleared")
	}

	if err := store.ReleaseToPending(ctx, job.ID); err == nil {
		t.Fatal("expected error releasing a job that is not running")
	}

	reclaimed, err := store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != job.ID {
		t.Fatalf("expected released job reclaimable, got %#v", reclaimed)
	}
}

func TestRecoverStaleRequeuesRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		testsupport.Enqueue(t, store, fmt.Sprintf("uploads/stale-%d.xlsb", i))
		if claimed, err := store.ClaimNextPending(ctx); err != nil || claimed == nil {
			t.Fatalf("claim %d: %v %#v", i, err, claimed)
		}
	}
	pending := testsupport.Enqueue(t, store, "uploads/fresh.xlsb")

	count, err := store.RecoverStale(ctx)
	if err != nil {
		t.Fatalf("RecoverStale failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 jobs recovered, got %d", count)
	}

	jobs, err := store.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 pending jobs, got %d", len(jobs))
	}
	for _, job := range jobs {
		if job.StartedAt != nil && job.ID != pending.ID {
			t.Fatalf("expected start timestamp cleared for job %d", job.ID)
		}
	}
}

func TestRetryFailedCreatesNewJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.Enqueue(t, store, "uploads/retry-me.xlsb")
	claimed, err := store.ClaimNextPending(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %#v", err, claimed)
	}
	if err := store.MarkFailed(ctx, claimed.ID, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	created, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 retry job, got %d", created)
	}

	original, err := store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID original: %v", err)
	}
	if original.Status != queue.StatusFailed || original.ErrorMessage != "boom" {
		t.Fatalf("expected failed row preserved, got %#v", original)
	}

	pending, err := store.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("List pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending retry, got %d", len(pending))
	}
	if pending[0].SourceRef != "uploads/retry-me.xlsb" {
		t.Fatalf("expected source ref carried over, got %q", pending[0].SourceRef)
	}
	if pending[0].ID == claimed.ID {
		t.Fatal("expected a fresh job row for the retry")
	}

	// Targeted retry of a job that is not failed creates nothing.
	created, err = store.RetryFailed(ctx, pending[0].ID)
	if err != nil {
		t.Fatalf("targeted RetryFailed: %v", err)
	}
	if created != 0 {
		t.Fatalf("expected no retries for non-failed job, got %d", created)
	}
}

func TestListSupportsStatusFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a := testsupport.Enqueue(t, store, "uploads/a.xlsb")
	b := testsupport.Enqueue(t, store, "uploads/b.xlsb")
	c := testsupport.Enqueue(t, store, "uploads/c.xlsb")

	claimed, err := store.ClaimNextPending(ctx)
	if err != nil || claimed == nil || claimed.ID != a.ID {
		t.Fatalf("claim a: %v %#v", err, claimed)
	}
	if err := store.MarkFailed(ctx, a.ID, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	claimed, err = store.ClaimNextPending(ctx)
	if err != nil || claimed == nil || claimed.ID != b.ID {
		t.Fatalf("claim b: %v %#v", err, claimed)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(all))
	}
	if all[0].ID != a.ID || all[1].ID != b.ID || all[2].ID != c.ID {
		t.Fatalf("expected order a,b,c, got IDs %d,%d,%d", all[0].ID, all[1].ID, all[2].ID)
	}

	filtered, err := store.List(ctx, queue.StatusRunning, queue.StatusFailed)
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(filtered))
	}
	if filtered[0].ID != a.ID || filtered[1].ID != b.ID {
		t.Fatalf("unexpected filtered order: got %d,%d", filtered[0].ID, filtered[1].ID)
	}

	next, err := store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if next == nil || next.ID != c.ID {
		t.Fatalf("expected job %d next, got %#v", c.ID, next)
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.Enqueue(t, store, "uploads/p1.xlsb")
	testsupport.Enqueue(t, store, "uploads/p2.xlsb")
	testsupport.Enqueue(t, store, "uploads/r1.xlsb")
	claimed, err := store.ClaimNextPending(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %#v", err, claimed)
	}
	if err := store.MarkReady(ctx, claimed.ID, "out.jsonl"); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusPending] != 2 || stats[queue.StatusReady] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 3 || health.Pending != 2 || health.Ready != 1 || health.Running != 0 || health.Failed != 0 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestClearOperations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.Enqueue(t, store, "uploads/ok.xlsb")
	testsupport.Enqueue(t, store, "uploads/bad.xlsb")
	testsupport.Enqueue(t, store, "uploads/waiting.xlsb")

	claimed, err := store.ClaimNextPending(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim ok: %v %#v", err, claimed)
	}
	if err := store.MarkReady(ctx, claimed.ID, "ok.jsonl"); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	claimed, err = store.ClaimNextPending(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim bad: %v %#v", err, claimed)
	}
	if err := store.MarkFailed(ctx, claimed.ID, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 ready job cleared, got %d", removed)
	}

	removed, err = store.ClearFailed(ctx)
	if err != nil {
		t.Fatalf("ClearFailed failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 failed job cleared, got %d", removed)
	}

	removed, err = store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 remaining job cleared, got %d", removed)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty queue, got %d jobs", len(all))
	}
}

func TestCheckHealthReportsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.Enqueue(t, store, "uploads/health.xlsb")

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("unexpected health: %#v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("expected no missing columns, got %v", health.MissingColumns)
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
	if health.TotalJobs != 1 {
		t.Fatalf("expected 1 job counted, got %d", health.TotalJobs)
	}
}
