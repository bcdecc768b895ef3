package testsupport

import (
	"context"
	"testing"

	"sheetmill/internal/config"
	"sheetmill/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Enqueue creates a new pending job for tests using the provided store.
func Enqueue(t testing.TB, store *queue.Store, sourceRef string) *queue.Job {
	t.Helper()

	job, err := store.Enqueue(context.Background(), sourceRef)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return job
}
