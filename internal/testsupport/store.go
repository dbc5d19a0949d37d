package testsupport

import (
	"context"
	"testing"

	"scribe/internal/config"
	"scribe/internal/queue"
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

// NewSource creates a source row for tests using the provided store.
func NewSource(t testing.TB, store *queue.Store, sourceType queue.SourceType, title string) *queue.Source {
	t.Helper()

	source, err := store.CreateSource(context.Background(), "test-user", sourceType, title)
	if err != nil {
		t.Fatalf("store.CreateSource: %v", err)
	}
	return source
}
