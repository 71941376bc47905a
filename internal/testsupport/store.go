package testsupport

import (
	"context"
	"testing"

	"helix/internal/catalog"
	"helix/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewEntity creates an entity for tests using the provided store.
func NewEntity(t testing.TB, store *catalog.Store, kind catalog.Kind, name string) *catalog.Entity {
	t.Helper()

	entity, err := store.CreateEntity(context.Background(), catalog.NewEntityParams{
		Kind: kind,
		Name: name,
	})
	if err != nil {
		t.Fatalf("store.CreateEntity: %v", err)
	}
	return entity
}

// MustRegisterWorker registers a worker record for tests.
func MustRegisterWorker(t testing.TB, store *catalog.Store, name, host string) *catalog.Worker {
	t.Helper()

	worker, err := store.RegisterWorker(context.Background(), name, host, "test")
	if err != nil {
		t.Fatalf("store.RegisterWorker: %v", err)
	}
	return worker
}
