package registry_test

import (
	"context"
	"testing"
	"time"

	"helix/internal/catalog"
	"helix/internal/logging"
	"helix/internal/registry"
	"helix/internal/testsupport"
)

func TestRegisterIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	reg := registry.New(store, logging.NewNop(), cfg)

	ctx := context.Background()
	worker, err := reg.Register(ctx, "ingest-1", "node-a", "agent")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	again, err := reg.Register(ctx, "ingest-1", "node-a", "agent")
	if err != nil {
		t.Fatalf("second Register failed: %v", err)
	}
	if again.ID != worker.ID {
		t.Fatalf("expected stable identity, got %q vs %q", again.ID, worker.ID)
	}
}

func TestHeartbeatCarriesCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	reg := registry.New(store, logging.NewNop(), cfg)

	ctx := context.Background()
	worker, err := reg.Register(ctx, "ingest-1", "node-a", "agent")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	reg.SetCommand("stage dataset abc")
	if err := reg.Heartbeat(ctx, worker.ID); err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}
	busy, err := store.GetWorker(ctx, worker.ID)
	if err != nil {
		t.Fatalf("GetWorker failed: %v", err)
	}
	if busy.Status != catalog.WorkerBusy || busy.CurrentCommand != "stage dataset abc" {
		t.Fatalf("unexpected worker state: %#v", busy)
	}

	reg.SetCommand("")
	if err := reg.Heartbeat(ctx, worker.ID); err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}
	idle, err := store.GetWorker(ctx, worker.ID)
	if err != nil {
		t.Fatalf("GetWorker failed: %v", err)
	}
	if idle.Status != catalog.WorkerIdle || idle.CurrentCommand != "" {
		t.Fatalf("expected idle worker, got %#v", idle)
	}
}

func TestSweepMarksSilentWorkersStale(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Registry.StalenessWindowSeconds = 1
	store := testsupport.MustOpenStore(t, cfg)
	reg := registry.New(store, logging.NewNop(), cfg)

	ctx := context.Background()
	worker, err := reg.Register(ctx, "quiet", "node-b", "agent")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	marked, err := reg.SweepStale(ctx)
	if err != nil {
		t.Fatalf("SweepStale failed: %v", err)
	}
	if marked != 0 {
		t.Fatalf("expected no stale workers yet, got %d", marked)
	}

	time.Sleep(1200 * time.Millisecond)
	marked, err = reg.SweepStale(ctx)
	if err != nil {
		t.Fatalf("SweepStale failed: %v", err)
	}
	if marked != 1 {
		t.Fatalf("expected 1 stale worker, got %d", marked)
	}

	stale, err := store.GetWorker(ctx, worker.ID)
	if err != nil {
		t.Fatalf("GetWorker failed: %v", err)
	}
	if stale.Status != catalog.WorkerStale {
		t.Fatalf("expected stale status, got %q", stale.Status)
	}
}
