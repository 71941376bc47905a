package lease_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"helix/internal/catalog"
	"helix/internal/lease"
	"helix/internal/logging"
	"helix/internal/testsupport"
)

func TestClaimRenewReleaseSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := lease.NewManager(store, logging.NewNop(), time.Minute)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindUpload, "upload-1")

	claimed, err := mgr.Claim(ctx, catalog.KindUpload, entity.ID, "worker-a")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if claimed.Claim == nil || claimed.Claim.WorkerID != "worker-a" {
		t.Fatalf("unexpected claim: %#v", claimed.Claim)
	}

	if err := mgr.Renew(ctx, catalog.KindUpload, entity.ID, "worker-a"); err != nil {
		t.Fatalf("Renew failed: %v", err)
	}

	outcome := lease.Success(catalog.StatusReceiving, nil, "receive started by worker-a")
	if err := mgr.Release(ctx, catalog.KindUpload, entity.ID, "worker-a", outcome); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	after, err := store.GetByID(ctx, catalog.KindUpload, entity.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.Status != catalog.StatusReceiving || after.Claim != nil {
		t.Fatalf("unexpected state after release: %#v", after)
	}
}

func TestClaimTerminalEntityRefused(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := lease.NewManager(store, logging.NewNop(), time.Minute)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindDownload, "done-download")
	for _, status := range []catalog.Status{catalog.StatusPackaging, catalog.StatusPackaged, catalog.StatusDelivered} {
		if err := store.Transition(ctx, catalog.KindDownload, entity.ID, "", status, nil, ""); err != nil {
			t.Fatalf("transition to %s failed: %v", status, err)
		}
	}

	_, err := mgr.Claim(ctx, catalog.KindDownload, entity.ID, "worker-a")
	if !errors.Is(err, catalog.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for terminal entity, got %v", err)
	}
}

func TestClaimActiveLeaseRefused(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := lease.NewManager(store, logging.NewNop(), time.Minute)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindDataset, "busy")
	if _, err := mgr.Claim(ctx, catalog.KindDataset, entity.ID, "worker-a"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if _, err := mgr.Claim(ctx, catalog.KindDataset, entity.ID, "worker-b"); !errors.Is(err, catalog.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestStealExpiredLease(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := lease.NewManager(store, logging.NewNop(), 10*time.Millisecond)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindDataset, "abandoned")
	if _, err := mgr.Claim(ctx, catalog.KindDataset, entity.ID, "worker-dead"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	time.Sleep(25 * time.Millisecond)

	stolen, err := mgr.Claim(ctx, catalog.KindDataset, entity.ID, "worker-live")
	if err != nil {
		t.Fatalf("steal failed: %v", err)
	}
	if stolen.Claim == nil || stolen.Claim.WorkerID != "worker-live" {
		t.Fatalf("expected worker-live to own the lease, got %#v", stolen.Claim)
	}

	// The previous owner must not be able to renew or release.
	if err := mgr.Renew(ctx, catalog.KindDataset, entity.ID, "worker-dead"); !errors.Is(err, catalog.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner on renew, got %v", err)
	}
	outcome := lease.Success(catalog.StatusInspecting, nil, "")
	if err := mgr.Release(ctx, catalog.KindDataset, entity.ID, "worker-dead", outcome); !errors.Is(err, catalog.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner on release, got %v", err)
	}

	after, err := store.GetByID(ctx, catalog.KindDataset, entity.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.Status != catalog.StatusNew {
		t.Fatalf("status mutated by stale owner: %q", after.Status)
	}
	if after.Claim == nil || after.Claim.WorkerID != "worker-live" {
		t.Fatalf("claim mutated by stale owner: %#v", after.Claim)
	}
}

func TestReleaseFailureLeavesEntityRetryable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := lease.NewManager(store, logging.NewNop(), time.Minute)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindConversion, "flaky")
	if _, err := mgr.Claim(ctx, catalog.KindConversion, entity.ID, "worker-a"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := mgr.Release(ctx, catalog.KindConversion, entity.ID, "worker-a", lease.Failure("external_tool", "exit 1")); err != nil {
		t.Fatalf("failure release failed: %v", err)
	}

	after, err := store.GetByID(ctx, catalog.KindConversion, entity.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.Status != catalog.StatusPending || after.Claim != nil || after.Error == nil {
		t.Fatalf("unexpected state after failure: %#v", after)
	}

	// Immediately claimable again; the fresh claim clears the failure.
	reclaimed, err := mgr.Claim(ctx, catalog.KindConversion, entity.ID, "worker-b")
	if err != nil {
		t.Fatalf("re-claim failed: %v", err)
	}
	if reclaimed.Error != nil {
		t.Fatalf("expected failure cleared, got %#v", reclaimed.Error)
	}
}

func TestAbandonOutcome(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := lease.NewManager(store, logging.NewNop(), time.Minute)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindSession, "walkaway")
	if _, err := mgr.Claim(ctx, catalog.KindSession, entity.ID, "worker-a"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := mgr.Release(ctx, catalog.KindSession, entity.ID, "worker-a", lease.Abandon()); err != nil {
		t.Fatalf("abandon failed: %v", err)
	}

	after, err := store.GetByID(ctx, catalog.KindSession, entity.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.Status != catalog.StatusNew || after.Claim != nil || after.Error != nil {
		t.Fatalf("unexpected state after abandon: %#v", after)
	}
}
