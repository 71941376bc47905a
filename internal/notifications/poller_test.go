package notifications_test

import (
	"context"
	"testing"
	"time"

	"helix/internal/catalog"
	"helix/internal/logging"
	"helix/internal/notifications"
	"helix/internal/testsupport"
)

type recordingService struct {
	staged  []string
	archive []string
	errored []string
}

func (r *recordingService) NotifyStagingCompleted(_ context.Context, kind, label string) error {
	r.staged = append(r.staged, kind+"/"+label)
	return nil
}

func (r *recordingService) NotifyArchiveCompleted(_ context.Context, kind, label string) error {
	r.archive = append(r.archive, kind+"/"+label)
	return nil
}

func (r *recordingService) NotifyEntityErrored(_ context.Context, kind, label, _ string) error {
	r.errored = append(r.errored, kind+"/"+label)
	return nil
}

func (r *recordingService) TestNotification(context.Context) error { return nil }

func TestPollerDispatchesMatchingEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.Staging = true
	cfg.Notifications.Archive = true
	cfg.Notifications.Errors = true
	store := testsupport.MustOpenStore(t, cfg)

	service := &recordingService{}
	poller := notifications.NewPoller(store, service, logging.NewNop(), cfg)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindDataset, "exome-9")

	// First poll passes over the creation event without dispatching.
	if err := poller.Poll(ctx); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if len(service.staged)+len(service.archive)+len(service.errored) != 0 {
		t.Fatalf("unexpected dispatches: %#v", service)
	}

	if _, err := store.TryClaim(ctx, catalog.KindDataset, entity.ID, "worker-a", nil, time.Time{}); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := store.CompleteClaim(ctx, catalog.KindDataset, entity.ID, "worker-a", catalog.StatusInspecting, nil, "stage completed by worker-a"); err != nil {
		t.Fatalf("CompleteClaim failed: %v", err)
	}
	if _, err := store.TryClaim(ctx, catalog.KindDataset, entity.ID, "worker-a", nil, time.Time{}); err != nil {
		t.Fatalf("re-claim failed: %v", err)
	}
	if err := store.FailClaim(ctx, catalog.KindDataset, entity.ID, "worker-a", catalog.FailureInfo{Kind: "external_tool", Message: "boom"}, ""); err != nil {
		t.Fatalf("FailClaim failed: %v", err)
	}

	if err := poller.Poll(ctx); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if len(service.staged) != 1 || service.staged[0] != "dataset/exome-9" {
		t.Fatalf("expected one staging dispatch, got %#v", service.staged)
	}
	if len(service.errored) != 1 || service.errored[0] != "dataset/exome-9" {
		t.Fatalf("expected one error dispatch, got %#v", service.errored)
	}
	if len(service.archive) != 0 {
		t.Fatalf("unexpected archive dispatch: %#v", service.archive)
	}

	// Cursor advanced: a second poll stays quiet.
	if err := poller.Poll(ctx); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if len(service.staged) != 1 || len(service.errored) != 1 {
		t.Fatalf("expected no repeat dispatches, got %#v", service)
	}
}
