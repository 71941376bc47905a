package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"helix/internal/catalog"
	"helix/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entity, err := store.CreateEntity(ctx, catalog.NewEntityParams{
		Kind: catalog.KindDataset,
		Name: "exome-2024-001",
	})
	if err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}
	if entity.ID == "" {
		t.Fatal("expected entity ID to be assigned")
	}
	if entity.Status != catalog.StatusNew {
		t.Fatalf("expected initial status %q, got %q", catalog.StatusNew, entity.Status)
	}

	fetched, err := store.GetByName(ctx, catalog.KindDataset, "exome-2024-001")
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if fetched.ID != entity.ID {
		t.Fatalf("expected to find inserted entity, got %#v", fetched)
	}

	history, err := store.History(ctx, entity.ID, 0, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || history[0].Description != "created" {
		t.Fatalf("expected single creation event, got %#v", history)
	}
}

func TestCreateEntityRejectsDuplicateName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.CreateEntity(ctx, catalog.NewEntityParams{Kind: catalog.KindDataset, Name: "dup"}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := store.CreateEntity(ctx, catalog.NewEntityParams{Kind: catalog.KindDataset, Name: "dup"})
	if !errors.Is(err, catalog.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
	// Same name under a different kind is fine.
	if _, err := store.CreateEntity(ctx, catalog.NewEntityParams{Kind: catalog.KindUpload, Name: "dup"}); err != nil {
		t.Fatalf("create under other kind failed: %v", err)
	}
}

func TestTryClaimFreshAndCompeting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindDataset, "claim-me")

	claimed, err := store.TryClaim(ctx, catalog.KindDataset, entity.ID, "worker-a", nil, time.Time{})
	if err != nil {
		t.Fatalf("fresh claim failed: %v", err)
	}
	if claimed.Claim == nil || claimed.Claim.WorkerID != "worker-a" {
		t.Fatalf("expected claim by worker-a, got %#v", claimed.Claim)
	}

	_, err = store.TryClaim(ctx, catalog.KindDataset, entity.ID, "worker-b", nil, time.Time{})
	if !errors.Is(err, catalog.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}

	_, err = store.TryClaim(ctx, catalog.KindDataset, "missing", "worker-b", nil, time.Time{})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentClaimersSingleWinner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindConversion, "contended")

	const claimers = 16
	var wg sync.WaitGroup
	results := make([]error, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			worker := fmt.Sprintf("worker-%d", i)
			_, results[i] = store.TryClaim(ctx, catalog.KindConversion, entity.ID, worker, nil, time.Time{})
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, catalog.ErrAlreadyClaimed):
		default:
			t.Fatalf("claimer %d unexpected error: %v", i, err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestStealRequiresExpiry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindDataset, "steal-target")

	claimed, err := store.TryClaim(ctx, catalog.KindDataset, entity.ID, "worker-a", nil, time.Time{})
	if err != nil {
		t.Fatalf("fresh claim failed: %v", err)
	}
	observed := claimed.Claim.ClaimedAt

	// Claim still inside the lease window: steal refused.
	pastCutoff := time.Now().UTC().Add(-time.Hour)
	if _, err := store.TryClaim(ctx, catalog.KindDataset, entity.ID, "worker-b", &observed, pastCutoff); !errors.Is(err, catalog.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed for live lease, got %v", err)
	}

	// Cutoff beyond the claim timestamp: lease expired, steal succeeds.
	futureCutoff := time.Now().UTC().Add(time.Hour)
	stolen, err := store.TryClaim(ctx, catalog.KindDataset, entity.ID, "worker-b", &observed, futureCutoff)
	if err != nil {
		t.Fatalf("steal failed: %v", err)
	}
	if stolen.Claim == nil || stolen.Claim.WorkerID != "worker-b" {
		t.Fatalf("expected worker-b to own the lease, got %#v", stolen.Claim)
	}
}

func TestStealRaceSingleWinner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindDataset, "steal-race")

	claimed, err := store.TryClaim(ctx, catalog.KindDataset, entity.ID, "worker-dead", nil, time.Time{})
	if err != nil {
		t.Fatalf("fresh claim failed: %v", err)
	}
	observed := claimed.Claim.ClaimedAt
	cutoff := time.Now().UTC().Add(time.Hour)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			worker := fmt.Sprintf("stealer-%d", i)
			_, results[i] = store.TryClaim(ctx, catalog.KindDataset, entity.ID, worker, &observed, cutoff)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, catalog.ErrAlreadyClaimed):
		default:
			t.Fatalf("stealer %d unexpected error: %v", i, err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one steal winner, got %d", winners)
	}
}

func TestStealFromStaleWorker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	worker := testsupport.MustRegisterWorker(t, store, "fallen", "host-1")
	entity := testsupport.NewEntity(t, store, catalog.KindUpload, "orphaned")

	claimed, err := store.TryClaim(ctx, catalog.KindUpload, entity.ID, worker.ID, nil, time.Time{})
	if err != nil {
		t.Fatalf("fresh claim failed: %v", err)
	}
	observed := claimed.Claim.ClaimedAt

	marked, err := store.MarkWorkersStale(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("MarkWorkersStale failed: %v", err)
	}
	if marked != 1 {
		t.Fatalf("expected 1 worker marked stale, got %d", marked)
	}

	// Lease not expired (zero cutoff) but the owner is stale.
	stolen, err := store.TryClaim(ctx, catalog.KindUpload, entity.ID, "worker-new", &observed, time.Time{})
	if err != nil {
		t.Fatalf("steal from stale worker failed: %v", err)
	}
	if stolen.Claim == nil || stolen.Claim.WorkerID != "worker-new" {
		t.Fatalf("expected worker-new to own the lease, got %#v", stolen.Claim)
	}
}

func TestCompleteClaimAdvancesOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindUpload, "inbound")
	if _, err := store.TryClaim(ctx, catalog.KindUpload, entity.ID, "worker-a", nil, time.Time{}); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	flags := map[string]bool{catalog.FlagVisible: true}
	if err := store.CompleteClaim(ctx, catalog.KindUpload, entity.ID, "worker-a", catalog.StatusReceiving, flags, ""); err != nil {
		t.Fatalf("CompleteClaim failed: %v", err)
	}

	updated, err := store.GetByID(ctx, catalog.KindUpload, entity.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.Status != catalog.StatusReceiving {
		t.Fatalf("expected status %q, got %q", catalog.StatusReceiving, updated.Status)
	}
	if updated.Claim != nil {
		t.Fatalf("expected claim cleared, got %#v", updated.Claim)
	}
	if !updated.Flag(catalog.FlagVisible) {
		t.Fatal("expected visible flag merged")
	}

	history, err := store.History(ctx, entity.ID, 0, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	// created, claimed, released.
	if len(history) != 3 {
		t.Fatalf("expected 3 events, got %d: %#v", len(history), history)
	}

	// Retrying the identical completion is a no-op with no extra event.
	if err := store.CompleteClaim(ctx, catalog.KindUpload, entity.ID, "worker-a", catalog.StatusReceiving, flags, ""); err != nil {
		t.Fatalf("idempotent retry failed: %v", err)
	}
	history, err = store.History(ctx, entity.ID, 0, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected no duplicate event, got %d events", len(history))
	}
}

func TestCompleteClaimNonOwnerLeavesStateUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindDownload, "package-1")
	if _, err := store.TryClaim(ctx, catalog.KindDownload, entity.ID, "worker-a", nil, time.Time{}); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	before, err := store.GetByID(ctx, catalog.KindDownload, entity.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	err = store.CompleteClaim(ctx, catalog.KindDownload, entity.ID, "worker-b", catalog.StatusPackaging, nil, "")
	if !errors.Is(err, catalog.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	after, err := store.GetByID(ctx, catalog.KindDownload, entity.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.Status != before.Status {
		t.Fatalf("status changed: %q -> %q", before.Status, after.Status)
	}
	if after.Claim == nil || after.Claim.WorkerID != "worker-a" {
		t.Fatalf("claim changed: %#v", after.Claim)
	}
	history, err := store.History(ctx, entity.ID, 0, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected no new event, got %d", len(history))
	}
}

func TestCompleteClaimInvalidTransition(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindDataset, "bad-jump")
	if _, err := store.TryClaim(ctx, catalog.KindDataset, entity.ID, "worker-a", nil, time.Time{}); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	err := store.CompleteClaim(ctx, catalog.KindDataset, entity.ID, "worker-a", catalog.StatusArchived, nil, "")
	if !errors.Is(err, catalog.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	after, err := store.GetByID(ctx, catalog.KindDataset, entity.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.Status != catalog.StatusNew {
		t.Fatalf("status mutated on invalid transition: %q", after.Status)
	}
	if after.Claim == nil {
		t.Fatal("claim cleared on invalid transition")
	}
}

func TestFailClaimKeepsStatusAndRecordsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindConversion, "bcl-convert-7")
	if _, err := store.TryClaim(ctx, catalog.KindConversion, entity.ID, "worker-a", nil, time.Time{}); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	failure := catalog.FailureInfo{Kind: "external_tool", Message: "converter exited 1"}
	if err := store.FailClaim(ctx, catalog.KindConversion, entity.ID, "worker-a", failure, ""); err != nil {
		t.Fatalf("FailClaim failed: %v", err)
	}

	after, err := store.GetByID(ctx, catalog.KindConversion, entity.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.Status != catalog.StatusPending {
		t.Fatalf("expected status unchanged, got %q", after.Status)
	}
	if after.Claim != nil {
		t.Fatalf("expected claim cleared, got %#v", after.Claim)
	}
	if after.Error == nil || after.Error.Kind != "external_tool" {
		t.Fatalf("expected failure recorded, got %#v", after.Error)
	}

	// A successful re-claim clears the failure payload.
	reclaimed, err := store.TryClaim(ctx, catalog.KindConversion, entity.ID, "worker-b", nil, time.Time{})
	if err != nil {
		t.Fatalf("re-claim failed: %v", err)
	}
	if reclaimed.Error != nil {
		t.Fatalf("expected failure cleared on re-claim, got %#v", reclaimed.Error)
	}
}

func TestRenewClaim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindSession, "run-42")
	claimed, err := store.TryClaim(ctx, catalog.KindSession, entity.ID, "worker-a", nil, time.Time{})
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if err := store.RenewClaim(ctx, catalog.KindSession, entity.ID, "worker-a"); err != nil {
		t.Fatalf("RenewClaim failed: %v", err)
	}
	renewed, err := store.GetByID(ctx, catalog.KindSession, entity.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !renewed.Claim.ClaimedAt.After(claimed.Claim.ClaimedAt) {
		t.Fatal("expected claimed_at to advance on renew")
	}

	if err := store.RenewClaim(ctx, catalog.KindSession, entity.ID, "worker-b"); !errors.Is(err, catalog.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	// Renewal never logs.
	history, err := store.History(ctx, entity.ID, 0, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected created+claimed events only, got %d", len(history))
	}
}

func TestAbandonClaim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindDataset, "give-up")
	if _, err := store.TryClaim(ctx, catalog.KindDataset, entity.ID, "worker-a", nil, time.Time{}); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := store.AbandonClaim(ctx, catalog.KindDataset, entity.ID, "worker-a"); err != nil {
		t.Fatalf("AbandonClaim failed: %v", err)
	}

	after, err := store.GetByID(ctx, catalog.KindDataset, entity.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.Claim != nil || after.Status != catalog.StatusNew || after.Error != nil {
		t.Fatalf("unexpected state after abandon: %#v", after)
	}
}

func TestTransitionAdminAndIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindDataProduct, "product-a")

	if err := store.Transition(ctx, catalog.KindDataProduct, entity.ID, "", catalog.StatusArchiving, nil, ""); err != nil {
		t.Fatalf("admin transition failed: %v", err)
	}
	// Same target again: success, no event.
	if err := store.Transition(ctx, catalog.KindDataProduct, entity.ID, "", catalog.StatusArchiving, nil, ""); err != nil {
		t.Fatalf("idempotent transition failed: %v", err)
	}
	history, err := store.History(ctx, entity.ID, 0, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected created+transition events, got %d", len(history))
	}

	err = store.Transition(ctx, catalog.KindDataProduct, entity.ID, "", catalog.StatusStaged, nil, "")
	if !errors.Is(err, catalog.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestHistoryPagination(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entity := testsupport.NewEntity(t, store, catalog.KindDataset, "chatty")
	for i := 0; i < 5; i++ {
		if err := store.AppendEvent(ctx, entity.ID, fmt.Sprintf("note %d", i)); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	page, err := store.History(ctx, entity.ID, 3, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 events, got %d", len(page))
	}
	if page[0].Description != "created" {
		t.Fatalf("expected oldest first, got %q", page[0].Description)
	}

	rest, err := store.History(ctx, entity.ID, 10, 3)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(rest) != 3 {
		t.Fatalf("expected 3 remaining events, got %d", len(rest))
	}
	if rest[len(rest)-1].Description != "note 4" {
		t.Fatalf("expected newest last, got %q", rest[len(rest)-1].Description)
	}

	if err := store.AppendEvent(ctx, "missing", "nope"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEventsAfterCursor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a := testsupport.NewEntity(t, store, catalog.KindDataset, "cursor-a")
	b := testsupport.NewEntity(t, store, catalog.KindDataset, "cursor-b")

	all, err := store.EventsAfter(ctx, 0, 10)
	if err != nil {
		t.Fatalf("EventsAfter failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 creation events, got %d", len(all))
	}
	cursor := all[len(all)-1].ID

	if err := store.AppendEvent(ctx, a.ID, "later"); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
	_ = b
	next, err := store.EventsAfter(ctx, cursor, 10)
	if err != nil {
		t.Fatalf("EventsAfter failed: %v", err)
	}
	if len(next) != 1 || next[0].Description != "later" {
		t.Fatalf("expected only the new event, got %#v", next)
	}
}

func TestNextEligibleRespectsClaimsAndFlags(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewEntity(t, store, catalog.KindDataset, "oldest")
	second := testsupport.NewEntity(t, store, catalog.KindDataset, "newer")

	filter := catalog.EligibleFilter{Statuses: []catalog.Status{catalog.StatusNew}}
	got, err := store.NextEligible(ctx, catalog.KindDataset, filter, time.Time{})
	if err != nil {
		t.Fatalf("NextEligible failed: %v", err)
	}
	if got == nil || got.ID != first.ID {
		t.Fatalf("expected oldest entity first, got %#v", got)
	}

	if _, err := store.TryClaim(ctx, catalog.KindDataset, first.ID, "worker-a", nil, time.Time{}); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	got, err = store.NextEligible(ctx, catalog.KindDataset, filter, time.Time{})
	if err != nil {
		t.Fatalf("NextEligible failed: %v", err)
	}
	if got == nil || got.ID != second.ID {
		t.Fatalf("expected claimed entity skipped, got %#v", got)
	}

	if err := store.SetFlag(ctx, catalog.KindDataset, second.ID, catalog.FlagDisableArchive, true, ""); err != nil {
		t.Fatalf("SetFlag failed: %v", err)
	}
	filter.ExcludeFlags = []string{catalog.FlagDisableArchive}
	got, err = store.NextEligible(ctx, catalog.KindDataset, filter, time.Time{})
	if err != nil {
		t.Fatalf("NextEligible failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no eligible entity, got %#v", got)
	}
}

func TestWorkerLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	worker := testsupport.MustRegisterWorker(t, store, "runner", "host-9")

	// Re-registering the same identity keeps the record.
	again, err := store.RegisterWorker(ctx, "runner", "host-9", "test")
	if err != nil {
		t.Fatalf("re-register failed: %v", err)
	}
	if again.ID != worker.ID {
		t.Fatalf("expected stable worker id, got %q vs %q", again.ID, worker.ID)
	}

	if err := store.WorkerHeartbeat(ctx, worker.ID, "convert conversion abc", catalog.WorkerBusy); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}
	fetched, err := store.GetWorker(ctx, worker.ID)
	if err != nil {
		t.Fatalf("GetWorker failed: %v", err)
	}
	if fetched.Status != catalog.WorkerBusy || fetched.CurrentCommand != "convert conversion abc" {
		t.Fatalf("unexpected worker state: %#v", fetched)
	}

	marked, err := store.MarkWorkersStale(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("MarkWorkersStale failed: %v", err)
	}
	if marked != 1 {
		t.Fatalf("expected 1 stale worker, got %d", marked)
	}

	// A stale worker heartbeating again revives as idle.
	if err := store.WorkerHeartbeat(ctx, worker.ID, "", catalog.WorkerIdle); err != nil {
		t.Fatalf("revive heartbeat failed: %v", err)
	}
	revived, err := store.GetWorker(ctx, worker.ID)
	if err != nil {
		t.Fatalf("GetWorker failed: %v", err)
	}
	if revived.Status != catalog.WorkerIdle {
		t.Fatalf("expected idle after revive, got %q", revived.Status)
	}

	if err := store.WorkerHeartbeat(ctx, "missing", "", catalog.WorkerIdle); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
