package api_test

import (
	"context"
	"testing"
	"time"

	"helix/internal/api"
	"helix/internal/catalog"
)

type fakeReader struct {
	listCalls  int
	statsCalls int
	entities   []*catalog.Entity
}

func (f *fakeReader) List(_ context.Context, _ catalog.Kind, _ ...catalog.Status) ([]*catalog.Entity, error) {
	f.listCalls++
	return f.entities, nil
}

func (f *fakeReader) GetByID(_ context.Context, _ catalog.Kind, id string) (*catalog.Entity, error) {
	for _, entity := range f.entities {
		if entity.ID == id {
			return entity, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeReader) History(_ context.Context, entityID string, _, _ int) ([]catalog.Event, error) {
	return []catalog.Event{{ID: 1, EntityID: entityID, Stamp: time.Now(), Description: "created"}}, nil
}

func (f *fakeReader) Stats(_ context.Context, _ catalog.Kind) (map[catalog.Status]int, error) {
	f.statsCalls++
	return map[catalog.Status]int{catalog.StatusNew: len(f.entities)}, nil
}

func (f *fakeReader) ListWorkers(context.Context) ([]*catalog.Worker, error) {
	return nil, nil
}

func sampleEntity() *catalog.Entity {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &catalog.Entity{
		ID:        "abc",
		Kind:      catalog.KindDataset,
		Name:      "exome-1",
		Status:    catalog.StatusStaged,
		Flags:     map[string]bool{catalog.FlagStaged: true},
		Claim:     &catalog.Claim{WorkerID: "worker-1", ClaimedAt: now},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestListUsesCache(t *testing.T) {
	reader := &fakeReader{entities: []*catalog.Entity{sampleEntity()}}
	svc := api.NewEntityService(reader)
	defer svc.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		entities, err := svc.List(ctx, catalog.KindDataset)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(entities) != 1 {
			t.Fatalf("expected 1 entity, got %d", len(entities))
		}
	}
	if reader.listCalls != 1 {
		t.Fatalf("expected a single store read, got %d", reader.listCalls)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Stats(ctx, catalog.KindDataset); err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
	}
	if reader.statsCalls != 1 {
		t.Fatalf("expected a single stats read, got %d", reader.statsCalls)
	}
}

func TestDescribeBypassesCache(t *testing.T) {
	reader := &fakeReader{entities: []*catalog.Entity{sampleEntity()}}
	svc := api.NewEntityService(reader)
	defer svc.Close()

	detail, err := svc.Describe(context.Background(), catalog.KindDataset, "abc")
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if detail.ID != "abc" || detail.ClaimedBy != "worker-1" {
		t.Fatalf("unexpected detail: %#v", detail)
	}
	if detail.Status != "staged" {
		t.Fatalf("expected lowercase status string, got %q", detail.Status)
	}
}

func TestFromEntityRendersFailure(t *testing.T) {
	entity := sampleEntity()
	entity.Claim = nil
	entity.Error = &catalog.FailureInfo{
		Kind:       "external_tool",
		Message:    "converter exited 1",
		OccurredAt: time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC),
	}

	summary := api.FromEntity(entity)
	if summary.ClaimedBy != "" {
		t.Fatalf("expected no claim, got %q", summary.ClaimedBy)
	}
	if summary.Error == nil || summary.Error.Kind != "external_tool" {
		t.Fatalf("expected failure view, got %#v", summary.Error)
	}
	if summary.Error.OccurredAt != "2026-03-01T13:00:00.000Z" {
		t.Fatalf("unexpected timestamp format: %q", summary.Error.OccurredAt)
	}
}
