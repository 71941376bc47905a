package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"helix/internal/catalog"
)

// CatalogReader abstracts the store interactions needed for API queries.
type CatalogReader interface {
	List(ctx context.Context, kind catalog.Kind, statuses ...catalog.Status) ([]*catalog.Entity, error)
	GetByID(ctx context.Context, kind catalog.Kind, id string) (*catalog.Entity, error)
	History(ctx context.Context, entityID string, limit, offset int) ([]catalog.Event, error)
	Stats(ctx context.Context, kind catalog.Kind) (map[catalog.Status]int, error)
	ListWorkers(ctx context.Context) ([]*catalog.Worker, error)
}

// defaultCacheTTL bounds how stale list and stats views may get. Claim and
// release traffic dominates the store, so reads tolerate a short lag.
const defaultCacheTTL = 2 * time.Second

// EntityService exposes read-only catalog operations returning API DTOs.
// Aggregate views (lists, stats, workers) are served through a short-TTL
// cache; single-entity reads always hit the store because claim state must
// be current.
type EntityService struct {
	store CatalogReader
	cache *ttlcache.Cache[string, any]
}

// NewEntityService constructs an EntityService around the provided reader.
func NewEntityService(store CatalogReader) *EntityService {
	if store == nil {
		return nil
	}
	cache := ttlcache.New[string, any](
		ttlcache.WithTTL[string, any](defaultCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, any](),
	)
	go cache.Start()
	return &EntityService{store: store, cache: cache}
}

// Close stops the cache janitor.
func (s *EntityService) Close() {
	if s == nil || s.cache == nil {
		return
	}
	s.cache.Stop()
}

func (s *EntityService) cached(key string, load func() (any, error)) (any, error) {
	if item := s.cache.Get(key); item != nil {
		return item.Value(), nil
	}
	value, err := load()
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, value, ttlcache.DefaultTTL)
	return value, nil
}

// List returns entity summaries for a kind, optionally filtered by status.
func (s *EntityService) List(ctx context.Context, kind catalog.Kind, statuses ...catalog.Status) ([]EntitySummary, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, string(status))
	}
	key := fmt.Sprintf("list:%s:%s", kind, strings.Join(parts, ","))
	value, err := s.cached(key, func() (any, error) {
		entities, err := s.store.List(ctx, kind, statuses...)
		if err != nil {
			return nil, err
		}
		return FromEntities(entities), nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]EntitySummary), nil
}

// Describe fetches a single entity with refs and payload. Never cached.
func (s *EntityService) Describe(ctx context.Context, kind catalog.Kind, id string) (*EntityDetail, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	entity, err := s.store.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	detail := DetailFromEntity(entity)
	return &detail, nil
}

// History returns one page of an entity's event log, oldest first.
func (s *EntityService) History(ctx context.Context, kind catalog.Kind, id string, limit, offset int) (*HistoryResponse, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	// Resolve through the kind so a mismatched kind/id pair 404s instead
	// of leaking another kind's history.
	entity, err := s.store.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	events, err := s.store.History(ctx, entity.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &HistoryResponse{Events: FromEvents(events), Limit: limit, Offset: offset}, nil
}

// Stats returns per-status entity counts for a kind.
func (s *EntityService) Stats(ctx context.Context, kind catalog.Kind) (*StatsResponse, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	key := "stats:" + string(kind)
	value, err := s.cached(key, func() (any, error) {
		stats, err := s.store.Stats(ctx, kind)
		if err != nil {
			return nil, err
		}
		return &StatsResponse{Kind: string(kind), Counts: MergeStats(stats)}, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*StatsResponse), nil
}

// Workers returns the registered worker list.
func (s *EntityService) Workers(ctx context.Context) ([]WorkerView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	value, err := s.cached("workers", func() (any, error) {
		workers, err := s.store.ListWorkers(ctx)
		if err != nil {
			return nil, err
		}
		return FromWorkers(workers), nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]WorkerView), nil
}
