package lease

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"helix/internal/catalog"
	"helix/internal/logging"
)

// Manager implements the claim protocol on top of the catalog store:
// claim, renew, release with an outcome, and steal-on-expiry. It holds no
// state of its own; every decision round-trips through the store's
// conditional primitives so many processes can run managers concurrently.
type Manager struct {
	store     *catalog.Store
	logger    *slog.Logger
	timeout   time.Duration
	stealHook func()
}

// SetStealHook registers a callback invoked after every successful steal.
// Set before the manager is shared between goroutines.
func (m *Manager) SetStealHook(hook func()) {
	m.stealHook = hook
}

// NewManager constructs a lease manager. A non-positive timeout disables
// expiry-based stealing; stale-worker stealing still applies.
func NewManager(store *catalog.Store, logger *slog.Logger, timeout time.Duration) *Manager {
	return &Manager{
		store:   store,
		logger:  logging.NewComponentLogger(logger, "lease"),
		timeout: timeout,
	}
}

// Timeout returns the configured lease window.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// Cutoff returns the instant before which a claim counts as expired.
func (m *Manager) Cutoff(now time.Time) time.Time {
	if m.timeout <= 0 {
		return time.Time{}
	}
	return now.Add(-m.timeout)
}

// Claim acquires the lease on an entity for the worker. An active,
// unexpired claim by another worker fails with ErrAlreadyClaimed. An
// expired claim, or one held by a stale worker, is stolen; the observed
// claim timestamp is the steal precondition, so exactly one of two racing
// stealers wins.
func (m *Manager) Claim(ctx context.Context, kind catalog.Kind, id, workerID string) (*catalog.Entity, error) {
	entity, err := m.store.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if entity.Terminal() {
		return nil, fmt.Errorf("%w: %s %s is %s", catalog.ErrInvalidTransition, kind, id, entity.Status)
	}

	now := time.Now().UTC()
	var observed *time.Time
	if entity.Claim != nil {
		at := entity.Claim.ClaimedAt
		observed = &at
	}

	claimed, err := m.store.TryClaim(ctx, kind, id, workerID, observed, m.Cutoff(now))
	if err != nil {
		return nil, err
	}

	if observed != nil {
		m.logger.Info("lease stolen",
			logging.String(logging.FieldKind, string(kind)),
			logging.String(logging.FieldEntityID, id),
			logging.String(logging.FieldWorkerID, workerID),
			logging.String("previous_worker", entity.Claim.WorkerID),
		)
		if m.stealHook != nil {
			m.stealHook()
		}
	}
	return claimed, nil
}

// Renew extends the lease. ErrNotOwner means the lease was stolen: the
// caller must stop working on the entity and must not write a release or
// status update afterward.
func (m *Manager) Renew(ctx context.Context, kind catalog.Kind, id, workerID string) error {
	return m.store.RenewClaim(ctx, kind, id, workerID)
}

// Advance transitions a claimed entity to a successor status while keeping
// the lease, e.g. marking work started right after a claim.
func (m *Manager) Advance(ctx context.Context, kind catalog.Kind, id, workerID string, target catalog.Status, description string) error {
	return m.store.Transition(ctx, kind, id, workerID, target, nil, description)
}

// Release ends the lease with the given outcome. Success advances the
// status and clears the failure payload; Failure records the failure and
// leaves the status unchanged so the entity is retryable immediately;
// Abandon just clears the claim.
func (m *Manager) Release(ctx context.Context, kind catalog.Kind, id, workerID string, outcome Outcome) error {
	switch outcome.result {
	case resultSuccess:
		return m.store.CompleteClaim(ctx, kind, id, workerID, outcome.next, outcome.flags, outcome.event)
	case resultFailure:
		return m.store.FailClaim(ctx, kind, id, workerID, outcome.failure, outcome.event)
	case resultAbandoned:
		return m.store.AbandonClaim(ctx, kind, id, workerID)
	default:
		return fmt.Errorf("unknown release outcome %d", outcome.result)
	}
}
