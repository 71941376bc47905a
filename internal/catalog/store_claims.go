package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TryClaim atomically places a lease on an entity for the worker.
//
// With a nil observed timestamp this is a fresh claim and succeeds only
// when no claim is present. With a non-nil observed timestamp this is a
// steal: it succeeds only when the stored claim still carries exactly that
// timestamp AND the claim is either past the lease cutoff or owned by a
// stale worker. The timestamp precondition ensures two racing stealers
// cannot both win.
//
// A successful claim clears the failure payload and appends a claim event.
func (s *Store) TryClaim(ctx context.Context, kind Kind, id, workerID string, observed *time.Time, leaseCutoff time.Time) (*Entity, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	err := s.runTx(ctx, "claim", func(tx *sql.Tx) error {
		var (
			res     sql.Result
			execErr error
		)
		if observed == nil {
			res, execErr = tx.ExecContext(
				ctx,
				`UPDATE entities
                 SET claimed_by = ?, claimed_at = ?,
                     error_kind = NULL, error_message = NULL, error_at = NULL,
                     updated_at = ?
                 WHERE kind = ? AND id = ? AND claimed_by IS NULL`,
				workerID, formatTime(now), formatTime(now), kind, id,
			)
		} else {
			res, execErr = tx.ExecContext(
				ctx,
				`UPDATE entities
                 SET claimed_by = ?, claimed_at = ?,
                     error_kind = NULL, error_message = NULL, error_at = NULL,
                     updated_at = ?
                 WHERE kind = ? AND id = ? AND claimed_by IS NOT NULL AND claimed_at = ?
                   AND (claimed_at < ?
                        OR claimed_by IN (SELECT id FROM workers WHERE status = 'stale'))`,
				workerID, formatTime(now), formatTime(now), kind, id,
				formatTime(*observed), formatTime(leaseCutoff),
			)
		}
		if execErr != nil {
			return fmt.Errorf("try claim: %w", execErr)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return s.claimFailure(ctx, tx, kind, id)
		}
		return appendEventTx(ctx, tx, id, now, "claimed by "+workerID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, kind, id)
}

// claimFailure distinguishes a missing entity from a live competing claim.
func (s *Store) claimFailure(ctx context.Context, tx *sql.Tx, kind Kind, id string) error {
	var exists int
	row := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM entities WHERE kind = ? AND id = ?`, kind, id)
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("check entity: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return fmt.Errorf("%w: %s %s", ErrAlreadyClaimed, kind, id)
}

// RenewClaim refreshes the lease timestamp for the owning worker. Renewal
// does not append an event. ErrNotOwner signals the lease was stolen and
// the caller must abort its work.
func (s *Store) RenewClaim(ctx context.Context, kind Kind, id, workerID string) error {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE entities SET claimed_at = ?, updated_at = ?
         WHERE kind = ? AND id = ? AND claimed_by = ?`,
		formatTime(now), formatTime(now), kind, id, workerID,
	)
	if err != nil {
		return fmt.Errorf("renew claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return s.ownershipFailure(ctx, kind, id)
	}
	return nil
}

// CompleteClaim releases the lease with a successful outcome: the entity
// advances to the target status, optional flags are merged, the failure
// payload clears, and exactly one event records the transition.
//
// Re-delivering an identical completion is an idempotent no-op: once the
// entity sits at the target status with no claim, the call succeeds
// without appending a duplicate event.
func (s *Store) CompleteClaim(ctx context.Context, kind Kind, id, workerID string, target Status, flags map[string]bool, description string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	return s.runTx(ctx, "release", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE kind = ? AND id = ?`, kind, id)
		entity, err := scanEntity(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
		}
		if err != nil {
			return fmt.Errorf("get entity: %w", err)
		}

		if entity.Claim != nil && entity.Claim.WorkerID != workerID {
			return fmt.Errorf("%w: %s %s held by %s", ErrNotOwner, kind, id, entity.Claim.WorkerID)
		}

		if entity.Status == target {
			if entity.Claim == nil {
				// Retried completion after the first one landed.
				return nil
			}
			// Transition already applied but the claim survived a partial
			// retry; just clear it.
			return clearClaimTx(ctx, tx, kind, id, now)
		}

		if entity.Claim == nil {
			return fmt.Errorf("%w: %s %s has no active claim", ErrNotOwner, kind, id)
		}
		if !CanTransition(kind, entity.Status, target) {
			return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, kind, entity.Status, target)
		}

		merged, err := mergeFlags(entity.Flags, flags)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE entities
             SET status = ?, flags_json = ?,
                 claimed_by = NULL, claimed_at = NULL,
                 error_kind = NULL, error_message = NULL, error_at = NULL,
                 updated_at = ?
             WHERE kind = ? AND id = ?`,
			target, merged, formatTime(now), kind, id,
		); err != nil {
			return fmt.Errorf("complete claim: %w", err)
		}

		if description == "" {
			description = fmt.Sprintf("%s by %s", target, workerID)
		}
		return appendEventTx(ctx, tx, id, now, description)
	})
}

func clearClaimTx(ctx context.Context, tx *sql.Tx, kind Kind, id string, now time.Time) error {
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE entities SET claimed_by = NULL, claimed_at = NULL, updated_at = ?
         WHERE kind = ? AND id = ?`,
		formatTime(now), kind, id,
	); err != nil {
		return fmt.Errorf("clear claim: %w", err)
	}
	return nil
}

// FailClaim releases the lease with a failure outcome: the claim clears,
// the structured failure payload is recorded, and the status is left
// unchanged so the entity is immediately claimable for a retry.
func (s *Store) FailClaim(ctx context.Context, kind Kind, id, workerID string, failure FailureInfo, description string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	if failure.OccurredAt.IsZero() {
		failure.OccurredAt = now
	}

	return s.runTx(ctx, "failure", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE entities
             SET claimed_by = NULL, claimed_at = NULL,
                 error_kind = ?, error_message = ?, error_at = ?,
                 updated_at = ?
             WHERE kind = ? AND id = ? AND claimed_by = ?`,
			nullableString(failure.Kind), failure.Message, formatTime(failure.OccurredAt),
			formatTime(now), kind, id, workerID,
		)
		if err != nil {
			return fmt.Errorf("fail claim: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return s.ownershipFailure(ctx, kind, id)
		}

		if description == "" {
			description = "errored: " + failure.Message
		}
		return appendEventTx(ctx, tx, id, now, description)
	})
}

// AbandonClaim releases the lease without a status change or failure
// payload. One event records the release.
func (s *Store) AbandonClaim(ctx context.Context, kind Kind, id, workerID string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	return s.runTx(ctx, "abandon", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE entities SET claimed_by = NULL, claimed_at = NULL, updated_at = ?
             WHERE kind = ? AND id = ? AND claimed_by = ?`,
			formatTime(now), kind, id, workerID,
		)
		if err != nil {
			return fmt.Errorf("abandon claim: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return s.ownershipFailure(ctx, kind, id)
		}
		return appendEventTx(ctx, tx, id, now, "released by "+workerID)
	})
}

// ownershipFailure distinguishes a missing entity from a stolen lease.
func (s *Store) ownershipFailure(ctx context.Context, kind Kind, id string) error {
	var exists int
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM entities WHERE kind = ? AND id = ?`, kind, id)
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("check entity: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return fmt.Errorf("%w: %s %s", ErrNotOwner, kind, id)
}

func mergeFlags(current, updates map[string]bool) (any, error) {
	if len(updates) == 0 {
		return marshalFlags(current)
	}
	merged := make(map[string]bool, len(current)+len(updates))
	for name, value := range current {
		merged[name] = value
	}
	for name, value := range updates {
		merged[name] = value
	}
	return marshalFlags(merged)
}
