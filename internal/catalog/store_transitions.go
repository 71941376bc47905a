package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Transition moves an entity to a declared successor status without
// touching its claim. When owner is non-empty the stored claim must belong
// to that worker; an empty owner is the administrative path used by
// operator tooling.
//
// Re-requesting the current status is an idempotent no-op success with no
// event. An illegal target fails with ErrInvalidTransition and performs no
// partial writes.
func (s *Store) Transition(ctx context.Context, kind Kind, id, owner string, target Status, flags map[string]bool, description string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	return s.runTx(ctx, "transition", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE kind = ? AND id = ?`, kind, id)
		entity, err := scanEntity(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
		}
		if err != nil {
			return fmt.Errorf("get entity: %w", err)
		}

		if owner != "" {
			if entity.Claim == nil {
				return fmt.Errorf("%w: %s %s has no active claim", ErrNotOwner, kind, id)
			}
			if entity.Claim.WorkerID != owner {
				return fmt.Errorf("%w: %s %s held by %s", ErrNotOwner, kind, id, entity.Claim.WorkerID)
			}
		}

		if entity.Status == target {
			return nil
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
			`UPDATE entities SET status = ?, flags_json = ?, updated_at = ? WHERE kind = ? AND id = ?`,
			target, merged, formatTime(now), kind, id,
		); err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		if description == "" {
			description = string(target)
		}
		return appendEventTx(ctx, tx, id, now, description)
	})
}

// ClearError resets the failure payload so an errored entity can be picked
// up again after operator review. Not tied to a claim.
func (s *Store) ClearError(ctx context.Context, kind Kind, id string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	return s.runTx(ctx, "reset", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`UPDATE entities
             SET error_kind = NULL, error_message = NULL, error_at = NULL, updated_at = ?
             WHERE kind = ? AND id = ? AND error_message IS NOT NULL`,
			formatTime(now), kind, id,
		)
		if err != nil {
			return fmt.Errorf("clear error: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			var exists int
			row := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM entities WHERE kind = ? AND id = ?`, kind, id)
			if err := row.Scan(&exists); err != nil {
				return fmt.Errorf("check entity: %w", err)
			}
			if exists == 0 {
				return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
			}
			return nil
		}
		return appendEventTx(ctx, tx, id, now, "error cleared")
	})
}
