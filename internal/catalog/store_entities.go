package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewEntityParams carries the caller-supplied fields for entity creation.
// Status is always the kind's initial status; mutation afterwards goes
// through transitions only.
type NewEntityParams struct {
	Kind  Kind
	Name  string
	Flags map[string]bool
	Attrs string
	Refs  []Ref
}

// CreateEntity inserts a new unclaimed entity in its initial status and
// appends a creation event. Name uniqueness per kind is enforced by the
// store's conditional insert path.
func (s *Store) CreateEntity(ctx context.Context, params NewEntityParams) (*Entity, error) {
	if _, ok := statusGraphs[params.Kind]; !ok {
		return nil, fmt.Errorf("unknown entity kind %q", params.Kind)
	}
	flags, err := marshalFlags(params.Flags)
	if err != nil {
		return nil, err
	}
	refs, err := marshalRefs(params.Refs)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	timestamp := formatTime(now)

	err = s.runTx(ctx, "create", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO entities (
                id, kind, name, status, flags_json, attrs_json, refs_json, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id,
			params.Kind,
			nullableString(strings.TrimSpace(params.Name)),
			InitialStatus(params.Kind),
			flags,
			nullableString(params.Attrs),
			refs,
			timestamp,
			timestamp,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s %q", ErrDuplicateName, params.Kind, params.Name)
			}
			return fmt.Errorf("insert entity: %w", err)
		}
		return appendEventTx(ctx, tx, id, now, "created")
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, params.Kind, id)
}

// GetByID fetches an entity by kind and identifier.
func (s *Store) GetByID(ctx context.Context, kind Kind, id string) (*Entity, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+entityColumns+` FROM entities WHERE kind = ? AND id = ?`,
		kind, id,
	)
	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return entity, nil
}

// FindByID fetches an entity by bare id when the kind is not known, e.g.
// when resolving an event back to its subject. IDs are unique across kinds.
func (s *Store) FindByID(ctx context.Context, id string) (*Entity, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+entityColumns+` FROM entities WHERE id = ?`,
		id,
	)
	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: entity %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find entity: %w", err)
	}
	return entity, nil
}

// GetByName fetches an entity by kind and unique name.
func (s *Store) GetByName(ctx context.Context, kind Kind, name string) (*Entity, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+entityColumns+` FROM entities WHERE kind = ? AND name = ?`,
		kind, name,
	)
	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get entity by name: %w", err)
	}
	return entity, nil
}

// List returns entities of a kind filtered by status set (or all when no
// status is provided), ordered by creation time.
func (s *Store) List(ctx context.Context, kind Kind, statuses ...Status) ([]*Entity, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + entityColumns + ` FROM entities WHERE kind = ?`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ensureContext(ctx), baseQuery+orderClause, kind)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, 0, len(statuses)+1)
		args = append(args, kind)
		for _, status := range statuses {
			args = append(args, status)
		}
		query := baseQuery + ` AND status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ensureContext(ctx), query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// EligibleFilter narrows candidate selection for a worker lane.
type EligibleFilter struct {
	Statuses     []Status
	RequireFlags []string
	ExcludeFlags []string
}

// NextEligible returns the oldest entity of the kind matching the filter
// whose claim is absent or expired relative to the lease cutoff. Flag
// filters are applied after the status scan; status sets keep the candidate
// row count small.
func (s *Store) NextEligible(ctx context.Context, kind Kind, filter EligibleFilter, leaseCutoff time.Time) (*Entity, error) {
	if len(filter.Statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(filter.Statuses))
	args := make([]any, 0, len(filter.Statuses)+2)
	args = append(args, kind)
	for _, status := range filter.Statuses {
		args = append(args, status)
	}
	args = append(args, formatTime(leaseCutoff))

	query := `SELECT ` + entityColumns + ` FROM entities
        WHERE kind = ? AND status IN (` + placeholders + `)
          AND (claimed_by IS NULL
               OR claimed_at < ?
               OR claimed_by IN (SELECT id FROM workers WHERE status = 'stale'))
        ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("next eligible: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		if !matchesFlags(entity, filter) {
			continue
		}
		return entity, rows.Err()
	}
	return nil, rows.Err()
}

func matchesFlags(entity *Entity, filter EligibleFilter) bool {
	for _, name := range filter.RequireFlags {
		if !entity.Flag(name) {
			return false
		}
	}
	for _, name := range filter.ExcludeFlags {
		if entity.Flag(name) {
			return false
		}
	}
	return true
}

// SetFlag updates a single flag outside the claim protocol. Used by the API
// boundary for request signals such as marking an archived product
// requested for staging. Appends one event when the value actually changes.
func (s *Store) SetFlag(ctx context.Context, kind Kind, id, name string, value bool, description string) error {
	ctx = ensureContext(ctx)
	return s.runTx(ctx, "flag", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE kind = ? AND id = ?`, kind, id)
		entity, err := scanEntity(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
		}
		if err != nil {
			return fmt.Errorf("get entity: %w", err)
		}
		if entity.Flag(name) == value {
			return nil
		}

		flags := entity.Flags
		if flags == nil {
			flags = make(map[string]bool, 1)
		}
		flags[name] = value
		encoded, err := marshalFlags(flags)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE entities SET flags_json = ?, updated_at = ? WHERE kind = ? AND id = ?`,
			encoded, formatTime(now), kind, id,
		); err != nil {
			return fmt.Errorf("update flags: %w", err)
		}
		if description != "" {
			return appendEventTx(ctx, tx, id, now, description)
		}
		return nil
	})
}

// Remove deletes an entity and its history. External deletion is a
// store-level operation outside the claim protocol.
func (s *Store) Remove(ctx context.Context, kind Kind, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM entities WHERE kind = ? AND id = ?`, kind, id)
	if err != nil {
		return false, fmt.Errorf("delete entity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Stats returns a count of entities of a kind grouped by status.
func (s *Store) Stats(ctx context.Context, kind Kind) (map[Status]int, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT status, COUNT(1) FROM entities WHERE kind = ? GROUP BY status`,
		kind,
	)
	if err != nil {
		return nil, fmt.Errorf("entity stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates catalog state for diagnostic output.
func (s *Store) Health(ctx context.Context, kind Kind) (HealthSummary, error) {
	ctx = ensureContext(ctx)
	summary := HealthSummary{ByStatus: make(map[Status]int)}

	stats, err := s.Stats(ctx, kind)
	if err != nil {
		return summary, err
	}
	for status, count := range stats {
		summary.Total += count
		summary.ByStatus[status] = count
		if len(Successors(kind, status)) == 0 {
			summary.Terminal += count
		}
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM entities WHERE kind = ? AND claimed_by IS NOT NULL`, kind)
	if err := row.Scan(&summary.Claimed); err != nil {
		return summary, fmt.Errorf("count claimed: %w", err)
	}
	summary.Unclaimed = summary.Total - summary.Claimed

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM entities WHERE kind = ? AND error_message IS NOT NULL`, kind)
	if err := row.Scan(&summary.Errored); err != nil {
		return summary, fmt.Errorf("count errored: %w", err)
	}

	workerRows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM workers GROUP BY status`)
	if err != nil {
		return summary, fmt.Errorf("worker stats: %w", err)
	}
	defer workerRows.Close()
	for workerRows.Next() {
		var status WorkerStatus
		var count int
		if err := workerRows.Scan(&status, &count); err != nil {
			return summary, err
		}
		switch status {
		case WorkerIdle:
			summary.WorkerIdle = count
		case WorkerBusy:
			summary.WorkerBusy = count
		case WorkerStale:
			summary.Stale = count
		}
	}
	return summary, workerRows.Err()
}
