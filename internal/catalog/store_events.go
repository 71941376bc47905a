package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func appendEventTx(ctx context.Context, tx *sql.Tx, entityID string, stamp time.Time, description string) error {
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO entity_events (entity_id, stamp, description) VALUES (?, ?, ?)`,
		entityID, formatTime(stamp), description,
	); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// AppendEvent records a history entry outside the claim protocol, for
// collaborators that annotate entities (notifications sent, operator
// notes). Transitions append their own events; do not double-log them.
func (s *Store) AppendEvent(ctx context.Context, entityID, description string) error {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO entity_events (entity_id, stamp, description)
         SELECT ?, ?, ? WHERE EXISTS (SELECT 1 FROM entities WHERE id = ?)`,
		entityID, formatTime(now), description, entityID,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: entity %s", ErrNotFound, entityID)
	}
	return nil
}

// History returns a bounded window of an entity's events ordered by stamp
// then insertion. Events grow without bound over an entity's life, so
// retrieval is always paginated.
func (s *Store) History(ctx context.Context, entityID string, limit, offset int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, entity_id, stamp, description FROM entity_events
         WHERE entity_id = ? ORDER BY stamp, id LIMIT ? OFFSET ?`,
		entityID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("entity history: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// EventsAfter returns events across all entities with rowids greater than
// afterID, in insertion order. The notification poller uses this as its
// cursor; the catalog keeps no global event log beyond the per-entity
// sub-records, so cross-entity consumers aggregate client-side.
func (s *Store) EventsAfter(ctx context.Context, afterID int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, entity_id, stamp, description FROM entity_events
         WHERE id > ? ORDER BY id LIMIT ?`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("events after: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(scanner interface{ Scan(dest ...any) error }) (Event, error) {
	var (
		event    Event
		stampRaw string
	)
	if err := scanner.Scan(&event.ID, &event.EntityID, &stampRaw, &event.Description); err != nil {
		return Event{}, err
	}
	if stamp, err := parseTimeString(stampRaw); err == nil {
		event.Stamp = stamp
	}
	return event, nil
}
