package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RegisterWorker creates or revives a worker record. Identity is unique on
// (name, host): re-registration after a restart reuses the existing row
// and clears any stale marker, keeping historical claim references intact.
func (s *Store) RegisterWorker(ctx context.Context, name, host, service string) (*Worker, error) {
	now := time.Now().UTC()
	timestamp := formatTime(now)
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO workers (id, name, host, service, status, last_heartbeat, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (name, host) DO UPDATE SET
             service = excluded.service,
             status = ?,
             current_command = NULL,
             last_heartbeat = excluded.last_heartbeat,
             updated_at = excluded.updated_at`,
		uuid.NewString(), name, host, nullableString(service), WorkerIdle, timestamp, timestamp, timestamp,
		WorkerIdle,
	); err != nil {
		return nil, fmt.Errorf("register worker: %w", err)
	}
	return s.WorkerByIdentity(ctx, name, host)
}

// WorkerByIdentity fetches a worker by its unique (name, host) pair.
func (s *Store) WorkerByIdentity(ctx context.Context, name, host string) (*Worker, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+workerColumns+` FROM workers WHERE name = ? AND host = ?`,
		name, host,
	)
	worker, err := scanWorker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: worker %s@%s", ErrNotFound, name, host)
	}
	if err != nil {
		return nil, fmt.Errorf("get worker: %w", err)
	}
	return worker, nil
}

// GetWorker fetches a worker by identifier.
func (s *Store) GetWorker(ctx context.Context, id string) (*Worker, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+workerColumns+` FROM workers WHERE id = ?`,
		id,
	)
	worker, err := scanWorker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: worker %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get worker: %w", err)
	}
	return worker, nil
}

// WorkerHeartbeat refreshes a worker's liveness timestamp and current
// command. A heartbeat from a worker previously marked stale revives it.
func (s *Store) WorkerHeartbeat(ctx context.Context, id, command string, status WorkerStatus) error {
	if status == "" || status == WorkerStale {
		status = WorkerIdle
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE workers SET status = ?, current_command = ?, last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(command), formatTime(now), formatTime(now), id,
	)
	if err != nil {
		return fmt.Errorf("worker heartbeat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: worker %s", ErrNotFound, id)
	}
	return nil
}

// MarkWorkersStale flags workers whose heartbeat predates the cutoff.
// Stale workers keep their rows, but their outstanding claims become
// immediately stealable.
func (s *Store) MarkWorkersStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE workers SET status = ?, current_command = NULL, updated_at = ?
         WHERE status != ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		WorkerStale, formatTime(now), WorkerStale, formatTime(cutoff.UTC()),
	)
	if err != nil {
		return 0, fmt.Errorf("mark workers stale: %w", err)
	}
	return res.RowsAffected()
}

// ListWorkers returns all registered workers ordered by name then host.
func (s *Store) ListWorkers(ctx context.Context) ([]*Worker, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+workerColumns+` FROM workers ORDER BY name, host`,
	)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	defer rows.Close()

	var workers []*Worker
	for rows.Next() {
		worker, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, worker)
	}
	return workers, rows.Err()
}
