package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"helix/internal/catalog"
	"helix/internal/config"
	"helix/internal/logging"
)

// Registry tracks worker liveness: registration, periodic heartbeats, and
// the sweep that marks silent workers stale so their leases become
// stealable.
type Registry struct {
	store             *catalog.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	stalenessWindow   time.Duration
	sweepInterval     time.Duration

	mu      sync.Mutex
	command string
	busy    bool
}

// New constructs a registry with intervals from the configuration.
func New(store *catalog.Store, logger *slog.Logger, cfg *config.Config) *Registry {
	return &Registry{
		store:             store,
		logger:            logging.NewComponentLogger(logger, "registry"),
		heartbeatInterval: cfg.HeartbeatInterval(),
		stalenessWindow:   cfg.StalenessWindow(),
		sweepInterval:     cfg.SweepInterval(),
	}
}

// Register creates or revives this process's worker record. Calling it
// again with the same name and host returns the existing worker identity.
func (r *Registry) Register(ctx context.Context, name, host, service string) (*catalog.Worker, error) {
	worker, err := r.store.RegisterWorker(ctx, name, host, service)
	if err != nil {
		return nil, err
	}
	r.logger.Info("worker registered",
		logging.String(logging.FieldWorkerID, worker.ID),
		logging.String("name", worker.Name),
		logging.String("host", worker.Host),
	)
	return worker, nil
}

// SetCommand records what the worker is doing; the next heartbeat carries
// it. An empty command marks the worker idle.
func (r *Registry) SetCommand(command string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.command = command
	r.busy = command != ""
}

// Heartbeat writes a single liveness update for the worker.
func (r *Registry) Heartbeat(ctx context.Context, workerID string) error {
	r.mu.Lock()
	command := r.command
	status := catalog.WorkerIdle
	if r.busy {
		status = catalog.WorkerBusy
	}
	r.mu.Unlock()
	return r.store.WorkerHeartbeat(ctx, workerID, command, status)
}

// RunHeartbeat sends heartbeats on the configured interval until the
// context is cancelled.
func (r *Registry) RunHeartbeat(ctx context.Context, wg *sync.WaitGroup, workerID string) {
	defer wg.Done()
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Heartbeat(ctx, workerID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				r.logger.Warn("heartbeat failed",
					logging.String(logging.FieldWorkerID, workerID),
					logging.Error(err),
				)
			}
		}
	}
}

// SweepStale marks workers whose last heartbeat predates the staleness
// window. Stale workers keep their records; their leases become stealable.
func (r *Registry) SweepStale(ctx context.Context) (int64, error) {
	if r.stalenessWindow <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-r.stalenessWindow)
	marked, err := r.store.MarkWorkersStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		r.logger.Info("marked workers stale", logging.Int64("count", marked))
	}
	return marked, nil
}

// RunSweep runs the staleness sweep on the configured interval until the
// context is cancelled.
func (r *Registry) RunSweep(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.SweepStale(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				r.logger.Warn("staleness sweep failed", logging.Error(err))
			}
		}
	}
}
