package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"helix/internal/agent"
	"helix/internal/catalog"
	"helix/internal/config"
	"helix/internal/lease"
	"helix/internal/logging"
	"helix/internal/notifications"
	"helix/internal/registry"
)

// Daemon coordinates the catalog services in one process: worker
// registration and heartbeats, the agent lanes, the staleness sweep, the
// notification poller, and the HTTP API. A flock on the state directory
// enforces single-instance execution per host.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *catalog.Store
	leases   *lease.Manager
	registry *registry.Registry
	agent    *agent.Agent
	notifier notifications.Service
	poller   *notifications.Poller
	metrics  *metricsCollector
	api      *apiServer

	workerID string
	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status reports daemon runtime information.
type Status struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	WorkerID     string `json:"workerId"`
	CatalogPath  string `json:"catalogPath"`
	LockFilePath string `json:"lockFilePath"`
	APIAddress   string `json:"apiAddress,omitempty"`
}

// New constructs a daemon with initialized dependencies. The store is
// opened here; Close releases it.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := catalog.Open(cfg)
	if err != nil {
		return nil, err
	}

	metrics := newMetricsCollector()
	leases := lease.NewManager(store, logger, cfg.LeaseTimeout())
	leases.SetStealHook(metrics.recordSteal)

	notifier := notifications.NewService(cfg)
	lockPath := filepath.Join(cfg.Paths.StateDir, "helixd.lock")

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		leases:   leases,
		registry: registry.New(store, logger, cfg),
		notifier: notifier,
		poller:   notifications.NewPoller(store, notifier, logger, cfg),
		metrics:  metrics,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Store exposes the catalog store for operator tooling sharing the process.
func (d *Daemon) Store() *catalog.Store {
	return d.store
}

// Start acquires the daemon lock, registers the worker, and launches all
// background loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another helix daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	worker, err := d.registry.Register(runCtx, d.cfg.Worker.Name, d.cfg.Worker.Host, "helixd")
	if err != nil {
		d.releaseLock()
		cancel()
		return fmt.Errorf("register worker: %w", err)
	}
	d.workerID = worker.ID

	if d.cfg.Worker.Enabled {
		lanes := agent.LanesForKinds(d.cfg.Worker.Kinds)
		d.agent = agent.New(d.store, d.leases, d.registry, d.logger, d.cfg, worker.ID, lanes)
		agent.HandlersFromConfig(d.agent, lanes, d.cfg.Worker.Commands, d.cfg.CommandTimeout())
		if err := d.agent.Start(runCtx); err != nil {
			d.releaseLock()
			cancel()
			return fmt.Errorf("start agent: %w", err)
		}
	}

	d.wg.Add(3)
	go d.registry.RunHeartbeat(runCtx, &d.wg, worker.ID)
	go d.registry.RunSweep(runCtx, &d.wg)
	go d.poller.Run(runCtx, &d.wg)

	d.wg.Add(1)
	go d.metrics.runRefresh(runCtx, &d.wg, d.store, 15*time.Second)
	_ = d.metrics.refresh(runCtx, d.store)

	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.stopBackground()
			d.releaseLock()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String(logging.FieldWorkerID, worker.ID),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.api != nil {
		d.api.stop()
	}
	d.stopBackground()
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

func (d *Daemon) stopBackground() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.agent != nil {
		d.agent.Stop()
	}
	d.wg.Wait()
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports current runtime information.
func (d *Daemon) Status(context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		WorkerID:     d.workerID,
		CatalogPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if d.api != nil {
		status.APIAddress = d.api.addr()
	}
	return status
}
