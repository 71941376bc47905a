package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"helix/internal/catalog"
	"helix/internal/config"
	"helix/internal/lease"
	"helix/internal/logging"
	"helix/internal/registry"
)

// Agent runs one goroutine per lane: poll for an eligible entity, claim it,
// advance it to its working status, execute the stage handler under a
// renewal loop, and release with the mapped outcome.
type Agent struct {
	store    *catalog.Store
	leases   *lease.Manager
	registry *registry.Registry
	logger   *slog.Logger

	workerID      string
	lanes         []Lane
	handlers      map[catalog.Kind]map[string]Handler
	pollInterval  time.Duration
	errorInterval time.Duration
	renewInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs an agent for the given worker identity and lanes.
func New(store *catalog.Store, leases *lease.Manager, reg *registry.Registry, logger *slog.Logger, cfg *config.Config, workerID string, lanes []Lane) *Agent {
	return &Agent{
		store:         store,
		leases:        leases,
		registry:      reg,
		logger:        logging.NewComponentLogger(logger, "agent"),
		workerID:      workerID,
		lanes:         lanes,
		handlers:      make(map[catalog.Kind]map[string]Handler),
		pollInterval:  cfg.PollInterval(),
		errorInterval: cfg.ErrorRetryInterval(),
		renewInterval: cfg.LeaseRenewInterval(),
	}
}

// RegisterHandler binds a handler to a stage of a lane. Stages without a
// handler are skipped during polling.
func (a *Agent) RegisterHandler(kind catalog.Kind, stageName string, handler Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	byStage := a.handlers[kind]
	if byStage == nil {
		byStage = make(map[string]Handler)
		a.handlers[kind] = byStage
	}
	byStage[stageName] = handler
}

func (a *Agent) handlerFor(kind catalog.Kind, stageName string) Handler {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handlers[kind][stageName]
}

// HealthChecks runs every registered handler's health check.
func (a *Agent) HealthChecks(ctx context.Context) []Health {
	var reports []Health
	for _, lane := range a.lanes {
		for _, stage := range lane.Stages {
			handler := a.handlerFor(lane.Kind, stage.Name)
			if handler == nil {
				continue
			}
			reports = append(reports, handler.HealthCheck(ctx))
		}
	}
	return reports
}

// Start begins background processing.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return errors.New("agent already running")
	}
	if len(a.lanes) == 0 {
		a.mu.Unlock()
		return errors.New("no lanes configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.running = true
	a.wg.Add(len(a.lanes))
	a.mu.Unlock()

	for _, lane := range a.lanes {
		go a.runLane(runCtx, lane)
	}
	return nil
}

// Stop terminates background processing and waits for in-flight stages to
// release their claims.
func (a *Agent) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	cancel := a.cancel
	a.running = false
	a.cancel = nil
	a.mu.Unlock()

	cancel()
	a.wg.Wait()
}

func (a *Agent) runLane(ctx context.Context, lane Lane) {
	defer a.wg.Done()
	logger := a.logger.With(logging.String(logging.FieldLane, string(lane.Kind)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entity, stage, err := a.nextForLane(ctx, lane)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("failed to fetch next eligible entity", logging.Error(err))
			a.sleep(ctx, a.errorInterval)
			continue
		}
		if entity == nil {
			a.sleep(ctx, a.pollInterval)
			continue
		}

		if err := a.processEntity(ctx, logger, stage, entity); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (a *Agent) nextForLane(ctx context.Context, lane Lane) (*catalog.Entity, Stage, error) {
	cutoff := a.leases.Cutoff(time.Now().UTC())
	for _, stage := range lane.Stages {
		if a.handlerFor(lane.Kind, stage.Name) == nil {
			continue
		}
		filter := catalog.EligibleFilter{
			Statuses:     stage.EligibleStatuses(),
			RequireFlags: stage.RequireFlags,
			ExcludeFlags: stage.ExcludeFlags,
		}
		entity, err := a.store.NextEligible(ctx, lane.Kind, filter, cutoff)
		if err != nil {
			return nil, Stage{}, err
		}
		if entity != nil {
			return entity, stage, nil
		}
	}
	return nil, Stage{}, nil
}

func (a *Agent) processEntity(ctx context.Context, laneLogger *slog.Logger, stage Stage, candidate *catalog.Entity) error {
	entity, err := a.leases.Claim(ctx, candidate.Kind, candidate.ID, a.workerID)
	if err != nil {
		if errors.Is(err, catalog.ErrAlreadyClaimed) || errors.Is(err, catalog.ErrNotFound) {
			// Another worker won the race; move on.
			return nil
		}
		laneLogger.Warn("claim failed",
			logging.String(logging.FieldEntityID, candidate.ID),
			logging.Error(err),
		)
		a.sleep(ctx, a.errorInterval)
		return err
	}

	logger := laneLogger.With(
		logging.String(logging.FieldEntityID, entity.ID),
		logging.String("stage", stage.Name),
	)

	if stage.WorkingStatus != "" && entity.Status != stage.WorkingStatus {
		description := fmt.Sprintf("%s started by %s", stage.Name, a.workerID)
		if err := a.leases.Advance(ctx, entity.Kind, entity.ID, a.workerID, stage.WorkingStatus, description); err != nil {
			logger.Error("failed to enter working status", logging.Error(err))
			_ = a.leases.Release(ctx, entity.Kind, entity.ID, a.workerID, lease.Abandon())
			a.sleep(ctx, a.errorInterval)
			return err
		}
		entity.Status = stage.WorkingStatus
	}

	a.registry.SetCommand(fmt.Sprintf("%s %s %s", stage.Name, entity.Kind, entity.ID))
	defer a.registry.SetCommand("")

	logger.Info("stage started", logging.String(logging.FieldStatus, string(entity.Status)))
	start := time.Now()

	execErr, lost := a.executeWithRenewal(ctx, entity, stage)
	if lost {
		// The lease was stolen; the new owner is responsible for the
		// entity now, so no release is written.
		logger.Warn("lease lost during execution")
		return nil
	}

	releaseCtx := ctx
	if releaseCtx.Err() != nil {
		// Shutdown: still write the release so the claim does not linger
		// until lease expiry.
		var cancel context.CancelFunc
		releaseCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	switch {
	case execErr == nil:
		description := fmt.Sprintf("%s completed by %s", stage.Name, a.workerID)
		outcome := lease.Success(stage.DoneStatus, stage.SetFlags, description)
		if err := a.leases.Release(releaseCtx, entity.Kind, entity.ID, a.workerID, outcome); err != nil {
			logger.Error("release failed", logging.Error(err))
			return err
		}
		logger.Info("stage completed",
			logging.String(logging.FieldStatus, string(stage.DoneStatus)),
			logging.Duration("elapsed", time.Since(start)),
		)
		return nil
	case errors.Is(execErr, context.Canceled):
		if err := a.leases.Release(releaseCtx, entity.Kind, entity.ID, a.workerID, lease.Abandon()); err != nil {
			logger.Error("abandon failed", logging.Error(err))
		}
		return execErr
	default:
		outcome := lease.Failure(FailureKind(execErr), execErr.Error())
		if err := a.leases.Release(releaseCtx, entity.Kind, entity.ID, a.workerID, outcome); err != nil {
			logger.Error("failure release failed", logging.Error(err))
			return err
		}
		logger.Error("stage failed", logging.Error(execErr))
		a.sleep(ctx, a.errorInterval)
		return execErr
	}
}

// executeWithRenewal runs Prepare and Execute while renewing the lease in
// the background. The returned lost flag means renewal observed NotOwner;
// the handler context is cancelled and no further writes happen for the
// entity.
func (a *Agent) executeWithRenewal(ctx context.Context, entity *catalog.Entity, stage Stage) (execErr error, lost bool) {
	handler := a.handlerFor(entity.Kind, stage.Name)
	if handler == nil {
		return Wrap(ErrConfiguration, stage.Name, "dispatch", "no handler registered", nil), false
	}

	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelWork()

	var lostMu sync.Mutex
	var renewWG sync.WaitGroup
	renewWG.Add(1)
	go func() {
		defer renewWG.Done()
		ticker := time.NewTicker(a.renewInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workCtx.Done():
				return
			case <-ticker.C:
				err := a.leases.Renew(workCtx, entity.Kind, entity.ID, a.workerID)
				if err == nil {
					continue
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				if errors.Is(err, catalog.ErrNotOwner) || errors.Is(err, catalog.ErrNotFound) {
					lostMu.Lock()
					lost = true
					lostMu.Unlock()
					cancelWork()
					return
				}
				// Transient store trouble; the next tick retries while
				// the lease window is still open.
			}
		}
	}()

	execErr = handler.Prepare(workCtx, entity)
	if execErr == nil {
		execErr = handler.Execute(workCtx, entity)
	}
	cancelWork()
	renewWG.Wait()

	lostMu.Lock()
	defer lostMu.Unlock()
	return execErr, lost
}

func (a *Agent) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
