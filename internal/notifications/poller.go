package notifications

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"helix/internal/catalog"
	"helix/internal/config"
	"helix/internal/logging"
)

// Poller tails the entity event log and pushes matching events to the
// notification service. It keeps an in-memory cursor, so a daemon restart
// resumes from the current tail rather than replaying history.
type Poller struct {
	store    *catalog.Store
	service  Service
	logger   *slog.Logger
	interval time.Duration
	staging  bool
	archive  bool
	errored  bool

	cursor int64
}

// NewPoller builds a poller honoring the notification toggles from the
// configuration.
func NewPoller(store *catalog.Store, service Service, logger *slog.Logger, cfg *config.Config) *Poller {
	return &Poller{
		store:    store,
		service:  service,
		logger:   logging.NewComponentLogger(logger, "notifications"),
		interval: cfg.NotifyPollInterval(),
		staging:  cfg.Notifications.Staging,
		archive:  cfg.Notifications.Archive,
		errored:  cfg.Notifications.Errors,
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	if err := p.seek(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("failed to seek event tail", logging.Error(err))
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				p.logger.Warn("event poll failed", logging.Error(err))
			}
		}
	}
}

// seek advances the cursor past all existing events.
func (p *Poller) seek(ctx context.Context) error {
	for {
		events, err := p.store.EventsAfter(ctx, p.cursor, 500)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		p.cursor = events[len(events)-1].ID
	}
}

// Poll drains new events once and dispatches matches.
func (p *Poller) Poll(ctx context.Context) error {
	events, err := p.store.EventsAfter(ctx, p.cursor, 100)
	if err != nil {
		return err
	}
	for _, event := range events {
		p.cursor = event.ID
		p.dispatch(ctx, event)
	}
	return nil
}

func (p *Poller) dispatch(ctx context.Context, event catalog.Event) {
	description := strings.TrimSpace(event.Description)
	var notify func(kind, label string) error
	switch {
	case p.staging && strings.HasPrefix(description, "stage completed"),
		p.staging && strings.HasPrefix(description, "restage completed"):
		notify = func(kind, label string) error {
			return p.service.NotifyStagingCompleted(ctx, kind, label)
		}
	case p.archive && strings.HasPrefix(description, "archive completed"):
		notify = func(kind, label string) error {
			return p.service.NotifyArchiveCompleted(ctx, kind, label)
		}
	case p.errored && strings.HasPrefix(description, "errored:"):
		message := strings.TrimSpace(strings.TrimPrefix(description, "errored:"))
		notify = func(kind, label string) error {
			return p.service.NotifyEntityErrored(ctx, kind, label, message)
		}
	default:
		return
	}

	kind, label := p.resolve(ctx, event.EntityID)
	if err := notify(kind, label); err != nil {
		p.logger.Warn("notification dispatch failed",
			logging.String(logging.FieldEntityID, event.EntityID),
			logging.Error(err),
		)
	}
}

// resolve maps an event subject to a human-readable kind and label. A
// removed entity falls back to its id.
func (p *Poller) resolve(ctx context.Context, entityID string) (string, string) {
	entity, err := p.store.FindByID(ctx, entityID)
	if err != nil {
		return "entity", entityID
	}
	label := entity.Name
	if label == "" {
		label = entity.ID
	}
	return string(entity.Kind), label
}
