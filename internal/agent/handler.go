package agent

import (
	"context"
	"time"

	"helix/internal/catalog"
)

// Handler performs the external work for one stage of an entity's
// lifecycle. Prepare runs before the entity moves to its working status
// and should fail fast on missing prerequisites; Execute does the work.
// Both receive the claimed entity and must stop promptly when the context
// is cancelled, which happens on shutdown and on lease loss.
type Handler interface {
	Prepare(context.Context, *catalog.Entity) error
	Execute(context.Context, *catalog.Entity) error
	HealthCheck(context.Context) Health
}

// Health reports a handler's readiness.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy builds a ready health report.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy builds a not-ready health report with a reason.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// NopHandler completes immediately without side effects. Useful in tests
// and for lanes whose work happens entirely outside this process.
type NopHandler struct {
	Name  string
	Delay time.Duration
}

func (h NopHandler) Prepare(context.Context, *catalog.Entity) error { return nil }

func (h NopHandler) Execute(ctx context.Context, _ *catalog.Entity) error {
	if h.Delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(h.Delay):
		return nil
	}
}

func (h NopHandler) HealthCheck(context.Context) Health {
	name := h.Name
	if name == "" {
		name = "nop"
	}
	return Healthy(name)
}
