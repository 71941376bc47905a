package daemon

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"helix/internal/catalog"
)

// metricsCollector exposes claim traffic and catalog occupancy. Each daemon
// carries its own registry so multiple instances can coexist in one process
// during tests.
type metricsCollector struct {
	registry *prometheus.Registry

	claims       prometheus.Counter
	claimsStolen prometheus.Counter
	releases     *prometheus.CounterVec
	entities     *prometheus.GaugeVec
	workers      *prometheus.GaugeVec
}

func newMetricsCollector() *metricsCollector {
	c := &metricsCollector{
		registry: prometheus.NewRegistry(),
		claims: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helix_claims_total",
			Help: "Total number of successful entity claims served by this daemon.",
		}),
		claimsStolen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helix_claims_stolen_total",
			Help: "Total number of claims that displaced an expired or stale lease.",
		}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helix_releases_total",
			Help: "Total number of claim releases by outcome.",
		}, []string{"outcome"}),
		entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "helix_entities",
			Help: "Current number of entities by kind and status.",
		}, []string{"kind", "status"}),
		workers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "helix_workers",
			Help: "Current number of registered workers by status.",
		}, []string{"status"}),
	}
	c.registry.MustRegister(c.claims, c.claimsStolen, c.releases, c.entities, c.workers)
	return c
}

func (c *metricsCollector) handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *metricsCollector) recordClaim() {
	c.claims.Inc()
}

func (c *metricsCollector) recordSteal() {
	c.claimsStolen.Inc()
}

func (c *metricsCollector) recordRelease(outcome string) {
	c.releases.WithLabelValues(outcome).Inc()
}

// refresh repopulates the occupancy gauges from the store.
func (c *metricsCollector) refresh(ctx context.Context, store *catalog.Store) error {
	c.entities.Reset()
	for _, kind := range catalog.AllKinds() {
		stats, err := store.Stats(ctx, kind)
		if err != nil {
			return err
		}
		for status, count := range stats {
			c.entities.WithLabelValues(string(kind), string(status)).Set(float64(count))
		}
	}

	workers, err := store.ListWorkers(ctx)
	if err != nil {
		return err
	}
	c.workers.Reset()
	counts := make(map[catalog.WorkerStatus]int)
	for _, worker := range workers {
		counts[worker.Status]++
	}
	for status, count := range counts {
		c.workers.WithLabelValues(string(status)).Set(float64(count))
	}
	return nil
}

// runRefresh updates the gauges on an interval until cancellation.
func (c *metricsCollector) runRefresh(ctx context.Context, wg *sync.WaitGroup, store *catalog.Store, interval time.Duration) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.refresh(ctx, store)
		}
	}
}
