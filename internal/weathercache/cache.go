// Package weathercache keeps the last good METAR and TAF for the display and
// decides when the remote API is worth asking again.
package weathercache

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/metar-display/internal/adapter/aviationweather"
	"github.com/couchcryptid/metar-display/internal/domain"
	"github.com/couchcryptid/metar-display/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Source fetches the raw text of one report.
type Source interface {
	Fetch(ctx context.Context, kind domain.ReportKind, station string, headers domain.HeaderSet) (string, error)
}

// HeaderLoader provides the header pool for outbound requests.
type HeaderLoader interface {
	LoadHeaders() []domain.HeaderSet
}

// SnapshotSink receives every freshly fetched snapshot.
type SnapshotSink interface {
	Publish(ctx context.Context, station string, kind domain.ReportKind, snap domain.Snapshot) error
}

// DefaultPublishTimeout bounds each sink publish so a slow broker cannot hold
// up the display loop.
const DefaultPublishTimeout = 500 * time.Millisecond

// Option configures a Cache.
type Option func(*Cache)

// WithSink forwards fresh snapshots to sink.
func WithSink(sink SnapshotSink) Option {
	return func(c *Cache) { c.sink = sink }
}

// WithPublishTimeout bounds each sink publish. The default is
// DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) Option {
	return func(c *Cache) { c.publishTimeout = d }
}

// WithPicker replaces the pseudo-random header set selection. pick receives
// the pool size and returns an index.
func WithPicker(pick func(n int) int) Option {
	return func(c *Cache) { c.pick = pick }
}

// Cache owns the two report snapshots and the shared fetch gate.
type Cache struct {
	source         Source
	headers        HeaderLoader
	sink           SnapshotSink
	publishTimeout time.Duration
	clock          clockwork.Clock
	interval       time.Duration
	pick           func(n int) int
	metrics        *observability.Metrics
	logger         *slog.Logger

	fetchMu sync.Mutex

	mu          sync.Mutex
	observation *domain.Snapshot
	forecast    *domain.Snapshot
	lastFetch   time.Time

	ready atomic.Bool
}

// New creates a Cache that asks source at most once per interval.
func New(source Source, headers HeaderLoader, clock clockwork.Clock, interval time.Duration, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		source:         source,
		headers:        headers,
		publishTimeout: DefaultPublishTimeout,
		clock:          clock,
		interval:       interval,
		pick:           rand.IntN,
		metrics:        metrics,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the current reports for station, refreshing them from the
// source when the gate allows. It never fails: a report that cannot be
// refreshed keeps its previous snapshot, and a report never obtained is nil.
//
// Concurrent callers are serialized, but the snapshot lock is only held for
// reads and updates, so Snapshots and LastFetch never wait on the network.
func (c *Cache) Fetch(ctx context.Context, station string) domain.Reports {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	now := c.clock.Now()
	c.mu.Lock()
	fresh := now.Sub(c.lastFetch) <= c.interval && c.observation != nil
	c.mu.Unlock()
	if fresh {
		c.metrics.FetchCache.WithLabelValues("hit").Inc()
		return c.Snapshots()
	}
	c.metrics.FetchCache.WithLabelValues("miss").Inc()

	headers := c.pickHeaders()
	var updated []update
	for _, kind := range domain.ReportKinds {
		raw, err := c.source.Fetch(ctx, kind, station, headers)
		if err != nil {
			c.recordFailure(kind, station, err)
			continue
		}

		snap := domain.Snapshot{Text: domain.FormatReport(kind, raw), FetchedAt: now}
		c.mu.Lock()
		c.setLocked(kind, &snap)
		c.lastFetch = now
		c.mu.Unlock()

		c.ready.Store(true)
		c.metrics.FetchRequests.WithLabelValues(string(kind), "success").Inc()
		c.logger.Debug("report updated", "kind", string(kind), "station", station)
		updated = append(updated, update{kind: kind, snap: snap})
	}

	reports := c.Snapshots()
	for _, kind := range domain.ReportKinds {
		if snap := reports.Get(kind); snap != nil {
			c.metrics.SnapshotAge.WithLabelValues(string(kind)).Set(now.Sub(snap.FetchedAt).Seconds())
		}
	}

	c.publish(ctx, station, updated)
	return reports
}

type update struct {
	kind domain.ReportKind
	snap domain.Snapshot
}

// publish forwards fresh snapshots to the sink, giving each at most
// publishTimeout.
func (c *Cache) publish(ctx context.Context, station string, updated []update) {
	if c.sink == nil {
		return
	}
	for _, u := range updated {
		pctx, cancel := context.WithTimeout(ctx, c.publishTimeout)
		err := c.sink.Publish(pctx, station, u.kind, u.snap)
		cancel()
		if err != nil {
			c.logger.Warn("snapshot publish failed", "kind", string(u.kind), "error", err)
		}
	}
}

// LastFetch returns the time of the last successful fetch of either report.
// The zero time means nothing has been fetched yet.
func (c *Cache) LastFetch() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFetch
}

// Snapshots returns the current reports without touching the gate.
func (c *Cache) Snapshots() domain.Reports {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reportsLocked()
}

// Ready reports whether any report has ever been obtained.
func (c *Cache) Ready() bool {
	return c.ready.Load()
}

// CheckReadiness implements the ops server's readiness check.
func (c *Cache) CheckReadiness(_ context.Context) error {
	if !c.Ready() {
		return errors.New("no report fetched yet")
	}
	return nil
}

func (c *Cache) pickHeaders() domain.HeaderSet {
	pool := c.headers.LoadHeaders()
	if len(pool) == 0 {
		pool = domain.DefaultHeaderPool()
	}
	i := c.pick(len(pool))
	if i < 0 || i >= len(pool) {
		i = 0
	}
	return pool[i]
}

func (c *Cache) recordFailure(kind domain.ReportKind, station string, err error) {
	if errors.Is(err, aviationweather.ErrNoData) {
		c.metrics.FetchRequests.WithLabelValues(string(kind), "empty").Inc()
		c.logger.Info("no report available", "kind", string(kind), "station", station)
		return
	}
	c.metrics.FetchRequests.WithLabelValues(string(kind), "error").Inc()
	c.logger.Warn("report fetch failed, keeping last good snapshot",
		"kind", string(kind), "station", station, "error", err)
}

func (c *Cache) setLocked(kind domain.ReportKind, snap *domain.Snapshot) {
	switch kind {
	case domain.Observation:
		c.observation = snap
	case domain.Forecast:
		c.forecast = snap
	}
}

func (c *Cache) reportsLocked() domain.Reports {
	return domain.Reports{Observation: c.observation, Forecast: c.forecast}
}
