package timetable

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/railnet/routeplanner/internal/metrics"
	"github.com/railnet/routeplanner/internal/routing"
)

// Snapshot is an immutable graph built from one read of the stop store.
type Snapshot struct {
	ID      uuid.UUID
	Graph   *routing.Graph
	Report  routing.BuildReport
	BuiltAt time.Time
}

// CacheOptions configures a GraphCache.
type CacheOptions struct {
	// TTL is how long a snapshot is reused. Zero rebuilds on every Current call.
	TTL time.Duration
	// Concurrency bounds parallel per-train loads.
	Concurrency int
	// BuildTimeout bounds one rebuild. Defaults to 30s.
	BuildTimeout time.Duration
}

// GraphCache serves graph snapshots built from a StopSource. Snapshots are
// swapped atomically, so readers never see a partially built graph and never
// need a lock.
type GraphCache struct {
	src    StopSource
	opts   CacheOptions
	logger zerolog.Logger
	now    func() time.Time

	current atomic.Pointer[Snapshot]
	stale   atomic.Bool
	group   singleflight.Group
}

// NewGraphCache creates an empty cache; the first Current call builds.
func NewGraphCache(src StopSource, opts CacheOptions, logger zerolog.Logger) *GraphCache {
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = 30 * time.Second
	}
	return &GraphCache{
		src:    src,
		opts:   opts,
		logger: logger.With().Str("component", "graph_cache").Logger(),
		now:    time.Now,
	}
}

// Current returns a snapshot no older than the TTL, rebuilding if needed.
// Concurrent callers share a single rebuild.
func (c *GraphCache) Current(ctx context.Context) (*Snapshot, error) {
	if snap := c.fresh(); snap != nil {
		return snap, nil
	}
	return c.build(ctx, false)
}

func (c *GraphCache) build(ctx context.Context, force bool) (*Snapshot, error) {
	ch := c.group.DoChan("graph", func() (interface{}, error) {
		if snap := c.fresh(); snap != nil && !force {
			return snap, nil
		}
		// Detached from the caller so one cancelled request does not fail
		// every query sharing this build.
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.BuildTimeout)
		defer cancel()
		return c.rebuild(buildCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Peek returns the last built snapshot without triggering a rebuild. It is nil
// before the first build.
func (c *GraphCache) Peek() *Snapshot {
	return c.current.Load()
}

// Invalidate forces the next Current call to rebuild.
func (c *GraphCache) Invalidate() {
	c.stale.Store(true)
}

// Refresh rebuilds the graph every interval until ctx is done, so queries
// rarely wait on a build. A failed refresh leaves the current snapshot in
// place until its TTL runs out.
func (c *GraphCache) Refresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := c.build(ctx, true); err != nil && ctx.Err() == nil {
				c.logger.Warn().Err(err).Msg("scheduled graph refresh failed")
			}
		case <-ctx.Done():
			c.logger.Info().Msg("graph refresh loop stopped")
			return
		}
	}
}

func (c *GraphCache) fresh() *Snapshot {
	if c.opts.TTL <= 0 || c.stale.Load() {
		return nil
	}
	snap := c.current.Load()
	if snap == nil || c.now().Sub(snap.BuiltAt) >= c.opts.TTL {
		return nil
	}
	return snap
}

func (c *GraphCache) rebuild(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	trains, err := Collect(ctx, c.src, c.opts.Concurrency)
	if err != nil {
		metrics.GraphBuildsTotal.WithLabelValues("error").Inc()
		c.logger.Error().Err(err).Msg("graph rebuild failed")
		return nil, err
	}

	graph, report := routing.BuildGraph(trains, routing.WithLogger(c.logger))
	snap := &Snapshot{
		ID:      uuid.New(),
		Graph:   graph,
		Report:  report,
		BuiltAt: c.now(),
	}
	c.current.Store(snap)
	c.stale.Store(false)

	elapsed := time.Since(start)
	metrics.GraphBuildsTotal.WithLabelValues("ok").Inc()
	metrics.GraphBuildSeconds.Observe(elapsed.Seconds())
	metrics.GraphStations.Set(float64(graph.StationCount()))
	metrics.GraphEdges.Set(float64(graph.EdgeCount()))
	metrics.MalformedTimestamps.Add(float64(report.MalformedTimestamps))
	metrics.OverwrittenEdges.Add(float64(report.OverwrittenEdges))

	event := c.logger.Info()
	if report.MalformedTimestamps > 0 {
		event = c.logger.Warn()
	}
	event.
		Str("snapshot_id", snap.ID.String()).
		Int("trains", report.Trains).
		Int("stations", graph.StationCount()).
		Int("edges", graph.EdgeCount()).
		Int("overwritten_edges", report.OverwrittenEdges).
		Int("malformed_timestamps", report.MalformedTimestamps).
		Dur("elapsed", elapsed).
		Msg("graph rebuilt")

	return snap, nil
}
