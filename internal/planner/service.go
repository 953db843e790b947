package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bluele/gcache"
	"github.com/rs/zerolog"

	"github.com/railnet/routeplanner/internal/metrics"
	"github.com/railnet/routeplanner/internal/routing"
	"github.com/railnet/routeplanner/internal/timetable"
	"github.com/railnet/routeplanner/models"
)

// SnapshotSource supplies the graph a query runs against.
type SnapshotSource interface {
	Current(ctx context.Context) (*timetable.Snapshot, error)
}

// Options configures a Service.
type Options struct {
	// SearchTimeout bounds one Dijkstra run. Zero means no deadline beyond the
	// caller's context.
	SearchTimeout time.Duration
	// ResultCacheSize is the LRU capacity for computed routes. Zero disables caching.
	ResultCacheSize int
	// ResultCacheTTL expires cached routes. Zero keeps them until evicted or
	// the snapshot changes.
	ResultCacheTTL time.Duration
}

// Outcome labels for routeplanner_route_queries_total.
const (
	outcomeOK           = "ok"
	outcomeNoRoute      = "no_route"
	outcomeInvalid      = "invalid"
	outcomeAborted      = "aborted"
	outcomeSourceFailed = "source_error"
)

type cachedResult struct {
	route *routing.Route
	err   error
}

// Service answers route queries against the current graph snapshot.
type Service struct {
	graphs  SnapshotSource
	opts    Options
	results gcache.Cache
	logger  zerolog.Logger
}

func NewService(graphs SnapshotSource, opts Options, logger zerolog.Logger) *Service {
	s := &Service{
		graphs: graphs,
		opts:   opts,
		logger: logger.With().Str("component", "planner").Logger(),
	}
	if opts.ResultCacheSize > 0 {
		b := gcache.New(opts.ResultCacheSize).LRU()
		if opts.ResultCacheTTL > 0 {
			b = b.Expiration(opts.ResultCacheTTL)
		}
		s.results = b.Build()
	}
	return s
}

// Plan finds the route from one station to another minimizing optimize
// ("cost" or "time"). The returned route may be shared with other callers and
// must not be modified.
func (s *Service) Plan(ctx context.Context, from, to int64, optimize string) (*routing.Route, error) {
	by, err := routing.ParseCriterion(optimize)
	if err != nil {
		metrics.RouteQueriesTotal.WithLabelValues("invalid", outcomeInvalid).Inc()
		return nil, err
	}

	snap, err := s.graphs.Current(ctx)
	if err != nil {
		metrics.RouteQueriesTotal.WithLabelValues(string(by), outcomeSourceFailed).Inc()
		return nil, err
	}

	key := resultKey(snap, from, to, by)
	if res, ok := s.lookup(key); ok {
		metrics.RouteCacheHitsTotal.Inc()
		metrics.RouteQueriesTotal.WithLabelValues(string(by), outcomeFor(res.err)).Inc()
		return res.route, res.err
	}
	metrics.RouteCacheMissesTotal.Inc()

	searchCtx := ctx
	if s.opts.SearchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.opts.SearchTimeout)
		defer cancel()
	}

	start := time.Now()
	route, err := routing.FindRoute(searchCtx, snap.Graph, from, to, by)
	elapsed := time.Since(start)
	metrics.RouteSearchSeconds.WithLabelValues(string(by)).Observe(elapsed.Seconds())
	metrics.RouteQueriesTotal.WithLabelValues(string(by), outcomeFor(err)).Inc()

	switch {
	case err == nil, errors.Is(err, routing.ErrNoRoute):
		s.store(key, cachedResult{route: route, err: err})
	case errors.Is(err, routing.ErrSearchAborted):
		s.logger.Warn().
			Int64("from", from).
			Int64("to", to).
			Str("optimize", string(by)).
			Dur("elapsed", elapsed).
			Err(err).
			Msg("route search aborted")
	}
	return route, err
}

// Stations lists the stations of the current graph with their out-degree.
func (s *Service) Stations(ctx context.Context) ([]models.StationSummary, error) {
	snap, err := s.graphs.Current(ctx)
	if err != nil {
		return nil, err
	}
	ids := snap.Graph.Stations()
	out := make([]models.StationSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.StationSummary{
			StationID: id,
			Outgoing:  len(snap.Graph.Neighbors(id)),
		})
	}
	return out, nil
}

func (s *Service) lookup(key string) (cachedResult, bool) {
	if s.results == nil {
		return cachedResult{}, false
	}
	v, err := s.results.Get(key)
	if err != nil {
		return cachedResult{}, false
	}
	res, ok := v.(cachedResult)
	return res, ok
}

func (s *Service) store(key string, res cachedResult) {
	if s.results == nil {
		return
	}
	if err := s.results.Set(key, res); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("route cache set failed")
	}
}

// resultKey scopes cached results to one snapshot, so a rebuilt graph never
// serves routes computed on the old one.
func resultKey(snap *timetable.Snapshot, from, to int64, by routing.Criterion) string {
	return fmt.Sprintf("%s:%d:%d:%s", snap.ID, from, to, by)
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, routing.ErrNoRoute):
		return outcomeNoRoute
	case errors.Is(err, routing.ErrSearchAborted):
		return outcomeAborted
	default:
		return outcomeSourceFailed
	}
}
