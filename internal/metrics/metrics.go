package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	RouteQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routeplanner_route_queries_total", Help: "Route queries by optimize criterion and outcome"},
		[]string{"optimize", "outcome"},
	)
	RouteSearchSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "routeplanner_route_search_seconds", Help: "Dijkstra search latency", Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10)},
		[]string{"optimize"},
	)
	RouteCacheHitsTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "routeplanner_route_cache_hits_total", Help: "Route results served from cache"})
	RouteCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "routeplanner_route_cache_misses_total", Help: "Route results computed"})

	GraphBuildSeconds   = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "routeplanner_graph_build_seconds", Help: "Time to load stops and build the graph", Buckets: prometheus.ExponentialBuckets(0.001, 4, 10)})
	GraphBuildsTotal    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "routeplanner_graph_builds_total", Help: "Graph builds by result"}, []string{"result"})
	GraphStations       = prometheus.NewGauge(prometheus.GaugeOpts{Name: "routeplanner_graph_stations", Help: "Stations in the current graph"})
	GraphEdges          = prometheus.NewGauge(prometheus.GaugeOpts{Name: "routeplanner_graph_edges", Help: "Directed edges in the current graph"})
	MalformedTimestamps = prometheus.NewCounter(prometheus.CounterOpts{Name: "routeplanner_malformed_timestamps_total", Help: "Stop links whose time weight fell back to zero because of unparsable times"})
	OverwrittenEdges    = prometheus.NewCounter(prometheus.CounterOpts{Name: "routeplanner_overwritten_edges_total", Help: "Edges replaced by a later train serving the same station pair"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "routeplanner_http_requests_total", Help: "HTTP requests by method and status"}, []string{"method", "status"})
)

// Init registers all collectors on a fresh registry. It panics on a
// duplicate or inconsistent collector.
func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		RouteQueriesTotal, RouteSearchSeconds, RouteCacheHitsTotal, RouteCacheMissesTotal,
		GraphBuildSeconds, GraphBuildsTotal, GraphStations, GraphEdges, MalformedTimestamps, OverwrittenEdges,
		HTTPRequestsTotal,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

// Handler exposes reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
