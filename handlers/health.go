package handlers

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/railnet/routeplanner/internal/timetable"
	"github.com/railnet/routeplanner/models"
)

// Pinger checks connectivity of the stop store
type Pinger interface {
	Ping(ctx context.Context) error
}

// SnapshotPeeker exposes the last built graph without triggering a build
type SnapshotPeeker interface {
	Peek() *timetable.Snapshot
}

// HealthHandler handles liveness, readiness and health requests
type HealthHandler struct {
	store    Pinger
	graphs   SnapshotPeeker
	draining atomic.Bool
	now      func() time.Time
}

// NewHealthHandler creates a new handler; it reports ready once graphs holds a snapshot
func NewHealthHandler(store Pinger, graphs SnapshotPeeker) *HealthHandler {
	return &HealthHandler{store: store, graphs: graphs, now: time.Now}
}

// StartDraining makes /readyz fail from now on, ahead of shutdown
func (h *HealthHandler) StartDraining() {
	h.draining.Store(true)
}

// GetHealth handles GET /health
// Tests store connectivity and reports the state of the routing graph
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	now := h.now().UTC()
	resp := models.ServiceHealth{
		Status:    "ok",
		Database:  "connected",
		Timestamp: now,
		Graph:     h.graphHealth(now),
	}

	if err := h.store.Ping(ctx); err != nil {
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Healthz handles GET /healthz (liveness)
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Readyz handles GET /readyz
// Ready once any graph build has succeeded and until shutdown starts
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() || h.graphs.Peek() == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// Ping handles GET /api/ping
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("pong"))
}

func (h *HealthHandler) graphHealth(now time.Time) *models.GraphHealth {
	snap := h.graphs.Peek()
	if snap == nil {
		return nil
	}
	stations := snap.Graph.StationCount()
	quality := models.CalculateDataQuality(snap.Report.Links, snap.Report.MalformedTimestamps)
	return &models.GraphHealth{
		SnapshotID:          snap.ID.String(),
		BuiltAt:             snap.BuiltAt.UTC(),
		AgeSeconds:          int(now.Sub(snap.BuiltAt).Seconds()),
		Stations:            stations,
		Edges:               snap.Graph.EdgeCount(),
		MalformedTimestamps: snap.Report.MalformedTimestamps,
		OverwrittenEdges:    snap.Report.OverwrittenEdges,
		DataQuality:         quality,
		Status:              models.CalculateHealthStatus(quality, stations),
	}
}
