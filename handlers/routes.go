package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/railnet/routeplanner/internal/middleware"
	"github.com/railnet/routeplanner/internal/routing"
	"github.com/railnet/routeplanner/models"
)

// statusClientClosedRequest is the nginx convention for a request the client
// abandoned before the response was ready
const statusClientClosedRequest = 499

// RoutePlanner defines the interface for route queries
type RoutePlanner interface {
	Plan(ctx context.Context, from, to int64, optimize string) (*routing.Route, error)
	Stations(ctx context.Context) ([]models.StationSummary, error)
}

// RouteHandler handles HTTP requests for route planning
type RouteHandler struct {
	planner  RoutePlanner
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewRouteHandler creates a new handler with the given planner
func NewRouteHandler(planner RoutePlanner, logger zerolog.Logger) *RouteHandler {
	return &RouteHandler{
		planner:  planner,
		validate: validator.New(),
		logger:   logger,
	}
}

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// GetStationsResponse is the JSON response structure for GET /api/stations
type GetStationsResponse struct {
	Stations []models.StationSummary `json:"stations"`
	Count    int                     `json:"count"`
}

// routeQuery holds the raw query parameters of GET /api/routes
type routeQuery struct {
	From     string `validate:"required,number"`
	To       string `validate:"required,number"`
	Optimize string `validate:"required"`
}

// GetRoute handles GET /api/routes?from=<id>&to=<id>&optimize=<cost|time>
// Returns 201 with the route, 403 when no route exists
func (h *RouteHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := routeQuery{
		From:     r.URL.Query().Get("from"),
		To:       r.URL.Query().Get("to"),
		Optimize: r.URL.Query().Get("optimize"),
	}

	if err := h.validate.Struct(q); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "from, to and optimize query parameters are required; from and to must be station ids",
			Details: validationDetails(err),
		})
		return
	}

	from, errFrom := strconv.ParseInt(q.From, 10, 64)
	to, errTo := strconv.ParseInt(q.To, 10, 64)
	if errFrom != nil || errTo != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "station id out of range",
			Details: map[string]interface{}{
				"from": q.From,
				"to":   q.To,
			},
		})
		return
	}

	route, err := h.planner.Plan(ctx, from, to, q.Optimize)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, models.NewRouteResponse(route.TotalCost(), route.TotalTime(), route.Path))

	case errors.Is(err, routing.ErrInvalidCriterion):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "optimize must be \"cost\" or \"time\"",
			Details: map[string]interface{}{
				"optimize": q.Optimize,
			},
		})

	case errors.Is(err, routing.ErrNoRoute):
		writeJSON(w, http.StatusForbidden, models.NoRouteResponse{
			Message: fmt.Sprintf("No routes available from station: %d to station: %d", from, to),
		})

	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the response.
		h.logger.Debug().
			Str("rid", middleware.GetRequestID(ctx)).
			Int64("from", from).
			Int64("to", to).
			Msg("route query cancelled by client")
		w.WriteHeader(statusClientClosedRequest)

	case errors.Is(err, routing.ErrSearchAborted), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{
			Error: "Route search timed out",
		})

	default:
		h.logger.Error().
			Err(err).
			Str("rid", middleware.GetRequestID(ctx)).
			Int64("from", from).
			Int64("to", to).
			Msg("route query failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to compute route",
			Details: map[string]interface{}{
				"internal": err.Error(),
			},
		})
	}
}

// GetStations handles GET /api/stations
// Returns all stations in the current routing graph
func (h *RouteHandler) GetStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.planner.Stations(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to retrieve stations",
			Details: map[string]interface{}{
				"internal": err.Error(),
			},
		})
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=30")
	writeJSON(w, http.StatusOK, GetStationsResponse{
		Stations: stations,
		Count:    len(stations),
	})
}

func validationDetails(err error) map[string]interface{} {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		details[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return details
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
