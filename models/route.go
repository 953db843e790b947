package models

// RouteStation is one station of a computed route.
// Train and time attribution per station is not resolved by the router, so
// those fields are always null.
type RouteStation struct {
	StationID     int64   `json:"station_id"`
	TrainID       *int64  `json:"train_id"`
	ArrivalTime   *string `json:"arrival_time"`
	DepartureTime *string `json:"departure_time"`
}

// RouteResponse is the JSON response structure for GET /api/routes
type RouteResponse struct {
	TotalCost float64        `json:"total_cost"`
	TotalTime float64        `json:"total_time"`
	Stations  []RouteStation `json:"stations"`
}

// NoRouteResponse is returned when no finite route exists
type NoRouteResponse struct {
	Message string `json:"message"`
}

// StationSummary describes a station known to the routing graph
type StationSummary struct {
	StationID int64 `json:"station_id"`
	Outgoing  int   `json:"outgoing"`
}

// NewRouteResponse maps a station path and its totals to the wire format.
func NewRouteResponse(totalCost, totalTime float64, path []int64) RouteResponse {
	stations := make([]RouteStation, 0, len(path))
	for _, id := range path {
		stations = append(stations, RouteStation{StationID: id})
	}
	return RouteResponse{
		TotalCost: totalCost,
		TotalTime: totalTime,
		Stations:  stations,
	}
}
