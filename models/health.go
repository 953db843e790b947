package models

import "time"

// HealthStatus constants
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusUnknown   = "unknown"
)

// ServiceHealth is the JSON response for GET /health
type ServiceHealth struct {
	Status    string       `json:"status"`   // "ok" or "error"
	Database  string       `json:"database"` // "connected" or "disconnected"
	Timestamp time.Time    `json:"timestamp"`
	Graph     *GraphHealth `json:"graph,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// GraphHealth describes the routing graph currently served
type GraphHealth struct {
	SnapshotID          string    `json:"snapshotId"`
	BuiltAt             time.Time `json:"builtAt"`
	AgeSeconds          int       `json:"ageSeconds"`
	Stations            int       `json:"stations"`
	Edges               int       `json:"edges"`
	MalformedTimestamps int       `json:"malformedTimestamps"`
	OverwrittenEdges    int       `json:"overwrittenEdges"`
	DataQuality         int       `json:"dataQuality"` // 0-100 score
	Status              string    `json:"status"`      // "healthy", "degraded", "unhealthy", "unknown"
}

// CalculateDataQuality returns a 0-100 score: the share of links whose time
// weight came from well-formed timestamps
func CalculateDataQuality(links, malformed int) int {
	if links <= 0 {
		return 100
	}
	if malformed >= links {
		return 0
	}
	return (links - malformed) * 100 / links
}

// CalculateHealthStatus returns graph status based on the data quality score
// and whether the graph has any stations at all
func CalculateHealthStatus(score, stations int) string {
	if stations == 0 {
		return StatusUnknown
	}
	if score >= 95 {
		return StatusHealthy
	}
	if score >= 50 {
		return StatusDegraded
	}
	return StatusUnhealthy
}
