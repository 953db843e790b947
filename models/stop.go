package models

import (
	"errors"
	"strings"
)

// Stop is one call of a train at a station, as stored in the stops table.
// Maps 1:1 to database rows.
type Stop struct {
	// Primary identifier
	ID int64 `db:"stop_id" json:"stopId"`

	// Which train stops where
	TrainID   int64 `db:"train_id" json:"trainId"`
	StationID int64 `db:"station_id" json:"stationId"`

	// Schedule as HH:MM (nullable in DB - first stop has no arrival, last no departure)
	ArrivalTime   *string `db:"arrival_time" json:"arrivalTime"`
	DepartureTime *string `db:"departure_time" json:"departureTime"`

	// Fare charged for the leg that ends at this stop
	Fare float64 `db:"fare" json:"fare"`
}

// Validate checks if the Stop has valid data
// Returns error if any validation fails
func (s *Stop) Validate() error {
	if s.TrainID <= 0 {
		return errors.New("train_id must be positive")
	}
	if s.StationID <= 0 {
		return errors.New("station_id must be positive")
	}
	if s.Fare < 0 {
		return errors.New("fare cannot be negative")
	}
	// Times stay free-form here; the graph builder reports malformed values
	// instead of rejecting the whole timetable.
	if s.ArrivalTime != nil && strings.TrimSpace(*s.ArrivalTime) == "" {
		s.ArrivalTime = nil
	}
	if s.DepartureTime != nil && strings.TrimSpace(*s.DepartureTime) == "" {
		s.DepartureTime = nil
	}
	return nil
}

// SortTime returns the time used to order a train's stops: departure, or
// arrival for the final stop.
func (s *Stop) SortTime() string {
	if s.DepartureTime != nil && *s.DepartureTime != "" {
		return *s.DepartureTime
	}
	if s.ArrivalTime != nil {
		return *s.ArrivalTime
	}
	return ""
}
