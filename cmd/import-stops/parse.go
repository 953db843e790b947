package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/railnet/routeplanner/models"
)

var requiredColumns = []string{"train_id", "station_id", "arrival_time", "departure_time", "fare"}

// rowError describes a CSV row that was skipped
type rowError struct {
	Line int
	Err  error
}

func (e rowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// parseStops reads stops from CSV with a header row. Columns may appear in any
// order; extra columns are ignored. Invalid rows are skipped and returned as
// rowErrors so one bad line does not abort the import.
func parseStops(r io.Reader) ([]models.Stop, []rowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx := makeIndex(header)
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", col)
		}
	}

	var stops []models.Stop
	var skipped []rowError
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			skipped = append(skipped, rowError{Line: line, Err: err})
			continue
		}

		stop, err := parseRecord(record, idx)
		if err != nil {
			skipped = append(skipped, rowError{Line: line, Err: err})
			continue
		}
		stops = append(stops, stop)
	}
	return stops, skipped, nil
}

func parseRecord(record []string, idx map[string]int) (models.Stop, error) {
	var s models.Stop
	var err error

	if s.TrainID, err = strconv.ParseInt(getField(record, idx, "train_id"), 10, 64); err != nil {
		return s, fmt.Errorf("invalid train_id: %w", err)
	}
	if s.StationID, err = strconv.ParseInt(getField(record, idx, "station_id"), 10, 64); err != nil {
		return s, fmt.Errorf("invalid station_id: %w", err)
	}
	if fare := getField(record, idx, "fare"); fare != "" {
		if s.Fare, err = strconv.ParseFloat(fare, 64); err != nil {
			return s, fmt.Errorf("invalid fare: %w", err)
		}
	}
	s.ArrivalTime = optional(getField(record, idx, "arrival_time"))
	s.DepartureTime = optional(getField(record, idx, "departure_time"))
	if s.ArrivalTime == nil && s.DepartureTime == nil {
		return s, errors.New("stop has neither arrival_time nor departure_time")
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		idx[strings.TrimSpace(strings.ToLower(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, field string) string {
	if i, ok := idx[field]; ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
