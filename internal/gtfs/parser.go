package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// ErrMissingStopTimes is returned for feeds without stop_times.txt
var ErrMissingStopTimes = errors.New("gtfs feed has no stop_times.txt")

// Parse reads a GTFS zip file and returns parsed data.
// stop_times.txt is required; stops.txt and trips.txt are optional.
func Parse(zipPath string, logger zerolog.Logger) (*Data, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	// Build file map for easy lookup
	files := make(map[string]*zip.File)
	for _, f := range r.File {
		files[f.Name] = f
	}

	data := &Data{}

	if f, ok := files["stops.txt"]; ok {
		stops, err := parseFile(f, parseStop)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to parse stops.txt")
		} else {
			data.Stops = stops
		}
	}

	if f, ok := files["trips.txt"]; ok {
		trips, err := parseFile(f, parseTrip)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to parse trips.txt")
		} else {
			data.Trips = trips
		}
	}

	f, ok := files["stop_times.txt"]
	if !ok {
		return nil, ErrMissingStopTimes
	}
	stopTimes, err := parseFile(f, parseStopTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stop_times.txt: %w", err)
	}
	data.StopTimes = stopTimes

	logger.Info().
		Int("stops", len(data.Stops)).
		Int("trips", len(data.Trips)).
		Int("stop_times", len(data.StopTimes)).
		Msg("GTFS parsed")

	return data, nil
}

// parseFile reads one CSV member of the zip, mapping every well-formed record
// through parse. Records the CSV reader rejects are skipped.
func parseFile[T any](f *zip.File, parse func(record []string, idx map[string]int) T) ([]T, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}

	idx := makeIndex(header)
	var out []T

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		out = append(out, parse(record, idx))
	}

	return out, nil
}

func parseStop(record []string, idx map[string]int) Stop {
	locType, _ := strconv.Atoi(getField(record, idx, "location_type"))
	return Stop{
		StopID:        getField(record, idx, "stop_id"),
		StopName:      getField(record, idx, "stop_name"),
		LocationType:  locType,
		ParentStation: getField(record, idx, "parent_station"),
	}
}

func parseTrip(record []string, idx map[string]int) Trip {
	return Trip{
		RouteID:   getField(record, idx, "route_id"),
		ServiceID: getField(record, idx, "service_id"),
		TripID:    getField(record, idx, "trip_id"),
	}
}

func parseStopTime(record []string, idx map[string]int) StopTime {
	seq, _ := strconv.Atoi(getField(record, idx, "stop_sequence"))
	return StopTime{
		TripID:        getField(record, idx, "trip_id"),
		ArrivalTime:   getField(record, idx, "arrival_time"),
		DepartureTime: getField(record, idx, "departure_time"),
		StopID:        getField(record, idx, "stop_id"),
		StopSequence:  seq,
	}
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, field string) string {
	if i, ok := idx[field]; ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
