package routing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/railnet/routeplanner/models"
)

const minutesPerDay = 24 * 60

// ErrMalformedClock is returned by ParseClock for values that are not HH:MM[:SS].
var ErrMalformedClock = errors.New("malformed clock time")

// TrainStops is the ordered stop list of one train.
type TrainStops struct {
	TrainID int64
	Stops   []models.Stop // in departure order
}

// BuildReport summarises data-quality events seen while building a graph.
type BuildReport struct {
	Trains              int `json:"trains"`
	Stops               int `json:"stops"`
	Links               int `json:"links"`
	OverwrittenEdges    int `json:"overwrittenEdges"`
	MalformedTimestamps int `json:"malformedTimestamps"`
	MissingTimestamps   int `json:"missingTimestamps"`
	WrappedDurations    int `json:"wrappedDurations"`
	NegativeFares       int `json:"negativeFares"`
}

type buildOptions struct {
	logger zerolog.Logger
}

// BuildOption configures BuildGraph.
type BuildOption func(*buildOptions)

// WithLogger sets the logger used for data-quality warnings.
func WithLogger(l zerolog.Logger) BuildOption {
	return func(o *buildOptions) { o.logger = l }
}

// BuildGraph links every pair of consecutive stops of every train. The edge
// A->B costs B's fare and takes the minutes between A's departure and B's
// arrival. Missing or unparsable times give a zero time weight; the latter are
// reported and logged since they point at bad timetable data.
func BuildGraph(trains []TrainStops, opts ...BuildOption) (*Graph, BuildReport) {
	o := buildOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	b := NewGraphBuilder()
	var report BuildReport

	for _, train := range trains {
		report.Trains++
		report.Stops += len(train.Stops)

		for i, stop := range train.Stops {
			b.AddStation(stop.StationID)
			if i == 0 {
				continue
			}
			prev := train.Stops[i-1]

			fare := stop.Fare
			if fare < 0 {
				report.NegativeFares++
				o.logger.Warn().
					Int64("train_id", train.TrainID).
					Int64("station_id", stop.StationID).
					Float64("fare", fare).
					Msg("negative fare clamped to zero")
				fare = 0
			}

			minutes, status := minutesBetween(prev.DepartureTime, stop.ArrivalTime)
			switch status {
			case clockMissing:
				report.MissingTimestamps++
			case clockMalformed:
				report.MalformedTimestamps++
				o.logger.Warn().
					Int64("train_id", train.TrainID).
					Int64("from_station", prev.StationID).
					Int64("to_station", stop.StationID).
					Str("departure", deref(prev.DepartureTime)).
					Str("arrival", deref(stop.ArrivalTime)).
					Msg("malformed stop time, using zero duration")
			case clockWrapped:
				report.WrappedDurations++
			}

			if _, exists := b.edges[prev.StationID][stop.StationID]; exists {
				o.logger.Debug().
					Int64("train_id", train.TrainID).
					Int64("from_station", prev.StationID).
					Int64("to_station", stop.StationID).
					Msg("edge replaced by later train")
			}
			b.Link(prev.StationID, stop.StationID, fare, float64(minutes))
			report.Links++
		}
	}

	report.OverwrittenEdges = b.Overwritten()
	return b.Build(), report
}

// ParseClock converts "HH:MM" or "HH:MM:SS" into minutes after midnight.
// Seconds are ignored. Hours up to 47 are accepted for trips running past
// midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedClock, s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 47 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedClock, s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedClock, s)
	}
	if len(parts) == 3 {
		seconds, err := strconv.Atoi(parts[2])
		if err != nil || seconds < 0 || seconds > 59 {
			return 0, fmt.Errorf("%w: %q", ErrMalformedClock, s)
		}
	}
	return hours*60 + minutes, nil
}

type clockStatus int

const (
	clockOK clockStatus = iota
	clockMissing
	clockMalformed
	clockWrapped
)

// minutesBetween returns arrival - departure in minutes. An arrival earlier
// than the departure is taken to be on the next day.
func minutesBetween(departure, arrival *string) (int, clockStatus) {
	if departure == nil || arrival == nil || *departure == "" || *arrival == "" {
		return 0, clockMissing
	}
	dep, err := ParseClock(*departure)
	if err != nil {
		return 0, clockMalformed
	}
	arr, err := ParseClock(*arrival)
	if err != nil {
		return 0, clockMalformed
	}
	if arr < dep {
		return arr + minutesPerDay - dep, clockWrapped
	}
	return arr - dep, clockOK
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
