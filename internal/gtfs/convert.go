package gtfs

import (
	"slices"
	"strconv"

	"github.com/railnet/routeplanner/models"
)

// ConvertOptions controls how a feed maps onto trains and stations
type ConvertOptions struct {
	// ServiceID keeps only trips of one service calendar. Empty keeps all.
	ServiceID string
	// UseParentStation maps platform stops onto their parent station.
	UseParentStation bool
	// FarePerLeg is charged for every stop after a trip's first.
	FarePerLeg float64
	// FirstTrainID numbers trips in trip_id order starting here. Defaults to 1.
	FirstTrainID int64
}

// ConvertReport counts what ToStops kept and dropped
type ConvertReport struct {
	Trips             int
	Stops             int
	FilteredTrips     int
	NonNumericStopIDs int
}

// ToStops turns stop_times into timetable stops: one train per trip, stations
// keyed by numeric GTFS stop_id. Stop times whose station id is not numeric
// are dropped and counted.
func ToStops(data *Data, opts ConvertOptions) ([]models.Stop, ConvertReport) {
	var report ConvertReport
	if opts.FirstTrainID <= 0 {
		opts.FirstTrainID = 1
	}

	parents := make(map[string]string)
	if opts.UseParentStation {
		for _, s := range data.Stops {
			if s.ParentStation != "" {
				parents[s.StopID] = s.ParentStation
			}
		}
	}

	// Trip filter only applies when trips.txt was present.
	keep := func(string) bool { return true }
	if opts.ServiceID != "" && len(data.Trips) > 0 {
		allowed := make(map[string]bool)
		for _, t := range data.Trips {
			if t.ServiceID == opts.ServiceID {
				allowed[t.TripID] = true
			}
		}
		keep = func(tripID string) bool { return allowed[tripID] }
	}

	byTrip := make(map[string][]StopTime)
	for _, st := range data.StopTimes {
		if st.TripID == "" {
			continue
		}
		byTrip[st.TripID] = append(byTrip[st.TripID], st)
	}

	tripIDs := make([]string, 0, len(byTrip))
	for id := range byTrip {
		if !keep(id) {
			report.FilteredTrips++
			continue
		}
		tripIDs = append(tripIDs, id)
	}
	slices.Sort(tripIDs)

	var stops []models.Stop
	for i, tripID := range tripIDs {
		trainID := opts.FirstTrainID + int64(i)
		times := byTrip[tripID]
		slices.SortStableFunc(times, func(a, b StopTime) int {
			return a.StopSequence - b.StopSequence
		})

		first := true
		for _, st := range times {
			stopID := st.StopID
			if parent, ok := parents[stopID]; ok {
				stopID = parent
			}
			stationID, err := strconv.ParseInt(stopID, 10, 64)
			if err != nil || stationID <= 0 {
				report.NonNumericStopIDs++
				continue
			}

			s := models.Stop{
				TrainID:       trainID,
				StationID:     stationID,
				ArrivalTime:   clock(st.ArrivalTime),
				DepartureTime: clock(st.DepartureTime),
			}
			if !first {
				s.Fare = opts.FarePerLeg
			}
			first = false
			stops = append(stops, s)
		}
		report.Trips++
	}
	report.Stops = len(stops)
	return stops, report
}

// clock trims GTFS HH:MM:SS to the HH:MM the timetable stores. Hours past 23
// are kept, they mean the next service day.
func clock(v string) *string {
	if v == "" {
		return nil
	}
	if len(v) == len("00:00:00") && v[5] == ':' {
		v = v[:5]
	} else if len(v) == len("0:00:00") && v[4] == ':' {
		v = "0" + v[:4]
	}
	return &v
}
