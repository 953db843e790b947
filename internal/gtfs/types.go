package gtfs

// Data holds the parts of a GTFS feed a timetable import needs
type Data struct {
	Stops     []Stop
	Trips     []Trip
	StopTimes []StopTime
}

// Stop represents a stop from stops.txt
type Stop struct {
	StopID        string
	StopName      string
	LocationType  int
	ParentStation string
}

// Trip represents a trip from trips.txt
type Trip struct {
	RouteID   string
	ServiceID string
	TripID    string
}

// StopTime represents a stop time from stop_times.txt
type StopTime struct {
	TripID        string
	ArrivalTime   string
	DepartureTime string
	StopID        string
	StopSequence  int
}
