package models

import "testing"

func TestStopValidate(t *testing.T) {
	empty := "  "
	dep := "08:00"

	ok := Stop{TrainID: 1, StationID: 2, Fare: 3, ArrivalTime: &empty, DepartureTime: &dep}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid stop rejected: %v", err)
	}
	if ok.ArrivalTime != nil {
		t.Error("blank arrival time should normalise to nil")
	}
	if ok.DepartureTime == nil || *ok.DepartureTime != "08:00" {
		t.Error("departure time should be kept")
	}

	bad := []Stop{
		{TrainID: 0, StationID: 1},
		{TrainID: 1, StationID: 0},
		{TrainID: 1, StationID: 1, Fare: -1},
	}
	for i, s := range bad {
		if err := s.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestStopSortTime(t *testing.T) {
	arr, dep := "09:00", "09:05"
	if got := (&Stop{ArrivalTime: &arr, DepartureTime: &dep}).SortTime(); got != dep {
		t.Errorf("SortTime = %q, want departure", got)
	}
	if got := (&Stop{ArrivalTime: &arr}).SortTime(); got != arr {
		t.Errorf("SortTime = %q, want arrival for final stop", got)
	}
	if got := (&Stop{}).SortTime(); got != "" {
		t.Errorf("SortTime = %q, want empty", got)
	}
}

func TestNewRouteResponse(t *testing.T) {
	resp := NewRouteResponse(18, 35, []int64{1, 3, 4, 5})
	if resp.TotalCost != 18 || resp.TotalTime != 35 {
		t.Errorf("totals = %v/%v", resp.TotalCost, resp.TotalTime)
	}
	if len(resp.Stations) != 4 {
		t.Fatalf("expected 4 stations, got %d", len(resp.Stations))
	}
	for i, s := range resp.Stations {
		if s.TrainID != nil || s.ArrivalTime != nil || s.DepartureTime != nil {
			t.Errorf("station %d: attribution fields must be null", i)
		}
	}
	if resp.Stations[1].StationID != 3 {
		t.Errorf("station order not kept: %+v", resp.Stations)
	}
}

func TestCalculateDataQuality(t *testing.T) {
	if got := CalculateDataQuality(0, 0); got != 100 {
		t.Errorf("no links: got %d, want 100", got)
	}
	if got := CalculateDataQuality(10, 1); got != 90 {
		t.Errorf("got %d, want 90", got)
	}
	if got := CalculateDataQuality(4, 9); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestCalculateHealthStatus(t *testing.T) {
	cases := []struct {
		score, stations int
		want            string
	}{
		{100, 0, StatusUnknown},
		{100, 5, StatusHealthy},
		{95, 5, StatusHealthy},
		{80, 5, StatusDegraded},
		{10, 5, StatusUnhealthy},
	}
	for _, c := range cases {
		if got := CalculateHealthStatus(c.score, c.stations); got != c.want {
			t.Errorf("CalculateHealthStatus(%d, %d) = %q, want %q", c.score, c.stations, got, c.want)
		}
	}
}
