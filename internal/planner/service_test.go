package planner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/railnet/routeplanner/internal/routing"
	"github.com/railnet/routeplanner/internal/timetable"
)

type fakeGraphs struct {
	snap  atomic.Pointer[timetable.Snapshot]
	err   error
	calls atomic.Int32
}

func (f *fakeGraphs) Current(ctx context.Context) (*timetable.Snapshot, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.snap.Load(), nil
}

func newSnapshot(g *routing.Graph) *timetable.Snapshot {
	return &timetable.Snapshot{ID: uuid.New(), Graph: g, BuiltAt: time.Now()}
}

func exampleGraphs() *fakeGraphs {
	g := routing.NewGraphBuilder().
		LinkBoth(1, 2, 5, 10).
		LinkBoth(1, 3, 8, 15).
		LinkBoth(2, 4, 10, 20).
		LinkBoth(3, 4, 6, 12).
		LinkBoth(4, 5, 4, 8).
		AddStation(9).
		Build()
	f := &fakeGraphs{}
	f.snap.Store(newSnapshot(g))
	return f
}

func cachedService(graphs SnapshotSource) *Service {
	return NewService(graphs, Options{
		SearchTimeout:   time.Second,
		ResultCacheSize: 16,
		ResultCacheTTL:  time.Minute,
	}, zerolog.Nop())
}

func TestPlan_Cost(t *testing.T) {
	svc := cachedService(exampleGraphs())

	route, err := svc.Plan(context.Background(), 1, 5, "cost")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if route.TotalCost() != 18 || route.TotalTime() != 35 {
		t.Errorf("expected cost 18 time 35, got %v %v", route.TotalCost(), route.TotalTime())
	}
	want := []int64{1, 3, 4, 5}
	for i, id := range route.Path {
		if id != want[i] {
			t.Fatalf("path = %v, want %v", route.Path, want)
		}
	}
}

func TestPlan_InvalidOptimizeSkipsStore(t *testing.T) {
	graphs := exampleGraphs()
	svc := cachedService(graphs)

	for _, optimize := range []string{"", "distance", "COST"} {
		if _, err := svc.Plan(context.Background(), 1, 5, optimize); !errors.Is(err, routing.ErrInvalidCriterion) {
			t.Errorf("optimize %q: expected ErrInvalidCriterion, got %v", optimize, err)
		}
	}
	if graphs.calls.Load() != 0 {
		t.Errorf("invalid optimize must not load the graph, got %d loads", graphs.calls.Load())
	}
}

func TestPlan_CachesResultsPerSnapshot(t *testing.T) {
	graphs := exampleGraphs()
	svc := cachedService(graphs)
	ctx := context.Background()

	first, err := svc.Plan(ctx, 1, 5, "time")
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Plan(ctx, 1, 5, "time")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("expected the second query to be served from the result cache")
	}

	other, err := svc.Plan(ctx, 1, 5, "cost")
	if err != nil {
		t.Fatal(err)
	}
	if other == first {
		t.Error("criteria must not share cache entries")
	}

	graphs.snap.Store(newSnapshot(graphs.snap.Load().Graph))
	third, err := svc.Plan(ctx, 1, 5, "time")
	if err != nil {
		t.Fatal(err)
	}
	if third == first {
		t.Error("a new snapshot must not reuse results of the old one")
	}
}

func TestPlan_NoRoute(t *testing.T) {
	svc := cachedService(exampleGraphs())

	cases := []struct {
		name     string
		from, to int64
	}{
		{"isolated station", 1, 9},
		{"unknown start", 42, 5},
		{"unknown end", 1, 42},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for i := 0; i < 2; i++ {
				route, err := svc.Plan(context.Background(), tc.from, tc.to, "cost")
				if !errors.Is(err, routing.ErrNoRoute) || route != nil {
					t.Fatalf("call %d: expected ErrNoRoute, got %v, %v", i, route, err)
				}
			}
		})
	}
}

func TestPlan_SourceFailure(t *testing.T) {
	boom := errors.New("store unavailable")
	svc := cachedService(&fakeGraphs{err: boom})

	if _, err := svc.Plan(context.Background(), 1, 5, "cost"); !errors.Is(err, boom) {
		t.Errorf("expected store error, got %v", err)
	}
}

func TestPlan_AbortIsNotCached(t *testing.T) {
	svc := cachedService(exampleGraphs())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Plan(ctx, 1, 5, "cost"); !errors.Is(err, routing.ErrSearchAborted) {
		t.Fatalf("expected ErrSearchAborted, got %v", err)
	}

	route, err := svc.Plan(context.Background(), 1, 5, "cost")
	if err != nil || route == nil {
		t.Fatalf("follow-up query should search again, got %v, %v", route, err)
	}
}

func TestPlan_WithoutResultCache(t *testing.T) {
	svc := NewService(exampleGraphs(), Options{}, zerolog.Nop())

	first, err := svc.Plan(context.Background(), 1, 5, "cost")
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Plan(context.Background(), 1, 5, "cost")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("with caching disabled every query should search")
	}
	if first.TotalCost() != second.TotalCost() {
		t.Error("repeated searches disagree")
	}
}

func TestStations(t *testing.T) {
	svc := cachedService(exampleGraphs())

	stations, err := svc.Stations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stations) != 6 {
		t.Fatalf("expected 6 stations, got %d", len(stations))
	}
	if stations[0].StationID != 1 || stations[0].Outgoing != 2 {
		t.Errorf("station 1 summary = %+v", stations[0])
	}
	last := stations[len(stations)-1]
	if last.StationID != 9 || last.Outgoing != 0 {
		t.Errorf("isolated station summary = %+v", last)
	}
}
