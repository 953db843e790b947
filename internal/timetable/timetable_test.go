package timetable

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/railnet/routeplanner/internal/routing"
	"github.com/railnet/routeplanner/models"
)

type fakeStore struct {
	mu       sync.Mutex
	stops    map[int64][]models.Stop
	listErr  error
	stopErr  map[int64]error
	delay    time.Duration
	lists    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeStore) ListTrainIDs(ctx context.Context) ([]int64, error) {
	f.lists.Add(1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	// Reverse order on purpose: Collect must not depend on store ordering.
	ids := make([]int64, 0, len(f.stops))
	for id := range f.stops {
		ids = append(ids, id)
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids, nil
}

func (f *fakeStore) StopsForTrain(ctx context.Context, trainID int64) ([]models.Stop, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.stopErr[trainID]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Stop(nil), f.stops[trainID]...), nil
}

func sp(s string) *string { return &s }

func mkStop(id, train, station int64, arr, dep string, fare float64) models.Stop {
	s := models.Stop{ID: id, TrainID: train, StationID: station, Fare: fare}
	if arr != "" {
		s.ArrivalTime = sp(arr)
	}
	if dep != "" {
		s.DepartureTime = sp(dep)
	}
	return s
}

// exampleStore serves the five-station network as two-way trains.
func exampleStore() *fakeStore {
	return &fakeStore{stops: map[int64][]models.Stop{
		// 1 -> 2 -> 4 -> 5, stored out of order
		1: {
			mkStop(3, 1, 4, "08:30", "08:31", 10),
			mkStop(1, 1, 1, "", "08:00", 0),
			mkStop(4, 1, 5, "08:39", "", 4),
			mkStop(2, 1, 2, "08:10", "08:10", 5),
		},
		// 1 -> 3 -> 4
		2: {
			mkStop(5, 2, 1, "", "09:00", 0),
			mkStop(6, 2, 3, "09:15", "09:15", 8),
			mkStop(7, 2, 4, "09:27", "", 6),
		},
	}}
}

func TestCollect_OrdersTrainsAndStops(t *testing.T) {
	trains, err := Collect(context.Background(), exampleStore(), 4)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(trains) != 2 || trains[0].TrainID != 1 || trains[1].TrainID != 2 {
		t.Fatalf("trains not ordered by id: %+v", trains)
	}
	var stations []int64
	for _, s := range trains[0].Stops {
		stations = append(stations, s.StationID)
	}
	want := []int64{1, 2, 4, 5}
	for i := range want {
		if stations[i] != want[i] {
			t.Fatalf("train 1 stations = %v, want %v", stations, want)
		}
	}
}

func TestCollect_BoundedConcurrency(t *testing.T) {
	store := &fakeStore{stops: map[int64][]models.Stop{}, delay: 5 * time.Millisecond}
	for i := int64(1); i <= 20; i++ {
		store.stops[i] = []models.Stop{mkStop(i, i, i, "", "08:00", 0)}
	}

	trains, err := Collect(context.Background(), store, 3)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(trains) != 20 {
		t.Fatalf("expected 20 trains, got %d", len(trains))
	}
	if got := store.maxSeen.Load(); got > 3 {
		t.Errorf("observed %d concurrent loads, limit was 3", got)
	}
}

func TestCollect_StoreFailures(t *testing.T) {
	boom := errors.New("connection refused")

	listFail := &fakeStore{listErr: boom}
	if _, err := Collect(context.Background(), listFail, 2); !errors.Is(err, ErrDataSource) || !errors.Is(err, boom) {
		t.Errorf("list failure: expected ErrDataSource wrapping cause, got %v", err)
	}

	stopFail := exampleStore()
	stopFail.stopErr = map[int64]error{2: boom}
	if _, err := Collect(context.Background(), stopFail, 2); !errors.Is(err, ErrDataSource) || !errors.Is(err, boom) {
		t.Errorf("stop failure: expected ErrDataSource wrapping cause, got %v", err)
	}
}

func TestSortStops_MalformedKeepsPlace(t *testing.T) {
	stops := []models.Stop{
		mkStop(1, 1, 10, "", "07:00", 0),
		mkStop(2, 1, 20, "bad", "bad", 1),
		mkStop(3, 1, 30, "07:20", "07:21", 1),
		mkStop(4, 1, 40, "07:40", "", 1),
	}
	sorted := SortStops(stops)
	for i, want := range []int64{10, 20, 30, 40} {
		if sorted[i].StationID != want {
			t.Fatalf("position %d: got station %d, want %d", i, sorted[i].StationID, want)
		}
	}
	if &sorted[0] == &stops[0] {
		t.Error("SortStops must return a new slice")
	}
}

func TestSortStops_AfterMidnightHours(t *testing.T) {
	stops := []models.Stop{
		mkStop(2, 1, 20, "24:10", "24:12", 1),
		mkStop(1, 1, 10, "", "23:50", 0),
	}
	sorted := SortStops(stops)
	if sorted[0].StationID != 10 || sorted[1].StationID != 20 {
		t.Errorf("expected 23:50 before 24:12, got %+v", sorted)
	}
}

func TestSortStops_PastMidnight(t *testing.T) {
	stops := []models.Stop{
		mkStop(1, 1, 10, "", "23:50", 0),
		mkStop(2, 1, 20, "00:10", "00:12", 2),
		mkStop(3, 1, 30, "00:30", "", 3),
	}
	sorted := SortStops(stops)
	for i, want := range []int64{10, 20, 30} {
		if sorted[i].StationID != want {
			t.Fatalf("position %d: got station %d, want %d", i, sorted[i].StationID, want)
		}
	}
}

func TestCollect_TrainPastMidnight(t *testing.T) {
	store := &fakeStore{stops: map[int64][]models.Stop{
		1: {
			mkStop(1, 1, 10, "", "23:50", 0),
			mkStop(2, 1, 20, "00:10", "00:12", 2),
			mkStop(3, 1, 30, "00:30", "", 3),
		},
	}}

	trains, err := Collect(context.Background(), store, 1)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	g, report := routing.BuildGraph(trains)
	if report.WrappedDurations != 1 {
		t.Errorf("expected one wrapped duration, got %d", report.WrappedDurations)
	}
	if e, ok := g.Edge(10, 20); !ok || e.Time != 20 || e.Cost != 2 {
		t.Errorf("edge 10->20 = %+v, %v", e, ok)
	}
	if _, ok := g.Edge(30, 10); ok {
		t.Error("unexpected edge 30->10")
	}

	route, err := routing.FindRoute(context.Background(), g, 10, 30, routing.CriterionTime)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if route.TotalTime() != 38 || route.TotalCost() != 5 {
		t.Errorf("expected time 38 and cost 5, got %v and %v", route.TotalTime(), route.TotalCost())
	}
}

func TestGraphCache_BuildsGraph(t *testing.T) {
	cache := NewGraphCache(exampleStore(), CacheOptions{TTL: time.Hour, Concurrency: 2}, zerolog.Nop())

	snap, err := cache.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	e, ok := snap.Graph.Edge(2, 4)
	if !ok || e.Cost != 10 || e.Time != 20 {
		t.Errorf("edge 2->4 = %+v, %v", e, ok)
	}
	route, err := routing.FindRoute(context.Background(), snap.Graph, 1, 5, routing.CriterionCost)
	if err != nil {
		t.Fatalf("FindRoute: %v", err)
	}
	if route.TotalCost() != 18 {
		t.Errorf("expected cost 18 via 1-3-4-5, got %v (%v)", route.TotalCost(), route.Path)
	}
	if cache.Peek() != snap {
		t.Error("Peek should return the built snapshot")
	}
}

func TestGraphCache_ReusesWithinTTL(t *testing.T) {
	store := exampleStore()
	cache := NewGraphCache(store, CacheOptions{TTL: time.Hour}, zerolog.Nop())

	first, err := cache.Current(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := cache.Current(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first != second || store.lists.Load() != 1 {
		t.Errorf("expected one build, got %d", store.lists.Load())
	}

	cache.Invalidate()
	third, err := cache.Current(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if third == first || third.ID == first.ID {
		t.Error("Invalidate should force a new snapshot")
	}
}

func TestGraphCache_ExpiresAfterTTL(t *testing.T) {
	store := exampleStore()
	cache := NewGraphCache(store, CacheOptions{TTL: time.Minute}, zerolog.Nop())
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	if _, err := cache.Current(context.Background()); err != nil {
		t.Fatal(err)
	}
	now = now.Add(30 * time.Second)
	if _, err := cache.Current(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.lists.Load() != 1 {
		t.Fatalf("expected reuse inside TTL, got %d builds", store.lists.Load())
	}
	now = now.Add(time.Minute)
	if _, err := cache.Current(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.lists.Load() != 2 {
		t.Errorf("expected rebuild after TTL, got %d builds", store.lists.Load())
	}
}

func TestGraphCache_ZeroTTLBuildsPerCall(t *testing.T) {
	store := exampleStore()
	cache := NewGraphCache(store, CacheOptions{}, zerolog.Nop())
	for i := 0; i < 3; i++ {
		if _, err := cache.Current(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if store.lists.Load() != 3 {
		t.Errorf("expected 3 builds, got %d", store.lists.Load())
	}
}

func TestGraphCache_ConcurrentCallersShareBuild(t *testing.T) {
	store := exampleStore()
	store.delay = 10 * time.Millisecond
	cache := NewGraphCache(store, CacheOptions{TTL: time.Hour, Concurrency: 2}, zerolog.Nop())

	var wg sync.WaitGroup
	ids := make([]string, 16)
	for i := range ids {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := cache.Current(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = snap.ID.String()
		}()
	}
	wg.Wait()

	if store.lists.Load() != 1 {
		t.Errorf("expected a single shared build, got %d", store.lists.Load())
	}
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("callers saw different snapshots: %v", ids)
		}
	}
}

func TestGraphCache_FailureKeepsNoSnapshot(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	cache := NewGraphCache(store, CacheOptions{TTL: time.Hour}, zerolog.Nop())

	if _, err := cache.Current(context.Background()); !errors.Is(err, ErrDataSource) {
		t.Fatalf("expected ErrDataSource, got %v", err)
	}
	if cache.Peek() != nil {
		t.Error("failed build must not publish a snapshot")
	}
}

func TestGraphCache_CallerCancellation(t *testing.T) {
	store := exampleStore()
	store.delay = 200 * time.Millisecond
	cache := NewGraphCache(store, CacheOptions{TTL: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := cache.Current(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected caller deadline, got %v", err)
	}
	// The detached build still completes for later callers.
	snap, err := cache.Current(context.Background())
	if err != nil || snap == nil {
		t.Fatalf("follow-up Current: %v", err)
	}
}

func TestGraphCache_RefreshRebuildsUntilCancelled(t *testing.T) {
	store := exampleStore()
	cache := NewGraphCache(store, CacheOptions{TTL: time.Hour}, zerolog.Nop())

	first, err := cache.Current(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cache.Refresh(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for store.lists.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected periodic rebuilds, got %d builds", store.lists.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Refresh did not stop after cancel")
	}

	if snap := cache.Peek(); snap == nil || snap.ID == first.ID {
		t.Error("expected refresh to publish a new snapshot")
	}
}

func TestGraphCache_RefreshDisabled(t *testing.T) {
	cache := NewGraphCache(exampleStore(), CacheOptions{TTL: time.Hour}, zerolog.Nop())
	// Returns immediately for a non-positive interval.
	cache.Refresh(context.Background(), 0)
}
