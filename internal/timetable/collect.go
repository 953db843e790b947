package timetable

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/railnet/routeplanner/internal/routing"
	"github.com/railnet/routeplanner/models"
)

// ErrDataSource marks failures of the stop store. They are fatal to the
// query that triggered the load and are not retried.
var ErrDataSource = errors.New("stop data source failure")

// StopSource is the read side of the stop/timetable store.
type StopSource interface {
	ListTrainIDs(ctx context.Context) ([]int64, error)
	StopsForTrain(ctx context.Context, trainID int64) ([]models.Stop, error)
}

// Collect loads every train's stops with one task per train, at most
// concurrency at a time. Trains come back ordered by id and each train's stops
// ordered by departure time, whatever order the tasks finish in.
func Collect(ctx context.Context, src StopSource, concurrency int) ([]routing.TrainStops, error) {
	ids, err := src.ListTrainIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list trains: %w", ErrDataSource, err)
	}
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	out := make([]routing.TrainStops, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			stops, err := src.StopsForTrain(gctx, id)
			if err != nil {
				return fmt.Errorf("%w: failed to load stops for train %d: %w", ErrDataSource, id, err)
			}
			out[i] = routing.TrainStops{TrainID: id, Stops: SortStops(stops)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// rolloverGap is how far a train's clock must step backwards before the step
// is read as passing midnight rather than as a row stored out of order.
const rolloverGap = 12 * 60

// SortStops orders one train's stops by departure time (arrival for the final
// stop), starting from the store's order. A clock that drops by more than
// rolloverGap between consecutive stops has passed midnight, so "23:50" then
// "00:10" keeps its order. A stop whose time is missing or unparsable keeps
// its place after the stop before it. Returns a new slice.
func SortStops(stops []models.Stop) []models.Stop {
	type keyed struct {
		stop models.Stop
		key  int
	}
	ks := make([]keyed, len(stops))
	last, offset := -1, 0
	for i, s := range stops {
		key := last
		if m, err := routing.ParseClock(s.SortTime()); err == nil {
			key = m + offset
			if last >= 0 && key < last-rolloverGap {
				offset += 24 * 60
				key += 24 * 60
			}
		}
		ks[i] = keyed{stop: s, key: key}
		last = key
	}
	slices.SortStableFunc(ks, func(a, b keyed) int {
		return a.key - b.key
	})

	sorted := make([]models.Stop, len(ks))
	for i, k := range ks {
		sorted[i] = k.stop
	}
	return sorted
}
