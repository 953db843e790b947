package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
)

// Criterion selects the edge attribute a search minimizes.
type Criterion string

const (
	CriterionCost Criterion = "cost"
	CriterionTime Criterion = "time"
)

var (
	// ErrInvalidCriterion is returned for optimize values other than cost and time.
	ErrInvalidCriterion = errors.New("optimize must be \"cost\" or \"time\"")
	// ErrNoRoute means end is unreachable from start, or one of them is not in the graph.
	ErrNoRoute = errors.New("no route available")
	// ErrSearchAborted means the search context ended before the search converged.
	ErrSearchAborted = errors.New("route search aborted")
)

// ctxCheckInterval is how many frontier pops happen between context checks.
const ctxCheckInterval = 256

// ParseCriterion validates an optimize parameter.
func ParseCriterion(s string) (Criterion, error) {
	switch c := Criterion(s); c {
	case CriterionCost, CriterionTime:
		return c, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidCriterion, s)
}

// Other returns the criterion that is carried along rather than minimized.
func (c Criterion) Other() Criterion {
	if c == CriterionCost {
		return CriterionTime
	}
	return CriterionCost
}

// Route is the outcome of a successful search.
type Route struct {
	Criterion Criterion   `json:"criterion"`
	Primary   float64     `json:"primary"`   // sum of the minimized metric
	Secondary float64     `json:"secondary"` // sum of the other metric along the same path
	Path      []StationID `json:"path"`      // start..end inclusive
}

// TotalCost returns the fare sum of the route.
func (r *Route) TotalCost() float64 {
	if r.Criterion == CriterionCost {
		return r.Primary
	}
	return r.Secondary
}

// TotalTime returns the duration sum of the route in minutes.
func (r *Route) TotalTime() float64 {
	if r.Criterion == CriterionTime {
		return r.Primary
	}
	return r.Secondary
}

// FindRoute runs Dijkstra from start, ordering the frontier by the metric
// selected by by and summing the other metric along the chosen path. Edge
// weights must be non-negative, which BuildGraph guarantees.
func FindRoute(ctx context.Context, g *Graph, start, end StationID, by Criterion) (*Route, error) {
	if by != CriterionCost && by != CriterionTime {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidCriterion, string(by))
	}
	if !g.HasStation(start) || !g.HasStation(end) {
		return nil, ErrNoRoute
	}

	stations := g.Stations()
	inf := math.Inf(1)
	distances := make(map[StationID]float64, len(stations))
	secondary := make(map[StationID]float64, len(stations))
	previous := make(map[StationID]StationID, len(stations))
	settled := make(map[StationID]bool, len(stations))
	frontier := NewPriorityQueue[StationID](len(stations))

	for _, id := range stations {
		if id == start {
			distances[id] = 0
			secondary[id] = 0
		} else {
			distances[id] = inf
			secondary[id] = inf
		}
		frontier.Enqueue(id, distances[id])
	}

	other := by.Other()
	found := false
	for pops := 0; !frontier.IsEmpty(); pops++ {
		if pops%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrSearchAborted, err)
			}
		}

		item, _ := frontier.Dequeue()
		u := item.Element
		if u == end {
			found = true
			break
		}
		// Stale or unreachable records are skipped; the search goes on.
		if settled[u] || item.Priority != distances[u] || math.IsInf(distances[u], 1) {
			continue
		}
		settled[u] = true

		for _, e := range g.Neighbors(u) {
			candidate := distances[u] + e.Weight(by)
			if candidate < distances[e.To] {
				distances[e.To] = candidate
				secondary[e.To] = secondary[u] + e.Weight(other)
				previous[e.To] = u
				frontier.Enqueue(e.To, candidate)
			}
		}
	}

	if !found || math.IsInf(distances[end], 1) || math.IsInf(secondary[end], 1) {
		return nil, ErrNoRoute
	}

	return &Route{
		Criterion: by,
		Primary:   distances[end],
		Secondary: secondary[end],
		Path:      reconstructPath(previous, start, end),
	}, nil
}

func reconstructPath(previous map[StationID]StationID, start, end StationID) []StationID {
	path := []StationID{end}
	for cur := end; cur != start; {
		cur = previous[cur]
		path = append(path, cur)
	}
	slices.Reverse(path)
	return path
}
