package routing

import (
	"slices"
)

// StationID identifies a graph vertex.
type StationID = int64

// Edge is a directed link between two stations served by the same train.
type Edge struct {
	From StationID `json:"from"`
	To   StationID `json:"to"`
	Cost float64   `json:"cost"` // fare charged at the destination stop
	Time float64   `json:"time"` // minutes
}

// Weight returns the edge attribute selected by c.
func (e Edge) Weight(c Criterion) float64 {
	if c == CriterionCost {
		return e.Cost
	}
	return e.Time
}

// Graph is an immutable station graph. It keeps one edge per ordered station
// pair; when several trains serve the same pair the last one linked wins.
//
// A Graph is never modified after Build, so a single instance can be shared by
// concurrent searches.
type Graph struct {
	edges     map[StationID]map[StationID]Edge
	adjacency map[StationID][]Edge
	stations  []StationID
	edgeCount int
}

// HasStation reports whether id is a vertex of g.
func (g *Graph) HasStation(id StationID) bool {
	if g == nil {
		return false
	}
	_, ok := g.edges[id]
	return ok
}

// Stations returns all vertices in ascending order. The slice must not be modified.
func (g *Graph) Stations() []StationID {
	if g == nil {
		return nil
	}
	return g.stations
}

// Neighbors returns the outgoing edges of id ordered by destination station.
// The slice must not be modified.
func (g *Graph) Neighbors(id StationID) []Edge {
	if g == nil {
		return nil
	}
	return g.adjacency[id]
}

// Edge returns the edge from -> to, if present.
func (g *Graph) Edge(from, to StationID) (Edge, bool) {
	if g == nil {
		return Edge{}, false
	}
	e, ok := g.edges[from][to]
	return e, ok
}

// StationCount returns the number of vertices.
func (g *Graph) StationCount() int {
	if g == nil {
		return 0
	}
	return len(g.stations)
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	if g == nil {
		return 0
	}
	return g.edgeCount
}

// GraphBuilder accumulates edges for a Graph.
type GraphBuilder struct {
	edges       map[StationID]map[StationID]Edge
	overwritten int
}

// NewGraphBuilder returns an empty builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{edges: make(map[StationID]map[StationID]Edge)}
}

// AddStation registers a vertex with no edges.
func (b *GraphBuilder) AddStation(id StationID) *GraphBuilder {
	if _, ok := b.edges[id]; !ok {
		b.edges[id] = make(map[StationID]Edge)
	}
	return b
}

// Link inserts the edge from -> to, replacing any edge already linking that pair.
func (b *GraphBuilder) Link(from, to StationID, cost, time float64) *GraphBuilder {
	b.AddStation(from)
	b.AddStation(to)
	if _, exists := b.edges[from][to]; exists {
		b.overwritten++
	}
	b.edges[from][to] = Edge{From: from, To: to, Cost: cost, Time: time}
	return b
}

// LinkBoth links from -> to and to -> from with the same weights.
func (b *GraphBuilder) LinkBoth(a, c StationID, cost, time float64) *GraphBuilder {
	return b.Link(a, c, cost, time).Link(c, a, cost, time)
}

// Overwritten returns how many Link calls replaced an existing edge.
func (b *GraphBuilder) Overwritten() int {
	return b.overwritten
}

// Build freezes the accumulated edges into a Graph. The builder can keep being
// used afterwards; the returned Graph does not share maps with it.
func (b *GraphBuilder) Build() *Graph {
	g := &Graph{
		edges:     make(map[StationID]map[StationID]Edge, len(b.edges)),
		adjacency: make(map[StationID][]Edge, len(b.edges)),
		stations:  make([]StationID, 0, len(b.edges)),
	}
	for from, out := range b.edges {
		copied := make(map[StationID]Edge, len(out))
		adj := make([]Edge, 0, len(out))
		for to, e := range out {
			copied[to] = e
			adj = append(adj, e)
		}
		slices.SortFunc(adj, func(x, y Edge) int {
			switch {
			case x.To < y.To:
				return -1
			case x.To > y.To:
				return 1
			}
			return 0
		})
		g.edges[from] = copied
		g.adjacency[from] = adj
		g.stations = append(g.stations, from)
		g.edgeCount += len(adj)
	}
	slices.Sort(g.stations)
	return g
}
