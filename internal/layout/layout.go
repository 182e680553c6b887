// Package layout computes where new nodes go and which anchor slots connect
// them to their parent. It never mutates a graph; callers commit the
// returned placements through the graph store.
package layout

import (
	"errors"
	"math"

	"github.com/leapstack-labs/insightgraph/internal/graph"
)

// ErrNoFreeSide is returned when every anchor slot of the parent is taken.
var ErrNoFreeSide = errors.New("no free side on parent")

// DefaultRadius is the fan-out distance between the root and the first ring.
const DefaultRadius = 800

// Node footprint offsets so the child is centered on the computed point.
const (
	footprintX = 125
	footprintY = 150
	// topBuffer pushes nodes placed above the root clear of its body.
	topBuffer = 200
)

// Jitter bounds for incremental placement.
const (
	minExtension = 100
	maxExtension = 800
	maxLateral   = 25
)

// Rand is the randomness source for jitter. *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Placement is where a new node goes and how it attaches to its parent.
type Placement struct {
	Position   graph.Position
	ParentSide graph.Side
	ChildSide  graph.Side
	// Unanchored is set when the parent had no free side. The edge then
	// carries no anchors.
	Unanchored bool
}

// Edge returns the edge that attaches child to parent for this placement.
func (p Placement) Edge(parentID, childID string) graph.Edge {
	return graph.NewEdge(parentID, childID, p.ParentSide, p.ChildSide)
}

// intBetween returns an integer in [lo, hi], matching the step size of the
// offsets used by the canvas.
func intBetween(rng Rand, lo, hi int) float64 {
	return float64(lo) + math.Floor(rng.Float64()*float64(hi-lo+1))
}

// Center returns the visual center of a node placed at pos.
func Center(pos graph.Position) graph.Position {
	return graph.Position{X: pos.X + footprintX, Y: pos.Y + footprintY}
}
