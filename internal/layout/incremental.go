package layout

import (
	"fmt"

	"github.com/leapstack-labs/insightgraph/internal/graph"
)

// PlaceChild attaches a new child to the first free side of parent, in
// left, bottom, right, top order. When every side is taken it returns
// ErrNoFreeSide together with an unanchored placement above the parent,
// which callers may still use.
func PlaceChild(parent *graph.Node, rng Rand) (Placement, error) {
	p := parent.Position
	ext := intBetween(rng, minExtension, maxExtension)
	lat := intBetween(rng, -maxLateral, maxLateral)

	side, ok := parent.Anchors.FirstFree()
	if !ok {
		return Placement{
			Position:   graph.Position{X: p.X + lat, Y: p.Y - ext},
			Unanchored: true,
		}, fmt.Errorf("%w: %s", ErrNoFreeSide, parent.ID)
	}

	var pos graph.Position
	switch side {
	case graph.SideLeft:
		pos = graph.Position{X: p.X - ext, Y: p.Y + lat}
	case graph.SideRight:
		pos = graph.Position{X: p.X + ext, Y: p.Y + lat}
	case graph.SideBottom:
		pos = graph.Position{X: p.X + lat, Y: p.Y + ext}
	case graph.SideTop:
		pos = graph.Position{X: p.X + lat, Y: p.Y - ext}
	}

	return Placement{
		Position:   pos,
		ParentSide: side,
		ChildSide:  side.Opposite(),
	}, nil
}
