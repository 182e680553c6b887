package layout

import (
	"math"

	"github.com/leapstack-labs/insightgraph/internal/graph"
)

// FanOut places count nodes radially around parent. The i-th node (1-based)
// sits at angle i/count of a full turn; the quadrant of the angle picks the
// connecting sides.
func FanOut(parent graph.Position, count int, radius float64) []Placement {
	if count <= 0 {
		return nil
	}
	if radius <= 0 {
		radius = DefaultRadius
	}

	out := make([]Placement, 0, count)
	for i := 1; i <= count; i++ {
		angle := float64(i) / float64(count) * 2 * math.Pi
		parentSide, buffer := quadrant(angle)
		out = append(out, Placement{
			Position: graph.Position{
				X: parent.X - footprintX + math.Sin(angle)*radius,
				Y: parent.Y - footprintY + buffer + math.Cos(angle)*radius,
			},
			ParentSide: parentSide,
			ChildSide:  parentSide.Opposite(),
		})
	}
	return out
}

// quadrant maps an angle in (0, 2π] to the parent side facing it and the
// vertical buffer applied to the child.
func quadrant(angle float64) (graph.Side, float64) {
	switch {
	case angle < math.Pi/4 || angle > 7*math.Pi/4:
		return graph.SideBottom, 0
	case angle < 3*math.Pi/4:
		return graph.SideRight, 0
	case angle < 5*math.Pi/4:
		return graph.SideTop, topBuffer
	default:
		return graph.SideLeft, 0
	}
}
