package controller

import (
	"fmt"

	"github.com/leapstack-labs/insightgraph/internal/graph"
	"github.com/leapstack-labs/insightgraph/internal/layout"
)

// Click highlights id and clears every other highlight. Unless the click
// landed on one of the node's controls, the viewport is recentered on it.
func (c *Controller) Click(id string, onControl bool) error {
	return c.store.Update(func(g graph.Graph) (graph.Graph, error) {
		n, ok := g.Node(id)
		if !ok {
			return g, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
		}
		next, err := graph.Highlight(g, id)
		if err != nil {
			return g, err
		}
		if !onControl {
			center := layout.Center(n.Position)
			next = next.WithViewport(graph.Viewport{X: center.X, Y: center.Y, Zoom: FocusZoom})
		}
		return next, nil
	})
}

// ClearHighlight removes every highlight, as when the empty canvas is
// clicked.
func (c *Controller) ClearHighlight() error {
	return c.store.Update(func(g graph.Graph) (graph.Graph, error) {
		return graph.ClearHighlight(g), nil
	})
}

// ToggleExpanded expands or collapses a populated node.
func (c *Controller) ToggleExpanded(id string) error {
	return c.store.Update(func(g graph.Graph) (graph.Graph, error) {
		return graph.ToggleExpanded(g, id)
	})
}

// SetViewport records a pan or zoom made by the user.
func (c *Controller) SetViewport(v graph.Viewport) error {
	if v.Zoom <= 0 {
		return fmt.Errorf("invalid zoom %v", v.Zoom)
	}
	return c.store.Update(func(g graph.Graph) (graph.Graph, error) {
		return g.WithViewport(v), nil
	})
}
