package graph

import (
	"fmt"
	"maps"
	"slices"
)

// Edge connects a parent to a child produced by exploring it.
type Edge struct {
	ID           string `json:"id" yaml:"id"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceAnchor Side   `json:"source_anchor,omitempty" yaml:"source_anchor,omitempty"`
	TargetAnchor Side   `json:"target_anchor,omitempty" yaml:"target_anchor,omitempty"`
}

// EdgeID returns the identity of the edge from source to target.
func EdgeID(source, target string) string {
	return source + "-to-" + target
}

// NewEdge builds an edge with its derived id.
func NewEdge(source, target string, sourceAnchor, targetAnchor Side) Edge {
	return Edge{
		ID:           EdgeID(source, target),
		Source:       source,
		Target:       target,
		SourceAnchor: sourceAnchor,
		TargetAnchor: targetAnchor,
	}
}

// Viewport is the canvas camera: the layout-space point at the center of
// the view and the zoom factor.
type Viewport struct {
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
	Zoom float64 `json:"zoom" yaml:"zoom"`
}

// DefaultViewport is used when no viewport was ever set.
var DefaultViewport = Viewport{X: 0, Y: 0, Zoom: 1}

// Graph is an immutable snapshot of nodes, edges and viewport. Every With*
// method returns a new Graph and leaves the receiver untouched.
type Graph struct {
	nodes    []*Node
	index    map[string]int
	edges    []Edge
	edgeIDs  map[string]struct{}
	viewport Viewport
}

// New returns an empty graph.
func New() Graph {
	return Graph{viewport: DefaultViewport}
}

func (g Graph) clone() Graph {
	c := Graph{
		nodes:    slices.Clone(g.nodes),
		index:    maps.Clone(g.index),
		edges:    slices.Clone(g.edges),
		edgeIDs:  maps.Clone(g.edgeIDs),
		viewport: g.viewport,
	}
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if c.edgeIDs == nil {
		c.edgeIDs = make(map[string]struct{})
	}
	return c
}

// Len returns the number of nodes.
func (g Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns the nodes in insertion order.
func (g Graph) Nodes() []*Node {
	return slices.Clone(g.nodes)
}

// Edges returns the edges in insertion order.
func (g Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// Node looks up a node by client id.
func (g Graph) Node(id string) (*Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.nodes[i], true
}

// NodeByServerID looks up a node by its bound backend id.
func (g Graph) NodeByServerID(serverID string) (*Node, bool) {
	if serverID == "" {
		return nil, false
	}
	for _, n := range g.nodes {
		if n.ServerID == serverID {
			return n, true
		}
	}
	return nil, false
}

// Root returns the root node, if any.
func (g Graph) Root() (*Node, bool) {
	for _, n := range g.nodes {
		if n.Kind == KindRoot {
			return n, true
		}
	}
	return nil, false
}

// Viewport returns the current camera.
func (g Graph) Viewport() Viewport {
	if g.viewport.Zoom == 0 {
		return DefaultViewport
	}
	return g.viewport
}

// WithViewport returns g with the camera replaced.
func (g Graph) WithViewport(v Viewport) Graph {
	c := g.clone()
	c.viewport = v
	return c
}

// WithNode returns g with n appended.
func (g Graph) WithNode(n *Node) (Graph, error) {
	if n == nil || n.ID == "" {
		return g, fmt.Errorf("node id is required")
	}
	if _, ok := g.index[n.ID]; ok {
		return g, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	c := g.clone()
	c.index[n.ID] = len(c.nodes)
	c.nodes = append(c.nodes, n)
	return c, nil
}

// WithReplaced returns g with the node carrying n.ID swapped for n. Every
// other node keeps its pointer.
func (g Graph) WithReplaced(n *Node) (Graph, error) {
	i, ok := g.index[n.ID]
	if !ok {
		return g, fmt.Errorf("%w: %s", ErrNodeNotFound, n.ID)
	}
	c := g.clone()
	c.nodes[i] = n
	return c, nil
}

// WithPatch returns g with patch p applied to node id.
func (g Graph) WithPatch(id string, p Patch) (Graph, error) {
	n, ok := g.Node(id)
	if !ok {
		return g, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return g.WithReplaced(p.apply(n))
}

// WithPatches returns g with every patch applied. The node list and index
// are cloned once for the whole batch.
func (g Graph) WithPatches(patches map[string]Patch) (Graph, error) {
	if len(patches) == 0 {
		return g, nil
	}
	c := g.clone()
	for id, p := range patches {
		i, ok := c.index[id]
		if !ok {
			return g, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		c.nodes[i] = p.apply(c.nodes[i])
	}
	return c, nil
}

// WithEdge returns g with e added. Each anchored endpoint on a non-root
// node must be free and becomes occupied.
func (g Graph) WithEdge(e Edge) (Graph, error) {
	if e.ID == "" {
		e.ID = EdgeID(e.Source, e.Target)
	}
	if _, ok := g.edgeIDs[e.ID]; ok {
		return g, fmt.Errorf("%w: %s", ErrDuplicateEdge, e.ID)
	}
	src, ok := g.Node(e.Source)
	if !ok {
		return g, fmt.Errorf("edge source: %w: %s", ErrNodeNotFound, e.Source)
	}
	dst, ok := g.Node(e.Target)
	if !ok {
		return g, fmt.Errorf("edge target: %w: %s", ErrNodeNotFound, e.Target)
	}

	c := g.clone()
	for _, end := range []struct {
		node *Node
		side Side
	}{{src, e.SourceAnchor}, {dst, e.TargetAnchor}} {
		if end.side == SideNone || end.node.Kind == KindRoot {
			continue
		}
		// Re-read: source and target may be the same node after the first pass.
		cur, _ := c.Node(end.node.ID)
		if cur.Anchors.Get(end.side) == SlotOccupied {
			return g, fmt.Errorf("%w: %s %s", ErrSlotTaken, cur.ID, end.side)
		}
		next := cur.Clone()
		next.Anchors = cur.Anchors.With(end.side, SlotOccupied)
		c.nodes[c.index[cur.ID]] = next
	}
	c.edgeIDs[e.ID] = struct{}{}
	c.edges = append(c.edges, e)
	return c, nil
}

// withRawEdge adds e without touching anchor slots. Used when restoring a
// document whose nodes already record their occupancy.
func (g Graph) withRawEdge(e Edge) (Graph, error) {
	if _, ok := g.edgeIDs[e.ID]; ok {
		return g, fmt.Errorf("%w: %s", ErrDuplicateEdge, e.ID)
	}
	if _, ok := g.index[e.Source]; !ok {
		return g, fmt.Errorf("edge source: %w: %s", ErrNodeNotFound, e.Source)
	}
	if _, ok := g.index[e.Target]; !ok {
		return g, fmt.Errorf("edge target: %w: %s", ErrNodeNotFound, e.Target)
	}
	c := g.clone()
	c.edgeIDs[e.ID] = struct{}{}
	c.edges = append(c.edges, e)
	return c, nil
}

// Children returns the ids of nodes reached by an edge from id.
func (g Graph) Children(id string) []string {
	var out []string
	for _, e := range g.edges {
		if e.Source == id {
			out = append(out, e.Target)
		}
	}
	return out
}
