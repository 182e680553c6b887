package graph

import (
	"fmt"
	"slices"
)

// Bind populates placeholder id with content from backend item serverID.
// It is the only way out of PhaseLoading.
func Bind(g Graph, id, serverID string, content FindingContent) (Graph, error) {
	n, ok := g.Node(id)
	if !ok {
		return g, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if !n.Loading() {
		return g, fmt.Errorf("%w: %s", ErrAlreadyPopulated, id)
	}
	phase := PhasePopulated
	return g.WithPatch(id, Patch{
		ServerID: &serverID,
		Phase:    &phase,
		Content:  content,
	})
}

// ToggleExpanded flips the expanded state of a populated node.
func ToggleExpanded(g Graph, id string) (Graph, error) {
	n, ok := g.Node(id)
	if !ok {
		return g, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if n.Loading() {
		return g, fmt.Errorf("%w: %s", ErrNodeLoading, id)
	}
	d := n.Display
	d.Expanded = !d.Expanded
	return g.WithPatch(id, Patch{Display: &d})
}

// Highlight marks id as the only highlighted node. Loading placeholders
// cannot be highlighted. Nodes whose state does not change keep their
// pointer.
func Highlight(g Graph, id string) (Graph, error) {
	n, ok := g.Node(id)
	if !ok {
		return g, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if n.Loading() {
		return g, fmt.Errorf("%w: %s", ErrNodeLoading, id)
	}
	return setHighlight(g, id)
}

// ClearHighlight removes the highlight from every node.
func ClearHighlight(g Graph) Graph {
	c, _ := setHighlight(g, "")
	return c
}

func setHighlight(g Graph, id string) (Graph, error) {
	patches := make(map[string]Patch)
	for _, n := range g.nodes {
		want := n.ID == id
		if n.Display.Highlighted == want {
			continue
		}
		d := n.Display
		d.Highlighted = want
		patches[n.ID] = Patch{Display: &d}
	}
	return g.WithPatches(patches)
}

// Highlighted returns the highlighted node, if any.
func Highlighted(g Graph) (*Node, bool) {
	for _, n := range g.nodes {
		if n.Display.Highlighted {
			return n, true
		}
	}
	return nil, false
}

// CheckExplorable reports whether n may be the source of a new exploration:
// a populated, highlighted finding.
func CheckExplorable(n *Node) error {
	if n.Kind == KindRoot {
		return fmt.Errorf("%w: %s is the root", ErrNotExplorable, n.ID)
	}
	if n.Loading() {
		return fmt.Errorf("%w: %s", ErrNodeLoading, n.ID)
	}
	if !n.Display.Highlighted {
		return fmt.Errorf("%w: %s", ErrNotHighlighted, n.ID)
	}
	return nil
}

// RemoveQuestion drops a consumed question from a finding.
func RemoveQuestion(g Graph, id, questionID string) (Graph, error) {
	n, ok := g.Node(id)
	if !ok {
		return g, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	f, ok := n.Finding()
	if !ok {
		return g, fmt.Errorf("%w: %s", ErrQuestionNotFound, questionID)
	}
	i := slices.IndexFunc(f.Questions, func(q Question) bool { return q.ID == questionID })
	if i < 0 {
		return g, fmt.Errorf("%w: %s", ErrQuestionNotFound, questionID)
	}
	f.Questions = slices.Delete(slices.Clone(f.Questions), i, i+1)
	return g.WithPatch(id, Patch{Content: f})
}
