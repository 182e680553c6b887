package graph

import "fmt"

// Document is the serializable form of a Graph, used for snapshots, the
// HTTP API and exports.
type Document struct {
	Nodes    []DocNode `json:"nodes" yaml:"nodes"`
	Edges    []Edge    `json:"edges" yaml:"edges"`
	Viewport Viewport  `json:"viewport" yaml:"viewport"`
}

// DocNode is the serializable form of a Node. Exactly one of Root and
// Finding is set.
type DocNode struct {
	ID          string          `json:"id" yaml:"id"`
	ServerID    string          `json:"server_id,omitempty" yaml:"server_id,omitempty"`
	Kind        Kind            `json:"kind" yaml:"kind"`
	Position    Position        `json:"position" yaml:"position"`
	Anchors     Anchors         `json:"anchors" yaml:"anchors"`
	Display     Display         `json:"display" yaml:"display"`
	Phase       Phase           `json:"phase" yaml:"phase"`
	LoadingStep int             `json:"loading_step,omitempty" yaml:"loading_step,omitempty"`
	Title       string          `json:"title" yaml:"title"`
	Text        string          `json:"text,omitempty" yaml:"text,omitempty"`
	Root        *RootContent    `json:"root,omitempty" yaml:"root,omitempty"`
	Finding     *FindingContent `json:"finding,omitempty" yaml:"finding,omitempty"`
}

// ToDocument converts g. Title and Text are derived display fields and are
// ignored by FromDocument.
func ToDocument(g Graph) Document {
	doc := Document{
		Nodes:    make([]DocNode, 0, g.Len()),
		Edges:    g.Edges(),
		Viewport: g.Viewport(),
	}
	if doc.Edges == nil {
		doc.Edges = []Edge{}
	}
	for _, n := range g.nodes {
		dn := DocNode{
			ID:          n.ID,
			ServerID:    n.ServerID,
			Kind:        n.Kind,
			Position:    n.Position,
			Anchors:     n.Anchors,
			Display:     n.Display,
			Phase:       n.Phase,
			LoadingStep: n.LoadingStep,
			Title:       n.Title(),
			Text:        n.Body(),
		}
		switch c := n.Content.(type) {
		case RootContent:
			dn.Root = &c
		case FindingContent:
			dn.Finding = &c
		}
		doc.Nodes = append(doc.Nodes, dn)
	}
	return doc
}

// FromDocument rebuilds a Graph, keeping ids, positions and anchors exactly
// as recorded.
func FromDocument(doc Document) (Graph, error) {
	g := New()
	var err error
	for _, dn := range doc.Nodes {
		n := &Node{
			ID:          dn.ID,
			ServerID:    dn.ServerID,
			Kind:        dn.Kind,
			Position:    dn.Position,
			Anchors:     dn.Anchors,
			Display:     dn.Display,
			Phase:       dn.Phase,
			LoadingStep: dn.LoadingStep,
		}
		switch {
		case dn.Root != nil:
			n.Content = *dn.Root
		case dn.Finding != nil:
			n.Content = *dn.Finding
		case dn.Kind == KindRoot:
			n.Content = RootContent{}
		default:
			n.Content = FindingContent{}
		}
		if n.Phase == "" {
			n.Phase = PhasePopulated
		}
		if g, err = g.WithNode(n); err != nil {
			return Graph{}, fmt.Errorf("restore node: %w", err)
		}
	}
	for _, e := range doc.Edges {
		if e.ID == "" {
			e.ID = EdgeID(e.Source, e.Target)
		}
		if g, err = g.withRawEdge(e); err != nil {
			return Graph{}, fmt.Errorf("restore edge: %w", err)
		}
	}
	if doc.Viewport.Zoom != 0 {
		g = g.WithViewport(doc.Viewport)
	}
	return g, nil
}
