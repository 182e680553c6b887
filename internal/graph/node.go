// Package graph holds the insight graph: nodes, edges, their anchor slots
// and display state, and the single-writer Store that serializes every
// mutation.
package graph

// Kind is the rendering tier of a node.
type Kind string

// Node kinds.
const (
	KindRoot    Kind = "root"    // L0, the uploaded dataset preview
	KindInsight Kind = "insight" // L1, first ring around the root
	KindDetail  Kind = "detail"  // L2, any exploration child
)

// Phase is the population state of a node.
type Phase string

// Node phases.
const (
	PhaseLoading   Phase = "loading"
	PhasePopulated Phase = "populated"
)

// Position is a point in layout space. Y grows downward.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Display holds the user-toggleable view state of a node.
type Display struct {
	Expanded    bool `json:"expanded" yaml:"expanded"`
	Highlighted bool `json:"highlighted" yaml:"highlighted"`
}

// Column is one column of the root dataset preview.
type Column struct {
	Title string   `json:"title" yaml:"title"`
	Rows  []string `json:"rows" yaml:"rows"`
}

// Question is a follow-up question offered on a finding.
type Question struct {
	ID      string `json:"id" yaml:"id"`
	Content string `json:"content" yaml:"content"`
}

// Content is the kind-specific payload of a node: RootContent for the root,
// FindingContent for insights and details.
type Content interface {
	isContent()
}

// RootContent is the dataset preview shown on the root node.
type RootContent struct {
	Title   string   `json:"title" yaml:"title"`
	Columns []Column `json:"columns" yaml:"columns"`
}

// FindingContent is an AI-generated finding bound to an insight or detail
// node.
type FindingContent struct {
	Title          string     `json:"title" yaml:"title"`
	Body           string     `json:"body" yaml:"body"`
	Images         []string   `json:"images,omitempty" yaml:"images,omitempty"`
	Questions      []Question `json:"questions,omitempty" yaml:"questions,omitempty"`
	Prompt         string     `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	ThreadID       string     `json:"thread_id,omitempty" yaml:"thread_id,omitempty"`
	ParentServerID string     `json:"parent_server_id,omitempty" yaml:"parent_server_id,omitempty"`
}

func (RootContent) isContent()    {}
func (FindingContent) isContent() {}

// Node is a vertex of the insight graph. Nodes stored in a Graph are never
// mutated; updates replace the pointer so unchanged nodes keep their
// identity across revisions.
type Node struct {
	// ID is the client id. It is stable for the node's lifetime.
	ID string
	// ServerID is the backend item id bound on population. Empty while
	// loading, and for the root it equals the hub id.
	ServerID string
	Kind     Kind
	Position Position
	// Anchors is unused for the root.
	Anchors     Anchors
	Display     Display
	Phase       Phase
	LoadingStep int
	Content     Content
}

// Clone returns a shallow copy of n. Content slices are shared and must be
// treated as read-only.
func (n *Node) Clone() *Node {
	c := *n
	return &c
}

// Loading reports whether n is still a placeholder.
func (n *Node) Loading() bool {
	return n.Phase == PhaseLoading
}

// Finding returns the finding payload of an insight or detail node.
func (n *Node) Finding() (FindingContent, bool) {
	f, ok := n.Content.(FindingContent)
	return f, ok
}

// Title returns the display title, or the loading title for placeholders.
func (n *Node) Title() string {
	switch c := n.Content.(type) {
	case RootContent:
		return c.Title
	case FindingContent:
		if n.Loading() {
			return LoadingTitle
		}
		return c.Title
	}
	return LoadingTitle
}

// Body returns the display text: the current loading step for
// placeholders, the finding body otherwise.
func (n *Node) Body() string {
	if n.Loading() {
		return LoadingText(n.LoadingStep)
	}
	if f, ok := n.Finding(); ok {
		return f.Body
	}
	return ""
}

// Patch is a shallow update. Only non-nil fields are applied.
type Patch struct {
	ServerID    *string
	Phase       *Phase
	Position    *Position
	Anchors     *Anchors
	Display     *Display
	LoadingStep *int
	Content     Content
}

func (p Patch) apply(n *Node) *Node {
	c := n.Clone()
	if p.ServerID != nil {
		c.ServerID = *p.ServerID
	}
	if p.Phase != nil {
		c.Phase = *p.Phase
	}
	if p.Position != nil {
		c.Position = *p.Position
	}
	if p.Anchors != nil {
		c.Anchors = *p.Anchors
	}
	if p.Display != nil {
		c.Display = *p.Display
	}
	if p.LoadingStep != nil {
		c.LoadingStep = *p.LoadingStep
	}
	if p.Content != nil {
		c.Content = p.Content
	}
	return c
}

// NewPlaceholder returns a loading finding node.
func NewPlaceholder(id string, kind Kind, pos Position) *Node {
	return &Node{
		ID:       id,
		Kind:     kind,
		Position: pos,
		Phase:    PhaseLoading,
		Content:  FindingContent{},
	}
}

// NewRoot returns the populated root node for a hub.
func NewRoot(hubID string, content RootContent) *Node {
	return &Node{
		ID:       hubID,
		ServerID: hubID,
		Kind:     KindRoot,
		Phase:    PhasePopulated,
		Content:  content,
	}
}
