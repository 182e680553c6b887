package graph

import (
	"fmt"
	"log/slog"
	"sync"
)

// Listener is told about every committed revision.
type Listener interface {
	GraphChanged(revision uint64)
}

// Store owns the current graph. All mutations are serialized: each
// transform sees the result of every previous one and either commits
// entirely or not at all.
type Store struct {
	mu        sync.Mutex
	graph     Graph
	revision  uint64
	listeners []Listener
	logger    *slog.Logger
}

// NewStore returns a store holding an empty graph.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{graph: New(), logger: logger}
}

// Subscribe registers l for change notifications.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Snapshot returns the current graph. The value is immutable and safe to
// read without holding any lock.
func (s *Store) Snapshot() Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph
}

// Revision returns the number of committed mutations.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Update runs fn against the current graph and commits its result. If fn
// returns an error nothing is committed.
func (s *Store) Update(fn func(Graph) (Graph, error)) error {
	s.mu.Lock()
	next, err := fn(s.graph)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.graph = next
	s.revision++
	rev := s.revision
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l.GraphChanged(rev)
	}
	return nil
}

// Reset replaces the whole graph.
func (s *Store) Reset(g Graph) {
	_ = s.Update(func(Graph) (Graph, error) { return g, nil })
	s.logger.Debug("graph reset", "nodes", g.Len())
}

// AddNode appends n.
func (s *Store) AddNode(n *Node) error {
	return s.Update(func(g Graph) (Graph, error) { return g.WithNode(n) })
}

// AddEdge adds e and occupies its anchor slots.
func (s *Store) AddEdge(e Edge) error {
	return s.Update(func(g Graph) (Graph, error) { return g.WithEdge(e) })
}

// UpdateNode shallow-merges p into node id.
func (s *Store) UpdateNode(id string, p Patch) error {
	return s.Update(func(g Graph) (Graph, error) { return g.WithPatch(id, p) })
}

// Node returns the current version of node id.
func (s *Store) Node(id string) (*Node, error) {
	n, ok := s.Snapshot().Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// FindNodeByServerID returns the node bound to backend item serverID.
func (s *Store) FindNodeByServerID(serverID string) (*Node, error) {
	n, ok := s.Snapshot().NodeByServerID(serverID)
	if !ok {
		return nil, fmt.Errorf("%w: server id %s", ErrNodeNotFound, serverID)
	}
	return n, nil
}
