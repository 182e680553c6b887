package controller

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/insightgraph/internal/dataset"
	"github.com/leapstack-labs/insightgraph/internal/graph"
	"github.com/leapstack-labs/insightgraph/internal/layout"
)

// Upload starts an analysis of ds and replaces the graph with the dataset
// root surrounded by loading insight placeholders. The placeholders are
// filled in the background as the backend produces findings. On failure
// the current graph is left untouched and the error wraps ErrUpload.
func (c *Controller) Upload(ctx context.Context, ds dataset.Dataset) error {
	c.mu.Lock()
	sessionID := c.status.Session
	c.mu.Unlock()

	c.logger.Info("uploading dataset", "name", ds.Name, "bytes", len(ds.Data), "rows", ds.Rows)
	sess, err := c.backend.StartSession(ctx, ds.Name, ds.Reader(), sessionID)
	if err != nil {
		return c.RejectUpload(ds.Name, err)
	}

	g, err := c.initialGraph(sess.Hub, ds)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpload, err)
	}

	c.mu.Lock()
	bg := c.replaceGraph(g)
	c.status.Dataset = ds.Name
	c.status.Session = sess.Session
	c.status.Hub = sess.Hub
	c.status.Message = fmt.Sprintf("Analyzing %s", ds.Name)
	c.status.Failed = false
	c.mu.Unlock()

	c.pipe.StartPoll(bg, sess.Hub)
	c.logger.Info("analysis started", "session", sess.Session, "hub", sess.Hub, "placeholders", c.pipe.Expected())
	return nil
}

// RejectUpload records a failed upload of name in the status line, for
// example a file that is not a readable CSV. The graph is left untouched and
// the returned error wraps both ErrUpload and cause.
func (c *Controller) RejectUpload(name string, cause error) error {
	c.logger.Error("upload failed", "name", name, "error", cause)
	c.setStatus(func(s *Status) {
		s.Message = fmt.Sprintf("Upload of %s failed", name)
		s.Failed = true
	})
	return fmt.Errorf("%w: %w", ErrUpload, cause)
}

// initialGraph builds the root and its fanned-out placeholders.
func (c *Controller) initialGraph(hubID string, ds dataset.Dataset) (graph.Graph, error) {
	root := graph.NewRoot(hubID, ds.RootContent())
	g, err := graph.New().WithNode(root)
	if err != nil {
		return graph.Graph{}, err
	}

	for _, pl := range layout.FanOut(root.Position, c.pipe.Expected(), c.radius) {
		id := c.newID()
		if g, err = g.WithNode(graph.NewPlaceholder(id, graph.KindInsight, pl.Position)); err != nil {
			return graph.Graph{}, err
		}
		if g, err = g.WithEdge(pl.Edge(root.ID, id)); err != nil {
			return graph.Graph{}, err
		}
	}
	return g, nil
}
