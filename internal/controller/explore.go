package controller

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/insightgraph/internal/graph"
	"github.com/leapstack-labs/insightgraph/internal/layout"
)

// ExploreBroad attaches BroadCount detail placeholders to id and fetches
// the finding's broad follow-ups into them. It returns the placeholder ids.
func (c *Controller) ExploreBroad(id string) ([]string, error) {
	var (
		serverID string
		children []string
	)
	err := c.store.Update(func(g graph.Graph) (graph.Graph, error) {
		parent, err := explorable(g, id)
		if err != nil {
			return g, err
		}
		serverID = parent.ServerID
		g, children, err = c.attach(g, id, BroadCount)
		return g, err
	})
	if err != nil {
		return nil, err
	}

	bg := c.background()
	c.logger.Info("exploring", "node", id, "server_id", serverID, "placeholders", children)
	c.pipe.Go(func() error {
		return c.pipe.FetchDetails(bg, serverID, children)
	})
	return children, nil
}

// AskQuestion attaches one detail placeholder to id and answers one of the
// finding's suggested questions into it. The question is removed from the
// finding. It returns the placeholder id.
func (c *Controller) AskQuestion(id, questionID string) (string, error) {
	var children []string
	err := c.store.Update(func(g graph.Graph) (graph.Graph, error) {
		if _, err := explorable(g, id); err != nil {
			return g, err
		}
		g, err := graph.RemoveQuestion(g, id, questionID)
		if err != nil {
			return g, err
		}
		g, children, err = c.attach(g, id, 1)
		return g, err
	})
	if err != nil {
		return "", err
	}

	child := children[0]
	bg := c.background()
	c.logger.Info("asking question", "node", id, "question", questionID, "placeholder", child)
	c.pipe.Go(func() error {
		return c.pipe.FetchQuestion(bg, questionID, child)
	})
	return child, nil
}

// AskPrompt attaches one detail placeholder to id and generates a finding
// from free text into it. It returns the placeholder id.
func (c *Controller) AskPrompt(id, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	var (
		serverID string
		children []string
	)
	err := c.store.Update(func(g graph.Graph) (graph.Graph, error) {
		parent, err := explorable(g, id)
		if err != nil {
			return g, err
		}
		serverID = parent.ServerID
		g, children, err = c.attach(g, id, 1)
		return g, err
	})
	if err != nil {
		return "", err
	}

	child := children[0]
	bg := c.background()
	c.logger.Info("prompting", "node", id, "placeholder", child)
	c.pipe.Go(func() error {
		return c.pipe.FetchPrompted(bg, serverID, prompt, child)
	})
	return child, nil
}

func explorable(g graph.Graph, id string) (*graph.Node, error) {
	n, ok := g.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
	}
	if err := graph.CheckExplorable(n); err != nil {
		return nil, err
	}
	return n, nil
}

// attach adds count detail placeholders under parentID, one at a time so
// each placement sees the slots taken by the previous one.
func (c *Controller) attach(g graph.Graph, parentID string, count int) (graph.Graph, []string, error) {
	ids := make([]string, 0, count)
	for range count {
		parent, ok := g.Node(parentID)
		if !ok {
			return g, nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, parentID)
		}
		pl, err := layout.PlaceChild(parent, c.rng)
		if err != nil {
			if !errors.Is(err, layout.ErrNoFreeSide) {
				return g, nil, err
			}
			c.logger.Warn("placing child without anchors", "parent", parentID, "error", err)
		}

		id := c.newID()
		if g, err = g.WithNode(graph.NewPlaceholder(id, graph.KindDetail, pl.Position)); err != nil {
			return g, nil, err
		}
		if g, err = g.WithEdge(pl.Edge(parentID, id)); err != nil {
			return g, nil, err
		}
		ids = append(ids, id)
	}
	return g, ids, nil
}
