package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/insightgraph/internal/analysis"
	"github.com/leapstack-labs/insightgraph/internal/graph"
)

// FetchQuestion resolves a follow-up question and binds the result to
// placeholderID. On failure the placeholder stays loading.
func (p *Pipeline) FetchQuestion(ctx context.Context, questionID, placeholderID string) error {
	it, err := p.src.Question(ctx, questionID)
	if err != nil {
		p.logger.Warn("question fetch failed", "question", questionID, "node", placeholderID, "error", err)
		return fmt.Errorf("fetch question %s: %w", questionID, err)
	}
	return p.bindOne(placeholderID, it)
}

// FetchPrompted generates a finding from free text under parentServerID
// and binds it to placeholderID.
func (p *Pipeline) FetchPrompted(ctx context.Context, parentServerID, prompt, placeholderID string) error {
	it, err := p.src.Prompted(ctx, parentServerID, prompt)
	if err != nil {
		p.logger.Warn("prompted fetch failed", "parent", parentServerID, "node", placeholderID, "error", err)
		return fmt.Errorf("fetch prompted finding for %s: %w", parentServerID, err)
	}
	return p.bindOne(placeholderID, it)
}

// FetchDetails fetches the broad follow-ups of parentServerID and binds
// item i to placeholderIDs[i]. A response of any other length is rejected
// and nothing is bound.
func (p *Pipeline) FetchDetails(ctx context.Context, parentServerID string, placeholderIDs []string) error {
	items, err := p.src.DetailNodes(ctx, parentServerID)
	if err != nil {
		p.logger.Warn("detail fetch failed", "parent", parentServerID, "nodes", placeholderIDs, "error", err)
		return fmt.Errorf("fetch details for %s: %w", parentServerID, err)
	}
	if len(items) != len(placeholderIDs) {
		err := fmt.Errorf("%w: %d items for %d placeholders", ErrBindingMismatch, len(items), len(placeholderIDs))
		p.logger.Error("detail fetch rejected", "parent", parentServerID, "error", err)
		return err
	}

	pairs := make([]binding, len(items))
	for i, it := range items {
		pairs[i] = binding{nodeID: placeholderIDs[i], item: it}
	}
	if err := p.bind(pairs); err != nil {
		p.logger.Error("detail binding abandoned", "parent", parentServerID, "error", err)
		return fmt.Errorf("bind details for %s: %w", parentServerID, err)
	}
	p.logger.Debug("bound details", "parent", parentServerID, "count", len(pairs))
	return nil
}

// bindOne binds a single fetched item. A placeholder that is gone after a
// reset or already populated is a no-op; an item that cannot be bound is
// reported as ErrBindingMismatch and the placeholder stays loading.
func (p *Pipeline) bindOne(placeholderID string, it analysis.Item) error {
	err := p.bind([]binding{{nodeID: placeholderID, item: it}})
	switch {
	case errors.Is(err, graph.ErrNodeNotFound), errors.Is(err, graph.ErrAlreadyPopulated):
		p.logger.Debug("skipping stale placeholder", "node", placeholderID, "item", it.ID, "error", err)
		return nil
	case err != nil:
		p.logger.Error("binding rejected", "node", placeholderID, "item", it.ID, "error", err)
		return err
	}
	p.logger.Debug("bound finding", "node", placeholderID, "item", it.ID)
	return nil
}
