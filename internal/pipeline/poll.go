package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/insightgraph/internal/analysis"
	"github.com/leapstack-labs/insightgraph/internal/graph"
)

// pollState tracks one root poll loop.
type pollState struct {
	hubID string
	// known is the length of the last response. Only used to report how
	// many new items a tick brought.
	known int
	seen  map[string]struct{}
}

// PollRoot polls the hub listing until Expected first-ring findings have
// been seen and bound, or ctx ends. Each item is bound to the next unbound
// loading insight node in graph order. Items that find no placeholder stay
// pending and are retried on the next tick. Request failures are logged and
// the loop keeps going.
func (p *Pipeline) PollRoot(ctx context.Context, hubID string) error {
	st := &pollState{hubID: hubID, seen: make(map[string]struct{})}
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.logger.Info("polling hub", "hub", hubID, "expected", p.cfg.Expected, "interval", p.cfg.PollInterval)
	for {
		if p.pollOnce(ctx, st) {
			p.logger.Info("hub poll complete", "hub", hubID, "items", len(st.seen))
			return nil
		}
		select {
		case <-ctx.Done():
			p.logger.Debug("hub poll stopped", "hub", hubID, "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// StartPoll runs PollRoot in the background. Cancellation is not reported
// as a failure.
func (p *Pipeline) StartPoll(ctx context.Context, hubID string) {
	p.Go(func() error {
		err := p.PollRoot(ctx, hubID)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

// pollOnce runs one tick and reports whether the loop is finished.
func (p *Pipeline) pollOnce(ctx context.Context, st *pollState) bool {
	items, err := p.src.HubNodes(ctx, st.hubID)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("hub poll failed", "hub", st.hubID, "error", err)
		}
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	if n := len(items) - st.known; n > 0 {
		p.logger.Debug("hub poll", "hub", st.hubID, "new_items", n, "total", len(items))
	}
	st.known = len(items)

	var firstRing []analysis.Item
	inResponse := make(map[string]struct{}, len(items))
	for _, it := range items {
		// Exploration results are listed under the hub too; they carry the
		// id of the finding they were generated from.
		if it.ID == "" || (it.ParentNodeID != nil && *it.ParentNodeID != "") {
			continue
		}
		if _, dup := inResponse[it.ID]; dup {
			continue
		}
		inResponse[it.ID] = struct{}{}
		st.seen[it.ID] = struct{}{}
		firstRing = append(firstRing, it)
	}

	pending, free := p.bindRootItems(ctx, firstRing)
	if len(st.seen) < p.cfg.Expected {
		return false
	}
	if pending == 0 {
		return true
	}
	if free == 0 {
		p.logger.Warn("hub items left without placeholders", "hub", st.hubID, "pending", pending)
		return true
	}
	return false
}

// bindRootItems binds the not yet consumed items to unbound loading
// insight nodes, in order. It returns how many items are still pending and
// how many placeholders are still free afterwards. Nothing is bound once
// ctx has ended, so a loop cancelled by a new upload cannot touch the new
// graph.
func (p *Pipeline) bindRootItems(ctx context.Context, items []analysis.Item) (pending, free int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return len(items), 0
	}

	var todo []analysis.Item
	for _, it := range items {
		if !p.isConsumed(it.ID) {
			todo = append(todo, it)
		}
	}

	var bound []binding
	err := p.store.Update(func(g graph.Graph) (graph.Graph, error) {
		bound = bound[:0]
		slots := p.unboundPlaceholders(g)
		free = len(slots)
		for i, it := range todo {
			if i >= len(slots) {
				break
			}
			next, err := graph.Bind(g, slots[i], it.ID, it.Finding())
			if err != nil {
				return g, err
			}
			g = next
			bound = append(bound, binding{nodeID: slots[i], item: it})
		}
		if len(bound) == 0 {
			return g, errNoChange
		}
		return g, nil
	})
	switch {
	case errors.Is(err, errNoChange):
		return len(todo), free
	case err != nil:
		p.logger.Error("binding hub items failed", "error", err)
		return len(todo), free
	}

	for _, b := range bound {
		p.consumed[b.item.ID] = struct{}{}
		p.populated[b.nodeID] = struct{}{}
		p.logger.Debug("bound hub item", "node", b.nodeID, "item", b.item.ID)
	}
	return len(todo) - len(bound), free - len(bound)
}

// unboundPlaceholders lists loading insight nodes in graph order. Must be
// called with p.mu held.
func (p *Pipeline) unboundPlaceholders(g graph.Graph) []string {
	var ids []string
	for _, n := range g.Nodes() {
		if n.Kind != graph.KindInsight || !n.Loading() {
			continue
		}
		if _, ok := p.populated[n.ID]; ok {
			continue
		}
		ids = append(ids, n.ID)
	}
	return ids
}
