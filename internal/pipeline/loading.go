package pipeline

import (
	"context"
	"time"

	"github.com/leapstack-labs/insightgraph/internal/graph"
)

// RunLoadingTicker advances the progress text of every loading node each
// LoadingInterval until ctx ends.
func (p *Pipeline) RunLoadingTicker(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.LoadingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.AdvanceLoading()
		}
	}
}

// AdvanceLoading moves every loading node one progress step forward. Nodes
// already on the last step are left alone.
func (p *Pipeline) AdvanceLoading() {
	_ = p.store.Update(func(g graph.Graph) (graph.Graph, error) {
		patches := make(map[string]graph.Patch)
		for _, n := range g.Nodes() {
			if !n.Loading() || n.LoadingStep >= graph.LastLoadingStep() {
				continue
			}
			step := n.LoadingStep + 1
			patches[n.ID] = graph.Patch{LoadingStep: &step}
		}
		if len(patches) == 0 {
			return g, errNoChange
		}
		return g.WithPatches(patches)
	})
}
