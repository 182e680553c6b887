// Package pipeline fetches findings from the analysis backend and binds
// them into placeholder nodes of the graph store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/insightgraph/internal/analysis"
	"github.com/leapstack-labs/insightgraph/internal/graph"
)

// Defaults.
const (
	DefaultPollInterval    = time.Second
	DefaultExpected        = 5
	DefaultLoadingInterval = 10 * time.Second
)

// ErrBindingMismatch is returned when fetched items cannot be paired with
// the placeholders they were requested for.
var ErrBindingMismatch = errors.New("binding mismatch")

// Source is the subset of the backend the pipeline reads from.
type Source interface {
	HubNodes(ctx context.Context, hubID string) ([]analysis.Item, error)
	Question(ctx context.Context, questionID string) (analysis.Item, error)
	Prompted(ctx context.Context, parentID, prompt string) (analysis.Item, error)
	DetailNodes(ctx context.Context, parentID string) ([]analysis.Item, error)
}

// Config holds configuration for the pipeline.
type Config struct {
	Source Source
	Store  *graph.Store
	// PollInterval is the delay between root polls.
	PollInterval time.Duration
	// Expected is how many first-ring findings the root poll waits for.
	Expected int
	// LoadingInterval is how often placeholder progress text advances.
	LoadingInterval time.Duration
	Logger          *slog.Logger
}

// Pipeline binds backend items into placeholders. Each item is bound at
// most once and each node is populated at most once.
type Pipeline struct {
	src    Source
	store  *graph.Store
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	consumed  map[string]struct{} // backend item ids already bound
	populated map[string]struct{} // node ids already bound

	groupMu sync.Mutex
	group   *errgroup.Group
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Expected <= 0 {
		cfg.Expected = DefaultExpected
	}
	if cfg.LoadingInterval <= 0 {
		cfg.LoadingInterval = DefaultLoadingInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		src:       cfg.Source,
		store:     cfg.Store,
		cfg:       cfg,
		logger:    logger,
		consumed:  make(map[string]struct{}),
		populated: make(map[string]struct{}),
		group:     new(errgroup.Group),
	}
}

// Expected returns the number of first-ring findings the root poll waits for.
func (p *Pipeline) Expected() int {
	return p.cfg.Expected
}

// Go runs fn in the background. Errors are logged by the callers and
// surface again from the next Wait.
func (p *Pipeline) Go(fn func() error) {
	p.groupMu.Lock()
	defer p.groupMu.Unlock()
	p.group.Go(fn)
}

// Wait blocks until every background fetch started before the call has
// finished and returns the first error one of them reported. Each error is
// reported by one Wait only; fetches started while Wait blocks belong to
// the next one.
func (p *Pipeline) Wait() error {
	p.groupMu.Lock()
	g := p.group
	p.group = new(errgroup.Group)
	p.groupMu.Unlock()
	return g.Wait()
}

// ConsumedCount returns the number of distinct items bound so far.
func (p *Pipeline) ConsumedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.consumed)
}

// binding pairs a backend item with the placeholder it populates.
type binding struct {
	nodeID string
	item   analysis.Item
}

// bind commits every pairing in one store transform. Any pairing that
// cannot be applied aborts the whole batch and nothing is bound.
func (p *Pipeline) bind(pairs []binding) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.store.Update(func(g graph.Graph) (graph.Graph, error) {
		if len(pairs) == 0 {
			return g, errNoChange
		}
		batch := make(map[string]struct{}, len(pairs))
		for _, b := range pairs {
			if err := p.checkBindable(g, b, batch); err != nil {
				return g, err
			}
			next, err := graph.Bind(g, b.nodeID, b.item.ID, b.item.Finding())
			if err != nil {
				return g, err
			}
			g = next
			batch[b.item.ID] = struct{}{}
		}
		return g, nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, b := range pairs {
		p.consumed[b.item.ID] = struct{}{}
		p.populated[b.nodeID] = struct{}{}
	}
	return nil
}

var errNoChange = errors.New("no change")

// checkBindable reports whether b may be applied on top of g. batch holds
// the item ids already bound earlier in the same batch. Must be called with
// p.mu held.
func (p *Pipeline) checkBindable(g graph.Graph, b binding, batch map[string]struct{}) error {
	if b.item.ID == "" {
		return fmt.Errorf("%w: item has no id", ErrBindingMismatch)
	}
	if p.isConsumed(b.item.ID) {
		return fmt.Errorf("%w: item %s is already bound", ErrBindingMismatch, b.item.ID)
	}
	if _, dup := batch[b.item.ID]; dup {
		return fmt.Errorf("%w: item %s is repeated", ErrBindingMismatch, b.item.ID)
	}
	if _, ok := p.populated[b.nodeID]; ok {
		return fmt.Errorf("%w: %s", graph.ErrAlreadyPopulated, b.nodeID)
	}
	if _, ok := g.Node(b.nodeID); !ok {
		return fmt.Errorf("%w: %s", graph.ErrNodeNotFound, b.nodeID)
	}
	return nil
}

// isConsumed must be called with p.mu held.
func (p *Pipeline) isConsumed(itemID string) bool {
	_, ok := p.consumed[itemID]
	return ok
}

// Reset forgets every consumed item and populated node, for a new upload.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consumed = make(map[string]struct{})
	p.populated = make(map[string]struct{})
}
