// Package controller turns user intents (upload, click, explore, snapshot)
// into graph mutations and background fetches.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/insightgraph/internal/analysis"
	"github.com/leapstack-labs/insightgraph/internal/graph"
	"github.com/leapstack-labs/insightgraph/internal/layout"
	"github.com/leapstack-labs/insightgraph/internal/pipeline"
	"github.com/leapstack-labs/insightgraph/internal/state"
)

// FocusZoom is the zoom level used when a click recenters the viewport.
const FocusZoom = 0.95

// BroadCount is how many detail nodes a broad exploration creates.
const BroadCount = 3

// Sentinel errors.
var (
	ErrUpload          = errors.New("upload failed")
	ErrEmptyPrompt     = errors.New("prompt is empty")
	ErrNoSnapshotStore = errors.New("snapshots are not configured")
)

// Backend is the analysis service.
type Backend interface {
	pipeline.Source
	StartSession(ctx context.Context, filename string, data io.Reader, sessionID string) (analysis.Session, error)
}

// SnapshotStore persists graph documents.
type SnapshotStore interface {
	Save(ctx context.Context, key string, doc graph.Document) (string, error)
	Load(ctx context.Context, key string) (*state.Snapshot, error)
}

// Config holds configuration for the controller.
type Config struct {
	Backend Backend
	Store   *graph.Store
	// Snapshots is optional. Save and Restore fail without it.
	Snapshots SnapshotStore

	PollInterval    time.Duration
	Expected        int
	LoadingInterval time.Duration
	FanoutRadius    float64

	// Rand drives placement jitter. Defaults to math/rand/v2.
	Rand layout.Rand
	// NewID generates client node ids. Defaults to uuid.NewString.
	NewID  func() string
	Logger *slog.Logger
}

// Status is the one-line summary shown to the user.
type Status struct {
	Dataset  string `json:"dataset,omitempty"`
	Session  string `json:"session,omitempty"`
	Hub      string `json:"hub,omitempty"`
	Message  string `json:"message"`
	Failed   bool   `json:"failed"`
	Nodes    int    `json:"nodes"`
	Loading  int    `json:"loading"`
	Bound    int    `json:"bound"`
	Expected int    `json:"expected"`
}

// Controller is safe for concurrent use.
type Controller struct {
	store     *graph.Store
	pipe      *pipeline.Pipeline
	backend   Backend
	snapshots SnapshotStore
	radius    float64
	rng       layout.Rand
	newID     func() string
	logger    *slog.Logger

	mu      sync.Mutex
	bg      context.Context
	cancel  context.CancelFunc
	tickers sync.WaitGroup
	status  Status
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// New creates a controller over cfg.Store.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	store := cfg.Store
	if store == nil {
		store = graph.NewStore(logger)
	}
	rng := cfg.Rand
	if rng == nil {
		rng = globalRand{}
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	radius := cfg.FanoutRadius
	if radius <= 0 {
		radius = layout.DefaultRadius
	}

	pipe := pipeline.New(pipeline.Config{
		Source:          cfg.Backend,
		Store:           store,
		PollInterval:    cfg.PollInterval,
		Expected:        cfg.Expected,
		LoadingInterval: cfg.LoadingInterval,
		Logger:          logger,
	})

	bg, cancel := context.WithCancel(context.Background())
	return &Controller{
		store:     store,
		pipe:      pipe,
		backend:   cfg.Backend,
		snapshots: cfg.Snapshots,
		radius:    radius,
		rng:       rng,
		newID:     newID,
		logger:    logger,
		bg:        bg,
		cancel:    cancel,
		status:    Status{Message: "Upload a CSV file to start", Expected: pipe.Expected()},
	}
}

// Store returns the graph store the controller mutates.
func (c *Controller) Store() *graph.Store {
	return c.store
}

// Status returns the current status line and graph counters.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := c.status
	c.mu.Unlock()

	g := c.store.Snapshot()
	st.Nodes = g.Len()
	st.Loading = 0
	for _, n := range g.Nodes() {
		if n.Loading() {
			st.Loading++
		}
	}
	st.Bound = c.pipe.ConsumedCount()
	return st
}

func (c *Controller) setStatus(fn func(*Status)) {
	c.mu.Lock()
	fn(&c.status)
	c.mu.Unlock()
}

// background returns the context every fetch of the current graph runs
// under. It is cancelled when the graph is replaced.
func (c *Controller) background() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bg
}

// replaceGraph stops the background work of the current graph, installs g
// and returns the context for work on the new one. Must be called with
// c.mu held.
func (c *Controller) replaceGraph(g graph.Graph) context.Context {
	c.cancel()
	c.pipe.Reset()
	c.store.Reset(g)

	c.bg, c.cancel = context.WithCancel(context.Background())
	bg := c.bg
	c.tickers.Add(1)
	go func() {
		defer c.tickers.Done()
		c.pipe.RunLoadingTicker(bg)
	}()
	return bg
}

// Wait blocks until the root poll and every pending fetch have finished and
// returns the first failure reported since the previous Wait.
func (c *Controller) Wait() error {
	return c.pipe.Wait()
}

// Close stops all background work and waits for it to drain.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()

	c.tickers.Wait()
	if err := c.pipe.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("background fetch: %w", err)
	}
	return nil
}
