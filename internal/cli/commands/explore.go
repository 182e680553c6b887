package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/insightgraph/internal/cli/output"
	"github.com/leapstack-labs/insightgraph/internal/controller"
	"github.com/leapstack-labs/insightgraph/internal/dataset"
	"github.com/leapstack-labs/insightgraph/internal/graph"
)

// ExploreOptions holds options for the explore command.
type ExploreOptions struct {
	Timeout time.Duration
	Broad   bool
	Save    bool
}

// exploreResult is the JSON output of the explore command.
type exploreResult struct {
	Status     controller.Status `json:"status"`
	SnapshotID string            `json:"snapshot_id,omitempty"`
	Graph      graph.Document    `json:"graph"`
}

// NewExploreCommand creates the explore command.
func NewExploreCommand() *cobra.Command {
	opts := &ExploreOptions{}

	cmd := &cobra.Command{
		Use:   "explore <file.csv>",
		Short: "Upload a CSV and print the insights found",
		Long: `Upload a CSV file to the analysis backend without the browser canvas,
wait for the first ring of insights and print them.

With --broad every insight is explored once more and the detail findings
are printed too. With --save the resulting graph is stored as the current
snapshot, ready to be restored in the canvas.`,
		Example: `  # Print the insights for a dataset
  insightgraph explore sales.csv

  # Explore each insight and save the graph
  insightgraph explore sales.csv --broad --save

  # Output as JSON
  insightgraph explore sales.csv --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplore(cmd, args[0], opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "Maximum time to wait for findings")
	cmd.Flags().BoolVar(&opts.Broad, "broad", false, "Explore every insight once")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "Save the resulting graph as a snapshot")

	return cmd
}

func runExplore(cmd *cobra.Command, path string, opts *ExploreOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	ds, err := dataset.LoadFile(path, cmdCtx.Cfg.PreviewRows)
	if err != nil {
		return err
	}

	var snapshots controller.SnapshotStore
	if opts.Save {
		store, err := cmdCtx.OpenStateStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		snapshots = store
	}

	ctrl, err := cmdCtx.NewController(snapshots)
	if err != nil {
		return err
	}
	defer func() { _ = ctrl.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	if err := ctrl.Upload(ctx, ds); err != nil {
		return err
	}
	settled := waitSettled(ctx, ctrl, cmdCtx)

	if opts.Broad && settled {
		for _, n := range ctrl.Store().Snapshot().Nodes() {
			if n.Kind != graph.KindInsight || n.Loading() {
				continue
			}
			if err := ctrl.Click(n.ID, false); err != nil {
				return err
			}
			if _, err := ctrl.ExploreBroad(n.ID); err != nil {
				return fmt.Errorf("explore %s: %w", n.Title(), err)
			}
		}
		settled = waitSettled(ctx, ctrl, cmdCtx)
	}

	result := exploreResult{Status: ctrl.Status(), Graph: graph.ToDocument(ctrl.Store().Snapshot())}
	if opts.Save {
		// The wait may have used up ctx.
		id, err := ctrl.Save(cmd.Context())
		if err != nil {
			return err
		}
		result.SnapshotID = id
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(result)
	}

	r.Header(1, ds.Name)
	st := result.Status
	status := output.StatusSuccess
	if !settled || st.Loading > 0 {
		status = output.StatusWarning
	}
	r.StatusLine(status, fmt.Sprintf("%d of %d insights bound, %d nodes still loading", st.Bound, st.Expected, st.Loading))
	r.Println("")
	renderNodes(r, result.Graph)

	if result.SnapshotID != "" {
		r.Println("")
		r.Success("Snapshot saved: " + result.SnapshotID)
	}
	return nil
}

// waitSettled waits for background fetches, reporting a timeout or a
// failed fetch as a warning.
func waitSettled(ctx context.Context, ctrl *controller.Controller, cmdCtx *CommandContext) bool {
	done := make(chan error, 1)
	go func() { done <- ctrl.Wait() }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			cmdCtx.Logger.Warn("fetch failed", "error", err)
			cmdCtx.Renderer.Warning(err.Error())
		}
		return true
	case <-ctx.Done():
		cmdCtx.Renderer.Warning("timed out waiting for findings")
		return false
	}
}

// renderNodes prints every non-root node as a table row.
func renderNodes(r *output.Renderer, doc graph.Document) {
	rows := make([][]string, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if n.Kind == graph.KindRoot {
			continue
		}
		rows = append(rows, []string{n.ID, string(n.Kind), string(n.Phase), n.Title})
	}
	r.Table([]string{"ID", "Kind", "Phase", "Title"}, rows)
}
