package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/insightgraph/internal/cli/output"
	"github.com/leapstack-labs/insightgraph/internal/state"
)

// SnapshotOptions holds options shared by the snapshot subcommands.
type SnapshotOptions struct {
	Key    string
	ID     string
	Limit  int
	Keep   int
	Format string
	File   string
}

// NewSnapshotCommand creates the snapshot command and its subcommands.
func NewSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect saved graph snapshots",
		Long: `Inspect the graph snapshots stored in the state database.

The canvas saves to and restores from a single current snapshot. Every save
is also kept in a history that can be listed, exported and pruned.`,
	}

	cmd.AddCommand(newSnapshotListCommand())
	cmd.AddCommand(newSnapshotShowCommand())
	cmd.AddCommand(newSnapshotHistoryCommand())
	cmd.AddCommand(newSnapshotExportCommand())
	cmd.AddCommand(newSnapshotPruneCommand())
	return cmd
}

func newSnapshotListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStateStore(cmd, func(cmdCtx *CommandContext, store *state.SQLiteStore) error {
				summaries, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				return renderSummaries(cmdCtx.Renderer, "Snapshots", summaries)
			})
		},
	}
}

func newSnapshotShowCommand() *cobra.Command {
	opts := &SnapshotOptions{}
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the nodes of a snapshot",
		Example: `  # Show the current snapshot
  insightgraph snapshot show

  # Show an older save from the history
  insightgraph snapshot show --id 2b1c...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStateStore(cmd, func(cmdCtx *CommandContext, store *state.SQLiteStore) error {
				snap, err := loadSnapshot(cmd, store, opts)
				if err != nil {
					return err
				}

				r := cmdCtx.Renderer
				if r.EffectiveMode() == output.ModeJSON {
					return r.JSON(snap)
				}
				r.Header(1, "Snapshot "+snap.ID)
				r.KeyValue("Key", snap.Key)
				r.KeyValue("Saved", snap.SavedAt.Local().Format(time.DateTime))
				r.KeyValue("Nodes", strconv.Itoa(snap.NodeCount))
				r.KeyValue("Edges", strconv.Itoa(snap.EdgeCount))
				r.Println("")
				renderNodes(r, snap.Document)
				return nil
			})
		},
	}
	addSnapshotRefFlags(cmd, opts)
	return cmd
}

func newSnapshotHistoryCommand() *cobra.Command {
	opts := &SnapshotOptions{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List every save of a snapshot key, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStateStore(cmd, func(cmdCtx *CommandContext, store *state.SQLiteStore) error {
				summaries, err := store.History(cmd.Context(), opts.Key, opts.Limit)
				if err != nil {
					return err
				}
				return renderSummaries(cmdCtx.Renderer, "History of "+opts.Key, summaries)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Key, "key", state.DefaultKey, "Snapshot key")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Maximum entries to show (0 = all)")
	return cmd
}

func newSnapshotExportCommand() *cobra.Command {
	opts := &SnapshotOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a snapshot as JSON or YAML",
		Example: `  # Export the current snapshot as YAML
  insightgraph snapshot export --format yaml --file flow.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStateStore(cmd, func(_ *CommandContext, store *state.SQLiteStore) error {
				snap, err := loadSnapshot(cmd, store, opts)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if opts.File != "" {
					f, err := os.Create(opts.File)
					if err != nil {
						return fmt.Errorf("create %s: %w", opts.File, err)
					}
					defer func() { _ = f.Close() }()
					w = f
				}
				return exportSnapshot(w, snap, opts.Format)
			})
		},
	}
	addSnapshotRefFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.Format, "format", "json", "Export format (json|yaml)")
	cmd.Flags().StringVar(&opts.File, "file", "", "Write to a file instead of stdout")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func newSnapshotPruneCommand() *cobra.Command {
	opts := &SnapshotOptions{}
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old history entries of a snapshot key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStateStore(cmd, func(cmdCtx *CommandContext, store *state.SQLiteStore) error {
				n, err := store.Prune(cmd.Context(), opts.Key, opts.Keep)
				if err != nil {
					return err
				}
				cmdCtx.Renderer.Success(fmt.Sprintf("Pruned %d history entries of %s", n, opts.Key))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Key, "key", state.DefaultKey, "Snapshot key")
	cmd.Flags().IntVar(&opts.Keep, "keep", 10, "Number of most recent entries to keep")
	return cmd
}

func addSnapshotRefFlags(cmd *cobra.Command, opts *SnapshotOptions) {
	cmd.Flags().StringVar(&opts.Key, "key", state.DefaultKey, "Snapshot key")
	cmd.Flags().StringVar(&opts.ID, "id", "", "Snapshot id from the history (overrides --key)")
}

func withStateStore(cmd *cobra.Command, fn func(*CommandContext, *state.SQLiteStore) error) error {
	cmdCtx := NewCommandContext(cmd)
	store, err := cmdCtx.OpenStateStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(cmdCtx, store)
}

func loadSnapshot(cmd *cobra.Command, store *state.SQLiteStore, opts *SnapshotOptions) (*state.Snapshot, error) {
	if opts.ID != "" {
		return store.LoadByID(cmd.Context(), opts.ID)
	}
	return store.Load(cmd.Context(), opts.Key)
}

func renderSummaries(r *output.Renderer, title string, summaries []state.Summary) error {
	if r.EffectiveMode() == output.ModeJSON {
		if summaries == nil {
			summaries = []state.Summary{}
		}
		return r.JSON(summaries)
	}

	r.Header(1, fmt.Sprintf("%s (%d)", title, len(summaries)))
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.ID,
			s.Key,
			strconv.Itoa(s.NodeCount),
			strconv.Itoa(s.EdgeCount),
			s.SavedAt.Local().Format(time.DateTime),
		})
	}
	r.Table([]string{"ID", "Key", "Nodes", "Edges", "Saved"}, rows)
	return nil
}

func exportSnapshot(w io.Writer, snap *state.Snapshot, format string) error {
	switch format {
	case "json":
		return output.NewRendererWithTTY(w, io.Discard, false, output.ModeJSON).JSON(snap)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown export format %q (want json or yaml)", format)
	}
}
