package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/insightgraph/internal/analysis"
	"github.com/leapstack-labs/insightgraph/internal/cli/config"
	"github.com/leapstack-labs/insightgraph/internal/cli/output"
	"github.com/leapstack-labs/insightgraph/internal/controller"
	"github.com/leapstack-labs/insightgraph/internal/state"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.OutputMode(cfg.OutputFormat)),
	}
}

// OpenStateStore opens and migrates the snapshot database. The caller
// must Close it.
func (c *CommandContext) OpenStateStore() (*state.SQLiteStore, error) {
	return openStateStore(c.Cfg.StatePath)
}

// NewController wires the analysis client and snapshots into a controller.
// snapshots may be nil.
func (c *CommandContext) NewController(snapshots controller.SnapshotStore) (*controller.Controller, error) {
	client, err := analysis.NewClient(analysis.Config{
		BaseURL: c.Cfg.BackendURL,
		Timeout: c.Cfg.RequestTimeout,
		Logger:  c.Logger,
	})
	if err != nil {
		return nil, err
	}
	return controller.New(controller.Config{
		Backend:      client,
		Snapshots:    snapshots,
		PollInterval: c.Cfg.PollInterval,
		Expected:     c.Cfg.ExpectedInsights,
		FanoutRadius: c.Cfg.FanoutRadius,
		Logger:       c.Logger,
	}), nil
}

// getConfig returns the current configuration, or defaults when no
// configuration has been loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		BackendURL:       config.DefaultBackendURL,
		StatePath:        config.DefaultStateFile,
		PollInterval:     config.DefaultPollInterval,
		ExpectedInsights: config.DefaultExpectedInsights,
		FanoutRadius:     config.DefaultFanoutRadius,
		RequestTimeout:   config.DefaultRequestTimeout,
		PreviewRows:      config.DefaultPreviewRows,
		LogLevel:         config.DefaultLogLevel,
		LogFormat:        config.DefaultLogFormat,
		OutputFormat:     config.DefaultOutput,
	}
}

func openStateStore(path string) (*state.SQLiteStore, error) {
	if dir := filepath.Dir(path); path != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := state.NewSQLiteStore()
	if err := store.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}
	return store, nil
}
