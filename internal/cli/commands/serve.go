package commands

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/insightgraph/internal/ui"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Host      string
	Port      int
	NoBrowser bool
	WatchDir  string
	Dev       bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"ui"},
		Short:   "Start the insight graph canvas",
		Long: `Start a local web server hosting the insight graph canvas.

Upload a CSV file in the browser to ask the analysis backend for insights.
Findings appear around the dataset as they arrive, and each one can be
explored further. The graph can be saved to and restored from the state
database.

With --watch-dir, CSV files dropped into the directory are uploaded as well.`,
		Example: `  # Start on the default port
  insightgraph serve

  # Start on a custom port without opening a browser
  insightgraph serve --port 3000 --no-browser

  # Upload every CSV copied into ./inbox
  insightgraph serve --watch-dir ./inbox`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "Host to bind (default: localhost)")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: 8765)")
	cmd.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "Don't auto-open browser")
	cmd.Flags().StringVar(&opts.WatchDir, "watch-dir", "", "Upload CSV files dropped into this directory")
	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "Serve assets from disk and enable live reload")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg, logger := cmdCtx.Cfg, cmdCtx.Logger

	// CLI flags override config file
	uiCfg := cfg.GetUIConfig()
	host, port, watchDir := uiCfg.Host, uiCfg.Port, uiCfg.WatchDir
	if opts.Host != "" {
		host = opts.Host
	}
	if opts.Port != 0 {
		port = opts.Port
	}
	if opts.WatchDir != "" {
		watchDir = opts.WatchDir
	}
	autoOpen := uiCfg.AutoOpen && !opts.NoBrowser

	store, err := cmdCtx.OpenStateStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctrl, err := cmdCtx.NewController(store)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}
	defer func() { _ = ctrl.Close() }()

	server := ui.NewServer(ui.Config{
		Controller:    ctrl,
		Host:          host,
		Port:          port,
		SessionSecret: uiCfg.SessionSecret,
		WatchDir:      watchDir,
		PreviewRows:   cfg.PreviewRows,
		Dev:           opts.Dev || uiCfg.Dev,
		Logger:        logger,
	})

	url := fmt.Sprintf("http://%s:%d", host, port)
	if autoOpen {
		go openBrowser(url)
	}

	r := cmdCtx.Renderer
	r.Printf("Starting insight graph on %s\n", url)
	r.Println(r.Muted("Backend: " + cfg.BackendURL))
	r.Println("Press Ctrl+C to stop")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	return server.Serve(ctx)
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
