// Package config provides configuration management for the insightgraph CLI.
//
// Values are layered from defaults, an insightgraph.yaml file, INSIGHTGRAPH_
// environment variables and command-line flags, in increasing precedence.
package config

import "time"

// UIConfig holds configuration for the UI server.
type UIConfig struct {
	Host          string `koanf:"host"`
	Port          int    `koanf:"port"`
	AutoOpen      bool   `koanf:"auto_open"`
	WatchDir      string `koanf:"watch_dir"`
	SessionSecret string `koanf:"session_secret"`
	Dev           bool   `koanf:"dev"`
}

// DefaultUIConfig returns a UIConfig with default values.
func DefaultUIConfig() *UIConfig {
	return &UIConfig{
		Host:          DefaultHost,
		Port:          DefaultPort,
		AutoOpen:      true,
		SessionSecret: DefaultSessionSecret,
	}
}

// GetUIConfig returns the UI config with defaults applied for any unset values.
func (c *Config) GetUIConfig() *UIConfig {
	if c.UI == nil {
		return DefaultUIConfig()
	}
	ui := c.UI
	if ui.Host == "" {
		ui.Host = DefaultHost
	}
	if ui.Port == 0 {
		ui.Port = DefaultPort
	}
	if ui.SessionSecret == "" {
		ui.SessionSecret = DefaultSessionSecret
	}
	return ui
}

// Config holds all CLI configuration options.
type Config struct {
	BackendURL       string        `koanf:"backend_url"`
	StatePath        string        `koanf:"state_path"`
	PollInterval     time.Duration `koanf:"poll_interval"`
	ExpectedInsights int           `koanf:"expected_insights"`
	FanoutRadius     float64       `koanf:"fanout_radius"`
	RequestTimeout   time.Duration `koanf:"request_timeout"`
	PreviewRows      int           `koanf:"preview_rows"`
	LogLevel         string        `koanf:"log_level"`
	LogFormat        string        `koanf:"log_format"`
	Verbose          bool          `koanf:"verbose"`
	OutputFormat     string        `koanf:"output"`
	UI               *UIConfig     `koanf:"ui"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultBackendURL       = "http://localhost:8000"
	DefaultStateFile        = ".insightgraph/state.db"
	DefaultPollInterval     = time.Second
	DefaultExpectedInsights = 5
	DefaultFanoutRadius     = 800.0
	DefaultRequestTimeout   = 60 * time.Second
	DefaultPreviewRows      = 10
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultOutput           = "auto" // Auto-detect: TTY=text, non-TTY=markdown

	DefaultHost          = "localhost"
	DefaultPort          = 8765
	DefaultSessionSecret = "insightgraph-dev-secret-change-in-production" //nolint:gosec
)
