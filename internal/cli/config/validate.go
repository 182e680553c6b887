package config

import (
	"fmt"
	"net/url"
	"slices"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
	validOutputs    = []string{"auto", "text", "markdown", "json"}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url is required")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend_url must be an http(s) URL, got %q", c.BackendURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.ExpectedInsights <= 0 {
		return fmt.Errorf("expected_insights must be positive")
	}
	if c.FanoutRadius <= 0 {
		return fmt.Errorf("fanout_radius must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.PreviewRows < 0 {
		return fmt.Errorf("preview_rows must not be negative")
	}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("unknown log_level %q (want one of %v)", c.LogLevel, validLogLevels)
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		return fmt.Errorf("unknown log_format %q (want one of %v)", c.LogFormat, validLogFormats)
	}
	if c.OutputFormat != "" && !slices.Contains(validOutputs, c.OutputFormat) {
		return fmt.Errorf("unknown output %q (want one of %v)", c.OutputFormat, validOutputs)
	}
	if c.UI != nil && (c.UI.Port < 0 || c.UI.Port > 65535) {
		return fmt.Errorf("ui.port out of range: %d", c.UI.Port)
	}
	return nil
}
