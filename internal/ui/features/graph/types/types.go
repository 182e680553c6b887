// Package types provides request and response types for the graph feature.
package types //nolint:revive // intentional: imported with alias graphtypes

import (
	"github.com/leapstack-labs/insightgraph/internal/controller"
	"github.com/leapstack-labs/insightgraph/internal/graph"
)

// GraphSignals is the datastar signal payload pushed on every change.
type GraphSignals struct {
	Revision uint64            `json:"revision"`
	Graph    graph.Document    `json:"graph"`
	Status   controller.Status `json:"status"`
}

// PromptSignals carries the free-text question typed under a finding.
type PromptSignals struct {
	Prompt string `json:"prompt"`
}

// ViewportRequest is a pan or zoom reported by the canvas.
type ViewportRequest struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// StatusResponse is the status line plus any pending flash messages.
type StatusResponse struct {
	controller.Status
	Flashes []string `json:"flashes,omitempty"`
}

// PlaceholdersResponse lists nodes created by an exploration.
type PlaceholdersResponse struct {
	Placeholders []string `json:"placeholders"`
}

// SnapshotResponse is returned by a save.
type SnapshotResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}
