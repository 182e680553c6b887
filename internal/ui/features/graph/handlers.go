// Package graph provides the insight graph API and its live update stream.
package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/insightgraph/internal/controller"
	"github.com/leapstack-labs/insightgraph/internal/dataset"
	"github.com/leapstack-labs/insightgraph/internal/graph"
	"github.com/leapstack-labs/insightgraph/internal/state"
	graphtypes "github.com/leapstack-labs/insightgraph/internal/ui/features/graph/types"
	"github.com/leapstack-labs/insightgraph/internal/ui/notifier"
)

// SessionName is the cookie holding flash messages.
const SessionName = "insightgraph"

// maxUploadMemory is the multipart memory limit before spilling to disk.
const maxUploadMemory = 32 << 20

// Handlers provides HTTP handlers for the graph feature.
type Handlers struct {
	ctrl         *controller.Controller
	sessionStore sessions.Store
	notifier     *notifier.Notifier
	previewRows  int
	logger       *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ctrl *controller.Controller, sessionStore sessions.Store, notify *notifier.Notifier, previewRows int, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		ctrl:         ctrl,
		sessionStore: sessionStore,
		notifier:     notify,
		previewRows:  previewRows,
		logger:       logger,
	}
}

// Graph returns the current graph document.
func (h *Handlers) Graph(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, graph.ToDocument(h.ctrl.Store().Snapshot()))
}

// GraphUpdates streams the graph as datastar signals: once on connect and
// again after every change.
func (h *Handlers) GraphUpdates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(updates)

	if err := sse.MarshalAndPatchSignals(h.signals()); err != nil {
		_ = sse.ConsoleError(err)
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			if err := sse.MarshalAndPatchSignals(h.signals()); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

func (h *Handlers) signals() graphtypes.GraphSignals {
	store := h.ctrl.Store()
	return graphtypes.GraphSignals{
		Revision: store.Revision(),
		Graph:    graph.ToDocument(store.Snapshot()),
		Status:   h.ctrl.Status(),
	}
}

// Upload reads a CSV from the multipart field "file" and starts a new
// analysis.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}
	defer func() { _ = f.Close() }()

	ds, err := dataset.Load(hdr.Filename, f, h.previewRows)
	if err != nil {
		err = h.ctrl.RejectUpload(hdr.Filename, err)
		h.flash(w, r, h.ctrl.Status().Message)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.ctrl.Upload(r.Context(), ds); err != nil {
		h.logger.Error("upload failed", "file", hdr.Filename, "error", err)
		h.flash(w, r, h.ctrl.Status().Message)
		writeError(w, statusFor(err), err)
		return
	}
	h.flash(w, r, h.ctrl.Status().Message)
	writeJSON(w, http.StatusAccepted, h.ctrl.Status())
}

// Status returns the status line and drains pending flash messages.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	resp := graphtypes.StatusResponse{Status: h.ctrl.Status()}

	if session, err := h.sessionStore.Get(r, SessionName); err == nil {
		for _, f := range session.Flashes() {
			if s, ok := f.(string); ok {
				resp.Flashes = append(resp.Flashes, s)
			}
		}
		if err := session.Save(r, w); err != nil {
			h.logger.Warn("failed to save session", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Click highlights a node. With control=true the viewport is kept.
func (h *Handlers) Click(w http.ResponseWriter, r *http.Request) {
	onControl, _ := strconv.ParseBool(r.URL.Query().Get("control"))
	if err := h.ctrl.Click(chi.URLParam(r, "id"), onControl); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearHighlight handles a click on the empty canvas.
func (h *Handlers) ClearHighlight(w http.ResponseWriter, _ *http.Request) {
	if err := h.ctrl.ClearHighlight(); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Toggle expands or collapses a node.
func (h *Handlers) Toggle(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.ToggleExpanded(chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Explore starts a broad exploration of a node.
func (h *Handlers) Explore(w http.ResponseWriter, r *http.Request) {
	ids, err := h.ctrl.ExploreBroad(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, graphtypes.PlaceholdersResponse{Placeholders: ids})
}

// Question asks one of a node's suggested questions.
func (h *Handlers) Question(w http.ResponseWriter, r *http.Request) {
	id, err := h.ctrl.AskQuestion(chi.URLParam(r, "id"), chi.URLParam(r, "qid"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, graphtypes.PlaceholdersResponse{Placeholders: []string{id}})
}

// Prompt asks a free-text question about a node.
func (h *Handlers) Prompt(w http.ResponseWriter, r *http.Request) {
	var signals graphtypes.PromptSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read signals: %w", err))
		return
	}
	id, err := h.ctrl.AskPrompt(chi.URLParam(r, "id"), signals.Prompt)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, graphtypes.PlaceholdersResponse{Placeholders: []string{id}})
}

// Viewport records a pan or zoom.
func (h *Handlers) Viewport(w http.ResponseWriter, r *http.Request) {
	var req graphtypes.ViewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode viewport: %w", err))
		return
	}
	if err := h.ctrl.SetViewport(graph.Viewport{X: req.X, Y: req.Y, Zoom: req.Zoom}); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveSnapshot stores the current graph.
func (h *Handlers) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := h.ctrl.Save(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, graphtypes.SnapshotResponse{ID: id})
}

// RestoreSnapshot replaces the graph with the saved one.
func (h *Handlers) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Restore(r.Context()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, graph.ToDocument(h.ctrl.Store().Snapshot()))
}

func (h *Handlers) flash(w http.ResponseWriter, r *http.Request, msg string) {
	session, err := h.sessionStore.Get(r, SessionName)
	if err != nil {
		// A cookie signed with an old secret; Get still returns a fresh session.
		h.logger.Debug("discarding invalid session", "error", err)
	}
	if session == nil {
		return
	}
	session.AddFlash(msg)
	if err := session.Save(r, w); err != nil {
		h.logger.Warn("failed to save session", "error", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, graph.ErrNodeNotFound),
		errors.Is(err, graph.ErrQuestionNotFound),
		errors.Is(err, state.ErrNoSnapshot):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrNodeLoading),
		errors.Is(err, graph.ErrNotHighlighted),
		errors.Is(err, graph.ErrNotExplorable):
		return http.StatusConflict
	case errors.Is(err, controller.ErrEmptyPrompt):
		return http.StatusUnprocessableEntity
	case errors.Is(err, controller.ErrUpload):
		return http.StatusBadGateway
	case errors.Is(err, controller.ErrNoSnapshotStore):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, graphtypes.ErrorResponse{Error: err.Error()})
}
