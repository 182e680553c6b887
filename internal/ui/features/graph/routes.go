package graph

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/insightgraph/internal/controller"
	"github.com/leapstack-labs/insightgraph/internal/ui/notifier"
)

// SetupRoutes registers the graph feature routes.
func SetupRoutes(
	router chi.Router,
	ctrl *controller.Controller,
	sessionStore sessions.Store,
	notify *notifier.Notifier,
	previewRows int,
	logger *slog.Logger,
) error {
	handlers := NewHandlers(ctrl, sessionStore, notify, previewRows, logger)

	// SSE route (live updates)
	router.Get("/graph/updates", handlers.GraphUpdates)

	router.Route("/api", func(r chi.Router) {
		r.Get("/graph", handlers.Graph)
		r.Get("/status", handlers.Status)
		r.Post("/upload", handlers.Upload)
		r.Put("/viewport", handlers.Viewport)
		r.Delete("/highlight", handlers.ClearHighlight)

		r.Route("/nodes/{id}", func(r chi.Router) {
			r.Post("/click", handlers.Click)
			r.Post("/toggle", handlers.Toggle)
			r.Post("/explore", handlers.Explore)
			r.Post("/questions/{qid}", handlers.Question)
			r.Post("/prompt", handlers.Prompt)
		})

		r.Post("/snapshot", handlers.SaveSnapshot)
		r.Post("/snapshot/restore", handlers.RestoreSnapshot)
	})

	return nil
}
