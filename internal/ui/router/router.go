// Package router sets up HTTP routes for the UI server.
package router

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/insightgraph/internal/controller"
	graphFeature "github.com/leapstack-labs/insightgraph/internal/ui/features/graph"
	"github.com/leapstack-labs/insightgraph/internal/ui/notifier"
	"github.com/leapstack-labs/insightgraph/internal/ui/resources"
)

// Options configures SetupRoutes.
type Options struct {
	PreviewRows int
	IsDev       bool
	Logger      *slog.Logger
}

// SetupRoutes configures all routes for the UI server.
func SetupRoutes(
	router chi.Router,
	ctrl *controller.Controller,
	sessionStore sessions.Store,
	notify *notifier.Notifier,
	opts Options,
) error {
	if opts.IsDev {
		setupReload(router)
	}

	router.Handle("/static/*", resources.Handler())
	router.Method(http.MethodGet, "/", resources.Index())

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return graphFeature.SetupRoutes(router, ctrl, sessionStore, notify, opts.PreviewRows, opts.Logger)
}

// setupReload lets a dev watcher reload open pages after a rebuild.
func setupReload(router chi.Router) {
	reloadChan := make(chan struct{}, 1)
	var hotReloadOnce sync.Once

	router.Get("/reload", func(w http.ResponseWriter, r *http.Request) {
		sse := datastar.NewSSE(w, r)
		reload := func() { _ = sse.ExecuteScript("window.location.reload()") }
		hotReloadOnce.Do(reload)
		select {
		case <-reloadChan:
			reload()
		case <-r.Context().Done():
		}
	})

	router.Get("/hotreload", func(w http.ResponseWriter, _ *http.Request) {
		select {
		case reloadChan <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}
