// Package ui serves the insight graph canvas and its API.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/insightgraph/internal/controller"
	"github.com/leapstack-labs/insightgraph/internal/dataset"
	"github.com/leapstack-labs/insightgraph/internal/ui/notifier"
	"github.com/leapstack-labs/insightgraph/internal/ui/router"
)

// watchDebounce coalesces the bursts of write events a file copy produces.
const watchDebounce = 100 * time.Millisecond

// Server is the main UI server.
type Server struct {
	ctrl         *controller.Controller
	sessionStore *sessions.CookieStore
	notifier     *notifier.Notifier
	addr         string
	watchDir     string
	previewRows  int
	dev          bool
	logger       *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// Config holds configuration for the UI server.
type Config struct {
	Controller    *controller.Controller
	Host          string
	Port          int
	SessionSecret string
	// WatchDir, when set, is an inbox: CSV files created or written there
	// are uploaded.
	WatchDir    string
	PreviewRows int
	Dev         bool
	Logger      *slog.Logger
}

// NewServer creates a new UI server and subscribes it to graph changes.
func NewServer(cfg Config) *Server {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	notify := notifier.New()
	cfg.Controller.Store().Subscribe(notify)

	return &Server{
		ctrl:         cfg.Controller,
		sessionStore: sessionStore,
		notifier:     notify,
		addr:         net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		watchDir:     cfg.WatchDir,
		previewRows:  cfg.PreviewRows,
		dev:          cfg.Dev,
		logger:       logger,
	}
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// Handler builds the router with middleware and every route.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	if err := router.SetupRoutes(r, s.ctrl, s.sessionStore, s.notifier, router.Options{
		PreviewRows: s.previewRows,
		IsDev:       s.dev,
		Logger:      s.logger,
	}); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Addr returns the address the server listens on once Serve has bound it.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve starts the UI server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("starting UI server", "addr", "http://"+ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watchDir != "" {
		eg.Go(func() error {
			return s.watchInbox(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watchInbox uploads CSV files dropped into the watch directory.
func (s *Server) watchInbox(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := os.MkdirAll(s.watchDir, 0o750); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}
	if err := watcher.Add(s.watchDir); err != nil {
		return fmt.Errorf("watch %s: %w", s.watchDir, err)
	}
	s.logger.Info("watching inbox", "dir", s.watchDir)

	var (
		debounceMu sync.Mutex
		timers     = make(map[string]*time.Timer)
	)
	defer func() {
		debounceMu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		debounceMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !isCSV(event.Name) {
				continue
			}

			path := event.Name
			debounceMu.Lock()
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(watchDebounce, func() {
				debounceMu.Lock()
				delete(timers, path)
				debounceMu.Unlock()
				s.uploadFile(ctx, path)
			})
			debounceMu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

func (s *Server) uploadFile(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	ds, err := dataset.LoadFile(path, s.previewRows)
	if err != nil {
		_ = s.ctrl.RejectUpload(filepath.Base(path), err)
		return
	}
	s.logger.Info("file dropped, uploading", "file", path)
	if err := s.ctrl.Upload(ctx, ds); err != nil {
		s.logger.Error("upload from inbox failed", "file", path, "error", err)
	}
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}
