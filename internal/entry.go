// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/jakebiddle/notegraph/internal/api"
	"github.com/jakebiddle/notegraph/internal/graph"
	"github.com/jakebiddle/notegraph/internal/index"
	"github.com/jakebiddle/notegraph/internal/mcpserver"
	"github.com/jakebiddle/notegraph/internal/noteservice"
	"github.com/jakebiddle/notegraph/internal/proposals"
	"github.com/jakebiddle/notegraph/internal/relations"
	"github.com/jakebiddle/notegraph/internal/retriever"
	"github.com/jakebiddle/notegraph/internal/settings"
	"github.com/jakebiddle/notegraph/internal/sse"
	"github.com/jakebiddle/notegraph/internal/storage"
	"github.com/jakebiddle/notegraph/internal/vault"
	"github.com/jakebiddle/notegraph/internal/watcher"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. Stdout carries the MCP
	// protocol in MCP mode, so logs go to stderr there.
	logOut := io.Writer(os.Stdout)
	if app.mcpMode {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Runtime-mutable graph settings, seeded from the static config.
	settingsStore := settings.NewStore(cfg.Graph.Settings())

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// In-memory vault cache.
	vaultStore := vault.New(store, settingsStore, logger)
	if err := vaultStore.Load(); err != nil {
		return fmt.Errorf("load vault: %w", err)
	}

	// Entity graph.
	graphMgr := graph.NewManager(vaultStore, settingsStore, logger)
	defer graphMgr.Close()
	if err := graphMgr.Rebuild(ctx); err != nil {
		logger.Warn("initial graph build failed", slog.String("error", err.Error()))
	}

	// SSE broker with graph size stats.
	broker := sse.NewBroker(2*time.Second, func() (int, int) {
		return graphMgr.NodeCount(), graphMgr.EdgeCount()
	})
	defer broker.Close()

	// Services.
	augmenter := retriever.NewAugmenter(graphMgr, settingsStore, db, store, logger)
	svc := noteservice.NewService(store, db, vaultStore, graphMgr, augmenter)
	proposalStore := proposals.NewStore(logger)
	relationSvc := relations.NewService(vaultStore, store, settingsStore, logger)

	if app.mcpMode {
		logger.Info("Serving MCP over stdio")
		return mcpserver.New(svc, graphMgr, proposalStore, settingsStore).ServeStdio()
	}

	// Announce the startup build to early subscribers.
	broker.PublishGraphRebuilt()

	apiRouter := api.NewRouter(svc, graphMgr, relationSvc, proposalStore, settingsStore,
		cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, broker.PublishGraphRebuilt)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !graphMgr.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"building"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		w := watcher.New(db, store, vaultStore, graphMgr, cfg.Vault.Path, logger, func(kind, path string) {
			broker.PublishNoteEvent(kind, path)
		})
		if err := w.Run(gCtx); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
