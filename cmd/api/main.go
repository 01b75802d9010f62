package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sphinx-ai/internal/config"
	"sphinx-ai/internal/feed"
	"sphinx-ai/internal/http"
	"sphinx-ai/internal/indexclient"
	"sphinx-ai/internal/llm"
	"sphinx-ai/internal/notecache"
	"sphinx-ai/internal/rag"
	"sphinx-ai/internal/service"
	"sphinx-ai/internal/storage"
	"sphinx-ai/internal/syncer"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	noteRepo := storage.NewNoteRepo(db)
	cache := notecache.New()

	// Index service client and per-user sync coordination
	index := indexclient.NewHTTPClient(cfg.IndexServiceURL)
	coordinator := syncer.New(cache, noteRepo, index)
	slog.Info("Index service client initialized", "url", cfg.IndexServiceURL)

	notesService := service.NewNotesService(noteRepo, cache, coordinator)
	ragEngine := rag.NewEngine(cache, noteRepo, coordinator, index)

	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)
	feedGenerator := feed.NewGenerator(noteRepo, llmClient)

	router := http.NewRouter(&http.Deps{
		DB:            db,
		NotesService:  notesService,
		RAGEngine:     ragEngine,
		FeedGenerator: feedGenerator,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &nethttp.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting API server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("API server failed: %v", err)
	}
	slog.Info("Server stopped")
}
