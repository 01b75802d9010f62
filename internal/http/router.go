// Package http wires the HTTP routes and middleware for the notes API.
package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"sphinx-ai/internal/feed"
	"sphinx-ai/internal/handlers"
	"sphinx-ai/internal/rag"
	"sphinx-ai/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	DB            *sql.DB
	NotesService  *service.NotesService
	RAGEngine     rag.Engine
	FeedGenerator *feed.Generator
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         3600,
	}).Handler)

	notesHandler := handlers.NewNotesHandler(deps.NotesService)
	askHandler := handlers.NewAskHandler(deps.RAGEngine)
	feedHandler := handlers.NewFeedHandler(deps.FeedGenerator)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/ask", askHandler)
		r.Method(http.MethodGet, "/feed", feedHandler)
		r.Route("/notes", func(r chi.Router) {
			r.Post("/", notesHandler.Create)
			r.Get("/", notesHandler.List)
			r.Post("/refresh", notesHandler.Refresh)
			r.Delete("/{id}", notesHandler.Delete)
		})
	})
	r.Method(http.MethodGet, "/health", healthHandler)

	return r
}
