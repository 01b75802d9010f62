// Package rag orchestrates the retrieval-augmented query pipeline: ensure the
// user's index is fresh, check that retrievable content exists, then ask the
// index service for a grounded answer.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sphinx-ai/internal/contextutil"
	"sphinx-ai/internal/indexclient"
	"sphinx-ai/internal/notecache"
	"sphinx-ai/internal/notetext"
	"sphinx-ai/internal/storage"
)

// ErrUpstreamUnavailable is returned when the index service cannot serve the
// synchronous query path. The UI renders it as a generic "try again" message.
var ErrUpstreamUnavailable = errors.New("index service unavailable")

// EmptyCorpusAnswer is the canned soft result for users with no text notes.
const EmptyCorpusAnswer = "I don't see any text notes in your collection yet. Try creating some text notes first!"

// SyncCoordinator is the slice of the sync coordinator the pipeline depends on.
type SyncCoordinator interface {
	// NeedsSync reports whether the user's index may be stale.
	NeedsSync(userID string) bool
	// EnsureSynced runs a full sync cycle, or no-ops when one is in flight.
	EnsureSynced(ctx context.Context, userID string) error
}

// Engine answers natural-language questions over a user's notes.
type Engine interface {
	// Answer runs the full pipeline for one question.
	Answer(ctx context.Context, userID, question string) (QueryResult, error)
}

type engine struct {
	cache  *notecache.Cache
	store  storage.NoteStore
	syncer SyncCoordinator
	index  indexclient.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates the query pipeline.
func NewEngine(cache *notecache.Cache, store storage.NoteStore, syncer SyncCoordinator, index indexclient.Client) Engine {
	return &engine{
		cache:  cache,
		store:  store,
		syncer: syncer,
		index:  index,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// Answer runs the full pipeline for one question: sync if needed, filter the
// user's notes down to text content, then query the server-side index.
func (e *engine) Answer(ctx context.Context, userID, question string) (QueryResult, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := e.now()
	var timings Timings

	question = strings.TrimSpace(question)
	if question == "" {
		return QueryResult{}, fmt.Errorf("question must not be empty")
	}

	// The answer depends on index freshness, so this sync is awaited and its
	// failure propagates, unlike the opportunistic background cycles.
	if e.syncer.NeedsSync(userID) {
		syncStart := e.now()
		if err := e.syncer.EnsureSynced(ctx, userID); err != nil {
			logger.ErrorContext(ctx, "pre-query sync failed", "user_id", userID, "error", err)
			return QueryResult{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		timings.SyncMs = e.now().Sub(syncStart).Milliseconds()
	}

	notes, err := e.loadNotes(ctx, userID)
	if err != nil {
		return QueryResult{}, fmt.Errorf("failed to load notes: %w", err)
	}

	textNotes := 0
	for _, note := range notes {
		if !notetext.IsImageContent(note.Content) {
			textNotes++
		}
	}
	if textNotes == 0 {
		logger.InfoContext(ctx, "no text notes, returning soft result", "user_id", userID, "total_notes", len(notes))
		timings.TotalMs = e.now().Sub(start).Milliseconds()
		return QueryResult{
			Question:          question,
			Answer:            EmptyCorpusAnswer,
			RelevantDocuments: []RelevantDocument{},
			EmptyCorpus:       true,
			Timings:           timings,
		}, nil
	}

	queryStart := e.now()
	raw, err := e.index.Query(ctx, userID, question)
	if err != nil {
		logger.ErrorContext(ctx, "index query failed", "user_id", userID, "error", err)
		return QueryResult{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	timings.QueryMs = e.now().Sub(queryStart).Milliseconds()
	timings.TotalMs = e.now().Sub(start).Milliseconds()

	docs := make([]RelevantDocument, 0, len(raw.RelevantDocuments))
	for _, d := range raw.RelevantDocuments {
		docs = append(docs, RelevantDocument{Title: d.Title, Similarity: d.Similarity})
	}

	logger.InfoContext(ctx, "query answered",
		"user_id", userID,
		"question_length", len(question),
		"relevant_documents", len(docs),
		"sync_ms", timings.SyncMs,
		"query_ms", timings.QueryMs,
	)

	return QueryResult{
		Question:          question,
		Answer:            raw.Answer,
		RelevantDocuments: docs,
		Timings:           timings,
	}, nil
}

// loadNotes prefers the cache and falls back to the store.
func (e *engine) loadNotes(ctx context.Context, userID string) ([]storage.Note, error) {
	if notes, age, ok := e.cache.Get(userID); ok && age < notecache.TTL {
		return notes, nil
	}

	notes, err := e.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	e.cache.Put(userID, notes)
	return notes, nil
}
