// Package service holds the note CRUD logic that sits between the HTTP
// handlers and the storage, cache, and index layers.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"sphinx-ai/internal/contextutil"
	"sphinx-ai/internal/notecache"
	"sphinx-ai/internal/storage"
	"sphinx-ai/internal/syncer"
)

// CreateNoteRequest is the payload for creating a note.
type CreateNoteRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	MetaDate string `json:"meta_date"`
	MetaTag  string `json:"meta_tag"`
}

// Validate checks the create payload.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 500)),
		validation.Field(&r.Content, validation.Required),
		validation.Field(&r.MetaDate, validation.Length(0, 100)),
		validation.Field(&r.MetaTag, validation.Length(0, 100)),
	)
}

// NotesService owns note creation, listing, and deletion, keeping the local
// cache and the remote index in step with the database.
type NotesService struct {
	store  storage.NoteStore
	cache  *notecache.Cache
	syncer *syncer.Coordinator
	logger *slog.Logger
}

// NewNotesService wires the note service.
func NewNotesService(store storage.NoteStore, cache *notecache.Cache, coordinator *syncer.Coordinator) *NotesService {
	return &NotesService{
		store:  store,
		cache:  cache,
		syncer: coordinator,
		logger: slog.Default(),
	}
}

// AddNote persists a note, appends it to the cache, and pushes it to the
// index in the background. Index failures never fail the add; the syncer
// schedules its own recovery.
func (s *NotesService) AddNote(ctx context.Context, userID string, req CreateNoteRequest) (storage.Note, error) {
	if userID == "" {
		return storage.Note{}, fmt.Errorf("user id is required")
	}
	if err := req.Validate(); err != nil {
		return storage.Note{}, err
	}

	note := storage.Note{
		UserID:   userID,
		Title:    req.Title,
		Content:  req.Content,
		MetaDate: req.MetaDate,
		MetaTag:  req.MetaTag,
	}
	created, err := s.store.Create(ctx, note)
	if err != nil {
		return storage.Note{}, fmt.Errorf("failed to create note: %w", err)
	}

	s.cache.Append(userID, created)

	logger := contextutil.LoggerFromContext(ctx)
	go func() {
		ctx := contextutil.WithLogger(context.Background(), logger)
		if err := s.syncer.InsertNote(ctx, userID, created); err != nil {
			logger.Warn("background note insert failed",
				"user_id", userID, "note_id", created.ID, "error", err)
		}
	}()

	return created, nil
}

// ListNotes returns the user's notes, newest first. A fresh cache entry is
// served directly; an aging one is served while a background refresh runs; a
// miss or expired entry falls through to the database.
func (s *NotesService) ListNotes(ctx context.Context, userID string) ([]storage.Note, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	if notes, age, ok := s.cache.Get(userID); ok && age < notecache.TTL {
		if age >= notecache.SoftRefreshAge {
			s.refreshBackground(ctx, userID)
		}
		return notes, nil
	}

	notes, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	s.cache.Put(userID, notes)
	if s.syncer.NeedsSync(userID) {
		s.syncer.EnsureSyncedBackground(userID)
	}
	return notes, nil
}

// DeleteNote removes a note the user owns from the database, the cache, and
// the index. Index failures are logged and recovered in the background.
func (s *NotesService) DeleteNote(ctx context.Context, userID, noteID string) error {
	if userID == "" || noteID == "" {
		return fmt.Errorf("user id and note id are required")
	}

	if err := s.store.Delete(ctx, userID, noteID); err != nil {
		return err
	}
	s.cache.Remove(userID, noteID)

	logger := contextutil.LoggerFromContext(ctx)
	go func() {
		ctx := contextutil.WithLogger(context.Background(), logger)
		if err := s.syncer.DeleteNote(ctx, userID, noteID); err != nil {
			logger.Warn("background note delete failed",
				"user_id", userID, "note_id", noteID, "error", err)
		}
	}()

	return nil
}

// Refresh schedules a background reload of the user's cache and, when the
// cooldown has lapsed, a resync of the index. It returns immediately.
func (s *NotesService) Refresh(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	s.refreshBackground(ctx, userID)
	return nil
}

// refreshBackground reloads the cache from the database and, if the index is
// stale, resyncs it. Fire and forget.
func (s *NotesService) refreshBackground(ctx context.Context, userID string) {
	logger := contextutil.LoggerFromContext(ctx)
	go func() {
		bg, cancel := context.WithTimeout(contextutil.WithLogger(context.Background(), logger), 30*time.Second)
		defer cancel()

		notes, err := s.store.ListByUser(bg, userID)
		if err != nil {
			logger.Warn("background cache refresh failed", "user_id", userID, "error", err)
			return
		}
		s.cache.Put(userID, notes)
		if s.syncer.NeedsSync(userID) {
			s.syncer.EnsureSyncedBackground(userID)
		}
	}()
}
