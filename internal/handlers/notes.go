package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"sphinx-ai/internal/contextutil"
	"sphinx-ai/internal/service"
	"sphinx-ai/internal/storage"
)

// NotesHandler exposes note CRUD over HTTP.
type NotesHandler struct {
	notes *service.NotesService
}

// NewNotesHandler creates a new NotesHandler.
func NewNotesHandler(notes *service.NotesService) *NotesHandler {
	return &NotesHandler{notes: notes}
}

// NoteResponse is the wire form of a note.
type NoteResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	MetaDate  string    `json:"meta_date,omitempty"`
	MetaTag   string    `json:"meta_tag,omitempty"`
}

type createNoteRequest struct {
	UserID string `json:"userId"`
	service.CreateNoteRequest
}

func toNoteResponse(note storage.Note) NoteResponse {
	return NoteResponse{
		ID:        note.ID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: note.CreatedAt,
		MetaDate:  note.MetaDate,
		MetaTag:   note.MetaTag,
	}
}

// Create handles POST /api/notes.
func (h *NotesHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	note, err := h.notes.AddNote(ctx, req.UserID, req.CreateNoteRequest)
	if err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, verrs.Error())
			return
		}
		logger.ErrorContext(ctx, "failed to create note", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create note")
		return
	}
	writeJSON(w, http.StatusCreated, toNoteResponse(note))
}

// List handles GET /api/notes.
func (h *NotesHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	notes, err := h.notes.ListNotes(ctx, userID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list notes", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list notes")
		return
	}

	resp := make([]NoteResponse, len(notes))
	for i, note := range notes {
		resp[i] = toNoteResponse(note)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /api/notes/refresh. It kicks off a background cache
// and index refresh and returns immediately.
func (h *NotesHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := h.notes.Refresh(ctx, req.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to schedule refresh")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Delete handles DELETE /api/notes/{id}.
func (h *NotesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	noteID := chi.URLParam(r, "id")
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := h.notes.DeleteNote(ctx, userID, noteID); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "Note not found")
		case errors.Is(err, storage.ErrPermissionDenied):
			writeError(w, http.StatusForbidden, "Note belongs to another user")
		default:
			logger.ErrorContext(ctx, "failed to delete note", "user_id", userID, "note_id", noteID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to delete note")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
