package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"sphinx-ai/internal/contextutil"
	"sphinx-ai/internal/rag"
)

// AskHandler answers questions about the user's notes.
type AskHandler struct {
	engine rag.Engine
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(engine rag.Engine) *AskHandler {
	return &AskHandler{engine: engine}
}

// AskRequest is the HTTP payload for a question.
type AskRequest struct {
	UserID   string `json:"userId"`
	Question string `json:"question"`
}

// AskResponse is the HTTP payload for an answer.
type AskResponse struct {
	Answer            string             `json:"answer"`
	RelevantDocuments []RelevantDocument `json:"relevant_documents"`
	EmptyCorpus       bool               `json:"empty_corpus,omitempty"`
	Timings           TimingsResponse    `json:"timings"`
}

// RelevantDocument is one retrieved source in the answer.
type RelevantDocument struct {
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

// TimingsResponse breaks down where the request spent its time.
type TimingsResponse struct {
	SyncMs  int64 `json:"sync_ms"`
	QueryMs int64 `json:"query_ms"`
	TotalMs int64 `json:"total_ms"`
}

// ServeHTTP handles POST /api/ask.
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}

	result, err := h.engine.Answer(ctx, req.UserID, req.Question)
	if err != nil {
		logger.ErrorContext(ctx, "query pipeline failed", "user_id", req.UserID, "error", err)
		if errors.Is(err, rag.ErrUpstreamUnavailable) {
			writeError(w, http.StatusBadGateway, "Index service unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to answer question")
		return
	}

	docs := make([]RelevantDocument, len(result.RelevantDocuments))
	for i, doc := range result.RelevantDocuments {
		docs[i] = RelevantDocument{Title: doc.Title, Similarity: doc.Similarity}
	}
	writeJSON(w, http.StatusOK, AskResponse{
		Answer:            result.Answer,
		RelevantDocuments: docs,
		EmptyCorpus:       result.EmptyCorpus,
		Timings: TimingsResponse{
			SyncMs:  result.Timings.SyncMs,
			QueryMs: result.Timings.QueryMs,
			TotalMs: result.Timings.TotalMs,
		},
	})
}
