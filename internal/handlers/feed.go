package handlers

import (
	"net/http"
	"strings"
	"time"

	"sphinx-ai/internal/contextutil"
	"sphinx-ai/internal/feed"
)

// FeedHandler serves generated feed posts.
type FeedHandler struct {
	generator *feed.Generator
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(generator *feed.Generator) *FeedHandler {
	return &FeedHandler{generator: generator}
}

// FeedPostResponse is the wire form of a feed post.
type FeedPostResponse struct {
	ID        string               `json:"id"`
	Type      string               `json:"type"`
	Title     string               `json:"title"`
	Content   string               `json:"content"`
	CreatedAt time.Time            `json:"created_at"`
	Sources   []FeedSourceResponse `json:"sources"`
}

// FeedSourceResponse names a note a post was generated from.
type FeedSourceResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ServeHTTP handles GET /api/feed.
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	posts, err := h.generator.Generate(ctx, userID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to generate feed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate feed")
		return
	}

	resp := make([]FeedPostResponse, len(posts))
	for i, post := range posts {
		sources := make([]FeedSourceResponse, len(post.Sources))
		for j, src := range post.Sources {
			sources[j] = FeedSourceResponse{ID: src.ID, Title: src.Title}
		}
		resp[i] = FeedPostResponse{
			ID:        post.ID,
			Type:      string(post.Type),
			Title:     post.Title,
			Content:   post.Content,
			CreatedAt: post.CreatedAt,
			Sources:   sources,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
