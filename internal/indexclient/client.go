// Package indexclient wraps the external semantic index service behind a
// small RPC-style interface. The service maintains a per-user document index
// and answers questions grounded in it; everything past the HTTP boundary is
// a black box.
package indexclient

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_client.go -package=mocks sphinx-ai/internal/indexclient Client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RequestTimeout bounds every call to the index service.
const RequestTimeout = 30 * time.Second

var (
	// ErrTimeout is returned when a call exceeds RequestTimeout.
	ErrTimeout = errors.New("index service timeout")
	// ErrUpstream is returned on a non-2xx status or an unsuccessful response body.
	ErrUpstream = errors.New("index service error")
	// ErrMalformedResponse is returned when a response body does not match the expected shape.
	ErrMalformedResponse = errors.New("malformed index service response")
)

// Document is the index service's view of a note.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// RelevantDocument is a retrieved document reference with its similarity score.
type RelevantDocument struct {
	Title      string  `json:"title"`
	Content    string  `json:"content,omitempty"`
	Similarity float64 `json:"similarity"`
}

// QueryResult is the index service's answer to a question.
type QueryResult struct {
	Answer            string             `json:"answer"`
	RelevantDocuments []RelevantDocument `json:"relevant_documents"`
}

// Client defines the operations the core consumes from the index service.
type Client interface {
	// Sync replaces the user's indexed document set with docs.
	Sync(ctx context.Context, userID string, docs []Document) error
	// Insert adds docs to the user's index.
	Insert(ctx context.Context, userID string, docs []Document) error
	// Delete removes a single document from the user's index.
	Delete(ctx context.Context, userID, noteID string) error
	// Query answers a question against the user's already-synced index.
	Query(ctx context.Context, userID, question string) (*QueryResult, error)
}

// HTTPClient implements Client over the index service's JSON-over-HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the index service at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: RequestTimeout},
	}
}

// syncRequest is the payload for sync and insert operations.
type syncRequest struct {
	UserID string     `json:"userId"`
	Notes  []Document `json:"notes"`
}

// statusResponse is the common response envelope for mutating operations.
type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Sync replaces the user's indexed document set with docs.
func (c *HTTPClient) Sync(ctx context.Context, userID string, docs []Document) error {
	return c.mutate(ctx, "/api/rag/sync", syncRequest{UserID: userID, Notes: docs})
}

// Insert adds docs to the user's index.
func (c *HTTPClient) Insert(ctx context.Context, userID string, docs []Document) error {
	return c.mutate(ctx, "/api/rag/insert", syncRequest{UserID: userID, Notes: docs})
}

// Delete removes a single document from the user's index.
func (c *HTTPClient) Delete(ctx context.Context, userID, noteID string) error {
	payload := struct {
		UserID string `json:"userId"`
		NoteID string `json:"noteId"`
	}{UserID: userID, NoteID: noteID}
	return c.mutate(ctx, "/api/notes/delete", payload)
}

// Query answers a question against the user's already-synced index.
func (c *HTTPClient) Query(ctx context.Context, userID, question string) (*QueryResult, error) {
	payload := struct {
		UserID string `json:"userId"`
		Query  string `json:"query"`
	}{UserID: userID, Query: question}

	body, err := c.post(ctx, "/api/rag/query", payload)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Answer            string             `json:"answer"`
		RelevantDocuments []RelevantDocument `json:"relevant_documents"`
		Error             string             `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if raw.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, raw.Error)
	}
	if raw.Answer == "" {
		return nil, fmt.Errorf("%w: missing answer", ErrMalformedResponse)
	}

	result := &QueryResult{
		Answer:            raw.Answer,
		RelevantDocuments: raw.RelevantDocuments,
	}
	if result.RelevantDocuments == nil {
		result.RelevantDocuments = []RelevantDocument{}
	}
	return result, nil
}

// mutate posts payload and interprets the common status envelope.
func (c *HTTPClient) mutate(ctx context.Context, path string, payload any) error {
	body, err := c.post(ctx, path, payload)
	if err != nil {
		return err
	}

	var status statusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !status.Success {
		reason := status.Error
		if reason == "" {
			reason = status.Message
		}
		if reason == "" {
			reason = "request not successful"
		}
		return fmt.Errorf("%w: %s", ErrUpstream, reason)
	}
	return nil
}

// post sends a JSON POST and returns the response body of a 2xx response.
func (c *HTTPClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, string(body))
	}
	return body, nil
}

// isTimeout reports whether err stems from a deadline or client timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
