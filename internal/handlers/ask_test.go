package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sphinx-ai/internal/rag"
)

type fakeEngine struct {
	result rag.QueryResult
	err    error

	gotUserID   string
	gotQuestion string
}

func (f *fakeEngine) Answer(ctx context.Context, userID, question string) (rag.QueryResult, error) {
	f.gotUserID = userID
	f.gotQuestion = question
	return f.result, f.err
}

func postAsk(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAskHandler(t *testing.T) {
	engine := &fakeEngine{result: rag.QueryResult{
		Question: "what did I write about trains?",
		Answer:   "You noted that trains run on rails.",
		RelevantDocuments: []rag.RelevantDocument{
			{Title: "Trains", Similarity: 91.07},
		},
		Timings: rag.Timings{SyncMs: 12, QueryMs: 340, TotalMs: 355},
	}}
	h := NewAskHandler(engine)

	w := postAsk(t, h, `{"userId":"user-1","question":"what did I write about trains?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	if engine.gotUserID != "user-1" {
		t.Errorf("engine userID = %q", engine.gotUserID)
	}

	var resp AskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "You noted that trains run on rails." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.RelevantDocuments) != 1 || resp.RelevantDocuments[0].Similarity != 91.07 {
		t.Errorf("relevant documents = %+v", resp.RelevantDocuments)
	}
	if resp.Timings.TotalMs != 355 {
		t.Errorf("timings = %+v", resp.Timings)
	}
}

func TestAskHandlerEmptyCorpus(t *testing.T) {
	engine := &fakeEngine{result: rag.QueryResult{
		Answer:            rag.EmptyCorpusAnswer,
		RelevantDocuments: nil,
		EmptyCorpus:       true,
	}}
	h := NewAskHandler(engine)

	w := postAsk(t, h, `{"userId":"user-1","question":"anything?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for empty corpus", w.Code)
	}
	var resp AskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.EmptyCorpus {
		t.Error("empty_corpus flag not set")
	}
	if resp.Answer != rag.EmptyCorpusAnswer {
		t.Errorf("answer = %q", resp.Answer)
	}
}

func TestAskHandlerUpstreamUnavailable(t *testing.T) {
	engine := &fakeEngine{err: rag.ErrUpstreamUnavailable}
	h := NewAskHandler(engine)

	w := postAsk(t, h, `{"userId":"user-1","question":"hi"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestAskHandlerBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"userId": `},
		{"missing userId", `{"question":"hi"}`},
		{"missing question", `{"userId":"user-1"}`},
		{"blank question", `{"userId":"user-1","question":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAskHandler(&fakeEngine{})
			w := postAsk(t, h, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}
