package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Chat(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Hi there!"}},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model")
	reply, err := client.Chat(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if reply != "Hi there!" {
		t.Errorf("Chat() reply = %q, want %q", reply, "Hi there!")
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Chat() auth header = %q", gotAuth)
	}
	if gotBody["model"] != "test-model" {
		t.Errorf("Chat() model = %v", gotBody["model"])
	}
}

func TestClient_ChatWithMessages_Params(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", "m")
	messages := []Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "hi"},
	}
	_, err := client.ChatWithMessages(context.Background(), messages, ChatParams{Temperature: 0.9, MaxTokens: 800})
	if err != nil {
		t.Fatalf("ChatWithMessages() error = %v", err)
	}

	if gotBody["temperature"] != 0.9 {
		t.Errorf("ChatWithMessages() temperature = %v, want 0.9", gotBody["temperature"])
	}
	if gotBody["max_tokens"] != float64(800) {
		t.Errorf("ChatWithMessages() max_tokens = %v, want 800", gotBody["max_tokens"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("ChatWithMessages() sent %d messages, want 2", len(msgs))
	}
}

func TestClient_Chat_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", "m")
	if _, err := client.Chat(context.Background(), "hi"); err == nil {
		t.Error("Chat() expected error on 503")
	}
}

func TestClient_Chat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", "m")
	if _, err := client.Chat(context.Background(), "hi"); err == nil {
		t.Error("Chat() expected error on empty choices")
	}
}
