package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"sphinx-ai/internal/llm"
	"sphinx-ai/internal/storage"
	storagemocks "sphinx-ai/internal/storage/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type stubChat struct {
	replies []string
	errs    []error
	calls   int

	lastMessages []llm.Message
	lastParams   llm.ChatParams
}

func (s *stubChat) ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error) {
	i := s.calls
	s.calls++
	s.lastMessages = messages
	s.lastParams = params
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "<title>Fallback</title><content>Fallback content.</content>", nil
}

func testGenerator(t *testing.T, chat ChatClient) (*Generator, *storagemocks.MockNoteStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := storagemocks.NewMockNoteStore(ctrl)
	g := NewGenerator(store, chat)
	g.rng = rand.New(rand.NewSource(1))
	g.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return g, store
}

func sampleNotes() []storage.Note {
	return []storage.Note{
		{ID: "n1", UserID: "user-1", Title: "Compound interest", Content: "<p>Money grows on money.</p>"},
		{ID: "n2", UserID: "user-1", Title: "Spaced repetition", Content: "<p>Review at widening intervals.</p>"},
		{ID: "n3", UserID: "user-1", Title: "Deep work", Content: "<p>Focus without distraction.</p>"},
	}
}

func TestGenerate(t *testing.T) {
	chat := &stubChat{replies: []string{
		"<title>Growth Everywhere</title><content>Small gains stack up over time.</content>",
		"<title>Learning Loops</title><content>Repetition and focus reinforce each other.</content>",
		"<title>Patterns of Effort</title><content>Consistency beats intensity.</content>",
		"<title>Momentum</title><content>Progress compounds like interest.</content>",
	}}
	g, store := testGenerator(t, chat)
	store.EXPECT().ListByUser(gomock.Any(), "user-1").Return(sampleNotes(), nil)

	posts, err := g.Generate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(posts) != len(postTypes) {
		t.Fatalf("got %d posts, want %d", len(posts), len(postTypes))
	}
	for i, post := range posts {
		if post.Type != postTypes[i] {
			t.Errorf("post %d type = %q, want %q", i, post.Type, postTypes[i])
		}
		if post.ID == "" {
			t.Errorf("post %d has empty id", i)
		}
		if post.Title == "" || post.Content == "" {
			t.Errorf("post %d missing title or content: %+v", i, post)
		}
		if len(post.Sources) < 2 || len(post.Sources) > 4 {
			t.Errorf("post %d has %d sources, want 2-4", i, len(post.Sources))
		}
	}
	if posts[0].Title != "Growth Everywhere" {
		t.Errorf("first title = %q", posts[0].Title)
	}
	if chat.lastParams.Temperature != 0.9 || chat.lastParams.MaxTokens != 800 {
		t.Errorf("chat params = %+v", chat.lastParams)
	}
}

func TestGeneratePromptContainsStrippedNotes(t *testing.T) {
	chat := &stubChat{}
	g, store := testGenerator(t, chat)
	store.EXPECT().ListByUser(gomock.Any(), "user-1").Return([]storage.Note{
		{ID: "n1", UserID: "user-1", Title: "Only note", Content: "<p>Plain &amp; simple</p>"},
	}, nil)

	if _, err := g.Generate(context.Background(), "user-1"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(chat.lastMessages) != 2 {
		t.Fatalf("got %d messages, want 2", len(chat.lastMessages))
	}
	userMsg := chat.lastMessages[1].Content
	if want := "Plain & simple"; !strings.Contains(userMsg, want) {
		t.Errorf("user message missing stripped content %q:\n%s", want, userMsg)
	}
	if strings.Contains(userMsg, "<p>") {
		t.Errorf("user message still contains markup:\n%s", userMsg)
	}
}

func TestGenerateSkipsFailedPosts(t *testing.T) {
	chat := &stubChat{
		errs: []error{nil, errors.New("model unavailable"), nil, nil},
		replies: []string{
			"<title>A</title><content>a</content>",
			"",
			"no tags here at all",
			"<title>D</title><content>d</content>",
		},
	}
	g, store := testGenerator(t, chat)
	store.EXPECT().ListByUser(gomock.Any(), "user-1").Return(sampleNotes(), nil)

	posts, err := g.Generate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2 (failed generations skipped)", len(posts))
	}
	if posts[0].Title != "A" || posts[1].Title != "D" {
		t.Errorf("surviving posts = %q, %q", posts[0].Title, posts[1].Title)
	}
}

type fixedChat struct{}

func (fixedChat) ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error) {
	return "<title>Steady</title><content>Same every time.</content>", nil
}

func TestGenerateConcurrent(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := storagemocks.NewMockNoteStore(ctrl)
	store.EXPECT().ListByUser(gomock.Any(), "user-1").Return(sampleNotes(), nil).Times(2)

	g := NewGenerator(store, fixedChat{})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			posts, err := g.Generate(context.Background(), "user-1")
			if err != nil {
				t.Errorf("Generate() error = %v", err)
				return
			}
			if len(posts) != len(postTypes) {
				t.Errorf("got %d posts, want %d", len(posts), len(postTypes))
			}
		}()
	}
	wg.Wait()
}

func TestGenerateNoNotes(t *testing.T) {
	chat := &stubChat{}
	g, store := testGenerator(t, chat)
	store.EXPECT().ListByUser(gomock.Any(), "user-7").Return(nil, nil)

	posts, err := g.Generate(context.Background(), "user-7")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("got %d posts, want 0", len(posts))
	}
	if chat.calls != 0 {
		t.Errorf("chat called %d times for empty corpus", chat.calls)
	}
}

func TestGenerateStoreError(t *testing.T) {
	chat := &stubChat{}
	g, store := testGenerator(t, chat)
	store.EXPECT().ListByUser(gomock.Any(), "user-1").Return(nil, errors.New("db closed"))

	if _, err := g.Generate(context.Background(), "user-1"); err == nil {
		t.Fatal("expected error when store fails")
	}
}
