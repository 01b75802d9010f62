// Package feed turns a sample of a user's notes into short generated posts
// (ideas, connections, reflections, thoughts) for the home feed.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sphinx-ai/internal/contextutil"
	"sphinx-ai/internal/llm"
	"sphinx-ai/internal/notetext"
	"sphinx-ai/internal/storage"
)

// PostType classifies a generated feed post.
type PostType string

const (
	PostIdea       PostType = "idea"
	PostConnection PostType = "connection"
	PostReflection PostType = "reflection"
	PostThought    PostType = "thought"
)

var postTypes = []PostType{PostIdea, PostConnection, PostReflection, PostThought}

// maxNotesConsidered bounds how many recent notes feed one generation pass.
const maxNotesConsidered = 50

// Source links a post back to a note it was generated from.
type Source struct {
	ID    string
	Title string
}

// Post is one generated feed entry.
type Post struct {
	ID        string
	Type      PostType
	Title     string
	Content   string
	CreatedAt time.Time
	Sources   []Source
}

// ChatClient is the slice of the LLM client the generator depends on.
type ChatClient interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

const basePrompt = `You are Nexus, a helpful AI companion who makes complex ideas easy to understand. You analyze the user's notes and explain everything in simple, clear terms.

You must structure your response in this exact format:
<title>A single, clear title that captures the main insight from the notes, specific and engaging like a blog post title.</title>
<content>Start directly with the analysis, introducing the main topic with a clear opening statement. Avoid reactions like "Wow" or "Interesting". Keep it thorough but clear, in simple everyday language.</content>`

var typePrompts = map[PostType]string{
	PostIdea:       "As an idea explorer, look closely at the main ideas in the notes, explain what they could mean, point out what is new and interesting, and show how they fit into a bigger picture.",
	PostConnection: "As a pattern finder, show how different ideas in the notes link together, explain why those links matter, and explore why the pattern is important.",
	PostReflection: "As an insight helper, look at the main themes in the notes, explain the key patterns, give helpful context, and draw clear conclusions.",
	PostThought:    "As a thought explorer, look deeply at the main ideas in the notes, explain what they mean, find important threads, and connect them to bigger ideas.",
}

var (
	titleRe   = regexp.MustCompile(`(?s)<title>(.*?)</title>`)
	contentRe = regexp.MustCompile(`(?s)<content>(.*?)</content>`)
)

// Generator produces feed posts for a user. Safe for concurrent use.
type Generator struct {
	store  storage.NoteStore
	chat   ChatClient
	logger *slog.Logger
	now    func() time.Time

	// rngMu serializes access to rng, which is not safe for concurrent use.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewGenerator creates a feed generator.
func NewGenerator(store storage.NoteStore, chat ChatClient) *Generator {
	return &Generator{
		store:  store,
		chat:   chat,
		logger: slog.Default(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
}

// Generate produces up to one post per post type from a random sample of the
// user's recent notes. Individual generation or parsing failures are logged
// and skipped, never fatal; a user with no notes gets an empty feed.
func (g *Generator) Generate(ctx context.Context, userID string) ([]Post, error) {
	logger := contextutil.LoggerFromContext(ctx)

	notes, err := g.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notes: %w", err)
	}
	if len(notes) > maxNotesConsidered {
		notes = notes[:maxNotesConsidered]
	}
	if len(notes) == 0 {
		return []Post{}, nil
	}

	posts := make([]Post, 0, len(postTypes))
	for _, postType := range postTypes {
		selected := g.sample(notes)

		title, content, err := g.generatePost(ctx, postType, selected)
		if err != nil {
			logger.WarnContext(ctx, "feed post generation failed",
				"user_id", userID, "type", string(postType), "error", err)
			continue
		}

		sources := make([]Source, 0, len(selected))
		for _, note := range selected {
			sources = append(sources, Source{ID: note.ID, Title: note.Title})
		}
		posts = append(posts, Post{
			ID:        uuid.New().String(),
			Type:      postType,
			Title:     title,
			Content:   content,
			CreatedAt: g.now(),
			Sources:   sources,
		})
	}
	return posts, nil
}

// generatePost prompts the model for one post and parses the tagged output.
func (g *Generator) generatePost(ctx context.Context, postType PostType, notes []storage.Note) (title, content string, err error) {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n")
	b.WriteString(typePrompts[postType])

	var user strings.Builder
	user.WriteString("Notes to analyze:\n")
	for _, note := range notes {
		fmt.Fprintf(&user, "Title: %s\nContent: %s\n\n", note.Title, notetext.StripMarkup(note.Content))
	}

	reply, err := g.chat.ChatWithMessages(ctx, []llm.Message{
		{Role: "system", Content: b.String()},
		{Role: "user", Content: user.String()},
	}, llm.ChatParams{Temperature: 0.9, MaxTokens: 800})
	if err != nil {
		return "", "", err
	}

	titleMatch := titleRe.FindStringSubmatch(reply)
	contentMatch := contentRe.FindStringSubmatch(reply)
	if titleMatch == nil || contentMatch == nil {
		return "", "", fmt.Errorf("generated content did not match expected format")
	}
	return strings.TrimSpace(titleMatch[1]), strings.TrimSpace(contentMatch[1]), nil
}

// sample returns 2 to 4 notes drawn without replacement.
func (g *Generator) sample(notes []storage.Note) []storage.Note {
	shuffled := make([]storage.Note, len(notes))
	copy(shuffled, notes)

	g.rngMu.Lock()
	n := 2 + g.rng.Intn(3)
	g.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	g.rngMu.Unlock()

	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}
