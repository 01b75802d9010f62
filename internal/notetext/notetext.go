// Package notetext classifies note content and projects notes into the
// document shape the semantic index retrieves against. The index and the
// generative model operate on text, so image notes are excluded and editor
// markup is stripped before anything crosses the index boundary.
package notetext

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"sphinx-ai/internal/indexclient"
	"sphinx-ai/internal/storage"
)

var stripPolicy = bluemonday.StrictPolicy()

// IsImageContent reports whether content embeds image markup.
func IsImageContent(content string) bool {
	return strings.Contains(content, "<img") || strings.Contains(content, "data:image")
}

// StripMarkup returns the plain-text projection of editor HTML.
func StripMarkup(content string) string {
	stripped := stripPolicy.Sanitize(content)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// ProjectDocuments maps notes to indexed documents, dropping image notes and
// stripping markup. Documents are keyed by note id, so notes with identical
// titles stay distinct.
func ProjectDocuments(notes []storage.Note) []indexclient.Document {
	docs := make([]indexclient.Document, 0, len(notes))
	for _, note := range notes {
		if IsImageContent(note.Content) {
			continue
		}
		docs = append(docs, indexclient.Document{
			ID:      note.ID,
			Title:   note.Title,
			Content: StripMarkup(note.Content),
		})
	}
	return docs
}
