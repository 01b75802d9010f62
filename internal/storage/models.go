package storage

import "time"

// Note represents a single note owned by a user.
type Note struct {
	ID        string // UUID
	UserID    string // Opaque owner identifier
	Title     string
	Content   string // May embed HTML markup produced by the editor
	CreatedAt time.Time
	MetaDate  string // Optional user-supplied date label
	MetaTag   string // Optional tag
}
