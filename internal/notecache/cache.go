// Package notecache holds a process-wide, per-user, time-bounded cache of
// note lists to avoid redundant store reads.
package notecache

import (
	"sync"
	"time"

	"sphinx-ai/internal/storage"
)

const (
	// TTL is the age past which a cache entry requires a synchronous reload.
	TTL = 5 * time.Minute
	// SoftRefreshAge is the age past which a served entry triggers a
	// background refresh without invalidating the returned data.
	SoftRefreshAge = time.Minute
)

type entry struct {
	notes     []storage.Note
	fetchedAt time.Time
}

// Cache caches each user's note list with a fetch timestamp.
// Entries are never physically evicted; freshness is age-based.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached notes for userID along with the entry age.
// ok is false on a cache miss.
func (c *Cache) Get(userID string) (notes []storage.Note, age time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[userID]
	if !ok {
		return nil, 0, false
	}
	return cloneNotes(e.notes), c.now().Sub(e.fetchedAt), true
}

// Put replaces the cached note list for userID and resets its age.
func (c *Cache) Put(userID string, notes []storage.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[userID] = entry{notes: cloneNotes(notes), fetchedAt: c.now()}
}

// Append adds a note to an existing entry without touching its age.
// Best-effort: a cache miss is a no-op, the next full load will pick
// the note up from the store.
func (c *Cache) Append(userID string, note storage.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[userID]
	if !ok {
		return
	}
	e.notes = append(cloneNotes(e.notes), note)
	c.entries[userID] = e
}

// Remove drops a note from an existing entry. Best-effort, like Append.
func (c *Cache) Remove(userID, noteID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[userID]
	if !ok {
		return
	}
	kept := make([]storage.Note, 0, len(e.notes))
	for _, n := range e.notes {
		if n.ID != noteID {
			kept = append(kept, n)
		}
	}
	e.notes = kept
	c.entries[userID] = e
}

func cloneNotes(notes []storage.Note) []storage.Note {
	if notes == nil {
		return nil
	}
	out := make([]storage.Note, len(notes))
	copy(out, notes)
	return out
}
