// Package syncer keeps the external semantic index consistent with each
// user's note collection. It enforces at-most-one-sync-in-flight per user,
// a minimum inter-sync interval, and single-shot delayed recovery after
// failed index calls.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sphinx-ai/internal/contextutil"
	"sphinx-ai/internal/indexclient"
	"sphinx-ai/internal/notecache"
	"sphinx-ai/internal/notetext"
	"sphinx-ai/internal/storage"
)

const (
	// SyncCooldown is the minimum interval between two sync cycles for one user.
	SyncCooldown = 30 * time.Second
	// RetryDelay is the delay before the single full-resync retry after a
	// failed index call.
	RetryDelay = 5 * time.Second
)

// userStatus tracks the sync state machine for one user.
type userStatus struct {
	inProgress bool
	lastSync   time.Time
}

// Coordinator reconciles the cache/store state with the index service.
type Coordinator struct {
	cache  *notecache.Cache
	store  storage.NoteStore
	index  indexclient.Client
	logger *slog.Logger

	mu     sync.Mutex
	status map[string]*userStatus

	// Injected for tests.
	now   func() time.Time
	after func(time.Duration, func()) *time.Timer
}

// New creates a Coordinator.
func New(cache *notecache.Cache, store storage.NoteStore, index indexclient.Client) *Coordinator {
	return &Coordinator{
		cache:  cache,
		store:  store,
		index:  index,
		logger: slog.Default(),
		status: make(map[string]*userStatus),
		now:    time.Now,
		after:  time.AfterFunc,
	}
}

// NeedsSync reports whether a sync cycle should run for userID. A sync is
// unnecessary only when none is in flight and the last one finished within
// the cooldown window.
func (c *Coordinator) NeedsSync(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.status[userID]
	if !ok {
		return true
	}
	return st.inProgress || c.now().Sub(st.lastSync) >= SyncCooldown
}

// EnsureSynced runs one full sync cycle for userID: resolve the user's notes
// (cache first), project them to indexed documents and replace the user's
// server-side document set. When another cycle for the same user is already
// in flight the call is a silent no-op.
//
// lastSync is refreshed on failure too, so a hard-failing index service is
// retried at most once per cooldown window. A failed cycle additionally arms
// exactly one delayed retry; the retry itself never arms another.
func (c *Coordinator) EnsureSynced(ctx context.Context, userID string) error {
	if err := c.syncOnce(ctx, userID); err != nil {
		c.scheduleRetry(ctx, userID, err)
		return err
	}
	return nil
}

// syncOnce is one sync cycle without the retry arming.
func (c *Coordinator) syncOnce(ctx context.Context, userID string) error {
	if !c.begin(userID) {
		return nil
	}
	defer c.finish(userID)

	logger := contextutil.LoggerFromContext(ctx)

	notes, err := c.resolveNotes(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve notes for sync: %w", err)
	}

	docs := notetext.ProjectDocuments(notes)
	if len(docs) == 0 {
		logger.DebugContext(ctx, "no indexable notes, skipping sync call", "user_id", userID)
		return nil
	}

	if err := c.index.Sync(ctx, userID, docs); err != nil {
		return fmt.Errorf("failed to sync notes: %w", err)
	}

	logger.InfoContext(ctx, "notes synced", "user_id", userID, "documents", len(docs))
	return nil
}

// EnsureSyncedBackground runs EnsureSynced on its own goroutine. Failures are
// logged, never propagated; the in-progress guard keeps concurrent triggers
// from piling up.
func (c *Coordinator) EnsureSyncedBackground(userID string) {
	go func() {
		ctx := context.Background()
		if err := c.EnsureSynced(ctx, userID); err != nil {
			c.logger.Error("background sync failed", "user_id", userID, "error", err)
		}
	}()
}

// InsertNote pushes a single freshly created note into the index. Image notes
// are not indexable and are skipped. On failure exactly one full resync is
// scheduled after RetryDelay; the error is still returned so the caller can
// decide whether to surface it.
func (c *Coordinator) InsertNote(ctx context.Context, userID string, note storage.Note) error {
	docs := notetext.ProjectDocuments([]storage.Note{note})
	if len(docs) == 0 {
		return nil
	}

	if err := c.index.Insert(ctx, userID, docs); err != nil {
		c.scheduleRetry(ctx, userID, err)
		return fmt.Errorf("failed to insert note into index: %w", err)
	}
	return nil
}

// DeleteNote removes a single note from the index. Same recovery contract as
// InsertNote.
func (c *Coordinator) DeleteNote(ctx context.Context, userID, noteID string) error {
	if err := c.index.Delete(ctx, userID, noteID); err != nil {
		c.scheduleRetry(ctx, userID, err)
		return fmt.Errorf("failed to delete note from index: %w", err)
	}
	return nil
}

// begin performs the atomic check-and-set of the in-progress flag.
// It returns false when a sync for userID is already running.
func (c *Coordinator) begin(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.status[userID]
	if !ok {
		st = &userStatus{}
		c.status[userID] = st
	}
	if st.inProgress {
		return false
	}
	st.inProgress = true
	st.lastSync = c.now()
	return true
}

// finish clears the in-progress flag and refreshes lastSync regardless of
// the cycle's outcome.
func (c *Coordinator) finish(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.status[userID]
	st.inProgress = false
	st.lastSync = c.now()
}

// resolveNotes prefers the cache and falls back to the store, populating the
// cache on the way back.
func (c *Coordinator) resolveNotes(ctx context.Context, userID string) ([]storage.Note, error) {
	if notes, age, ok := c.cache.Get(userID); ok && age < notecache.TTL {
		return notes, nil
	}

	notes, err := c.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.cache.Put(userID, notes)
	return notes, nil
}

// scheduleRetry arms the single delayed full-resync retry for a failed index
// call. The retried cycle logs its own failure and does not reschedule.
func (c *Coordinator) scheduleRetry(ctx context.Context, userID string, cause error) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.WarnContext(ctx, "index call failed, scheduling full resync",
		"user_id", userID, "retry_in", RetryDelay.String(), "error", cause)

	c.after(RetryDelay, func() {
		go func() {
			if err := c.syncOnce(context.Background(), userID); err != nil {
				c.logger.Error("retry sync failed", "user_id", userID, "error", err)
			}
		}()
	})
}
