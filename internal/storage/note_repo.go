package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_note_store.go -package=mocks sphinx-ai/internal/storage NoteStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
	// ErrPermissionDenied is returned when a caller tries to mutate a note it does not own.
	ErrPermissionDenied = errors.New("permission denied")
)

// NoteStore defines the interface for note storage operations.
type NoteStore interface {
	// Create inserts a new note, assigning an id and creation time when unset,
	// and returns the stored note.
	Create(ctx context.Context, note Note) (Note, error)
	// ListByUser returns all notes owned by userID, newest first.
	ListByUser(ctx context.Context, userID string) ([]Note, error)
	// GetByID gets a note by id. Returns nil and ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*Note, error)
	// Delete removes the note with the given id if it is owned by userID.
	// Returns ErrNotFound when the note does not exist and ErrPermissionDenied
	// when it belongs to a different user.
	Delete(ctx context.Context, userID, id string) error
}

// NoteRepo provides methods for note operations.
// It implements the NoteStore interface.
type NoteRepo struct {
	db *sql.DB
}

var _ NoteStore = (*NoteRepo)(nil)

// NewNoteRepo creates a new NoteRepo.
func NewNoteRepo(db *sql.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

// Create inserts a new note, assigning an id and creation time when unset,
// and returns the stored note.
func (r *NoteRepo) Create(ctx context.Context, note Note) (Note, error) {
	if note.UserID == "" {
		return Note{}, fmt.Errorf("note user id is required")
	}
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (id, user_id, title, content, created_at, meta_date, meta_tag)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.UserID, note.Title, note.Content,
		note.CreatedAt.Format(time.RFC3339Nano), note.MetaDate, note.MetaTag,
	)
	if err != nil {
		return Note{}, fmt.Errorf("failed to insert note: %w", err)
	}
	return note, nil
}

// ListByUser returns all notes owned by userID, newest first.
func (r *NoteRepo) ListByUser(ctx context.Context, userID string) ([]Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, content, created_at, meta_date, meta_tag
		 FROM notes WHERE user_id = ? ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var notes []Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

// GetByID gets a note by id. Returns nil and ErrNotFound if not found.
func (r *NoteRepo) GetByID(ctx context.Context, id string) (*Note, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, content, created_at, meta_date, meta_tag
		 FROM notes WHERE id = ?`,
		id,
	)
	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return note, nil
}

// Delete removes the note with the given id if it is owned by userID.
func (r *NoteRepo) Delete(ctx context.Context, userID, id string) error {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return fmt.Errorf("note %s: %w", id, ErrPermissionDenied)
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		// Deleted concurrently between the ownership check and the delete.
		return ErrNotFound
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanNote.
type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*Note, error) {
	var note Note
	var createdAtStr string

	err := s.Scan(&note.ID, &note.UserID, &note.Title, &note.Content,
		&createdAtStr, &note.MetaDate, &note.MetaTag)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan note: %w", err)
	}

	note.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		// Try alternative format (SQLite might use different format)
		note.CreatedAt, err = time.Parse("2006-01-02 15:04:05", createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
		}
	}
	return &note, nil
}
