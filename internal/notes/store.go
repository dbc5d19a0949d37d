package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Note is the final assembled study document for one source.
type Note struct {
	ID          int64
	SourceID    int64
	UserID      string
	Title       string
	Summary     string
	ContentJSON string
	Markdown    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store persists assembled notes. It shares the queue database so a
// note and its source's completion commit against the same file.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert writes the note for a source, replacing any previous
// assembly so retried assembly jobs stay idempotent.
func (s *Store) Upsert(ctx context.Context, note *Note) error {
	if note == nil {
		return errors.New("note is nil")
	}
	if note.SourceID <= 0 {
		return errors.New("note requires a source id")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO notes (source_id, user_id, title, summary, content_json, markdown, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(source_id) DO UPDATE SET
             title = excluded.title,
             summary = excluded.summary,
             content_json = excluded.content_json,
             markdown = excluded.markdown,
             updated_at = excluded.updated_at`,
		note.SourceID,
		note.UserID,
		note.Title,
		nullIfEmpty(note.Summary),
		note.ContentJSON,
		nullIfEmpty(note.Markdown),
		timestamp,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert note: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		note.ID = id
	}
	return nil
}

// BySource fetches the note for a source; nil when absent.
func (s *Store) BySource(ctx context.Context, sourceID int64) (*Note, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, source_id, user_id, title, summary, content_json, markdown, created_at, updated_at
         FROM notes WHERE source_id = ?`,
		sourceID,
	)
	var (
		note       Note
		summary    sql.NullString
		markdown   sql.NullString
		createdRaw string
		updatedRaw string
	)
	err := row.Scan(&note.ID, &note.SourceID, &note.UserID, &note.Title, &summary, &note.ContentJSON, &markdown, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	note.Summary = summary.String
	note.Markdown = markdown.String
	if created, parseErr := time.Parse(time.RFC3339Nano, createdRaw); parseErr == nil {
		note.CreatedAt = created
	}
	if updated, parseErr := time.Parse(time.RFC3339Nano, updatedRaw); parseErr == nil {
		note.UpdatedAt = updated
	}
	return &note, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
