package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"scribe/internal/config"
)

// Store manages pipeline persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.QueueDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the queue database path.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the underlying connection for collaborators sharing the
// same database file (note persistence).
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateSource inserts a new pending source row.
func (s *Store) CreateSource(ctx context.Context, userID string, sourceType SourceType, title string) (*Source, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("create source: user id is required")
	}
	if _, ok := sourceTypes[sourceType]; !ok {
		return nil, fmt.Errorf("create source: unknown source type %q", sourceType)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sources (user_id, source_type, title, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		userID,
		sourceType,
		nullableString(title),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert source: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetSource(ctx, id)
}

// GetSource fetches a source by identifier; nil when absent.
func (s *Store) GetSource(ctx context.Context, id int64) (*Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	source, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return source, nil
}

// UpdateSource persists changes to an existing source row.
func (s *Store) UpdateSource(ctx context.Context, source *Source) error {
	if source == nil {
		return errors.New("source is nil")
	}
	source.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE sources
         SET user_id = ?, source_type = ?, title = ?, raw_text = ?, extracted_text = ?,
             original_storage_path = ?, metadata_json = ?, status = ?, stage = ?,
             processing_error = ?, updated_at = ?
         WHERE id = ?`,
		source.UserID,
		source.SourceType,
		nullableString(source.Title),
		nullableString(source.RawText),
		nullableString(source.ExtractedText),
		nullableString(source.OriginalStoragePath),
		nullableString(source.MetadataJSON),
		source.Status,
		nullableString(source.Stage),
		nullableString(source.ProcessingError),
		source.UpdatedAt.Format(time.RFC3339Nano),
		source.ID,
	)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	return nil
}

// ListSources returns sources filtered by status set (or all sources
// when no status is provided), ordered by creation time.
func (s *Store) ListSources(ctx context.Context, statuses ...Status) ([]*Source, error) {
	baseQuery := `SELECT ` + sourceColumns + ` FROM sources`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []*Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// RetryFailedSources moves failed sources back to pending so the
// operator can re-enqueue their last stage.
func (s *Store) RetryFailedSources(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE sources SET status = ?, processing_error = NULL, updated_at = ? WHERE status = ?`,
			StatusPending, timestamp, StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed sources: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusPending, timestamp)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE sources SET status = ?, processing_error = NULL, updated_at = ?
         WHERE id IN (`+placeholders+`) AND status = '`+string(StatusFailed)+`'`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry selected sources: %w", err)
	}
	return res.RowsAffected()
}

// Health aggregates source and job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	health := HealthSummary{}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM sources GROUP BY status`)
	if err != nil {
		return health, fmt.Errorf("source stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return health, err
		}
		health.Sources += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProcessing:
			health.Processing += count
		case StatusFailed:
			health.Failed += count
		case StatusCompleted:
			health.Completed += count
		}
	}
	if err := rows.Err(); err != nil {
		return health, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs WHERE state = ?`, JobQueued)
	if err := row.Scan(&health.QueuedJobs); err != nil {
		return health, fmt.Errorf("queued job count: %w", err)
	}
	return health, nil
}

// Clear removes sources, jobs, and notes. When failedOnly is set, only
// failed sources (and their jobs) are removed.
func (s *Store) Clear(ctx context.Context, failedOnly bool) (int64, error) {
	if failedOnly {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM jobs WHERE source_id IN (SELECT id FROM sources WHERE status = ?)`, StatusFailed); err != nil {
			return 0, fmt.Errorf("clear failed jobs: %w", err)
		}
		res, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE status = ?`, StatusFailed)
		if err != nil {
			return 0, fmt.Errorf("clear failed sources: %w", err)
		}
		return res.RowsAffected()
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs`); err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return 0, fmt.Errorf("clear notes: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM sources`)
	if err != nil {
		return 0, fmt.Errorf("clear sources: %w", err)
	}
	return res.RowsAffected()
}

const sourceColumns = "id, user_id, source_type, title, raw_text, extracted_text, original_storage_path, metadata_json, status, stage, processing_error, created_at, updated_at"

func scanSource(scanner interface{ Scan(dest ...any) error }) (*Source, error) {
	var (
		id          int64
		userID      string
		sourceType  string
		title       sql.NullString
		rawText     sql.NullString
		extracted   sql.NullString
		storagePath sql.NullString
		metadata    sql.NullString
		statusStr   string
		stage       sql.NullString
		procError   sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&userID,
		&sourceType,
		&title,
		&rawText,
		&extracted,
		&storagePath,
		&metadata,
		&statusStr,
		&stage,
		&procError,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	source := &Source{
		ID:                  id,
		UserID:              userID,
		SourceType:          SourceType(sourceType),
		Title:               title.String,
		RawText:             rawText.String,
		ExtractedText:       extracted.String,
		OriginalStoragePath: storagePath.String,
		MetadataJSON:        metadata.String,
		Status:              Status(statusStr),
		Stage:               stage.String,
		ProcessingError:     procError.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		source.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		source.UpdatedAt = updated
	}
	return source, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
