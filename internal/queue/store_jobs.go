package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scribe/internal/services"
)

// Enqueue inserts a job for the given source. Duplicate active jobs
// (same type, source, and payload, still queued or running) are
// silently skipped so stage completion can re-run without double
// scheduling.
func (s *Store) Enqueue(ctx context.Context, jobType JobType, payload Payload, maxAttempts int) (int64, error) {
	if err := payload.Validate(jobType); err != nil {
		return 0, services.Wrap(services.ErrValidation, "queue", "enqueue", "invalid job payload", err)
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	encoded, err := payload.Encode()
	if err != nil {
		return 0, fmt.Errorf("encode payload: %w", err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO jobs (type, source_id, payload_json, state, attempts, max_attempts, run_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		jobType,
		payload.SourceID,
		encoded,
		JobQueued,
		maxAttempts,
		timestamp,
		timestamp,
		timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("enqueue %s job: %w", jobType, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// An equivalent job is already active.
		return 0, nil
	}
	return res.LastInsertId()
}

// ClaimNext atomically claims the oldest runnable job. Jobs whose
// source already has a running job are skipped so a single source
// never has two jobs in flight. Returns nil when nothing is runnable.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339Nano)

	row := tx.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE state = ? AND run_at <= ?
           AND source_id NOT IN (SELECT source_id FROM jobs WHERE state = ?)
         ORDER BY run_at, id
         LIMIT 1`,
		JobQueued,
		nowStr,
		JobRunning,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select runnable job: %w", err)
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE jobs
         SET state = ?, attempts = attempts + 1, heartbeat_at = ?, updated_at = ?
         WHERE id = ? AND state = ?`,
		JobRunning,
		nowStr,
		nowStr,
		job.ID,
		JobQueued,
	)
	if err != nil {
		return nil, fmt.Errorf("mark job running: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Lost the race to another worker.
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	job.State = JobRunning
	job.Attempts++
	job.HeartbeatAt = now
	job.UpdatedAt = now
	return job, nil
}

// CompleteJob marks a running job done.
func (s *Store) CompleteJob(ctx context.Context, jobID int64) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET state = ?, last_error = NULL, updated_at = ? WHERE id = ?`,
		JobDone,
		timestamp,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("complete job %d: %w", jobID, err)
	}
	return nil
}

// FailJob records a failure. Transient failures below the attempt
// ceiling are rescheduled with linear backoff; fatal errors and
// exhausted jobs become terminal.
func (s *Store) FailJob(ctx context.Context, job *Job, jobErr error, retryBackoff time.Duration) (terminal bool, err error) {
	if job == nil {
		return false, errors.New("job is nil")
	}
	message := ""
	if jobErr != nil {
		message = jobErr.Error()
	}

	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339Nano)

	fatal := services.IsFatal(jobErr)
	if !fatal && job.Attempts < job.MaxAttempts {
		runAt := now.Add(retryBackoff * time.Duration(job.Attempts))
		_, execErr := s.db.ExecContext(
			ctx,
			`UPDATE jobs SET state = ?, last_error = ?, run_at = ?, updated_at = ? WHERE id = ?`,
			JobQueued,
			message,
			runAt.Format(time.RFC3339Nano),
			nowStr,
			job.ID,
		)
		if execErr != nil {
			return false, fmt.Errorf("reschedule job %d: %w", job.ID, execErr)
		}
		return false, nil
	}

	_, execErr := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET state = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		JobFailed,
		message,
		nowStr,
		job.ID,
	)
	if execErr != nil {
		return false, fmt.Errorf("fail job %d: %w", job.ID, execErr)
	}
	return true, nil
}

// UpdateJobHeartbeat refreshes the liveness marker for a running job.
func (s *Store) UpdateJobHeartbeat(ctx context.Context, jobID int64) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET heartbeat_at = ?, updated_at = ? WHERE id = ? AND state = ?`,
		timestamp,
		timestamp,
		jobID,
		JobRunning,
	)
	if err != nil {
		return fmt.Errorf("heartbeat job %d: %w", jobID, err)
	}
	return nil
}

// ReclaimStale requeues running jobs whose heartbeat is older than the
// cutoff, covering workers that died mid-job.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET state = ?, last_error = 'reclaimed after stale heartbeat', updated_at = ?
         WHERE state = ? AND (heartbeat_at IS NULL OR heartbeat_at < ?)`,
		JobQueued,
		timestamp,
		JobRunning,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailedJobs moves terminal failed jobs back to queued with their
// attempt counters reset.
func (s *Store) RetryFailedJobs(ctx context.Context, sourceID int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	query := `UPDATE jobs SET state = ?, attempts = 0, last_error = NULL, run_at = ?, updated_at = ? WHERE state = ?`
	args := []any{JobQueued, timestamp, timestamp, JobFailed}
	if sourceID > 0 {
		query += ` AND source_id = ?`
		args = append(args, sourceID)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// ListJobs returns jobs in the given states (or all jobs when none are
// provided), newest first.
func (s *Store) ListJobs(ctx context.Context, states ...JobState) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY id DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if len(states) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(states))
		args := make([]any, len(states))
		for i, state := range states {
			args[i] = state
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE state IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// JobsForSource returns all jobs belonging to a source in creation order.
func (s *Store) JobsForSource(ctx context.Context, sourceID int64) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE source_id = ? ORDER BY id`,
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("jobs for source %d: %w", sourceID, err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

const jobColumns = "id, type, source_id, payload_json, state, attempts, max_attempts, run_at, last_error, heartbeat_at, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id          int64
		jobType     string
		sourceID    int64
		payloadJSON string
		state       string
		attempts    int
		maxAttempts int
		runAtRaw    sql.NullString
		lastError   sql.NullString
		heartbeat   sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&jobType,
		&sourceID,
		&payloadJSON,
		&state,
		&attempts,
		&maxAttempts,
		&runAtRaw,
		&lastError,
		&heartbeat,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:          id,
		Type:        JobType(jobType),
		SourceID:    sourceID,
		PayloadJSON: payloadJSON,
		State:       JobState(state),
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		LastError:   lastError.String,
	}
	if runAt, err := parseTimeString(runAtRaw.String); err == nil {
		job.RunAt = runAt
	}
	if hb, err := parseTimeString(heartbeat.String); err == nil {
		job.HeartbeatAt = hb
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}
