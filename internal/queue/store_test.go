package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/testsupport"
)

func TestCreateAndGetSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source, err := store.CreateSource(ctx, "user-1", queue.SourceText, "Lecture notes")
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	if source.ID == 0 {
		t.Fatal("expected nonzero source id")
	}
	if source.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", source.Status)
	}

	fetched, err := store.GetSource(ctx, source.ID)
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected source, got nil")
	}
	if fetched.Title != "Lecture notes" {
		t.Fatalf("unexpected title %q", fetched.Title)
	}
	if fetched.UserID != "user-1" {
		t.Fatalf("unexpected user %q", fetched.UserID)
	}
}

func TestGetSourceMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	source, err := store.GetSource(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if source != nil {
		t.Fatalf("expected nil for missing source, got %+v", source)
	}
}

func TestUpdateSourceRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := testsupport.NewSource(t, store, queue.SourceAudio, "Podcast")
	source.BeginStage("audio_transcription")
	source.ExtractedText = "hello world"
	if err := source.SetMetadata(map[string]any{"durationSeconds": 120.5}); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := store.UpdateSource(ctx, source); err != nil {
		t.Fatalf("UpdateSource: %v", err)
	}

	fetched, err := store.GetSource(ctx, source.ID)
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if fetched.Status != queue.StatusProcessing {
		t.Fatalf("expected processing, got %s", fetched.Status)
	}
	if fetched.Stage != "audio_transcription" {
		t.Fatalf("unexpected stage %q", fetched.Stage)
	}
	if fetched.ExtractedText != "hello world" {
		t.Fatalf("unexpected extracted text %q", fetched.ExtractedText)
	}
	meta, err := fetched.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if meta["durationSeconds"] != 120.5 {
		t.Fatalf("unexpected metadata %v", meta)
	}
}

func TestListSourcesFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	pending := testsupport.NewSource(t, store, queue.SourceText, "a")
	failed := testsupport.NewSource(t, store, queue.SourcePDF, "b")
	failed.SetFailed("ocr exploded")
	if err := store.UpdateSource(ctx, failed); err != nil {
		t.Fatalf("UpdateSource: %v", err)
	}

	got, err := store.ListSources(ctx, queue.StatusFailed)
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if len(got) != 1 || got[0].ID != failed.ID {
		t.Fatalf("expected only failed source, got %d rows", len(got))
	}

	all, err := store.ListSources(ctx)
	if err != nil {
		t.Fatalf("ListSources all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(all))
	}
	if all[0].ID != pending.ID {
		t.Fatal("expected creation order")
	}
}

func TestEnqueueDeduplicatesActiveJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := testsupport.NewSource(t, store, queue.SourceText, "dedupe")
	payload := queue.Payload{SourceID: source.ID}

	first, err := store.Enqueue(ctx, queue.JobStructuring, payload, 3)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if first == 0 {
		t.Fatal("expected job id from first enqueue")
	}

	second, err := store.Enqueue(ctx, queue.JobStructuring, payload, 3)
	if err != nil {
		t.Fatalf("duplicate Enqueue: %v", err)
	}
	if second != 0 {
		t.Fatalf("expected duplicate to be skipped, got id %d", second)
	}

	jobs, err := store.ListJobs(ctx, queue.JobQueued)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 queued job, got %d", len(jobs))
	}
}

func TestEnqueueRejectsInvalidPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.Enqueue(context.Background(), queue.JobAudioTranscription, queue.Payload{SourceID: 1}, 3)
	if err == nil {
		t.Fatal("expected error for missing audio path")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClaimNextOrdersByRunAt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	older := testsupport.NewSource(t, store, queue.SourceText, "older")
	newer := testsupport.NewSource(t, store, queue.SourcePDF, "newer")

	if _, err := store.Enqueue(ctx, queue.JobTextIngestion, queue.Payload{SourceID: older.ID}, 3); err != nil {
		t.Fatalf("Enqueue older: %v", err)
	}
	if _, err := store.Enqueue(ctx, queue.JobPDFProcessing, queue.Payload{SourceID: newer.ID}, 3); err != nil {
		t.Fatalf("Enqueue newer: %v", err)
	}

	job, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if job == nil {
		t.Fatal("expected a job")
	}
	if job.SourceID != older.ID {
		t.Fatalf("expected oldest job first, got source %d", job.SourceID)
	}
	if job.State != queue.JobRunning {
		t.Fatalf("expected running state, got %s", job.State)
	}
	if job.Attempts != 1 {
		t.Fatalf("expected attempts=1, got %d", job.Attempts)
	}
}

func TestClaimNextSkipsSourceWithRunningJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := testsupport.NewSource(t, store, queue.SourceAudio, "busy")
	if _, err := store.Enqueue(ctx, queue.JobAudioTranscription, queue.Payload{SourceID: source.ID, AudioFilePath: "/tmp/a.mp3"}, 3); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	first, err := store.ClaimNext(ctx)
	if err != nil || first == nil {
		t.Fatalf("ClaimNext: job=%v err=%v", first, err)
	}

	// Queue a second job for the same source while the first runs.
	if _, err := store.Enqueue(ctx, queue.JobStructuring, queue.Payload{SourceID: source.ID}, 3); err != nil {
		t.Fatalf("Enqueue second: %v", err)
	}

	second, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext second: %v", err)
	}
	if second != nil {
		t.Fatalf("expected no claim while source busy, got job %d", second.ID)
	}

	if err := store.CompleteJob(ctx, first.ID); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	third, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext third: %v", err)
	}
	if third == nil || third.Type != queue.JobStructuring {
		t.Fatalf("expected structuring job after completion, got %+v", third)
	}
}

func TestFailJobReschedulesTransientErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := testsupport.NewSource(t, store, queue.SourceText, "retryable")
	if _, err := store.Enqueue(ctx, queue.JobTextIngestion, queue.Payload{SourceID: source.ID}, 3); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, err := store.ClaimNext(ctx)
	if err != nil || job == nil {
		t.Fatalf("ClaimNext: job=%v err=%v", job, err)
	}

	terminal, err := store.FailJob(ctx, job, errors.New("provider timeout"), time.Minute)
	if err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if terminal {
		t.Fatal("expected transient failure to be rescheduled")
	}

	jobs, err := store.ListJobs(ctx, queue.JobQueued)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected requeued job, got %d rows", len(jobs))
	}
	if jobs[0].LastError != "provider timeout" {
		t.Fatalf("unexpected last error %q", jobs[0].LastError)
	}
	if !jobs[0].RunAt.After(time.Now().Add(30 * time.Second)) {
		t.Fatal("expected backoff on run_at")
	}

	// Not runnable yet because of the backoff.
	claimed, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext after backoff: %v", err)
	}
	if claimed != nil {
		t.Fatal("expected no claim before run_at")
	}
}

func TestFailJobTerminalOnFatalError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := testsupport.NewSource(t, store, queue.SourceText, "fatal")
	if _, err := store.Enqueue(ctx, queue.JobTextIngestion, queue.Payload{SourceID: source.ID}, 5); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, err := store.ClaimNext(ctx)
	if err != nil || job == nil {
		t.Fatalf("ClaimNext: job=%v err=%v", job, err)
	}

	fatalErr := services.Wrap(services.ErrValidation, "text_ingestion", "extract", "raw text is empty", nil)
	terminal, err := store.FailJob(ctx, job, fatalErr, time.Minute)
	if err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if !terminal {
		t.Fatal("expected fatal error to be terminal")
	}

	failed, err := store.ListJobs(ctx, queue.JobFailed)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed job, got %d", len(failed))
	}
}

func TestFailJobTerminalAfterMaxAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := testsupport.NewSource(t, store, queue.SourceText, "exhausted")
	if _, err := store.Enqueue(ctx, queue.JobTextIngestion, queue.Payload{SourceID: source.ID}, 1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, err := store.ClaimNext(ctx)
	if err != nil || job == nil {
		t.Fatalf("ClaimNext: job=%v err=%v", job, err)
	}

	terminal, err := store.FailJob(ctx, job, errors.New("still broken"), time.Minute)
	if err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if !terminal {
		t.Fatal("expected terminal failure at attempt ceiling")
	}
}

func TestReclaimStaleRequeuesDeadWorkers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := testsupport.NewSource(t, store, queue.SourceText, "stale")
	if _, err := store.Enqueue(ctx, queue.JobTextIngestion, queue.Payload{SourceID: source.ID}, 3); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, err := store.ClaimNext(ctx)
	if err != nil || job == nil {
		t.Fatalf("ClaimNext: job=%v err=%v", job, err)
	}

	reclaimed, err := store.ReclaimStale(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed job, got %d", reclaimed)
	}

	queued, err := store.ListJobs(ctx, queue.JobQueued)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(queued) != 1 {
		t.Fatalf("expected requeued job, got %d", len(queued))
	}
}

func TestReclaimStaleLeavesFreshJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := testsupport.NewSource(t, store, queue.SourceText, "fresh")
	if _, err := store.Enqueue(ctx, queue.JobTextIngestion, queue.Payload{SourceID: source.ID}, 3); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, err := store.ClaimNext(ctx)
	if err != nil || job == nil {
		t.Fatalf("ClaimNext: job=%v err=%v", job, err)
	}
	if err := store.UpdateJobHeartbeat(ctx, job.ID); err != nil {
		t.Fatalf("UpdateJobHeartbeat: %v", err)
	}

	reclaimed, err := store.ReclaimStale(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("expected no reclaim for fresh heartbeat, got %d", reclaimed)
	}
}

func TestRetryFailedJobsResetsAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := testsupport.NewSource(t, store, queue.SourceText, "retry")
	if _, err := store.Enqueue(ctx, queue.JobTextIngestion, queue.Payload{SourceID: source.ID}, 1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, err := store.ClaimNext(ctx)
	if err != nil || job == nil {
		t.Fatalf("ClaimNext: job=%v err=%v", job, err)
	}
	if _, err := store.FailJob(ctx, job, errors.New("boom"), time.Minute); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	retried, err := store.RetryFailedJobs(ctx, source.ID)
	if err != nil {
		t.Fatalf("RetryFailedJobs: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected 1 retried job, got %d", retried)
	}

	claimed, err := store.ClaimNext(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext after retry: job=%v err=%v", claimed, err)
	}
	if claimed.Attempts != 1 {
		t.Fatalf("expected attempts reset, got %d", claimed.Attempts)
	}
}

func TestHealthCountsByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewSource(t, store, queue.SourceText, "one")
	done := testsupport.NewSource(t, store, queue.SourceAudio, "two")
	done.Complete()
	if err := store.UpdateSource(ctx, done); err != nil {
		t.Fatalf("UpdateSource: %v", err)
	}

	third := testsupport.NewSource(t, store, queue.SourcePDF, "three")
	if _, err := store.Enqueue(ctx, queue.JobPDFProcessing, queue.Payload{SourceID: third.ID}, 3); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Sources != 3 || health.Pending != 2 || health.Completed != 1 {
		t.Fatalf("unexpected health %+v", health)
	}
	if health.QueuedJobs != 1 {
		t.Fatalf("expected 1 queued job, got %d", health.QueuedJobs)
	}
}

func TestClearFailedOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	keep := testsupport.NewSource(t, store, queue.SourceText, "keep")
	drop := testsupport.NewSource(t, store, queue.SourcePDF, "drop")
	drop.SetFailed("bad scan")
	if err := store.UpdateSource(ctx, drop); err != nil {
		t.Fatalf("UpdateSource: %v", err)
	}

	removed, err := store.Clear(ctx, true)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed source, got %d", removed)
	}

	remaining, err := store.ListSources(ctx)
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != keep.ID {
		t.Fatalf("expected only kept source, got %d rows", len(remaining))
	}
}
