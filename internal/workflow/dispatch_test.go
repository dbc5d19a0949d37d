package workflow

import (
	"context"
	"testing"

	"scribe/internal/logging"
	"scribe/internal/notes"
	"scribe/internal/pipeline"
	"scribe/internal/queue"
	"scribe/internal/stage"
	"scribe/internal/testsupport"
)

type stubHandler struct {
	followUps []queue.FollowUp
}

func (h *stubHandler) Execute(context.Context, *queue.Source, *queue.Job) ([]queue.FollowUp, error) {
	return h.followUps, nil
}

func (h *stubHandler) HealthCheck(context.Context) stage.Health { return stage.Healthy("stub") }

func newDispatchManager(t *testing.T) (*Manager, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	env := &pipeline.Env{
		Cfg:    cfg,
		Store:  store,
		Notes:  notes.NewStore(store.DB()),
		Logger: logging.NewNop(),
	}
	return NewManagerWithNotifier(cfg, store, env, logging.NewNop(), nil), store
}

func claimJob(t *testing.T, store *queue.Store) *queue.Job {
	t.Helper()
	job, err := store.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if job == nil {
		t.Fatal("expected a claimable job")
	}
	return job
}

func TestExecuteStageLeavesJobUnfinishedWhenFollowUpEnqueueFails(t *testing.T) {
	m, store := newDispatchManager(t)
	ctx := context.Background()

	source := testsupport.NewSource(t, store, queue.SourceText, "ordering")
	if _, err := store.Enqueue(ctx, queue.JobStructuring, queue.Payload{SourceID: source.ID}, 3); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job := claimJob(t, store)
	source.BeginStage(string(job.Type))
	if err := store.UpdateSource(ctx, source); err != nil {
		t.Fatalf("UpdateSource: %v", err)
	}

	// The missing placeholder id makes the follow-up fail validation at
	// the queue boundary.
	handler := &stubHandler{followUps: []queue.FollowUp{{
		Type:    queue.JobVisualGeneration,
		Payload: queue.Payload{SourceID: source.ID},
	}}}

	if err := m.executeStage(ctx, logging.NewNop(), handler, source, job); err == nil {
		t.Fatal("expected enqueue failure to surface")
	}

	// The stage job must not read as done when its follow-up never made
	// it into the queue; otherwise the source is stranded with nothing
	// left to claim or reclaim.
	jobs, err := store.JobsForSource(ctx, source.ID)
	if err != nil {
		t.Fatalf("JobsForSource: %v", err)
	}
	for _, stored := range jobs {
		if stored.Type == queue.JobStructuring && stored.State == queue.JobDone {
			t.Fatal("stage job marked done despite missing follow-up")
		}
	}

	current, err := store.GetSource(ctx, source.ID)
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if current.Status != queue.StatusFailed || current.ProcessingError == "" {
		t.Fatalf("expected failed source with message, got %s %q", current.Status, current.ProcessingError)
	}
}

func TestExecuteStageToleratesFollowUpFromEarlierAttempt(t *testing.T) {
	m, store := newDispatchManager(t)
	ctx := context.Background()

	source := testsupport.NewSource(t, store, queue.SourceText, "replay")
	if _, err := store.Enqueue(ctx, queue.JobStructuring, queue.Payload{SourceID: source.ID}, 3); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job := claimJob(t, store)
	source.BeginStage(string(job.Type))
	if err := store.UpdateSource(ctx, source); err != nil {
		t.Fatalf("UpdateSource: %v", err)
	}

	// Simulate a worker that died after enqueueing the follow-up but
	// before marking its own job done, whose job was then reclaimed and
	// claimed again.
	if _, err := store.Enqueue(ctx, queue.JobVisualResolution, queue.Payload{SourceID: source.ID}, 3); err != nil {
		t.Fatalf("pre-enqueue follow-up: %v", err)
	}
	handler := &stubHandler{followUps: []queue.FollowUp{{
		Type:    queue.JobVisualResolution,
		Payload: queue.Payload{SourceID: source.ID},
	}}}

	if err := m.executeStage(ctx, logging.NewNop(), handler, source, job); err != nil {
		t.Fatalf("executeStage: %v", err)
	}

	jobs, err := store.JobsForSource(ctx, source.ID)
	if err != nil {
		t.Fatalf("JobsForSource: %v", err)
	}
	var followUps, done int
	for _, stored := range jobs {
		if stored.Type == queue.JobVisualResolution {
			followUps++
		}
		if stored.Type == queue.JobStructuring && stored.State == queue.JobDone {
			done++
		}
	}
	if followUps != 1 {
		t.Fatalf("expected exactly one follow-up job, got %d", followUps)
	}
	if done != 1 {
		t.Fatal("expected the stage job to finish done")
	}
}
