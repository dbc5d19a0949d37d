package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/stage"
)

func (m *Manager) processJob(ctx context.Context, workerLogger *slog.Logger, job *queue.Job) error {
	jobCtx := services.WithSourceID(ctx, job.SourceID)
	jobCtx = services.WithJobID(jobCtx, job.ID)
	jobCtx = services.WithStage(jobCtx, string(job.Type))
	jobCtx = services.WithRequestID(jobCtx, uuid.NewString())
	logger := logging.WithContext(jobCtx, workerLogger)

	handler, ok := m.handlers[job.Type]
	if !ok {
		// A claimed job with no registered handler can never succeed.
		err := services.Wrap(services.ErrValidation, string(job.Type), "dispatch",
			fmt.Sprintf("no handler registered for job type %q", job.Type), nil)
		m.failJob(jobCtx, logger, nil, job, err)
		m.setLastError(err)
		return err
	}

	source, err := m.store.GetSource(jobCtx, job.SourceID)
	if err != nil {
		wrapped := fmt.Errorf("load source for job: %w", err)
		logger.Error("failed to load source", logging.Error(wrapped))
		m.failJob(jobCtx, logger, nil, job, wrapped)
		m.setLastError(wrapped)
		return wrapped
	}
	if source == nil {
		err := services.Wrap(services.ErrValidation, string(job.Type), "dispatch",
			fmt.Sprintf("source %d no longer exists", job.SourceID), nil)
		m.failJob(jobCtx, logger, nil, job, err)
		m.setLastError(err)
		return err
	}

	source.BeginStage(string(job.Type))
	if err := m.store.UpdateSource(jobCtx, source); err != nil {
		wrapped := fmt.Errorf("persist processing transition: %w", err)
		logger.Error("failed to transition source to processing", logging.Error(wrapped))
		m.failJob(jobCtx, logger, source, job, wrapped)
		m.setLastError(wrapped)
		return wrapped
	}

	return m.executeStage(jobCtx, logger, handler, source, job)
}

func (m *Manager) executeStage(ctx context.Context, logger *slog.Logger, handler stage.Handler, source *queue.Source, job *queue.Job) error {
	stageStart := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("attempt", job.Attempts),
	)

	followUps, execErr := m.executeWithHeartbeat(ctx, handler, source, job)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			// Leave the job running; the reclaimer will requeue it once
			// its heartbeat goes stale.
			logger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.failJob(ctx, logger, source, job, execErr)
		m.setLastError(execErr)
		return execErr
	}

	if err := m.store.UpdateSource(ctx, source); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		logger.Error("failed to persist stage result", logging.Error(wrapped))
		m.failJob(ctx, logger, source, job, wrapped)
		m.setLastError(wrapped)
		return wrapped
	}
	// Follow-ups go in before the job is marked done. The claim query
	// skips sources with a running job, so nothing picks them up early,
	// and the active-job unique index absorbs re-enqueues if the worker
	// dies between the two writes and the job is later reclaimed.
	for _, followUp := range followUps {
		if _, err := m.store.Enqueue(ctx, followUp.Type, followUp.Payload, m.cfg.Workflow.MaxJobAttempts); err != nil {
			wrapped := fmt.Errorf("enqueue %s follow-up: %w", followUp.Type, err)
			logger.Error("failed to enqueue follow-up job", logging.Error(wrapped))
			m.failJob(ctx, logger, source, job, wrapped)
			m.setLastError(wrapped)
			return wrapped
		}
	}
	if err := m.store.CompleteJob(ctx, job.ID); err != nil {
		wrapped := fmt.Errorf("complete job: %w", err)
		logger.Error("failed to mark job done", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("follow_ups", len(followUps)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)

	if job.Type == queue.JobNoteAssembly {
		m.notifyNoteReady(ctx, logger, source)
	}
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, source *queue.Source, job *queue.Job) ([]queue.FollowUp, error) {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	followUps, execErr := handler.Execute(ctx, source, job)
	hbCancel()
	hbWG.Wait()
	return followUps, execErr
}

// failJob records the failure on the queue and, when the job is out of
// attempts, marks the source failed and notifies. A nil source means it
// could not be loaded; the job still fails.
func (m *Manager) failJob(ctx context.Context, logger *slog.Logger, source *queue.Source, job *queue.Job, jobErr error) {
	details := services.Details(jobErr)
	logger.Error("stage failed",
		logging.Error(jobErr),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.Int("attempt", job.Attempts),
	)

	terminal, err := m.store.FailJob(ctx, job, jobErr, m.retryBackoff)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist job failure")
		} else {
			logger.Error("failed to persist job failure", logging.Error(err))
		}
		return
	}
	// Every failure lands on the source, retriable or not. The next
	// attempt's BeginStage flips it back to processing and clears the
	// message, so the failed state is visible for the backoff window.
	if source != nil {
		source.SetFailed(details.Message)
		if err := m.store.UpdateSource(ctx, source); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Debug("daemon shutting down, could not persist source failure")
			} else {
				logger.Error("failed to persist source failure", logging.Error(err))
			}
		}
	}

	if !terminal {
		logger.Warn("job requeued for retry",
			logging.Int("attempt", job.Attempts),
			logging.Int("max_attempts", job.MaxAttempts),
		)
		return
	}
	m.notifySourceFailed(ctx, logger, source, job, jobErr)
}

func (m *Manager) notifyNoteReady(ctx context.Context, logger *slog.Logger, source *queue.Source) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyNoteReady(ctx, source.Title); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send completion notification")
		} else {
			logger.Debug("completion notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) notifySourceFailed(ctx context.Context, logger *slog.Logger, source *queue.Source, job *queue.Job, jobErr error) {
	if m.notifier == nil {
		return
	}
	title := ""
	if source != nil {
		title = source.Title
	}
	if err := m.notifier.NotifySourceFailed(ctx, title, string(job.Type), jobErr); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send error notification")
		} else {
			logger.Debug("error notification failed", logging.Error(err))
		}
	}
}
