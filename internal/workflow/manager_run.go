package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"scribe/internal/logging"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.handlers) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	workers := m.cfg.Workflow.WorkerConcurrency
	if workers <= 0 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(workers + 1)
	m.mu.Unlock()

	go m.runReclaimer(runCtx)
	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i)
	}
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runWorker(ctx context.Context, index int) {
	defer m.wg.Done()
	logger := m.logger.With(
		logging.String(logging.FieldComponent, "workflow-worker"),
		logging.Int("worker", index),
	)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.limiter.Acquire(ctx); err != nil {
			return
		}

		job, err := m.store.ClaimNext(ctx)
		if err != nil {
			m.limiter.Refund()
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if job == nil {
			// The admitted slot was not used for a job start.
			m.limiter.Refund()
			m.waitForJobOrShutdown(ctx)
			continue
		}

		if err := m.processJob(ctx, logger, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// runReclaimer periodically requeues jobs abandoned by dead workers.
func (m *Manager) runReclaimer(ctx context.Context) {
	defer m.wg.Done()
	interval := time.Duration(m.cfg.Workflow.HeartbeatInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	logger := m.logger.With(logging.String(logging.FieldComponent, "workflow-reclaimer"))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.heartbeat.ReclaimStaleJobs(ctx, logger); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				)
			}
		}
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.setLastError(err)
	logger.Error("failed to claim next job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_claim_failed"),
	)
	retry := time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second
	if retry <= 0 {
		retry = m.pollInterval
	}
	select {
	case <-ctx.Done():
	case <-time.After(retry):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
