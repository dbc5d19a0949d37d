package workflow

import (
	"context"

	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	Queue       queue.HealthSummary
	StageHealth map[queue.JobType]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	m.mu.RUnlock()

	health, err := m.store.Health(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue health", logging.Error(err))
	}

	stageHealth := make(map[queue.JobType]stage.Health, len(m.handlers))
	for jobType, handler := range m.handlers {
		stageHealth[jobType] = handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, Queue: health, StageHealth: stageHealth}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	return summary
}
