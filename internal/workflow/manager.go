package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"scribe/internal/config"
	"scribe/internal/notifications"
	"scribe/internal/pipeline"
	"scribe/internal/queue"
	"scribe/internal/stage"
)

// Manager coordinates queue processing across the worker pool.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	handlers     map[queue.JobType]stage.Handler
	notifier     notifications.Service
	pollInterval time.Duration
	retryBackoff time.Duration

	heartbeat *HeartbeatMonitor
	limiter   *rateLimiter

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a workflow manager over the pipeline environment.
func NewManager(cfg *config.Config, store *queue.Store, env *pipeline.Env, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, env, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom
// notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, env *pipeline.Env, logger *slog.Logger, notifier notifications.Service) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		handlers:     env.Handlers(),
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryBackoff: time.Duration(cfg.Workflow.RetryBackoffSeconds) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		limiter: newRateLimiter(
			cfg.Workflow.RateLimitMax,
			time.Duration(cfg.Workflow.RateLimitWindowSeconds)*time.Second,
		),
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// LastError returns the most recent dispatch error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}
