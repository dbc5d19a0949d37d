package providers

import (
	"context"
	"log/slog"

	"scribe/internal/logging"
)

// Cleanup accumulates teardown steps for remote uploads and scratch
// files. Run executes them in reverse registration order and only
// logs failures so a cleanup problem can never mask the stage outcome.
type Cleanup struct {
	steps []cleanupStep
}

type cleanupStep struct {
	label string
	fn    func(context.Context) error
}

// Add registers a teardown step under a short label used in logs.
func (c *Cleanup) Add(label string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	c.steps = append(c.steps, cleanupStep{label: label, fn: fn})
}

// Run executes all registered steps, latest first.
func (c *Cleanup) Run(ctx context.Context, logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.fn(ctx); err != nil {
			logger.WarnContext(ctx, "cleanup step failed",
				logging.String("step", step.label),
				logging.Error(err),
			)
		}
	}
	c.steps = nil
}
