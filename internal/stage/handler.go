package stage

import (
	"context"

	"scribe/internal/queue"
)

// Handler describes the contract the dispatcher needs from each job processor.
type Handler interface {
	// Execute performs the job's work against the source and returns the
	// jobs to enqueue next. The dispatcher persists the mutated source and
	// enqueues the follow-ups only when Execute succeeds.
	Execute(context.Context, *queue.Source, *queue.Job) ([]queue.FollowUp, error)
	HealthCheck(context.Context) Health
}
