// Package workflow advances queued jobs through the pipeline stage
// handlers.
//
// The Manager runs a pool of workers that claim jobs from the durable
// queue, execute the matching stage handler, persist the mutated
// source, and enqueue the follow-up jobs the handler reports. A
// heartbeat monitor keeps running jobs visibly alive and reclaims work
// abandoned by dead workers, and a shared rate limiter bounds how many
// jobs may start per window so provider quotas survive queue bursts.
//
// Add new lifecycle stages by extending the queue job enums and the
// pipeline handler registry; this package only coordinates.
package workflow
