package workflow

import (
	"context"
	"sync"
	"time"
)

// rateLimiter bounds job starts to max per rolling window. A zero or
// negative max disables limiting.
type rateLimiter struct {
	max    int
	window time.Duration

	mu     sync.Mutex
	starts []time.Time
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{max: max, window: window}
}

// Acquire blocks until a job start is admitted or the context ends.
func (r *rateLimiter) Acquire(ctx context.Context) error {
	if r == nil || r.max <= 0 || r.window <= 0 {
		return ctx.Err()
	}
	for {
		wait := r.tryAdmit(time.Now())
		if wait <= 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Refund releases the most recently admitted start so an idle poll does
// not consume quota.
func (r *rateLimiter) Refund() {
	if r == nil || r.max <= 0 || r.window <= 0 {
		return
	}
	r.mu.Lock()
	if n := len(r.starts); n > 0 {
		r.starts = r.starts[:n-1]
	}
	r.mu.Unlock()
}

// tryAdmit records a start when capacity remains, otherwise returns how
// long until the oldest recorded start ages out of the window.
func (r *rateLimiter) tryAdmit(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.window)
	kept := r.starts[:0]
	for _, start := range r.starts {
		if start.After(cutoff) {
			kept = append(kept, start)
		}
	}
	r.starts = kept

	if len(r.starts) < r.max {
		r.starts = append(r.starts, now)
		return 0
	}
	return r.starts[0].Sub(cutoff)
}
