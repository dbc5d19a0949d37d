package providers

import (
	"context"
	"log/slog"

	"scribe/internal/logging"
	"scribe/internal/services"
)

// Outcome records one backend attempt as a value so the fallback
// decision can be made without exception interception.
type Outcome[T any] struct {
	Value    T
	Provider string
	Err      error
}

// Success builds a successful outcome.
func Success[T any](provider string, value T) Outcome[T] {
	return Outcome[T]{Value: value, Provider: provider}
}

// Failure builds a failed outcome.
func Failure[T any](provider string, err error) Outcome[T] {
	return Outcome[T]{Provider: provider, Err: err}
}

// OK reports whether the attempt produced a usable value.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Pick selects between two recorded attempts. The primary wins when it
// succeeded; otherwise a successful fallback wins; when both failed the
// primary's error is surfaced because it is the diagnostically useful
// one.
func Pick[T any](primary, fallback Outcome[T]) Outcome[T] {
	if primary.OK() {
		return primary
	}
	if fallback.OK() {
		return fallback
	}
	return primary
}

// Backend is one named candidate implementation for a provider role.
// Call must treat an empty result as an error.
type Backend[T any] struct {
	Name string
	Call func(context.Context) (T, error)
}

// Resolve runs the primary backend and, when it fails, the fallback.
// A nil primary counts as an immediate primary failure rather than an
// abort so a configured fallback still gets its chance. The fallback
// is never invoked after a primary success.
func Resolve[T any](ctx context.Context, logger *slog.Logger, role string, primary, fallback *Backend[T]) (T, string, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	primaryOutcome := attempt(ctx, role, primary, "primary backend not configured")
	if primaryOutcome.OK() {
		return primaryOutcome.Value, primaryOutcome.Provider, nil
	}

	if fallback == nil {
		var zero T
		return zero, primaryOutcome.Provider, primaryOutcome.Err
	}

	logger.WarnContext(ctx, "primary provider failed, engaging fallback",
		logging.String("role", role),
		logging.String(logging.FieldProvider, primaryOutcome.Provider),
		logging.String("fallback", fallback.Name),
		logging.Error(primaryOutcome.Err),
	)

	fallbackOutcome := attempt(ctx, role, fallback, "fallback backend not configured")
	chosen := Pick(primaryOutcome, fallbackOutcome)
	if chosen.OK() {
		return chosen.Value, chosen.Provider, nil
	}
	var zero T
	return zero, chosen.Provider, chosen.Err
}

func attempt[T any](ctx context.Context, role string, backend *Backend[T], missingMessage string) Outcome[T] {
	if backend == nil || backend.Call == nil {
		return Failure[T]("", services.Wrap(services.ErrProvider, role, "resolve", missingMessage, nil))
	}
	value, err := backend.Call(ctx)
	if err != nil {
		return Failure[T](backend.Name, err)
	}
	return Success(backend.Name, value)
}
