package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers classify stage and provider failures. Wrap tags an
// error with one of these so the dispatcher can decide between
// retry-eligible and permanently failed work.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrProvider      = errors.New("provider error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Kind is the string classification carried by wrapped errors.
type Kind string

const (
	KindExternalTool  Kind = "external_tool"
	KindProvider      Kind = "provider"
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindTimeout       Kind = "timeout"
	KindTransient     Kind = "transient"
)

type taggedError struct {
	marker    error
	stage     string
	operation string
	message   string
	cause     error
}

func (e *taggedError) Error() string {
	detail := buildDetail(e.stage, e.operation, e.message)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.marker, detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.marker, detail)
}

func (e *taggedError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.marker, e.cause}
	}
	return []error{e.marker}
}

// Wrap builds an error that carries stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above; nil defaults to ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &taggedError{
		marker:    marker,
		stage:     strings.TrimSpace(stage),
		operation: strings.TrimSpace(operation),
		message:   strings.TrimSpace(message),
		cause:     err,
	}
}

// ErrorDetails describes a failure in the terms the dispatcher persists
// onto the source row and emits in structured logs.
type ErrorDetails struct {
	Kind      Kind
	Stage     string
	Operation string
	Message   string
	Cause     error
}

// Details extracts structured failure information from an error chain.
// Untagged errors are reported as transient with the raw error text.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindTransient}
	}
	var tagged *taggedError
	if errors.As(err, &tagged) {
		return ErrorDetails{
			Kind:      kindOf(tagged.marker),
			Stage:     tagged.stage,
			Operation: tagged.operation,
			Message:   buildDetail(tagged.stage, tagged.operation, tagged.message),
			Cause:     tagged.cause,
		}
	}
	return ErrorDetails{
		Kind:    kindOf(err),
		Message: strings.TrimSpace(err.Error()),
		Cause:   err,
	}
}

// IsFatal reports whether an error should never be redelivered: payload
// and configuration problems will fail identically on every attempt.
func IsFatal(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConfiguration)
}

func kindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrProvider):
		return KindProvider
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	default:
		return KindTransient
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
