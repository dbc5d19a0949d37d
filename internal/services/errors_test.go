package services_test

import (
	"errors"
	"strings"
	"testing"

	"scribe/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := errors.New("boom")
	err := services.Wrap(services.ErrProvider, "transcription", "chunk upload", "request failed", cause)

	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected error to match ErrProvider, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to remain reachable")
	}
	if !strings.Contains(err.Error(), "chunk upload") {
		t.Fatalf("expected operation in message, got %q", err.Error())
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "assembly", "persist note", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestDetailsExtractsTaggedFields(t *testing.T) {
	cause := errors.New("schema mismatch")
	err := services.Wrap(services.ErrValidation, "structuring", "validate response", "missing title", cause)

	details := services.Details(err)
	if details.Kind != services.KindValidation {
		t.Fatalf("expected validation kind, got %s", details.Kind)
	}
	if details.Stage != "structuring" {
		t.Fatalf("unexpected stage: %q", details.Stage)
	}
	if details.Cause == nil || !errors.Is(details.Cause, cause) {
		t.Fatalf("expected cause preserved, got %v", details.Cause)
	}
	if !strings.Contains(details.Message, "missing title") {
		t.Fatalf("unexpected message: %q", details.Message)
	}
}

func TestDetailsUntaggedError(t *testing.T) {
	details := services.Details(errors.New("plain failure"))
	if details.Kind != services.KindTransient {
		t.Fatalf("expected transient kind, got %s", details.Kind)
	}
	if details.Message != "plain failure" {
		t.Fatalf("unexpected message: %q", details.Message)
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"validation", services.Wrap(services.ErrValidation, "", "", "bad payload", nil), true},
		{"configuration", services.Wrap(services.ErrConfiguration, "", "", "no api key", nil), true},
		{"provider", services.Wrap(services.ErrProvider, "", "", "timeout", nil), false},
		{"plain", errors.New("x"), false},
	}
	for _, tc := range cases {
		if got := services.IsFatal(tc.err); got != tc.fatal {
			t.Fatalf("%s: IsFatal = %v, want %v", tc.name, got, tc.fatal)
		}
	}
}
