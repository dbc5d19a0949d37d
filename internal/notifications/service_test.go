package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"scribe/internal/config"
	"scribe/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyNoteReady(context.Background(), "Cell Division"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	var captured struct {
		title    string
		tags     string
		priority string
		body     string
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		captured.body = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.Completion = true
	cfg.Notifications.Errors = true

	svc := notifications.NewService(&cfg)

	if err := svc.NotifyNoteReady(context.Background(), "Cell Division"); err != nil {
		t.Fatalf("NotifyNoteReady: %v", err)
	}
	if captured.title != "Scribe - Note Ready" {
		t.Fatalf("unexpected title %q", captured.title)
	}
	if captured.body != "Study note ready: Cell Division" {
		t.Fatalf("unexpected body %q", captured.body)
	}
	if captured.tags != "scribe,note,completed" {
		t.Fatalf("unexpected tags %q", captured.tags)
	}

	if err := svc.NotifySourceFailed(context.Background(), "Lecture 3", "structuring", errors.New("provider unavailable")); err != nil {
		t.Fatalf("NotifySourceFailed: %v", err)
	}
	if captured.title != "Scribe - Error" {
		t.Fatalf("unexpected title %q", captured.title)
	}
	if captured.body != "Processing failed for Lecture 3 during structuring: provider unavailable" {
		t.Fatalf("unexpected body %q", captured.body)
	}
	if captured.priority != "high" {
		t.Fatalf("unexpected priority %q", captured.priority)
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Completion = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyNoteReady(context.Background(), "ignored"); err != nil {
		t.Fatalf("expected nil for disabled completion notification, got %v", err)
	}
	if err := svc.NotifySourceFailed(context.Background(), "ignored", "structuring", errors.New("boom")); err != nil {
		t.Fatalf("expected nil for disabled error notification, got %v", err)
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Errors = true

	svc := notifications.NewService(&cfg)
	if err := svc.NotifySourceFailed(context.Background(), "Lecture", "ocr", errors.New("boom")); err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}
