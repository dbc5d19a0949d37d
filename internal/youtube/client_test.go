package youtube_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"scribe/internal/services"
	"scribe/internal/youtube"
)

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		input string
		want  string
		ok    bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=30s", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://example.com/watch?v=dQw4w9WgXcQ", "", false},
		{"not a url at all!!", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := youtube.ExtractVideoID(tc.input)
		if tc.ok && err != nil {
			t.Errorf("ExtractVideoID(%q): %v", tc.input, err)
			continue
		}
		if !tc.ok && err == nil {
			t.Errorf("ExtractVideoID(%q): expected error", tc.input)
			continue
		}
		if got != tc.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestFetchParsesTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("videoId"); got != "dQw4w9WgXcQ" {
			t.Errorf("unexpected videoId %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"transcript": "never gonna give you up",
			"language":   "en",
		})
	}))
	defer server.Close()

	client := youtube.NewClient(youtube.Config{BaseURL: server.URL})
	result, err := client.Fetch(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Text != "never gonna give you up" || result.Language != "en" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestFetchJoinsSegmentsWhenTranscriptMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"segments": []map[string]any{
				{"text": "first segment", "start": 0.0},
				{"text": "second segment", "start": 4.2},
			},
		})
	}))
	defer server.Close()

	client := youtube.NewClient(youtube.Config{BaseURL: server.URL})
	result, err := client.Fetch(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Text != "first segment second segment" {
		t.Fatalf("unexpected text %q", result.Text)
	}
}

func TestFetchEmptyTranscriptIsProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"transcript": ""})
	}))
	defer server.Close()

	client := youtube.NewClient(youtube.Config{BaseURL: server.URL})
	_, err := client.Fetch(context.Background(), "dQw4w9WgXcQ")
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestFetchInvalidURLIsValidationError(t *testing.T) {
	client := youtube.NewClient(youtube.Config{BaseURL: "http://127.0.0.1:0"})
	_, err := client.Fetch(context.Background(), "https://example.com/nope")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
