package textgen_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"scribe/internal/providers/textgen"
	"scribe/internal/services"
)

func completionBody(content string) string {
	encoded, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(encoded)
}

func newTestClient(serverURL string, opts ...textgen.Option) *textgen.Client {
	base := []textgen.Option{
		textgen.WithSleeper(func(time.Duration) {}),
	}
	return textgen.NewClient(textgen.Config{
		APIKey:  "test-key",
		BaseURL: serverURL,
		Model:   "test-model",
	}, append(base, opts...)...)
}

func TestCompleteJSONReturnsContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		fmt.Fprint(w, completionBody(`{"answer": 42}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"answer": 42}` {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestCompleteJSONRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, completionBody(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("unexpected content %q", content)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestCompleteJSONDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single call, got %d", calls.Load())
	}
}

func TestStructureParsesAndValidates(t *testing.T) {
	payload := `{
		"title": "Photosynthesis",
		"summary": "How plants convert light to energy.",
		"structure": [
			{"type": "heading", "content": "Photosynthesis"},
			{"type": "paragraph", "content": "Plants absorb light."},
			{"type": "visual_placeholder", "placeholderId": "viz-1"},
			{"type": "bullet_list", "items": ["Light reactions", "Calvin cycle"]}
		],
		"visualOpportunities": [
			{"placeholderId": "viz-1", "description": "Chloroplast diagram", "searchQuery": "chloroplast structure diagram"}
		]
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody(payload))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	content, err := client.Structure(context.Background(), "long lecture transcript", "en")
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}
	if content.Title != "Photosynthesis" {
		t.Fatalf("unexpected title %q", content.Title)
	}
	if len(content.Structure) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(content.Structure))
	}
	if _, ok := content.Opportunity("viz-1"); !ok {
		t.Fatal("expected viz-1 opportunity")
	}
}

func TestStructureStripsCodeFences(t *testing.T) {
	payload := "```json\n{\"title\": \"T\", \"structure\": [{\"type\": \"paragraph\", \"content\": \"body\"}]}\n```"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody(payload))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	content, err := client.Structure(context.Background(), "text", "")
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}
	if content.Title != "T" {
		t.Fatalf("unexpected title %q", content.Title)
	}
}

func TestStructureRejectsSchemaViolations(t *testing.T) {
	// Missing title and an unknown block type.
	payload := `{"structure": [{"type": "table", "content": "x"}]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody(payload))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Structure(context.Background(), "text", "")
	if err == nil {
		t.Fatal("expected schema validation failure")
	}
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestStructureRejectsDanglingPlaceholder(t *testing.T) {
	payload := `{
		"title": "T",
		"structure": [
			{"type": "paragraph", "content": "x"},
			{"type": "visual_placeholder", "placeholderId": "viz-1"}
		]
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody(payload))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Structure(context.Background(), "text", ""); err == nil {
		t.Fatal("expected placeholder consistency failure")
	}
}

func TestDecodeModelJSONVariants(t *testing.T) {
	var target struct {
		OK bool `json:"ok"`
	}
	cases := []string{
		`{"ok": true}`,
		"```json\n{\"ok\": true}\n```",
		"Here is the result:\n{\"ok\": true}",
	}
	for _, raw := range cases {
		target.OK = false
		if err := textgen.DecodeModelJSON(raw, &target); err != nil {
			t.Errorf("DecodeModelJSON(%q): %v", raw, err)
			continue
		}
		if !target.OK {
			t.Errorf("DecodeModelJSON(%q): value not decoded", raw)
		}
	}
	if err := textgen.DecodeModelJSON("", &target); err == nil {
		t.Error("expected error for empty payload")
	}
}
