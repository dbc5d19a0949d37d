// Package youtube fetches video transcripts through a caption-scraping
// HTTP service so YouTube sources skip the audio pipeline entirely.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"scribe/internal/services"
)

const defaultHTTPTimeout = 60 * time.Second

// Config captures settings for the transcript service.
type Config struct {
	BaseURL        string
	TimeoutSeconds int
}

// Client retrieves plain-text transcripts for YouTube videos.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a transcript client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractVideoID pulls the 11-character video id out of the common
// YouTube URL shapes, or accepts a bare id.
func ExtractVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", services.Wrap(services.ErrValidation, "youtube_processing", "extract id", "empty video URL", nil)
	}
	if videoIDPattern.MatchString(raw) {
		return raw, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "youtube_processing", "extract id", fmt.Sprintf("unparsable URL %q", raw), err)
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	switch host {
	case "youtu.be":
		id := strings.Trim(parsed.Path, "/")
		if videoIDPattern.MatchString(id) {
			return id, nil
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if id := parsed.Query().Get("v"); videoIDPattern.MatchString(id) {
			return id, nil
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
			if strings.HasPrefix(parsed.Path, prefix) {
				id := strings.Trim(strings.TrimPrefix(parsed.Path, prefix), "/")
				if videoIDPattern.MatchString(id) {
					return id, nil
				}
			}
		}
	}
	return "", services.Wrap(services.ErrValidation, "youtube_processing", "extract id", fmt.Sprintf("no video id found in %q", raw), nil)
}

type transcriptResponse struct {
	Transcript string `json:"transcript"`
	Language   string `json:"language"`
	Segments   []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
	} `json:"segments"`
	Error string `json:"error"`
}

// TranscriptResult carries the fetched transcript.
type TranscriptResult struct {
	Text     string
	Language string
}

// Fetch retrieves the transcript for a video id or URL.
func (c *Client) Fetch(ctx context.Context, videoURL string) (TranscriptResult, error) {
	var empty TranscriptResult
	if c.cfg.BaseURL == "" {
		return empty, services.Wrap(services.ErrConfiguration, "youtube_processing", "fetch", "transcript service URL not configured", nil)
	}
	videoID, err := ExtractVideoID(videoURL)
	if err != nil {
		return empty, err
	}

	endpoint := c.cfg.BaseURL + "/transcript?videoId=" + url.QueryEscape(videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return empty, fmt.Errorf("new transcript request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrProvider, "youtube_processing", "fetch", "transcript request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrProvider, "youtube_processing", "fetch", "read transcript response", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, services.Wrap(services.ErrProvider, "youtube_processing", "fetch",
			fmt.Sprintf("transcript service returned http %d", resp.StatusCode), nil)
	}

	var parsed transcriptResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return empty, services.Wrap(services.ErrProvider, "youtube_processing", "decode", "malformed transcript response", err)
	}
	if parsed.Error != "" {
		return empty, services.Wrap(services.ErrProvider, "youtube_processing", "fetch", "transcript service error: "+parsed.Error, nil)
	}

	text := strings.TrimSpace(parsed.Transcript)
	if text == "" && len(parsed.Segments) > 0 {
		parts := make([]string, 0, len(parsed.Segments))
		for _, segment := range parsed.Segments {
			if trimmed := strings.TrimSpace(segment.Text); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		text = strings.Join(parts, " ")
	}
	if text == "" {
		return empty, services.Wrap(services.ErrProvider, "youtube_processing", "fetch", "video has no transcript", nil)
	}
	return TranscriptResult{Text: text, Language: parsed.Language}, nil
}
