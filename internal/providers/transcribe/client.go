package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scribe/internal/providers"
	"scribe/internal/services"
)

const defaultHTTPTimeout = 5 * time.Minute

// Config captures settings for a whisper-compatible transcription
// endpoint.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client uploads audio files to a whisper-compatible API and returns
// transcripts with word-level timings.
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

// NewClient constructs a transcription client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.openai.com/v1/audio/transcriptions"
	}
	if client.cfg.Model == "" {
		client.cfg.Model = "whisper-1"
	}
	return client
}

type verboseTranscription struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Words    []providers.Word `json:"words"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe uploads the audio file and returns its transcript. An
// empty transcript counts as a failure so fallback selection applies.
func (c *Client) Transcribe(ctx context.Context, audioPath, languageCode string) (providers.Transcript, error) {
	var empty providers.Transcript
	if c.cfg.APIKey == "" {
		return empty, services.Wrap(services.ErrConfiguration, "transcription", "transcribe", "api key required", nil)
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, "transcription", "open audio", fmt.Sprintf("cannot open audio file %s", audioPath), err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return empty, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return empty, fmt.Errorf("copy audio into request: %w", err)
	}
	fields := map[string]string{
		"model":           c.cfg.Model,
		"response_format": "verbose_json",
	}
	if code := strings.TrimSpace(languageCode); code != "" {
		fields["language"] = code
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return empty, fmt.Errorf("write field %s: %w", key, err)
		}
	}
	if err := writer.WriteField("timestamp_granularities[]", "word"); err != nil {
		return empty, fmt.Errorf("write granularity field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return empty, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, body)
	if err != nil {
		return empty, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrProvider, "transcription", "transcribe", "transcription request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrProvider, "transcription", "transcribe", "read transcription response", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, services.Wrap(services.ErrProvider, "transcription", "transcribe",
			fmt.Sprintf("transcription API returned http %d", resp.StatusCode),
			errors.New(strings.TrimSpace(string(payload))))
	}

	var parsed verboseTranscription
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return empty, services.Wrap(services.ErrProvider, "transcription", "decode", "malformed transcription response", err)
	}
	if parsed.Error != nil {
		return empty, services.Wrap(services.ErrProvider, "transcription", "transcribe", "transcription API error", errors.New(parsed.Error.Message))
	}
	if strings.TrimSpace(parsed.Text) == "" {
		return empty, services.Wrap(services.ErrProvider, "transcription", "transcribe", "provider returned empty transcript", nil)
	}

	return providers.Transcript{
		Text:     strings.TrimSpace(parsed.Text),
		Words:    parsed.Words,
		Language: parsed.Language,
		Provider: "whisper",
	}, nil
}
