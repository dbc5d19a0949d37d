package imagesearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribe/internal/services"
)

const defaultHTTPTimeout = 30 * time.Second

// Config captures settings for the image search backend.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Client queries a Serper-style image search API. Visual resolution
// accepts the first returned image URL; no results is not an error from
// the caller's perspective, so FirstImageURL can return empty.
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

// NewClient constructs an image search client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://google.serper.dev/images"
	}
	return client
}

// Configured reports whether the client can make real requests.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

type searchResponse struct {
	Images []struct {
		ImageURL string `json:"imageUrl"`
	} `json:"images"`
}

// FirstImageURL runs the query and returns the first image URL, or
// empty when the search legitimately finds nothing.
func (c *Client) FirstImageURL(ctx context.Context, query string) (string, error) {
	if !c.Configured() {
		return "", services.Wrap(services.ErrConfiguration, "visual_resolution", "search", "image search api key not configured", nil)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil
	}

	payload, err := json.Marshal(map[string]string{"q": query})
	if err != nil {
		return "", fmt.Errorf("encode search body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("new search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "visual_resolution", "search", "image search request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "visual_resolution", "search", "read search response", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.Wrap(services.ErrProvider, "visual_resolution", "search",
			fmt.Sprintf("image search returned http %d", resp.StatusCode), nil)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", services.Wrap(services.ErrProvider, "visual_resolution", "decode", "malformed search response", err)
	}
	for _, image := range parsed.Images {
		if url := strings.TrimSpace(image.ImageURL); url != "" {
			return url, nil
		}
	}
	return "", nil
}

// Download fetches an image URL into the destination path.
func (c *Client) Download(ctx context.Context, imageURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fmt.Errorf("new download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrProvider, "visual_generation", "download", "image download failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrProvider, "visual_generation", "download",
			fmt.Sprintf("image host returned http %d", resp.StatusCode), nil)
	}

	return writeStream(destPath, resp.Body)
}
