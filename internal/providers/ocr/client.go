package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
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

const defaultHTTPTimeout = 3 * time.Minute

// Config captures settings for a Mistral-compatible OCR endpoint.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client extracts text from PDFs and images via an OCR API. PDFs are
// uploaded and referenced through a signed URL; images are sent inline
// as base64 data URLs.
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

// NewClient constructs an OCR client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.mistral.ai/v1"
	}
	if client.cfg.Model == "" {
		client.cfg.Model = "mistral-ocr-latest"
	}
	return client
}

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ProcessPDF uploads the document, runs OCR against its signed URL,
// and registers deletion of the remote upload on the supplied cleanup.
// Deletion runs regardless of OCR success so remote storage never
// accumulates documents.
func (c *Client) ProcessPDF(ctx context.Context, pdfPath string, cleanup *providers.Cleanup) (providers.OCRResult, error) {
	var empty providers.OCRResult
	if c.cfg.APIKey == "" {
		return empty, services.Wrap(services.ErrConfiguration, "pdf_processing", "ocr", "api key required", nil)
	}

	fileID, err := c.uploadFile(ctx, pdfPath)
	if err != nil {
		return empty, err
	}
	if cleanup != nil {
		cleanup.Add("delete remote upload", func(cleanupCtx context.Context) error {
			return c.deleteFile(cleanupCtx, fileID)
		})
	}

	signedURL, err := c.signedURL(ctx, fileID)
	if err != nil {
		return empty, err
	}

	return c.runOCR(ctx, "pdf_processing", map[string]any{
		"type":         "document_url",
		"document_url": signedURL,
	})
}

// ProcessImage sends the image inline as a base64 data URL.
func (c *Client) ProcessImage(ctx context.Context, imagePath string) (providers.OCRResult, error) {
	var empty providers.OCRResult
	if c.cfg.APIKey == "" {
		return empty, services.Wrap(services.ErrConfiguration, "image_processing", "ocr", "api key required", nil)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, "image_processing", "read image", fmt.Sprintf("cannot read image %s", imagePath), err)
	}
	mime := mimeTypeFor(imagePath)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))

	return c.runOCR(ctx, "image_processing", map[string]any{
		"type":      "image_url",
		"image_url": dataURL,
	})
}

func (c *Client) runOCR(ctx context.Context, stage string, document map[string]any) (providers.OCRResult, error) {
	var empty providers.OCRResult
	payload := map[string]any{
		"model":    c.cfg.Model,
		"document": document,
	}
	body, err := c.postJSON(ctx, c.cfg.BaseURL+"/ocr", payload)
	if err != nil {
		return empty, services.Wrap(services.ErrProvider, stage, "ocr", "OCR request failed", err)
	}

	var parsed ocrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return empty, services.Wrap(services.ErrProvider, stage, "decode", "malformed OCR response", err)
	}
	if parsed.Error != nil {
		return empty, services.Wrap(services.ErrProvider, stage, "ocr", "OCR API error", errors.New(parsed.Error.Message))
	}

	texts := make([]string, 0, len(parsed.Pages))
	for _, page := range parsed.Pages {
		if trimmed := strings.TrimSpace(page.Markdown); trimmed != "" {
			texts = append(texts, trimmed)
		}
	}
	joined := strings.Join(texts, providers.PageSeparator)
	if joined == "" {
		return empty, services.Wrap(services.ErrProvider, stage, "ocr", "provider returned empty text", nil)
	}
	return providers.OCRResult{
		Text:     joined,
		Provider: "mistral",
		Pages:    len(parsed.Pages),
	}, nil
}

func (c *Client) uploadFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "pdf_processing", "open document", fmt.Sprintf("cannot open document %s", path), err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("purpose", "ocr"); err != nil {
		return "", fmt.Errorf("write purpose field: %w", err)
	}
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy document into request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/files", body)
	if err != nil {
		return "", fmt.Errorf("new upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	respBody, err := c.do(req)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "pdf_processing", "upload", "document upload failed", err)
	}
	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", services.Wrap(services.ErrProvider, "pdf_processing", "upload", "malformed upload response", err)
	}
	if parsed.ID == "" {
		return "", services.Wrap(services.ErrProvider, "pdf_processing", "upload", "upload response missing file id", nil)
	}
	return parsed.ID, nil
}

func (c *Client) signedURL(ctx context.Context, fileID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/files/"+fileID+"/url", nil)
	if err != nil {
		return "", fmt.Errorf("new signed-url request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	respBody, err := c.do(req)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "pdf_processing", "signed url", "signed URL request failed", err)
	}
	var parsed struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", services.Wrap(services.ErrProvider, "pdf_processing", "signed url", "malformed signed URL response", err)
	}
	if parsed.URL == "" {
		return "", services.Wrap(services.ErrProvider, "pdf_processing", "signed url", "response missing url", nil)
	}
	return parsed.URL, nil
}

func (c *Client) deleteFile(ctx context.Context, fileID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.BaseURL+"/files/"+fileID, nil)
	if err != nil {
		return fmt.Errorf("new delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("delete remote file %s: %w", fileID, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	default:
		return "image/jpeg"
	}
}
