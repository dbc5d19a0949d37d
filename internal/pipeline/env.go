package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"scribe/internal/config"
	"scribe/internal/imagesearch"
	"scribe/internal/logging"
	"scribe/internal/notes"
	"scribe/internal/providers"
	"scribe/internal/providers/ocr"
	"scribe/internal/providers/textgen"
	"scribe/internal/providers/transcribe"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/youtube"
)

// OCRBackend extracts text from scanned documents and images.
type OCRBackend interface {
	ProcessPDF(ctx context.Context, path string, cleanup *providers.Cleanup) (providers.OCRResult, error)
	ProcessImage(ctx context.Context, path string) (providers.OCRResult, error)
}

// TranscriptionBackend turns one audio file into a transcript.
type TranscriptionBackend interface {
	Transcribe(ctx context.Context, audioPath, languageCode string) (providers.Transcript, error)
}

// StructuringBackend turns extracted text into structured content.
type StructuringBackend interface {
	Structure(ctx context.Context, text, languageCode string) (providers.StructuredContent, error)
}

// ImageSearcher resolves visual opportunities to image URLs and
// downloads the chosen images.
type ImageSearcher interface {
	Configured() bool
	FirstImageURL(ctx context.Context, query string) (string, error)
	Download(ctx context.Context, imageURL, destPath string) error
}

// TranscriptFetcher retrieves YouTube captions.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoURL string) (youtube.TranscriptResult, error)
}

// Named pairs a backend with the provider name used in logs and
// persisted metadata.
type Named[T any] struct {
	Name    string
	Backend T
}

// Env bundles everything the stage processors share.
type Env struct {
	Cfg    *config.Config
	Store  *queue.Store
	Notes  *notes.Store
	Logger *slog.Logger

	OCRPrimary         *Named[OCRBackend]
	OCRFallback        *Named[OCRBackend]
	TranscribePrimary  *Named[TranscriptionBackend]
	TranscribeFallback *Named[TranscriptionBackend]
	TextgenPrimary     *Named[StructuringBackend]
	TextgenFallback    *Named[StructuringBackend]

	Search  ImageSearcher
	YouTube TranscriptFetcher
}

// NewEnv wires real provider clients from configuration.
func NewEnv(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Env {
	if logger == nil {
		logger = logging.NewNop()
	}
	env := &Env{
		Cfg:    cfg,
		Store:  store,
		Notes:  notes.NewStore(store.DB()),
		Logger: logger,
	}

	if ep := cfg.Providers.OCR.Primary; ep.Configured() {
		env.OCRPrimary = &Named[OCRBackend]{Name: ep.Name, Backend: newOCRClient(ep)}
	}
	if ep := cfg.Providers.OCR.Fallback; ep.Configured() {
		env.OCRFallback = &Named[OCRBackend]{Name: ep.Name, Backend: newOCRClient(ep)}
	}
	if ep := cfg.Providers.Transcription.Primary; ep.Configured() {
		env.TranscribePrimary = &Named[TranscriptionBackend]{Name: ep.Name, Backend: newTranscribeClient(ep)}
	}
	if ep := cfg.Providers.Transcription.Fallback; ep.Configured() {
		env.TranscribeFallback = &Named[TranscriptionBackend]{Name: ep.Name, Backend: newTranscribeClient(ep)}
	}
	if ep := cfg.Providers.Textgen.Primary; ep.Configured() {
		env.TextgenPrimary = &Named[StructuringBackend]{Name: ep.Name, Backend: newTextgenClient(ep)}
	}
	if ep := cfg.Providers.Textgen.Fallback; ep.Configured() {
		env.TextgenFallback = &Named[StructuringBackend]{Name: ep.Name, Backend: newTextgenClient(ep)}
	}

	env.Search = imagesearch.NewClient(imagesearch.Config{
		APIKey:         cfg.ImageSearch.APIKey,
		BaseURL:        cfg.ImageSearch.BaseURL,
		TimeoutSeconds: cfg.ImageSearch.TimeoutSeconds,
	})
	if strings.TrimSpace(cfg.YouTube.BaseURL) != "" {
		env.YouTube = youtube.NewClient(youtube.Config{
			BaseURL:        cfg.YouTube.BaseURL,
			TimeoutSeconds: cfg.YouTube.TimeoutSeconds,
		})
	}
	return env
}

func newOCRClient(ep config.Endpoint) OCRBackend {
	return ocr.NewClient(ocr.Config{
		APIKey:         ep.APIKey,
		BaseURL:        ep.BaseURL,
		Model:          ep.Model,
		TimeoutSeconds: ep.TimeoutSeconds,
	})
}

func newTranscribeClient(ep config.Endpoint) TranscriptionBackend {
	return transcribe.NewClient(transcribe.Config{
		APIKey:         ep.APIKey,
		BaseURL:        ep.BaseURL,
		Model:          ep.Model,
		TimeoutSeconds: ep.TimeoutSeconds,
	})
}

func newTextgenClient(ep config.Endpoint) StructuringBackend {
	return textgen.NewClient(textgen.Config{
		APIKey:         ep.APIKey,
		BaseURL:        ep.BaseURL,
		Model:          ep.Model,
		TimeoutSeconds: ep.TimeoutSeconds,
	})
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return logging.NewNop()
	}
	return e.Logger
}

// resolveTranscription runs one audio file through the transcription
// role with fallback.
func (e *Env) resolveTranscription(ctx context.Context, audioPath, languageCode string) (providers.Transcript, string, error) {
	toBackend := func(named *Named[TranscriptionBackend]) *providers.Backend[providers.Transcript] {
		if named == nil {
			return nil
		}
		backend := named.Backend
		return &providers.Backend[providers.Transcript]{
			Name: named.Name,
			Call: func(callCtx context.Context) (providers.Transcript, error) {
				return backend.Transcribe(callCtx, audioPath, languageCode)
			},
		}
	}
	return providers.Resolve(ctx, e.logger(), "transcription", toBackend(e.TranscribePrimary), toBackend(e.TranscribeFallback))
}

func (e *Env) resolvePDF(ctx context.Context, path string, cleanup *providers.Cleanup) (providers.OCRResult, string, error) {
	toBackend := func(named *Named[OCRBackend]) *providers.Backend[providers.OCRResult] {
		if named == nil {
			return nil
		}
		backend := named.Backend
		return &providers.Backend[providers.OCRResult]{
			Name: named.Name,
			Call: func(callCtx context.Context) (providers.OCRResult, error) {
				return backend.ProcessPDF(callCtx, path, cleanup)
			},
		}
	}
	return providers.Resolve(ctx, e.logger(), "ocr", toBackend(e.OCRPrimary), toBackend(e.OCRFallback))
}

func (e *Env) resolveImage(ctx context.Context, path string) (providers.OCRResult, string, error) {
	toBackend := func(named *Named[OCRBackend]) *providers.Backend[providers.OCRResult] {
		if named == nil {
			return nil
		}
		backend := named.Backend
		return &providers.Backend[providers.OCRResult]{
			Name: named.Name,
			Call: func(callCtx context.Context) (providers.OCRResult, error) {
				return backend.ProcessImage(callCtx, path)
			},
		}
	}
	return providers.Resolve(ctx, e.logger(), "ocr", toBackend(e.OCRPrimary), toBackend(e.OCRFallback))
}

func (e *Env) resolveStructure(ctx context.Context, text, languageCode string) (providers.StructuredContent, string, error) {
	toBackend := func(named *Named[StructuringBackend]) *providers.Backend[providers.StructuredContent] {
		if named == nil {
			return nil
		}
		backend := named.Backend
		return &providers.Backend[providers.StructuredContent]{
			Name: named.Name,
			Call: func(callCtx context.Context) (providers.StructuredContent, error) {
				content, err := backend.Structure(callCtx, text, languageCode)
				if err != nil {
					return content, err
				}
				if content.Empty() {
					return content, services.Wrap(services.ErrProvider, "structuring", "structure", "model returned empty content", nil)
				}
				return content, nil
			},
		}
	}
	return providers.Resolve(ctx, e.logger(), "textgen", toBackend(e.TextgenPrimary), toBackend(e.TextgenFallback))
}

const metadataStructuredKey = "structuredContent"

// loadStructured reads the structured content persisted between the
// structuring and assembly stages.
func loadStructured(source *queue.Source) (providers.StructuredContent, error) {
	var content providers.StructuredContent
	meta, err := source.Metadata()
	if err != nil {
		return content, fmt.Errorf("decode source metadata: %w", err)
	}
	raw, ok := meta[metadataStructuredKey]
	if !ok {
		return content, services.Wrap(services.ErrValidation, "pipeline", "load structured",
			"source has no structured content; structuring must run first", nil)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return content, fmt.Errorf("re-encode structured content: %w", err)
	}
	if err := json.Unmarshal(encoded, &content); err != nil {
		return content, fmt.Errorf("decode structured content: %w", err)
	}
	return content, nil
}

func saveStructured(source *queue.Source, content providers.StructuredContent) error {
	return source.MergeMetadata(map[string]any{metadataStructuredKey: content})
}
