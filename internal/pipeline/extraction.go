package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"scribe/internal/chunking"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/providers"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/stage"
	"scribe/internal/textutil"
)

// followStructuring is the follow-up every extraction stage enqueues.
func followStructuring(sourceID int64) []queue.FollowUp {
	return []queue.FollowUp{{
		Type:    queue.JobStructuring,
		Payload: queue.Payload{SourceID: sourceID},
	}}
}

// textIngestion promotes pasted raw text to extracted text.
type textIngestion struct {
	env *Env
}

func (p *textIngestion) Execute(ctx context.Context, source *queue.Source, _ *queue.Job) ([]queue.FollowUp, error) {
	text := strings.TrimSpace(source.RawText)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "text_ingestion", "ingest", "source has no raw text", nil)
	}
	source.ExtractedText = text
	return followStructuring(source.ID), nil
}

func (p *textIngestion) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("text_ingestion")
}

// audioTranscription transcribes uploaded audio, chunking files that
// exceed the single-call limit.
type audioTranscription struct {
	env *Env
}

func (p *audioTranscription) Execute(ctx context.Context, source *queue.Source, job *queue.Job) ([]queue.FollowUp, error) {
	payload, err := job.Payload()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "audio_transcription", "payload", "malformed job payload", err)
	}
	languageCode := language.Normalize(payload.LanguageCode)

	transcriber := &chunking.Transcriber{
		FFmpegBinary:           p.env.Cfg.FFmpegBinary(),
		FFprobeBinary:          p.env.Cfg.FFprobeBinary(),
		SegmentSeconds:         p.env.Cfg.Chunking.SegmentSeconds,
		MaxConcurrentChunks:    p.env.Cfg.Chunking.MaxConcurrentChunks,
		SingleCallLimitSeconds: p.env.Cfg.Chunking.SingleCallLimitSeconds,
		ScratchDir:             filepath.Join(p.env.Cfg.Paths.ScratchDir, textutil.SanitizeToken(source.Title)),
		Logger:                 p.env.logger(),
		Transcribe: func(chunkCtx context.Context, chunkPath, lang string) (providers.Transcript, error) {
			transcript, _, resolveErr := p.env.resolveTranscription(chunkCtx, chunkPath, lang)
			return transcript, resolveErr
		},
	}

	transcript, err := transcriber.Run(ctx, payload.AudioFilePath, languageCode)
	if err != nil {
		return nil, err
	}

	source.ExtractedText = transcript.Text
	meta := map[string]any{
		"transcriptWordCount": len(transcript.Words),
	}
	if transcript.Language != "" {
		meta["language"] = language.Normalize(transcript.Language)
	} else if languageCode != "" {
		meta["language"] = languageCode
	}
	if transcript.Provider != "" {
		meta["transcriptionProvider"] = transcript.Provider
	}
	if err := source.MergeMetadata(meta); err != nil {
		return nil, err
	}
	return followStructuring(source.ID), nil
}

func (p *audioTranscription) HealthCheck(ctx context.Context) stage.Health {
	if p.env.TranscribePrimary == nil && p.env.TranscribeFallback == nil {
		return stage.Unhealthy("audio_transcription", "no transcription provider configured")
	}
	return stage.Healthy("audio_transcription")
}

// pdfProcessing runs uploaded documents through OCR.
type pdfProcessing struct {
	env *Env
}

func (p *pdfProcessing) Execute(ctx context.Context, source *queue.Source, _ *queue.Job) ([]queue.FollowUp, error) {
	path := strings.TrimSpace(source.OriginalStoragePath)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "pdf_processing", "locate", "source has no stored document", nil)
	}

	cleanup := &providers.Cleanup{}
	defer cleanup.Run(ctx, p.env.logger())

	result, provider, err := p.env.resolvePDF(ctx, path, cleanup)
	if err != nil {
		return nil, err
	}
	source.ExtractedText = result.Text
	if err := source.MergeMetadata(map[string]any{
		"ocrPages":    result.Pages,
		"ocrProvider": provider,
	}); err != nil {
		return nil, err
	}
	return followStructuring(source.ID), nil
}

func (p *pdfProcessing) HealthCheck(ctx context.Context) stage.Health {
	if p.env.OCRPrimary == nil && p.env.OCRFallback == nil {
		return stage.Unhealthy("pdf_processing", "no OCR provider configured")
	}
	return stage.Healthy("pdf_processing")
}

// imageProcessing extracts text from a single uploaded image.
type imageProcessing struct {
	env *Env
}

func (p *imageProcessing) Execute(ctx context.Context, source *queue.Source, _ *queue.Job) ([]queue.FollowUp, error) {
	path := strings.TrimSpace(source.OriginalStoragePath)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "image_processing", "locate", "source has no stored image", nil)
	}

	result, provider, err := p.env.resolveImage(ctx, path)
	if err != nil {
		return nil, err
	}
	source.ExtractedText = result.Text
	if err := source.MergeMetadata(map[string]any{"ocrProvider": provider}); err != nil {
		return nil, err
	}
	return followStructuring(source.ID), nil
}

func (p *imageProcessing) HealthCheck(ctx context.Context) stage.Health {
	if p.env.OCRPrimary == nil && p.env.OCRFallback == nil {
		return stage.Unhealthy("image_processing", "no OCR provider configured")
	}
	return stage.Healthy("image_processing")
}

// youtubeProcessing fetches video captions instead of downloading and
// transcribing the audio.
type youtubeProcessing struct {
	env *Env
}

func (p *youtubeProcessing) Execute(ctx context.Context, source *queue.Source, _ *queue.Job) ([]queue.FollowUp, error) {
	videoURL := strings.TrimSpace(source.OriginalStoragePath)
	if videoURL == "" {
		return nil, services.Wrap(services.ErrValidation, "youtube_processing", "locate", "source has no video URL", nil)
	}
	if p.env.YouTube == nil {
		return nil, services.Wrap(services.ErrConfiguration, "youtube_processing", "fetch", "no transcript service configured", nil)
	}

	result, err := p.env.YouTube.Fetch(ctx, videoURL)
	if err != nil {
		return nil, err
	}
	source.ExtractedText = result.Text
	meta := map[string]any{}
	if code := language.Normalize(result.Language); code != "" {
		meta["language"] = code
	}
	if len(meta) > 0 {
		if err := source.MergeMetadata(meta); err != nil {
			return nil, err
		}
	}
	p.env.logger().InfoContext(ctx, "fetched video transcript",
		logging.Int64(logging.FieldSourceID, source.ID),
		logging.Int("characters", len(result.Text)),
	)
	return followStructuring(source.ID), nil
}

func (p *youtubeProcessing) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(p.env.Cfg.YouTube.BaseURL) == "" {
		return stage.Unhealthy("youtube_processing", "transcript service URL not configured")
	}
	return stage.Healthy("youtube_processing")
}
