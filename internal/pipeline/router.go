package pipeline

import (
	"context"
	"fmt"

	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/stage"
)

// Handlers builds the closed processor table the dispatcher routes on.
func (e *Env) Handlers() map[queue.JobType]stage.Handler {
	return map[queue.JobType]stage.Handler{
		queue.JobTextIngestion:      &textIngestion{env: e},
		queue.JobAudioTranscription: &audioTranscription{env: e},
		queue.JobPDFProcessing:      &pdfProcessing{env: e},
		queue.JobImageProcessing:    &imageProcessing{env: e},
		queue.JobYouTubeProcessing:  &youtubeProcessing{env: e},
		queue.JobStructuring:        &structuring{env: e},
		queue.JobVisualResolution:   &visualResolution{env: e},
		queue.JobVisualGeneration:   &visualGeneration{env: e},
		queue.JobNoteAssembly:       &noteAssembly{env: e},
	}
}

// StartJobFor maps a source type to its extraction job.
func StartJobFor(sourceType queue.SourceType) (queue.JobType, error) {
	switch sourceType {
	case queue.SourceText:
		return queue.JobTextIngestion, nil
	case queue.SourceAudio:
		return queue.JobAudioTranscription, nil
	case queue.SourcePDF:
		return queue.JobPDFProcessing, nil
	case queue.SourceImage:
		return queue.JobImageProcessing, nil
	case queue.SourceYouTube:
		return queue.JobYouTubeProcessing, nil
	default:
		return "", services.Wrap(services.ErrValidation, "pipeline", "route",
			fmt.Sprintf("unsupported source type %q", sourceType), nil)
	}
}

// IngestOptions carries the optional fields of a new submission.
type IngestOptions struct {
	Title         string
	RawText       string
	StoragePath   string
	LanguageCode  string
	AudioFilePath string
}

// Ingest creates the source row and enqueues its extraction job. The
// source starts pending; the dispatcher flips it to processing when
// the job is claimed.
func (e *Env) Ingest(ctx context.Context, userID string, sourceType queue.SourceType, opts IngestOptions) (*queue.Source, error) {
	source, err := e.Store.CreateSource(ctx, userID, sourceType, opts.Title)
	if err != nil {
		return nil, err
	}

	source.RawText = opts.RawText
	source.OriginalStoragePath = opts.StoragePath
	if opts.LanguageCode != "" {
		if err := source.MergeMetadata(map[string]any{"language": opts.LanguageCode}); err != nil {
			return nil, err
		}
	}
	if err := e.Store.UpdateSource(ctx, source); err != nil {
		return nil, err
	}

	jobType, err := StartJobFor(sourceType)
	if err != nil {
		return nil, err
	}
	payload := queue.Payload{SourceID: source.ID}
	if jobType == queue.JobAudioTranscription {
		audioPath := opts.AudioFilePath
		if audioPath == "" {
			audioPath = opts.StoragePath
		}
		payload.AudioFilePath = audioPath
		payload.LanguageCode = opts.LanguageCode
	}
	if _, err := e.Store.Enqueue(ctx, jobType, payload, e.Cfg.Workflow.MaxJobAttempts); err != nil {
		return nil, err
	}
	return source, nil
}
