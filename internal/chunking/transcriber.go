package chunking

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"scribe/internal/logging"
	"scribe/internal/media/ffprobe"
	"scribe/internal/providers"
	"scribe/internal/services"
)

// ChunkTranscriber turns one audio file into a transcript. The pipeline
// wires this to the provider fallback resolution so per-chunk calls get
// the same primary/fallback treatment as single-call transcription.
type ChunkTranscriber func(ctx context.Context, audioPath, languageCode string) (providers.Transcript, error)

// Transcriber splits oversized audio files into segments, transcribes
// each within a concurrency bound, and merges the results onto a single
// timeline.
type Transcriber struct {
	FFmpegBinary           string
	FFprobeBinary          string
	SegmentSeconds         int
	MaxConcurrentChunks    int
	SingleCallLimitSeconds int
	ScratchDir             string
	Logger                 *slog.Logger
	Transcribe             ChunkTranscriber
}

// Run probes the file duration and either transcribes it in one call or
// chunks it first. Chunk files are always removed, whether the stage
// succeeds or fails.
func (t *Transcriber) Run(ctx context.Context, audioPath, languageCode string) (providers.Transcript, error) {
	var empty providers.Transcript
	logger := t.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if t.Transcribe == nil {
		return empty, services.Wrap(services.ErrConfiguration, "audio_transcription", "run", "no transcriber wired", nil)
	}

	probe, err := ffprobe.Inspect(ctx, t.FFprobeBinary, audioPath)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "audio_transcription", "probe", "cannot probe audio duration", err)
	}
	duration := probe.DurationSeconds()
	if duration <= 0 {
		return empty, services.Wrap(services.ErrExternalTool, "audio_transcription", "probe", "audio duration missing or unparsable", nil)
	}

	limit := t.SingleCallLimitSeconds
	if limit <= 0 {
		limit = t.SegmentSeconds
	}
	if duration <= float64(limit) {
		return t.Transcribe(ctx, audioPath, languageCode)
	}

	logger.InfoContext(ctx, "audio exceeds single-call limit, chunking",
		logging.Float64("duration_seconds", duration),
		logging.Int("segment_seconds", t.SegmentSeconds),
	)

	chunks, err := Plan(duration, t.SegmentSeconds)
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, "audio_transcription", "plan", "cannot plan chunk boundaries", err)
	}

	if err := os.MkdirAll(t.ScratchDir, 0o755); err != nil {
		return empty, fmt.Errorf("create scratch dir: %w", err)
	}
	chunkDir, err := os.MkdirTemp(t.ScratchDir, "chunks-")
	if err != nil {
		return empty, fmt.Errorf("create chunk scratch dir: %w", err)
	}
	split, err := Split(ctx, t.FFmpegBinary, audioPath, chunkDir, t.SegmentSeconds)
	if err != nil {
		_ = os.RemoveAll(chunkDir)
		return empty, err
	}
	defer func() {
		if removeErr := split.Remove(); removeErr != nil {
			logger.WarnContext(ctx, "failed to remove chunk files", logging.Error(removeErr))
		}
		if removeErr := os.Remove(chunkDir); removeErr != nil && !os.IsNotExist(removeErr) {
			logger.WarnContext(ctx, "failed to remove chunk dir", logging.Error(removeErr))
		}
	}()

	if len(split.Files) > len(chunks) {
		// ffmpeg boundaries are approximate; trust the files on disk
		// and extend the plan with best-effort offsets.
		for i := len(chunks); i < len(split.Files); i++ {
			start := float64(i * t.SegmentSeconds)
			chunks = append(chunks, Chunk{Index: i, Start: start, End: duration})
		}
	}

	results, err := t.transcribeChunks(ctx, split.Files, chunks, languageCode)
	if err != nil {
		return empty, err
	}
	return merge(results), nil
}

type chunkResult struct {
	index      int
	offset     float64
	transcript providers.Transcript
}

// transcribeChunks runs per-chunk transcription bounded by the
// configured concurrency limiter. Any permanent chunk failure fails the
// whole stage; partial transcripts are never returned.
func (t *Transcriber) transcribeChunks(ctx context.Context, files []string, chunks []Chunk, languageCode string) ([]chunkResult, error) {
	limit := t.MaxConcurrentChunks
	if limit <= 0 {
		limit = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	semaphore := make(chan struct{}, limit)
	results := make([]chunkResult, len(files))

	for i, file := range files {
		wg.Add(1)
		go func(index int, path string) {
			defer wg.Done()
			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-runCtx.Done():
				return
			}
			if runCtx.Err() != nil {
				return
			}

			transcript, err := t.Transcribe(runCtx, path, languageCode)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = services.Wrap(services.ErrProvider, "audio_transcription", "transcribe chunk",
						fmt.Sprintf("chunk %d failed", index), err)
					cancel()
				}
				mu.Unlock()
				return
			}
			results[index] = chunkResult{index: index, offset: chunks[index].Start, transcript: transcript}
		}(i, file)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// merge concatenates chunk transcripts in index order, shifting each
// chunk's word timings by its start offset so the merged word array
// shares one global timeline.
func merge(results []chunkResult) providers.Transcript {
	var (
		texts    []string
		words    []providers.Word
		language string
		provider string
	)
	for _, result := range results {
		shifted := result.transcript.Shift(result.offset)
		if text := strings.TrimSpace(shifted.Text); text != "" {
			texts = append(texts, text)
		}
		words = append(words, shifted.Words...)
		if language == "" {
			language = shifted.Language
		}
		if provider == "" {
			provider = shifted.Provider
		}
	}
	return providers.Transcript{
		Text:     strings.Join(texts, " "),
		Words:    words,
		Language: language,
		Provider: provider,
	}
}
