package chunking

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"scribe/internal/services"
)

// SplitResult describes the files produced by a segment split.
type SplitResult struct {
	Dir   string
	Files []string
}

// Split divides the audio file into fixed-length segments with a
// stream-copy split (no re-encoding). Zero produced segments is fatal
// for the stage.
func Split(ctx context.Context, ffmpegBinary, audioPath, scratchDir string, segmentSeconds int) (SplitResult, error) {
	var empty SplitResult
	binary := strings.TrimSpace(ffmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if segmentSeconds <= 0 {
		return empty, services.Wrap(services.ErrValidation, "audio_transcription", "split", fmt.Sprintf("invalid segment length %d", segmentSeconds), nil)
	}
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return empty, fmt.Errorf("create chunk dir: %w", err)
	}

	ext := filepath.Ext(audioPath)
	if ext == "" {
		ext = ".mp3"
	}
	pattern := filepath.Join(scratchDir, "chunk_%04d"+ext)

	cmd := exec.CommandContext(ctx, binary,
		"-hide_banner",
		"-nostdin",
		"-v", "error",
		"-i", audioPath,
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%d", segmentSeconds),
		"-c", "copy",
		"-reset_timestamps", "1",
		pattern,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "audio_transcription", "split",
			fmt.Sprintf("ffmpeg segment split failed: %s", strings.TrimSpace(string(output))), err)
	}

	matches, err := filepath.Glob(filepath.Join(scratchDir, "chunk_*"+ext))
	if err != nil {
		return empty, fmt.Errorf("glob chunk files: %w", err)
	}
	sort.Strings(matches)
	if len(matches) == 0 {
		return empty, services.Wrap(services.ErrExternalTool, "audio_transcription", "split", "ffmpeg produced zero segments", nil)
	}
	return SplitResult{Dir: scratchDir, Files: matches}, nil
}

// Remove deletes every chunk file. Errors are returned joined so the
// caller can log them without masking the stage outcome.
func (r SplitResult) Remove() error {
	var firstErr error
	for _, file := range r.Files {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
