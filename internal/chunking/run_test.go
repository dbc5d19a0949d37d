package chunking

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/providers"
)

func writeStubBinary(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

// newStubTranscriber wires a Transcriber against stub ffprobe/ffmpeg
// scripts: the probe reports 1500 seconds and the split writes three
// chunk files from the segment pattern.
func newStubTranscriber(t *testing.T, transcribe ChunkTranscriber) (*Transcriber, string, string) {
	t.Helper()
	dir := t.TempDir()

	probeStub := writeStubBinary(t, dir, "ffprobe",
		"#!/bin/sh\nprintf '{\"format\":{\"duration\":\"1500\"}}'\n")
	ffmpegStub := writeStubBinary(t, dir, "ffmpeg",
		"#!/bin/sh\nfor arg; do pattern=$arg; done\n"+
			"for i in 0 1 2; do printf audio > \"$(printf \"$pattern\" \"$i\")\"; done\n")

	audioPath := filepath.Join(dir, "lecture.mp3")
	if err := os.WriteFile(audioPath, []byte("not real audio"), 0o644); err != nil {
		t.Fatalf("write audio file: %v", err)
	}

	scratch := filepath.Join(dir, "scratch")
	return &Transcriber{
		FFmpegBinary:           ffmpegStub,
		FFprobeBinary:          probeStub,
		SegmentSeconds:         600,
		MaxConcurrentChunks:    2,
		SingleCallLimitSeconds: 600,
		ScratchDir:             scratch,
		Transcribe:             transcribe,
	}, scratch, audioPath
}

func assertScratchEmpty(t *testing.T, scratch string) {
	t.Helper()
	var leftovers []string
	err := filepath.WalkDir(scratch, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != scratch {
			leftovers = append(leftovers, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk scratch dir: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("expected empty scratch dir, found %v", leftovers)
	}
}

func TestRunChunkedSuccessRemovesAllChunkFiles(t *testing.T) {
	transcriber, scratch, audioPath := newStubTranscriber(t,
		func(context.Context, string, string) (providers.Transcript, error) {
			return providers.Transcript{Text: "segment text"}, nil
		})

	transcript, err := transcriber.Run(context.Background(), audioPath, "en")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Count(transcript.Text, "segment text"); got != 3 {
		t.Fatalf("expected three merged segments, got %d in %q", got, transcript.Text)
	}
	assertScratchEmpty(t, scratch)
}

func TestRunChunkFailureRemovesAllChunkFiles(t *testing.T) {
	boom := errors.New("transcription rejected")
	transcriber, scratch, audioPath := newStubTranscriber(t,
		func(context.Context, string, string) (providers.Transcript, error) {
			return providers.Transcript{}, boom
		})

	_, err := transcriber.Run(context.Background(), audioPath, "en")
	if err == nil {
		t.Fatal("expected chunk failure to fail the run")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected underlying chunk error, got %v", err)
	}
	assertScratchEmpty(t, scratch)
}
