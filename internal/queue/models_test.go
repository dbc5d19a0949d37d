package queue_test

import (
	"testing"

	"scribe/internal/queue"
)

func TestParseSourceType(t *testing.T) {
	cases := []struct {
		input string
		want  queue.SourceType
		ok    bool
	}{
		{"text", queue.SourceText, true},
		{"AUDIO", queue.SourceAudio, true},
		{" pdf ", queue.SourcePDF, true},
		{"image", queue.SourceImage, true},
		{"youtube", queue.SourceYouTube, true},
		{"video", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := queue.ParseSourceType(tc.input)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseSourceType(%q) = %q, %v; want %q, %v", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseJobType(t *testing.T) {
	for _, name := range []string{
		"text_ingestion",
		"audio_transcription",
		"pdf_processing",
		"image_processing",
		"youtube_processing",
		"structuring",
		"visual_resolution",
		"visual_generation",
		"note_assembly",
	} {
		if _, ok := queue.ParseJobType(name); !ok {
			t.Errorf("ParseJobType(%q) not recognized", name)
		}
	}
	if _, ok := queue.ParseJobType("transcode"); ok {
		t.Error("expected unknown job type to be rejected")
	}
}

func TestSourceStageTransitions(t *testing.T) {
	source := &queue.Source{Status: queue.StatusPending}

	source.BeginStage("structuring")
	if source.Status != queue.StatusProcessing || source.Stage != "structuring" {
		t.Fatalf("BeginStage: %+v", source)
	}

	source.AdvanceTo("visual_resolution")
	if source.Stage != "visual_resolution" {
		t.Fatalf("AdvanceTo: %+v", source)
	}
	if source.ProcessingError != "" {
		t.Fatal("advance should clear processing error")
	}

	source.Complete()
	if source.Status != queue.StatusCompleted {
		t.Fatalf("Complete: %+v", source)
	}

	source.SetFailed("provider unavailable")
	if source.Status != queue.StatusFailed || source.ProcessingError != "provider unavailable" {
		t.Fatalf("SetFailed: %+v", source)
	}
}

func TestSourceMetadataMerge(t *testing.T) {
	source := &queue.Source{}
	if err := source.SetMetadata(map[string]any{"language": "en"}); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := source.MergeMetadata(map[string]any{"pages": float64(4)}); err != nil {
		t.Fatalf("MergeMetadata: %v", err)
	}

	meta, err := source.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if meta["language"] != "en" || meta["pages"] != float64(4) {
		t.Fatalf("unexpected metadata %v", meta)
	}
}
