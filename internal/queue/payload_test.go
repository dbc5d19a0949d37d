package queue_test

import (
	"testing"

	"scribe/internal/queue"
)

func TestPayloadValidate(t *testing.T) {
	cases := []struct {
		name    string
		jobType queue.JobType
		payload queue.Payload
		wantErr bool
	}{
		{"structuring ok", queue.JobStructuring, queue.Payload{SourceID: 1}, false},
		{"missing source", queue.JobStructuring, queue.Payload{}, true},
		{"audio requires path", queue.JobAudioTranscription, queue.Payload{SourceID: 1}, true},
		{"audio with path", queue.JobAudioTranscription, queue.Payload{SourceID: 1, AudioFilePath: "/tmp/a.mp3"}, false},
		{"generation requires placeholder", queue.JobVisualGeneration, queue.Payload{SourceID: 1}, true},
		{"generation with placeholder", queue.JobVisualGeneration, queue.Payload{SourceID: 1, PlaceholderID: "viz-1"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.payload.Validate(tc.jobType)
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDecodePayloadRejectsUnknownFields(t *testing.T) {
	raw := `{"sourceId": 3, "bogus": true}`
	if _, err := queue.DecodePayload(queue.JobStructuring, raw); err == nil {
		t.Fatal("expected unknown field rejection")
	}
}

func TestPayloadEncodeDecode(t *testing.T) {
	payload := queue.Payload{SourceID: 7, AudioFilePath: "/scratch/7/audio.mp3", LanguageCode: "fr"}
	raw, err := payload.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := queue.DecodePayload(queue.JobAudioTranscription, raw)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if decoded != payload {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, payload)
	}
}
