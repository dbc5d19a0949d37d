package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"scribe/internal/services"
)

// Payload is the closed job payload union. Every job carries a source
// identifier; the remaining fields are stage-specific and validated at
// the queue boundary so the dispatcher can match exhaustively.
type Payload struct {
	SourceID      int64  `json:"sourceId"`
	AudioFilePath string `json:"audioFilePath,omitempty"`
	LanguageCode  string `json:"languageCode,omitempty"`
	PlaceholderID string `json:"placeholderId,omitempty"`
}

// Validate checks the payload carries the fields its job type requires.
func (p Payload) Validate(jobType JobType) error {
	if _, ok := jobTypes[jobType]; !ok {
		return services.Wrap(services.ErrValidation, "queue", "validate payload",
			fmt.Sprintf("unknown job type %q", jobType), nil)
	}
	if p.SourceID <= 0 {
		return services.Wrap(services.ErrValidation, "queue", "validate payload",
			fmt.Sprintf("%s: sourceId is required", jobType), nil)
	}
	switch jobType {
	case JobAudioTranscription:
		if strings.TrimSpace(p.AudioFilePath) == "" {
			return services.Wrap(services.ErrValidation, "queue", "validate payload",
				"audio_transcription: audioFilePath is required", nil)
		}
	case JobVisualGeneration:
		if strings.TrimSpace(p.PlaceholderID) == "" {
			return services.Wrap(services.ErrValidation, "queue", "validate payload",
				"visual_generation: placeholderId is required", nil)
		}
	}
	return nil
}

// Encode serializes the payload for storage.
func (p Payload) Encode() (string, error) {
	encoded, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(encoded), nil
}

// DecodePayload parses and validates a stored payload for the given
// job type. Unknown fields are rejected so payload drift is caught at
// the boundary rather than in a processor.
func DecodePayload(jobType JobType, raw string) (Payload, error) {
	var payload Payload
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		return Payload{}, services.Wrap(services.ErrValidation, "queue", "decode payload", "malformed job payload", err)
	}
	if err := payload.Validate(jobType); err != nil {
		return Payload{}, err
	}
	return payload, nil
}
