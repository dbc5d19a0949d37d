package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SourceType identifies the kind of raw material a source carries. It is
// fixed at creation and determines which processor chain applies.
type SourceType string

const (
	SourceText    SourceType = "text"
	SourceAudio   SourceType = "audio"
	SourcePDF     SourceType = "pdf"
	SourceImage   SourceType = "image"
	SourceYouTube SourceType = "youtube"
)

var sourceTypes = map[SourceType]struct{}{
	SourceText:    {},
	SourceAudio:   {},
	SourcePDF:     {},
	SourceImage:   {},
	SourceYouTube: {},
}

// ParseSourceType converts a string into a known SourceType.
func ParseSourceType(value string) (SourceType, bool) {
	normalized := SourceType(strings.ToLower(strings.TrimSpace(value)))
	_, ok := sourceTypes[normalized]
	return normalized, ok
}

// Status is the coarse processing state of a source.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
	StatusCompleted  Status = "completed"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusFailed, StatusCompleted}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// Source is the persisted record representing one user-submitted piece
// of raw material being converted into a note. Stage processors are its
// only writers; each owns a narrow transition.
type Source struct {
	ID                  int64
	UserID              string
	SourceType          SourceType
	Title               string
	RawText             string
	ExtractedText       string
	OriginalStoragePath string
	MetadataJSON        string
	Status              Status
	Stage               string
	ProcessingError     string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Metadata decodes the open key/value map carrying stage-specific
// auxiliary data (language code, word timestamps, provider used).
func (s *Source) Metadata() (map[string]any, error) {
	if strings.TrimSpace(s.MetadataJSON) == "" {
		return map[string]any{}, nil
	}
	meta := map[string]any{}
	if err := json.Unmarshal([]byte(s.MetadataJSON), &meta); err != nil {
		return nil, fmt.Errorf("decode source metadata: %w", err)
	}
	return meta, nil
}

// SetMetadata replaces the metadata map.
func (s *Source) SetMetadata(meta map[string]any) error {
	if len(meta) == 0 {
		s.MetadataJSON = ""
		return nil
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode source metadata: %w", err)
	}
	s.MetadataJSON = string(encoded)
	return nil
}

// MergeMetadata applies updates on top of the existing metadata map.
func (s *Source) MergeMetadata(updates map[string]any) error {
	meta, err := s.Metadata()
	if err != nil {
		return err
	}
	for key, value := range updates {
		meta[key] = value
	}
	return s.SetMetadata(meta)
}

// BeginStage marks a stage as actively running. Called by every
// processor before provider work starts.
func (s *Source) BeginStage(stage string) {
	s.Status = StatusProcessing
	s.Stage = stage
	s.ProcessingError = ""
}

// AdvanceTo records stage success with more stages remaining: back to
// pending with the next stage label.
func (s *Source) AdvanceTo(nextStage string) {
	s.Status = StatusPending
	s.Stage = nextStage
	s.ProcessingError = ""
}

// Complete marks the pipeline finished for this source.
func (s *Source) Complete() {
	s.Status = StatusCompleted
	s.ProcessingError = ""
}

// SetFailed marks the source as failed with a human-readable message.
func (s *Source) SetFailed(message string) {
	s.Status = StatusFailed
	s.ProcessingError = message
}

// JobType names one stage of the pipeline. The set is closed; dispatch
// on an unknown name is a hard error.
type JobType string

const (
	JobTextIngestion      JobType = "text_ingestion"
	JobAudioTranscription JobType = "audio_transcription"
	JobPDFProcessing      JobType = "pdf_processing"
	JobImageProcessing    JobType = "image_processing"
	JobYouTubeProcessing  JobType = "youtube_processing"
	JobStructuring        JobType = "structuring"
	JobVisualResolution   JobType = "visual_resolution"
	JobVisualGeneration   JobType = "visual_generation"
	JobNoteAssembly       JobType = "note_assembly"
)

var jobTypes = map[JobType]struct{}{
	JobTextIngestion:      {},
	JobAudioTranscription: {},
	JobPDFProcessing:      {},
	JobImageProcessing:    {},
	JobYouTubeProcessing:  {},
	JobStructuring:        {},
	JobVisualResolution:   {},
	JobVisualGeneration:   {},
	JobNoteAssembly:       {},
}

// ParseJobType converts a string into a known JobType.
func ParseJobType(value string) (JobType, bool) {
	normalized := JobType(strings.ToLower(strings.TrimSpace(value)))
	_, ok := jobTypes[normalized]
	return normalized, ok
}

// JobState is the lifecycle of a queued job.
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// Job is one unit of queued, named, replayable work tied to a stage and
// a source.
type Job struct {
	ID          int64
	Type        JobType
	SourceID    int64
	PayloadJSON string
	State       JobState
	Attempts    int
	MaxAttempts int
	RunAt       time.Time
	LastError   string
	HeartbeatAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Payload decodes and validates the job payload against its type.
func (j *Job) Payload() (Payload, error) {
	return DecodePayload(j.Type, j.PayloadJSON)
}

// FollowUp names a job to enqueue after the current one succeeds.
type FollowUp struct {
	Type    JobType
	Payload Payload
}

// HealthSummary aggregates source counts per lifecycle state plus
// queue depth.
type HealthSummary struct {
	Sources    int
	Pending    int
	Processing int
	Failed     int
	Completed  int
	QueuedJobs int
}
