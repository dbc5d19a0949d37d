package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"scribe/internal/logging"
	"scribe/internal/notes"
	"scribe/internal/queue"
	"scribe/internal/stage"
)

// noteAssembly merges structured content with resolved visuals into
// the final persisted note and completes the source's pipeline.
type noteAssembly struct {
	env *Env
}

func (p *noteAssembly) Execute(ctx context.Context, source *queue.Source, _ *queue.Job) ([]queue.FollowUp, error) {
	content, err := loadStructured(source)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encode note content: %w", err)
	}

	note := &notes.Note{
		SourceID:    source.ID,
		UserID:      source.UserID,
		Title:       content.Title,
		Summary:     content.Summary,
		ContentJSON: string(encoded),
		Markdown:    notes.RenderMarkdown(content),
	}
	if err := p.env.Notes.Upsert(ctx, note); err != nil {
		return nil, err
	}

	source.Complete()
	p.env.logger().InfoContext(ctx, "assembled note",
		logging.Int64(logging.FieldSourceID, source.ID),
		logging.String("title", content.Title),
	)
	return nil, nil
}

func (p *noteAssembly) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("note_assembly")
}
