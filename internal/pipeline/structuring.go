package pipeline

import (
	"context"
	"strings"

	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/stage"
)

// structuring sends extracted text to the text-generation role and
// persists the schema-validated structured content on the source.
type structuring struct {
	env *Env
}

func (p *structuring) Execute(ctx context.Context, source *queue.Source, _ *queue.Job) ([]queue.FollowUp, error) {
	text := strings.TrimSpace(source.ExtractedText)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "structuring", "load", "source has no extracted text", nil)
	}

	languageCode := ""
	if meta, err := source.Metadata(); err == nil {
		if code, ok := meta["language"].(string); ok {
			languageCode = code
		}
	}

	content, provider, err := p.env.resolveStructure(ctx, text, languageCode)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(source.Title) == "" {
		source.Title = content.Title
	}
	if err := saveStructured(source, content); err != nil {
		return nil, err
	}
	if err := source.MergeMetadata(map[string]any{"structuringProvider": provider}); err != nil {
		return nil, err
	}

	p.env.logger().InfoContext(ctx, "structured source content",
		logging.Int64(logging.FieldSourceID, source.ID),
		logging.String(logging.FieldProvider, provider),
		logging.Int("blocks", len(content.Structure)),
		logging.Int("visual_opportunities", len(content.VisualOpportunities)),
	)
	return []queue.FollowUp{{
		Type:    queue.JobVisualResolution,
		Payload: queue.Payload{SourceID: source.ID},
	}}, nil
}

func (p *structuring) HealthCheck(ctx context.Context) stage.Health {
	if p.env.TextgenPrimary == nil && p.env.TextgenFallback == nil {
		return stage.Unhealthy("structuring", "no text-generation provider configured")
	}
	return stage.Healthy("structuring")
}
