package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"scribe/internal/logging"
	"scribe/internal/providers"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/stage"
	"scribe/internal/textutil"
)

// visualResolution issues one image search per visual opportunity and
// records the first hit. Missing results leave the placeholder
// unresolved; they never fail the stage.
type visualResolution struct {
	env *Env
}

func (p *visualResolution) Execute(ctx context.Context, source *queue.Source, _ *queue.Job) ([]queue.FollowUp, error) {
	content, err := loadStructured(source)
	if err != nil {
		return nil, err
	}

	searcher := p.env.Search
	if len(content.VisualOpportunities) == 0 || searcher == nil || !searcher.Configured() {
		if len(content.VisualOpportunities) > 0 {
			p.env.logger().InfoContext(ctx, "image search not configured, skipping visual resolution",
				logging.Int64(logging.FieldSourceID, source.ID))
		}
		return followAssembly(source.ID), nil
	}

	resolved := 0
	for i := range content.VisualOpportunities {
		opp := &content.VisualOpportunities[i]
		url, searchErr := searcher.FirstImageURL(ctx, opp.SearchQuery)
		if searchErr != nil {
			// A failed search for one opportunity degrades to an
			// unresolved placeholder instead of failing the stage.
			p.env.logger().WarnContext(ctx, "image search failed for opportunity",
				logging.Int64(logging.FieldSourceID, source.ID),
				logging.String("placeholder", opp.PlaceholderID),
				logging.Error(searchErr),
			)
			continue
		}
		if url == "" {
			continue
		}
		opp.ImageURL = url
		resolved++
	}

	if err := saveStructured(source, content); err != nil {
		return nil, err
	}
	p.env.logger().InfoContext(ctx, "resolved visual opportunities",
		logging.Int64(logging.FieldSourceID, source.ID),
		logging.Int("resolved", resolved),
		logging.Int("total", len(content.VisualOpportunities)),
	)

	if next, ok := nextResolvedPlaceholder(content, ""); ok {
		return []queue.FollowUp{{
			Type:    queue.JobVisualGeneration,
			Payload: queue.Payload{SourceID: source.ID, PlaceholderID: next},
		}}, nil
	}
	return followAssembly(source.ID), nil
}

func (p *visualResolution) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("visual_resolution")
}

// visualGeneration downloads one resolved image into the source's
// asset directory, then chains to the next placeholder or to assembly.
// Keeping one job per image preserves the single-job-in-flight rule
// for a source while isolating download failures.
type visualGeneration struct {
	env *Env
}

func (p *visualGeneration) Execute(ctx context.Context, source *queue.Source, job *queue.Job) ([]queue.FollowUp, error) {
	payload, err := job.Payload()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "visual_generation", "payload", "malformed job payload", err)
	}

	content, err := loadStructured(source)
	if err != nil {
		return nil, err
	}
	opp, ok := content.Opportunity(payload.PlaceholderID)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "visual_generation", "locate",
			fmt.Sprintf("unknown placeholder %q", payload.PlaceholderID), nil)
	}

	if strings.TrimSpace(opp.ImageURL) != "" && p.env.Search != nil {
		dest := p.assetPath(source.ID, payload.PlaceholderID, opp.ImageURL)
		if downloadErr := p.env.Search.Download(ctx, opp.ImageURL, dest); downloadErr != nil {
			// The note still renders with the remote URL, so a download
			// failure degrades rather than failing the stage.
			p.env.logger().WarnContext(ctx, "image download failed",
				logging.Int64(logging.FieldSourceID, source.ID),
				logging.String("placeholder", payload.PlaceholderID),
				logging.Error(downloadErr),
			)
		} else {
			for i := range content.VisualOpportunities {
				if content.VisualOpportunities[i].PlaceholderID == payload.PlaceholderID {
					content.VisualOpportunities[i].LocalPath = dest
				}
			}
			if err := saveStructured(source, content); err != nil {
				return nil, err
			}
		}
	}

	if next, ok := nextResolvedPlaceholder(content, payload.PlaceholderID); ok {
		return []queue.FollowUp{{
			Type:    queue.JobVisualGeneration,
			Payload: queue.Payload{SourceID: source.ID, PlaceholderID: next},
		}}, nil
	}
	return followAssembly(source.ID), nil
}

func (p *visualGeneration) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("visual_generation")
}

func (p *visualGeneration) assetPath(sourceID int64, placeholderID, imageURL string) string {
	ext := filepath.Ext(imageURL)
	if ext == "" || len(ext) > 5 || strings.ContainsAny(ext, "?&=") {
		ext = ".img"
	}
	name := textutil.SanitizeFileName(placeholderID) + ext
	return filepath.Join(p.env.Cfg.Paths.DataDir, "assets", fmt.Sprintf("%d", sourceID), name)
}

func followAssembly(sourceID int64) []queue.FollowUp {
	return []queue.FollowUp{{
		Type:    queue.JobNoteAssembly,
		Payload: queue.Payload{SourceID: sourceID},
	}}
}

// nextResolvedPlaceholder returns the first placeholder with a resolved
// image URL that appears after the given one ("" means start from the
// beginning).
func nextResolvedPlaceholder(content providers.StructuredContent, after string) (string, bool) {
	passed := after == ""
	for _, opp := range content.VisualOpportunities {
		if !passed {
			if opp.PlaceholderID == after {
				passed = true
			}
			continue
		}
		if strings.TrimSpace(opp.ImageURL) != "" {
			return opp.PlaceholderID, true
		}
	}
	return "", false
}
