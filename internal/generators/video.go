package generators

import (
	"context"
	"slices"
	"strconv"

	"shotdeck/internal/services"
	"shotdeck/internal/services/fal"
	"shotdeck/internal/stage"
	"shotdeck/internal/store"
)

// Aspect ratios the image-to-video endpoints accept directly.
var videoAspectRatios = []string{"16:9", "9:16", "1:1"}

type videoParams struct {
	Prompt          string
	ImageURLs       []string
	GenerationIDs   []string
	Model           string
	DurationSeconds int
}

func parseVideoParams(params store.JSONObject, defaultModel string) (videoParams, error) {
	prompt, err := stage.RequireString(component, params, "prompt")
	if err != nil {
		return videoParams{}, err
	}
	urls, err := stage.StringList(component, params, "imageUrls")
	if err != nil {
		return videoParams{}, err
	}
	ids, err := stage.StringList(component, params, "generationIds")
	if err != nil {
		return videoParams{}, err
	}
	if len(urls) == 0 && len(ids) == 0 {
		return videoParams{}, services.Wrap(services.ErrValidation, component, "read params",
			"params.imageUrls or params.generationIds must name a start image", nil)
	}
	duration, err := stage.OptionalInt(component, params, "durationSeconds", 5)
	if err != nil {
		return videoParams{}, err
	}
	if err := stage.OneOf(component, "durationSeconds", duration, 5, 10); err != nil {
		return videoParams{}, err
	}
	return videoParams{
		Prompt:          prompt,
		ImageURLs:       urls,
		GenerationIDs:   ids,
		Model:           modelOr(params.String("model"), defaultModel),
		DurationSeconds: duration,
	}, nil
}

// frames returns the start frame and, when a second image was given, the
// end frame.
func (g *videoGenerator) frames(ctx context.Context, projectID string, p videoParams) (string, string, error) {
	var refs []string
	for _, url := range p.ImageURLs {
		ref, err := g.base.imageReference(ctx, projectID, url, "")
		if err != nil {
			return "", "", err
		}
		refs = append(refs, ref)
	}
	for _, id := range p.GenerationIDs {
		ref, err := g.base.imageReference(ctx, projectID, "", id)
		if err != nil {
			return "", "", err
		}
		refs = append(refs, ref)
	}
	if len(refs) > 1 {
		return refs[0], refs[1], nil
	}
	return refs[0], "", nil
}

type videoGenerator struct {
	base *base
}

func (g *videoGenerator) Execute(ctx context.Context, task *store.Task) (*stage.Result, error) {
	p, err := parseVideoParams(task.Params, g.base.deps.Models.Video)
	if err != nil {
		return nil, err
	}
	project, err := g.base.project(ctx, task)
	if err != nil {
		return nil, err
	}
	start, end, err := g.frames(ctx, project.ID, p)
	if err != nil {
		return nil, err
	}
	client, err := g.base.client(ctx, project)
	if err != nil {
		return nil, err
	}

	input := map[string]any{
		"prompt":    p.Prompt,
		"image_url": start,
		"duration":  strconv.Itoa(p.DurationSeconds),
	}
	if end != "" {
		input["tail_image_url"] = end
	}
	if slices.Contains(videoAspectRatios, project.AspectRatio) {
		input["aspect_ratio"] = project.AspectRatio
	}
	var out fal.VideoOutput
	if err := g.base.run(ctx, client, task, p.Model, input, &out); err != nil {
		return nil, err
	}

	recorded := store.JSONObject{
		"prompt":          p.Prompt,
		"model":           p.Model,
		"durationSeconds": p.DurationSeconds,
		"aspectRatio":     project.AspectRatio,
	}
	if len(p.GenerationIDs) > 0 {
		recorded["sourceGenerationIds"] = p.GenerationIDs
	}
	gen, err := g.base.generation(ctx, project.ID, out.Video, store.GenerationVideo, recorded)
	if err != nil {
		return nil, err
	}
	return &stage.Result{OutputLocation: gen.Location, Generations: []*store.Generation{gen}}, nil
}

func (g *videoGenerator) HealthCheck(context.Context) stage.Health {
	return g.base.health(store.TaskTypeVideoGeneration)
}
