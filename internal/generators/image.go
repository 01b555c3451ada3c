package generators

import (
	"context"

	"shotdeck/internal/services"
	"shotdeck/internal/services/fal"
	"shotdeck/internal/stage"
	"shotdeck/internal/store"
)

const maxImagesPerTask = 4

type imageParams struct {
	Prompt         string
	NegativePrompt string
	Model          string
	NumImages      int
	Seed           int64
	HasSeed        bool
}

func parseImageParams(params store.JSONObject, defaultModel string) (imageParams, error) {
	prompt, err := stage.RequireString(component, params, "prompt")
	if err != nil {
		return imageParams{}, err
	}
	num, err := stage.OptionalInt(component, params, "numImages", 1)
	if err != nil {
		return imageParams{}, err
	}
	if num < 1 || num > maxImagesPerTask {
		return imageParams{}, services.Wrap(services.ErrValidation, component, "read params",
			"params.numImages must be between 1 and 4", nil)
	}
	seed, hasSeed, err := stage.OptionalInt64(component, params, "seed")
	if err != nil {
		return imageParams{}, err
	}
	return imageParams{
		Prompt:         prompt,
		NegativePrompt: params.String("negativePrompt"),
		Model:          modelOr(params.String("model"), defaultModel),
		NumImages:      num,
		Seed:           seed,
		HasSeed:        hasSeed,
	}, nil
}

type imageGenerator struct {
	base *base
}

func (g *imageGenerator) Execute(ctx context.Context, task *store.Task) (*stage.Result, error) {
	p, err := parseImageParams(task.Params, g.base.deps.Models.Image)
	if err != nil {
		return nil, err
	}
	project, err := g.base.project(ctx, task)
	if err != nil {
		return nil, err
	}
	client, err := g.base.client(ctx, project)
	if err != nil {
		return nil, err
	}

	input := map[string]any{
		"prompt":                p.Prompt,
		"image_size":            fal.ImageSizeFor(project.AspectRatio),
		"num_images":            p.NumImages,
		"enable_safety_checker": true,
	}
	if p.NegativePrompt != "" {
		input["negative_prompt"] = p.NegativePrompt
	}
	if p.HasSeed {
		input["seed"] = p.Seed
	}
	var out fal.ImageOutput
	if err := g.base.run(ctx, client, task, p.Model, input, &out); err != nil {
		return nil, err
	}
	if len(out.Images) == 0 {
		return nil, services.Wrap(services.ErrExternal, component, "image generation", "provider returned no images", nil)
	}

	recorded := store.JSONObject{
		"prompt":      p.Prompt,
		"model":       p.Model,
		"seed":        out.Seed,
		"aspectRatio": project.AspectRatio,
	}
	if p.NegativePrompt != "" {
		recorded["negativePrompt"] = p.NegativePrompt
	}
	result := &stage.Result{}
	for _, file := range out.Images {
		gen, err := g.base.generation(ctx, project.ID, file, store.GenerationImage, recorded)
		if err != nil {
			g.base.discard(ctx, result.Generations)
			return nil, err
		}
		result.Generations = append(result.Generations, gen)
	}
	result.OutputLocation = result.Generations[0].Location
	return result, nil
}

func (g *imageGenerator) HealthCheck(context.Context) stage.Health {
	return g.base.health(store.TaskTypeImageGeneration)
}
