package generators

import (
	"context"

	"shotdeck/internal/services"
	"shotdeck/internal/services/fal"
	"shotdeck/internal/stage"
	"shotdeck/internal/store"
)

type upscaleParams struct {
	ImageURL     string
	GenerationID string
	Scale        int
	Model        string
}

func parseUpscaleParams(params store.JSONObject, defaultModel string) (upscaleParams, error) {
	p := upscaleParams{
		ImageURL:     params.String("imageUrl"),
		GenerationID: params.String("generationId"),
		Model:        modelOr(params.String("model"), defaultModel),
	}
	if p.ImageURL == "" && p.GenerationID == "" {
		return upscaleParams{}, services.Wrap(services.ErrValidation, component, "read params",
			"params.imageUrl or params.generationId is required", nil)
	}
	scale, err := stage.OptionalInt(component, params, "scale", 2)
	if err != nil {
		return upscaleParams{}, err
	}
	if err := stage.OneOf(component, "scale", scale, 2, 4); err != nil {
		return upscaleParams{}, err
	}
	p.Scale = scale
	return p, nil
}

type upscaler struct {
	base *base
}

func (u *upscaler) Execute(ctx context.Context, task *store.Task) (*stage.Result, error) {
	p, err := parseUpscaleParams(task.Params, u.base.deps.Models.Upscale)
	if err != nil {
		return nil, err
	}
	project, err := u.base.project(ctx, task)
	if err != nil {
		return nil, err
	}
	source, err := u.base.imageReference(ctx, project.ID, p.ImageURL, p.GenerationID)
	if err != nil {
		return nil, err
	}
	client, err := u.base.client(ctx, project)
	if err != nil {
		return nil, err
	}

	var out fal.UpscaleOutput
	if err := u.base.run(ctx, client, task, p.Model, map[string]any{"image_url": source, "scale": p.Scale}, &out); err != nil {
		return nil, err
	}
	recorded := store.JSONObject{"model": p.Model, "scale": p.Scale}
	if p.GenerationID != "" {
		recorded["sourceGenerationId"] = p.GenerationID
	}
	gen, err := u.base.generation(ctx, project.ID, out.Image, store.GenerationImage, recorded)
	if err != nil {
		return nil, err
	}
	return &stage.Result{OutputLocation: gen.Location, Generations: []*store.Generation{gen}}, nil
}

func (u *upscaler) HealthCheck(context.Context) stage.Health {
	return u.base.health(store.TaskTypeImageUpscale)
}
