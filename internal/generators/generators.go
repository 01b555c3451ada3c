package generators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shotdeck/internal/config"
	"shotdeck/internal/logging"
	"shotdeck/internal/media"
	"shotdeck/internal/services"
	"shotdeck/internal/services/fal"
	"shotdeck/internal/stage"
	"shotdeck/internal/store"
	"shotdeck/internal/studio"
)

const component = "generators"

// Models names the fal endpoints used per task type.
type Models struct {
	Image   string
	Video   string
	Upscale string
}

// Deps are the collaborators shared by every handler.
type Deps struct {
	Store  *store.Store
	Fal    *fal.Client
	Media  *media.Store
	Mirror bool
	Models Models
	Logger *slog.Logger
}

// DepsFromConfig fills Models and Mirror from cfg.
func DepsFromConfig(cfg *config.Config, st *store.Store, client *fal.Client, mediaStore *media.Store, logger *slog.Logger) Deps {
	return Deps{
		Store:  st,
		Fal:    client,
		Media:  mediaStore,
		Mirror: cfg.Media.MirrorOutputs,
		Models: Models{
			Image:   cfg.Fal.ImageModel,
			Video:   cfg.Fal.VideoModel,
			Upscale: cfg.Fal.UpscaleModel,
		},
		Logger: logger,
	}
}

// Handlers returns a handler for every task type.
func Handlers(deps Deps) map[string]stage.Handler {
	b := &base{deps: deps}
	if b.deps.Logger == nil {
		b.deps.Logger = logging.NewNop()
	}
	b.deps.Logger = logging.NewComponentLogger(b.deps.Logger, component)
	return map[string]stage.Handler{
		store.TaskTypeImageGeneration: &imageGenerator{base: b},
		store.TaskTypeVideoGeneration: &videoGenerator{base: b},
		store.TaskTypeImageUpscale:    &upscaler{base: b},
	}
}

// Validate checks task params without contacting any provider. It matches
// the checks each handler repeats at execution time.
func Validate(taskType string, params store.JSONObject) error {
	switch taskType {
	case store.TaskTypeImageGeneration:
		_, err := parseImageParams(params, "")
		return err
	case store.TaskTypeVideoGeneration:
		_, err := parseVideoParams(params, "")
		return err
	case store.TaskTypeImageUpscale:
		_, err := parseUpscaleParams(params, "")
		return err
	default:
		return services.Wrap(services.ErrValidation, component, "validate",
			fmt.Sprintf("unknown task type %q", taskType), nil)
	}
}

type base struct {
	deps Deps
}

// project loads the task's project; its owner decides which fal key is used.
func (b *base) project(ctx context.Context, task *store.Task) (*store.Project, error) {
	project, err := b.deps.Store.GetProject(ctx, task.ProjectID)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, component, "load project", "project "+task.ProjectID, err)
	}
	return project, nil
}

func (b *base) client(ctx context.Context, project *store.Project) (*fal.Client, error) {
	key, err := studio.ResolveAPIKey(ctx, b.deps.Store, project.UserID, store.ProviderFal)
	if err != nil {
		return nil, err
	}
	return b.deps.Fal.WithAPIKey(key), nil
}

func (b *base) health(name string) stage.Health {
	if b.deps.Fal == nil {
		return stage.Unhealthy(name, "fal client not configured")
	}
	if !b.deps.Fal.Configured() {
		health := stage.Healthy(name)
		health.Detail = "no default fal key; tasks need a per-user key"
		return health
	}
	return stage.Healthy(name)
}

// run executes model and logs queue progress at debug level.
func (b *base) run(ctx context.Context, client *fal.Client, task *store.Task, model string, input, out any) error {
	logger := logging.WithContext(ctx, b.deps.Logger).With(
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldTaskType, task.TaskType),
		logging.String("model", model),
	)
	lastState := ""
	err := client.Run(ctx, model, input, out, func(status fal.Status) {
		if status.State == lastState {
			return
		}
		lastState = status.State
		logger.Debug("provider status",
			logging.String(logging.FieldEventType, "provider_status"),
			logging.String("state", status.State),
			logging.Int("queue_position", status.QueuePosition),
		)
	})
	if err != nil {
		return err
	}
	logger.Info("provider request finished", logging.String(logging.FieldEventType, "provider_done"))
	return nil
}

// generation turns a provider file into a generation, mirroring it locally
// when enabled. params is copied so callers can reuse it.
func (b *base) generation(ctx context.Context, projectID string, file fal.File, typ store.GenerationType, params store.JSONObject) (*store.Generation, error) {
	if strings.TrimSpace(file.URL) == "" {
		return nil, services.Wrap(services.ErrExternal, component, "collect output", "provider returned a file without a url", nil)
	}
	recorded := store.JSONObject{}
	for k, v := range params {
		recorded[k] = v
	}
	recorded["sourceUrl"] = file.URL
	if file.Width > 0 && file.Height > 0 {
		recorded["width"] = file.Width
		recorded["height"] = file.Height
	}
	location := file.URL
	if b.deps.Mirror && b.deps.Media != nil {
		obj, err := b.deps.Media.Mirror(ctx, projectID, file.URL)
		if err != nil {
			return nil, err
		}
		location = obj.Location
		recorded["sha256"] = obj.SHA256
	}
	return &store.Generation{Location: location, Type: typ, Params: recorded}, nil
}

// discard removes files already mirrored for generations that will not be
// persisted.
func (b *base) discard(ctx context.Context, gens []*store.Generation) {
	if b.deps.Media == nil {
		return
	}
	for _, gen := range gens {
		if err := b.deps.Media.Remove(gen.Location); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, b.deps.Logger), "mirrored output not removed", "media_cleanup_failed",
				logging.String("location", gen.Location),
				logging.Error(err),
			)
		}
	}
}

// imageReference resolves a start image given either a URL or the id of an
// image generation in the same project. Local files are inlined.
func (b *base) imageReference(ctx context.Context, projectID, url, generationID string) (string, error) {
	const op = "resolve image"
	if url != "" {
		if b.deps.Media != nil && b.deps.Media.IsLocal(url) {
			return b.deps.Media.DataURI(url)
		}
		return url, nil
	}
	gen, err := b.deps.Store.GetGeneration(ctx, generationID)
	if err != nil || gen.ProjectID != projectID {
		return "", services.Wrap(services.ErrValidation, component, op,
			fmt.Sprintf("generation %s is not in this project", generationID), err)
	}
	if gen.Type != store.GenerationImage {
		return "", services.Wrap(services.ErrValidation, component, op,
			fmt.Sprintf("generation %s is a %s, not an image", generationID, gen.Type), nil)
	}
	if b.deps.Media != nil && b.deps.Media.IsLocal(gen.Location) {
		return b.deps.Media.DataURI(gen.Location)
	}
	return gen.Location, nil
}

func modelOr(requested, fallback string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	return fallback
}
