package studio

import (
	"context"
	"strings"

	"shotdeck/internal/events"
	"shotdeck/internal/logging"
	"shotdeck/internal/services"
	"shotdeck/internal/store"
)

const (
	defaultGenerationLimit = 50
	maxGenerationLimit     = 200
)

// GenerationInput is the payload for registering an existing asset.
type GenerationInput struct {
	ProjectID string           `json:"projectId"`
	Location  string           `json:"location"`
	Type      string           `json:"type"`
	Params    store.JSONObject `json:"params"`
}

func parseGenerationType(op, value string, allowEmpty bool) (store.GenerationType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		if allowEmpty {
			return "", nil
		}
		return store.GenerationImage, nil
	case string(store.GenerationImage):
		return store.GenerationImage, nil
	case string(store.GenerationVideo):
		return store.GenerationVideo, nil
	default:
		return "", invalid(op, "generation type %q must be image or video", value)
	}
}

// ListGenerations returns a page of a project's generations, newest first.
func (s *Service) ListGenerations(ctx context.Context, userID, projectID, genType string, limit, offset int) ([]store.Generation, error) {
	const op = "list generations"
	if _, err := s.project(ctx, op, userID, projectID); err != nil {
		return nil, err
	}
	typ, err := parseGenerationType(op, genType, true)
	if err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultGenerationLimit
	case limit > maxGenerationLimit:
		limit = maxGenerationLimit
	}
	if offset < 0 {
		return nil, invalid(op, "offset must not be negative")
	}
	gens, err := s.store.ListGenerations(ctx, store.GenerationFilter{
		ProjectID: projectID,
		Type:      typ,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, translate(op, err)
	}
	return gens, nil
}

// GetGeneration returns one generation.
func (s *Service) GetGeneration(ctx context.Context, userID, generationID string) (*store.Generation, error) {
	return s.generation(ctx, "get generation", userID, generationID)
}

// CreateGeneration registers an asset that was produced outside the worker.
func (s *Service) CreateGeneration(ctx context.Context, userID string, input GenerationInput) (*store.Generation, error) {
	const op = "create generation"
	if _, err := s.project(ctx, op, userID, input.ProjectID); err != nil {
		return nil, err
	}
	location := strings.TrimSpace(input.Location)
	if location == "" {
		return nil, invalid(op, "location required")
	}
	typ, err := parseGenerationType(op, input.Type, false)
	if err != nil {
		return nil, err
	}
	gen := &store.Generation{
		ProjectID: input.ProjectID,
		Location:  location,
		Type:      typ,
		Params:    input.Params,
	}
	if err := s.store.CreateGeneration(ctx, gen); err != nil {
		return nil, translate(op, err)
	}
	s.emit(userID, events.TypeGenerations, events.ActionCreated, gen.ProjectID, gen.ID)
	return gen, nil
}

// ImportGeneration copies a local file into the media store and registers it.
func (s *Service) ImportGeneration(ctx context.Context, userID, projectID, path string, params store.JSONObject) (*store.Generation, error) {
	const op = "import generation"
	if s.media == nil {
		return nil, services.Wrap(services.ErrConfiguration, component, op, "media store not configured", nil)
	}
	if _, err := s.project(ctx, op, userID, projectID); err != nil {
		return nil, err
	}
	obj, err := s.media.Import(projectID, path)
	if err != nil {
		return nil, err
	}
	typ := store.GenerationImage
	if strings.HasPrefix(obj.ContentType, "video/") {
		typ = store.GenerationVideo
	}
	if params == nil {
		params = store.JSONObject{}
	}
	params["source"] = "import"
	params["sha256"] = obj.SHA256
	gen, err := s.CreateGeneration(ctx, userID, GenerationInput{
		ProjectID: projectID,
		Location:  obj.Location,
		Type:      string(typ),
		Params:    params,
	})
	if err != nil {
		_ = s.media.Remove(obj.Location)
		return nil, err
	}
	return gen, nil
}

// DeleteGeneration removes a generation, compacts the shots that held it and
// deletes its local file.
func (s *Service) DeleteGeneration(ctx context.Context, userID, generationID string) error {
	const op = "delete generation"
	gen, err := s.generation(ctx, op, userID, generationID)
	if err != nil {
		return err
	}
	shotIDs, err := s.store.DeleteGeneration(ctx, generationID)
	if err != nil {
		return translate(op, err)
	}
	if s.media != nil {
		if err := s.media.Remove(gen.Location); err != nil {
			logging.WarnWithContext(s.logger, "generation file cleanup failed", "media_cleanup_failed",
				logging.String(logging.FieldProjectID, gen.ProjectID),
				logging.String("location", gen.Location),
				logging.Error(err),
			)
		}
	}
	s.emit(userID, events.TypeGenerations, events.ActionDeleted, gen.ProjectID, gen.ID)
	for _, shotID := range shotIDs {
		s.emit(userID, events.TypeShots, events.ActionUpdated, gen.ProjectID, shotID)
	}
	return nil
}
