package studio

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"shotdeck/internal/events"
	"shotdeck/internal/store"
)

// ShotInput is the payload for creating a shot.
type ShotInput struct {
	ProjectID     string   `json:"projectId"`
	Name          string   `json:"name"`
	GenerationIDs []string `json:"generationIds"`
}

// CreateShot creates a shot, optionally seeded with generations in order.
// An empty name becomes "Shot N".
func (s *Service) CreateShot(ctx context.Context, userID string, input ShotInput) (*store.Shot, error) {
	const op = "create shot"
	if _, err := s.project(ctx, op, userID, input.ProjectID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		existing, err := s.store.ListShots(ctx, input.ProjectID)
		if err != nil {
			return nil, translate(op, err)
		}
		name = fmt.Sprintf("Shot %d", len(existing)+1)
	}
	name, err := cleanName(op, name, "shot")
	if err != nil {
		return nil, err
	}
	shot := &store.Shot{ProjectID: input.ProjectID, Name: name}
	if err := s.store.CreateShot(ctx, shot, input.GenerationIDs...); err != nil {
		return nil, translate(op, err)
	}
	s.emit(userID, events.TypeShots, events.ActionCreated, shot.ProjectID, shot.ID)
	if len(input.GenerationIDs) > 0 {
		if err := s.markAffected(ctx, userID, shot); err != nil {
			return nil, err
		}
	}
	return shot, nil
}

// ListShots returns a project's shots with their ordered generations.
func (s *Service) ListShots(ctx context.Context, userID, projectID string) ([]store.Shot, error) {
	const op = "list shots"
	if _, err := s.project(ctx, op, userID, projectID); err != nil {
		return nil, err
	}
	shots, err := s.store.ListShots(ctx, projectID)
	if err != nil {
		return nil, translate(op, err)
	}
	return shots, nil
}

// GetShot returns one shot.
func (s *Service) GetShot(ctx context.Context, userID, shotID string) (*store.Shot, error) {
	return s.shot(ctx, "get shot", userID, shotID)
}

// RenameShot changes a shot's name.
func (s *Service) RenameShot(ctx context.Context, userID, shotID, name string) (*store.Shot, error) {
	const op = "rename shot"
	if _, err := s.shot(ctx, op, userID, shotID); err != nil {
		return nil, err
	}
	name, err := cleanName(op, name, "shot")
	if err != nil {
		return nil, err
	}
	shot, err := s.store.RenameShot(ctx, shotID, name)
	if err != nil {
		return nil, translate(op, err)
	}
	s.emit(userID, events.TypeShots, events.ActionUpdated, shot.ProjectID, shot.ID)
	return shot, nil
}

// DeleteShot removes a shot. Its generations stay in the project.
func (s *Service) DeleteShot(ctx context.Context, userID, shotID string) error {
	const op = "delete shot"
	shot, err := s.shot(ctx, op, userID, shotID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteShot(ctx, shotID); err != nil {
		return translate(op, err)
	}
	s.emit(userID, events.TypeShots, events.ActionDeleted, shot.ProjectID, shot.ID)
	return nil
}

// AddGenerationToShot inserts a generation at position, or appends when
// position is nil, and marks the shot as last affected.
func (s *Service) AddGenerationToShot(ctx context.Context, userID, shotID, generationID string, position *int) (*store.Shot, error) {
	const op = "add generation to shot"
	if _, err := s.shot(ctx, op, userID, shotID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(generationID) == "" {
		return nil, invalid(op, "generation id required")
	}
	if position != nil && *position < 0 {
		return nil, invalid(op, "position must not be negative")
	}
	if _, err := s.store.AddGenerationToShot(ctx, shotID, generationID, position); err != nil {
		return nil, translate(op, err)
	}
	shot, err := s.store.GetShot(ctx, shotID)
	if err != nil {
		return nil, translate(op, err)
	}
	s.emit(userID, events.TypeShots, events.ActionUpdated, shot.ProjectID, shot.ID)
	if err := s.markAffected(ctx, userID, shot); err != nil {
		return nil, err
	}
	return shot, nil
}

// RemoveShotGeneration drops one entry from a shot.
func (s *Service) RemoveShotGeneration(ctx context.Context, userID, shotID, shotGenerationID string) (*store.Shot, error) {
	const op = "remove shot generation"
	if _, err := s.shot(ctx, op, userID, shotID); err != nil {
		return nil, err
	}
	if err := s.store.RemoveShotGeneration(ctx, shotID, shotGenerationID); err != nil {
		return nil, translate(op, err)
	}
	shot, err := s.store.GetShot(ctx, shotID)
	if err != nil {
		return nil, translate(op, err)
	}
	s.emit(userID, events.TypeShots, events.ActionUpdated, shot.ProjectID, shot.ID)
	return shot, nil
}

// ReorderShot applies a full ordering of the shot's entries.
func (s *Service) ReorderShot(ctx context.Context, userID, shotID string, orderedIDs []string) (*store.Shot, error) {
	const op = "reorder shot"
	if _, err := s.shot(ctx, op, userID, shotID); err != nil {
		return nil, err
	}
	shot, err := s.store.ReorderShot(ctx, shotID, orderedIDs)
	if err != nil {
		return nil, translate(op, err)
	}
	s.emit(userID, events.TypeShots, events.ActionUpdated, shot.ProjectID, shot.ID)
	return shot, nil
}

// DuplicateShot copies a shot with its entries.
func (s *Service) DuplicateShot(ctx context.Context, userID, shotID, name string) (*store.Shot, error) {
	const op = "duplicate shot"
	source, err := s.shot(ctx, op, userID, shotID)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name == "" {
		name = copyName(source.Name)
	}
	if name, err = cleanName(op, name, "shot"); err != nil {
		return nil, err
	}
	shot, err := s.store.DuplicateShot(ctx, shotID, name)
	if err != nil {
		return nil, translate(op, err)
	}
	s.emit(userID, events.TypeShots, events.ActionCreated, shot.ProjectID, shot.ID)
	return shot, nil
}

const copySuffix = " (copy)"

// copyName appends copySuffix, shortening the source so the result stays
// within maxNameLength runes.
func copyName(source string) string {
	runes := []rune(source)
	if keep := maxNameLength - utf8.RuneCountInString(copySuffix); len(runes) > keep {
		runes = runes[:keep]
	}
	return strings.TrimSpace(string(runes)) + copySuffix
}
