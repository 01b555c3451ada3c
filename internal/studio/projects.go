package studio

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"shotdeck/internal/events"
	"shotdeck/internal/logging"
	"shotdeck/internal/store"
)

const maxNameLength = 200

// ProjectInput is the payload for creating a project.
type ProjectInput struct {
	Name        string `json:"name"`
	AspectRatio string `json:"aspectRatio"`
}

func cleanName(op, name, what string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid(op, "%s name required", what)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", invalid(op, "%s name longer than %d characters", what, maxNameLength)
	}
	return name, nil
}

func checkAspectRatio(op, ratio string) error {
	if !slices.Contains(store.AspectRatios, ratio) {
		return invalid(op, "aspect ratio %q not one of %s", ratio, strings.Join(store.AspectRatios, ", "))
	}
	return nil
}

// CreateProject creates a project and selects it in the user's workspace.
func (s *Service) CreateProject(ctx context.Context, userID string, input ProjectInput) (*store.Project, error) {
	const op = "create project"
	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	name, err := cleanName(op, input.Name, "project")
	if err != nil {
		return nil, err
	}
	ratio := strings.TrimSpace(input.AspectRatio)
	if ratio == "" {
		ratio = store.DefaultAspectRatio
	}
	if err := checkAspectRatio(op, ratio); err != nil {
		return nil, err
	}
	project := &store.Project{Name: name, UserID: userID, AspectRatio: ratio}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, translate(op, err)
	}
	s.emit(userID, events.TypeProjects, events.ActionCreated, project.ID, project.ID)

	ws, err := s.store.GetWorkspace(ctx, userID)
	if err != nil {
		return nil, translate(op, err)
	}
	ws.SelectedProjectID = project.ID
	ws.CurrentShotID = ""
	ws.LastAffectedShotID = ""
	if err := s.saveWorkspace(ctx, userID, ws); err != nil {
		return nil, err
	}
	s.logger.Info("project created",
		logging.String(logging.FieldProjectID, project.ID),
		logging.String(logging.FieldUserID, userID),
		logging.String("aspect_ratio", ratio),
	)
	return project, nil
}

// ListProjects returns the user's projects, newest first.
func (s *Service) ListProjects(ctx context.Context, userID string) ([]store.Project, error) {
	const op = "list projects"
	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	projects, err := s.store.ListProjects(ctx, userID)
	if err != nil {
		return nil, translate(op, err)
	}
	return projects, nil
}

// GetProject returns a project owned by the user.
func (s *Service) GetProject(ctx context.Context, userID, projectID string) (*store.Project, error) {
	return s.project(ctx, "get project", userID, projectID)
}

// UpdateProject renames a project or changes its aspect ratio.
func (s *Service) UpdateProject(ctx context.Context, userID, projectID string, update store.ProjectUpdate) (*store.Project, error) {
	const op = "update project"
	if _, err := s.project(ctx, op, userID, projectID); err != nil {
		return nil, err
	}
	if update.Name != nil {
		name, err := cleanName(op, *update.Name, "project")
		if err != nil {
			return nil, err
		}
		update.Name = &name
	}
	if update.AspectRatio != nil {
		ratio := strings.TrimSpace(*update.AspectRatio)
		if err := checkAspectRatio(op, ratio); err != nil {
			return nil, err
		}
		update.AspectRatio = &ratio
	}
	project, err := s.store.UpdateProject(ctx, projectID, update)
	if err != nil {
		return nil, translate(op, err)
	}
	s.emit(userID, events.TypeProjects, events.ActionUpdated, project.ID, project.ID)
	return project, nil
}

// DeleteProject removes a project with everything it owns.
func (s *Service) DeleteProject(ctx context.Context, userID, projectID string) error {
	const op = "delete project"
	if _, err := s.project(ctx, op, userID, projectID); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return translate(op, err)
	}
	if s.media != nil {
		if err := s.media.RemoveProject(projectID); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, s.logger), "project media cleanup failed", "media_cleanup_failed",
				logging.String(logging.FieldProjectID, projectID),
				logging.String(logging.FieldErrorHint, "remove the directory under media_dir manually"),
				logging.Error(err),
			)
		}
	}
	s.emit(userID, events.TypeProjects, events.ActionDeleted, projectID, projectID)
	s.emit(userID, events.TypeWorkspace, events.ActionUpdated, "", "")
	return nil
}
