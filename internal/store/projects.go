package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const projectColumns = "id, name, user_id, aspect_ratio, created_at, updated_at"

// CreateProject inserts a project, assigning an id and timestamps when missing.
func (s *Store) CreateProject(ctx context.Context, project *Project) error {
	if project == nil {
		return errors.New("create project: nil project")
	}
	if strings.TrimSpace(project.ID) == "" {
		project.ID = uuid.NewString()
	}
	if strings.TrimSpace(project.AspectRatio) == "" {
		project.AspectRatio = DefaultAspectRatio
	}
	now := Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	if _, err := s.exec(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		project.ID, project.Name, project.UserID, project.AspectRatio, project.CreatedAt, project.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject fetches a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var project Project
	err := s.get(ctx, &project, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &project, nil
}

// ListProjects returns a user's projects, newest first.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]Project, error) {
	projects := []Project{}
	if err := s.selectAll(ctx, &projects,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY created_at DESC, id`,
		userID,
	); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// MostRecentProject returns the user's newest project.
func (s *Store) MostRecentProject(ctx context.Context, userID string) (*Project, error) {
	var project Project
	err := s.get(ctx, &project,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY created_at DESC, id LIMIT 1`,
		userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("most recent project: %w", err)
	}
	return &project, nil
}

// UpdateProject applies the non-nil fields of update.
func (s *Store) UpdateProject(ctx context.Context, id string, update ProjectUpdate) (*Project, error) {
	sets := []string{"updated_at = ?"}
	args := []any{Now()}
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.AspectRatio != nil {
		sets = append(sets, "aspect_ratio = ?")
		args = append(args, *update.AspectRatio)
	}
	args = append(args, id)

	res, err := s.exec(ctx, `UPDATE projects SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	if rowsAffected(res) == 0 {
		return nil, ErrNotFound
	}
	return s.GetProject(ctx, id)
}

// DeleteProject removes a project; tasks, generations and shots cascade.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if rowsAffected(res) == 0 {
		return ErrNotFound
	}
	return nil
}
