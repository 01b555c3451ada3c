package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const generationColumns = "id, project_id, tasks, location, type, params, created_at, updated_at"

// CreateGeneration inserts a generation outside any task, for uploads and
// imported media.
func (s *Store) CreateGeneration(ctx context.Context, gen *Generation) error {
	if gen == nil {
		return errors.New("create generation: nil generation")
	}
	return s.withTx(ctx, func(t tx) error {
		return insertGeneration(ctx, t, gen)
	})
}

func insertGeneration(ctx context.Context, t tx, gen *Generation) error {
	if strings.TrimSpace(gen.ID) == "" {
		gen.ID = uuid.NewString()
	}
	if gen.Tasks == nil {
		gen.Tasks = IDList{}
	}
	if gen.Params == nil {
		gen.Params = JSONObject{}
	}
	now := Now()
	gen.CreatedAt = now
	gen.UpdatedAt = now
	if _, err := t.exec(ctx,
		`INSERT INTO generations (`+generationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		gen.ID, gen.ProjectID, gen.Tasks, gen.Location, gen.Type, gen.Params, gen.CreatedAt, gen.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

// GetGeneration fetches a generation by id.
func (s *Store) GetGeneration(ctx context.Context, id string) (*Generation, error) {
	var gen Generation
	err := s.get(ctx, &gen, `SELECT `+generationColumns+` FROM generations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get generation: %w", err)
	}
	return &gen, nil
}

// ListGenerations returns a project's generations, newest first.
func (s *Store) ListGenerations(ctx context.Context, filter GenerationFilter) ([]Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE project_id = ?`
	args := []any{filter.ProjectID}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, filter.Type)
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	gens := []Generation{}
	if err := s.selectAll(ctx, &gens, query, args...); err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	return gens, nil
}

// DeleteGeneration removes a generation and closes the gaps it leaves in any
// shot. It returns the ids of the shots that changed.
func (s *Store) DeleteGeneration(ctx context.Context, id string) ([]string, error) {
	var shotIDs []string
	err := s.withTx(ctx, func(t tx) error {
		shotIDs = nil
		if err := t.selectAll(ctx, &shotIDs,
			`SELECT DISTINCT shot_id FROM shot_generations WHERE generation_id = ? ORDER BY shot_id`, id,
		); err != nil {
			return fmt.Errorf("find shots for generation: %w", err)
		}
		res, err := t.exec(ctx, `DELETE FROM generations WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete generation: %w", err)
		}
		if rowsAffected(res) == 0 {
			return ErrNotFound
		}
		for _, shotID := range shotIDs {
			if err := compactShot(ctx, t, shotID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shotIDs, nil
}
