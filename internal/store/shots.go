package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	shotColumns      = "id, project_id, name, created_at, updated_at"
	shotEntryColumns = "sg.id, sg.shot_id, sg.generation_id, sg.position, sg.created_at, g.location, g.type, g.params"
)

// CreateShot inserts a shot and appends generationIDs in order. Every
// generation must belong to the shot's project.
func (s *Store) CreateShot(ctx context.Context, shot *Shot, generationIDs ...string) error {
	if shot == nil {
		return errors.New("create shot: nil shot")
	}
	if strings.TrimSpace(shot.ID) == "" {
		shot.ID = uuid.NewString()
	}
	now := Now()
	shot.CreatedAt = now
	shot.UpdatedAt = now

	return s.withTx(ctx, func(t tx) error {
		if _, err := t.exec(ctx,
			`INSERT INTO shots (`+shotColumns+`) VALUES (?, ?, ?, ?, ?)`,
			shot.ID, shot.ProjectID, shot.Name, shot.CreatedAt, shot.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert shot: %w", err)
		}
		for _, genID := range generationIDs {
			if err := ensureGenerationInProject(ctx, t, genID, shot.ProjectID); err != nil {
				return err
			}
			if _, err := appendToShot(ctx, t, shot.ID, genID, nil); err != nil {
				return err
			}
		}
		entries, err := shotEntries(ctx, t, shot.ID)
		if err != nil {
			return err
		}
		shot.Generations = entries
		return nil
	})
}

// GetShot fetches a shot with its ordered generations.
func (s *Store) GetShot(ctx context.Context, id string) (*Shot, error) {
	var shot Shot
	err := s.get(ctx, &shot, `SELECT `+shotColumns+` FROM shots WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get shot: %w", err)
	}
	entries := []ShotEntry{}
	if err := s.selectAll(ctx, &entries,
		`SELECT `+shotEntryColumns+` FROM shot_generations sg
         JOIN generations g ON g.id = sg.generation_id
         WHERE sg.shot_id = ? ORDER BY sg.position`, id,
	); err != nil {
		return nil, fmt.Errorf("list shot generations: %w", err)
	}
	shot.Generations = entries
	return &shot, nil
}

// ListShots returns a project's shots, oldest first, each with its ordered
// generations.
func (s *Store) ListShots(ctx context.Context, projectID string) ([]Shot, error) {
	shots := []Shot{}
	if err := s.selectAll(ctx, &shots,
		`SELECT `+shotColumns+` FROM shots WHERE project_id = ? ORDER BY created_at, id`, projectID,
	); err != nil {
		return nil, fmt.Errorf("list shots: %w", err)
	}
	if len(shots) == 0 {
		return shots, nil
	}

	var entries []ShotEntry
	if err := s.selectAll(ctx, &entries,
		`SELECT `+shotEntryColumns+` FROM shot_generations sg
         JOIN generations g ON g.id = sg.generation_id
         JOIN shots sh ON sh.id = sg.shot_id
         WHERE sh.project_id = ? ORDER BY sg.shot_id, sg.position`, projectID,
	); err != nil {
		return nil, fmt.Errorf("list shot generations: %w", err)
	}
	byShot := make(map[string][]ShotEntry, len(shots))
	for _, entry := range entries {
		byShot[entry.ShotID] = append(byShot[entry.ShotID], entry)
	}
	for i := range shots {
		shots[i].Generations = byShot[shots[i].ID]
		if shots[i].Generations == nil {
			shots[i].Generations = []ShotEntry{}
		}
	}
	return shots, nil
}

// RenameShot changes a shot's name.
func (s *Store) RenameShot(ctx context.Context, id, name string) (*Shot, error) {
	res, err := s.exec(ctx, `UPDATE shots SET name = ?, updated_at = ? WHERE id = ?`, name, Now(), id)
	if err != nil {
		return nil, fmt.Errorf("rename shot: %w", err)
	}
	if rowsAffected(res) == 0 {
		return nil, ErrNotFound
	}
	return s.GetShot(ctx, id)
}

// DeleteShot removes a shot and its shot_generations rows.
func (s *Store) DeleteShot(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM shots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shot: %w", err)
	}
	if rowsAffected(res) == 0 {
		return ErrNotFound
	}
	return nil
}

// AddGenerationToShot inserts a generation at position, shifting later rows.
// A nil or out of range position appends.
func (s *Store) AddGenerationToShot(ctx context.Context, shotID, generationID string, position *int) (*ShotGeneration, error) {
	var added *ShotGeneration
	err := s.withTx(ctx, func(t tx) error {
		projectID, err := shotProject(ctx, t, shotID)
		if err != nil {
			return err
		}
		if err := ensureGenerationInProject(ctx, t, generationID, projectID); err != nil {
			return err
		}
		added, err = appendToShot(ctx, t, shotID, generationID, position)
		if err != nil {
			return err
		}
		return touchShot(ctx, t, shotID)
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// RemoveShotGeneration deletes one row from a shot and compacts positions.
func (s *Store) RemoveShotGeneration(ctx context.Context, shotID, shotGenerationID string) error {
	return s.withTx(ctx, func(t tx) error {
		res, err := t.exec(ctx, `DELETE FROM shot_generations WHERE id = ? AND shot_id = ?`, shotGenerationID, shotID)
		if err != nil {
			return fmt.Errorf("remove shot generation: %w", err)
		}
		if rowsAffected(res) == 0 {
			return ErrNotFound
		}
		if err := compactShot(ctx, t, shotID); err != nil {
			return err
		}
		return touchShot(ctx, t, shotID)
	})
}

// ReorderShot rewrites positions so rows follow orderedIDs. orderedIDs must be
// a permutation of the shot's shot_generations ids.
func (s *Store) ReorderShot(ctx context.Context, shotID string, orderedIDs []string) (*Shot, error) {
	err := s.withTx(ctx, func(t tx) error {
		if _, err := shotProject(ctx, t, shotID); err != nil {
			return err
		}
		current, err := orderedRowIDs(ctx, t, shotID)
		if err != nil {
			return err
		}
		if !isPermutation(current, orderedIDs) {
			return ErrInvalidOrder
		}
		if err := writePositions(ctx, t, shotID, orderedIDs); err != nil {
			return err
		}
		return touchShot(ctx, t, shotID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetShot(ctx, shotID)
}

// DuplicateShot copies a shot and its ordering. An empty name appends " (copy)"
// to the source name.
func (s *Store) DuplicateShot(ctx context.Context, shotID, name string) (*Shot, error) {
	source, err := s.GetShot(ctx, shotID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = source.Name + " (copy)"
	}
	generationIDs := make([]string, 0, len(source.Generations))
	for _, entry := range source.Generations {
		generationIDs = append(generationIDs, entry.GenerationID)
	}
	dup := &Shot{ProjectID: source.ProjectID, Name: name}
	if err := s.CreateShot(ctx, dup, generationIDs...); err != nil {
		return nil, err
	}
	return dup, nil
}

func shotProject(ctx context.Context, t tx, shotID string) (string, error) {
	var projectID string
	err := t.get(ctx, &projectID, `SELECT project_id FROM shots WHERE id = ?`, shotID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load shot: %w", err)
	}
	return projectID, nil
}

func ensureGenerationInProject(ctx context.Context, t tx, generationID, projectID string) error {
	var owner string
	err := t.get(ctx, &owner, `SELECT project_id FROM generations WHERE id = ?`, generationID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: generation %s does not exist", ErrInvalidReference, generationID)
	}
	if err != nil {
		return fmt.Errorf("load generation: %w", err)
	}
	if owner != projectID {
		return fmt.Errorf("%w: generation %s belongs to another project", ErrInvalidReference, generationID)
	}
	return nil
}

func touchShot(ctx context.Context, t tx, shotID string) error {
	if _, err := t.exec(ctx, `UPDATE shots SET updated_at = ? WHERE id = ?`, Now(), shotID); err != nil {
		return fmt.Errorf("touch shot: %w", err)
	}
	return nil
}

func shotEntries(ctx context.Context, t tx, shotID string) ([]ShotEntry, error) {
	entries := []ShotEntry{}
	if err := t.selectAll(ctx, &entries,
		`SELECT `+shotEntryColumns+` FROM shot_generations sg
         JOIN generations g ON g.id = sg.generation_id
         WHERE sg.shot_id = ? ORDER BY sg.position`, shotID,
	); err != nil {
		return nil, fmt.Errorf("list shot generations: %w", err)
	}
	return entries, nil
}

func orderedRowIDs(ctx context.Context, t tx, shotID string) ([]string, error) {
	ids := []string{}
	if err := t.selectAll(ctx, &ids,
		`SELECT id FROM shot_generations WHERE shot_id = ? ORDER BY position`, shotID,
	); err != nil {
		return nil, fmt.Errorf("list shot rows: %w", err)
	}
	return ids, nil
}

// appendToShot inserts a row at position (append when nil or past the end)
// and keeps positions dense.
func appendToShot(ctx context.Context, t tx, shotID, generationID string, position *int) (*ShotGeneration, error) {
	ids, err := orderedRowIDs(ctx, t, shotID)
	if err != nil {
		return nil, err
	}
	at := len(ids)
	if position != nil && *position >= 0 && *position < len(ids) {
		at = *position
	}

	if at < len(ids) {
		// Make room at `at` before inserting so the unique index never sees
		// two rows on one position.
		shifted := make([]string, 0, len(ids)+1)
		shifted = append(shifted, ids[:at]...)
		shifted = append(shifted, "")
		shifted = append(shifted, ids[at:]...)
		if err := writePositions(ctx, t, shotID, shifted); err != nil {
			return nil, err
		}
	}

	row := &ShotGeneration{
		ID:           uuid.NewString(),
		ShotID:       shotID,
		GenerationID: generationID,
		Position:     at,
		CreatedAt:    Now(),
	}
	if _, err := t.exec(ctx,
		`INSERT INTO shot_generations (id, shot_id, generation_id, position, created_at) VALUES (?, ?, ?, ?, ?)`,
		row.ID, row.ShotID, row.GenerationID, row.Position, row.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert shot generation: %w", err)
	}
	return row, nil
}

func compactShot(ctx context.Context, t tx, shotID string) error {
	ids, err := orderedRowIDs(ctx, t, shotID)
	if err != nil {
		return err
	}
	return writePositions(ctx, t, shotID, ids)
}

// writePositions assigns position i to ids[i]; empty ids leave a hole. Rows
// are first moved to negative positions so the final assignment never
// collides with UNIQUE(shot_id, position).
func writePositions(ctx context.Context, t tx, shotID string, ids []string) error {
	if _, err := t.exec(ctx,
		`UPDATE shot_generations SET position = -position - 1 WHERE shot_id = ? AND position >= 0`, shotID,
	); err != nil {
		return fmt.Errorf("park shot positions: %w", err)
	}
	for position, id := range ids {
		if id == "" {
			continue
		}
		if _, err := t.exec(ctx,
			`UPDATE shot_generations SET position = ? WHERE id = ? AND shot_id = ?`, position, id, shotID,
		); err != nil {
			return fmt.Errorf("write shot position: %w", err)
		}
	}
	return nil
}

func isPermutation(current, proposed []string) bool {
	if len(current) != len(proposed) {
		return false
	}
	remaining := make(map[string]int, len(current))
	for _, id := range current {
		remaining[id]++
	}
	for _, id := range proposed {
		if remaining[id] == 0 {
			return false
		}
		remaining[id]--
	}
	return true
}
