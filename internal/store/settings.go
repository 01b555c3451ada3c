package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SetAPIKey stores or replaces a user's key for provider.
func (s *Store) SetAPIKey(ctx context.Context, userID, provider, key string) (*APIKey, error) {
	record := &APIKey{UserID: userID, Provider: provider, Key: key, UpdatedAt: Now()}
	if _, err := s.exec(ctx,
		`INSERT INTO api_keys (user_id, provider, api_key, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT (user_id, provider) DO UPDATE SET api_key = excluded.api_key, updated_at = excluded.updated_at`,
		record.UserID, record.Provider, record.Key, record.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("set api key: %w", err)
	}
	return record, nil
}

// GetAPIKey returns a user's key for provider.
func (s *Store) GetAPIKey(ctx context.Context, userID, provider string) (*APIKey, error) {
	var record APIKey
	err := s.get(ctx, &record,
		`SELECT user_id, provider, api_key, updated_at FROM api_keys WHERE user_id = ? AND provider = ?`,
		userID, provider,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &record, nil
}

// ListAPIKeys returns every key a user has stored, ordered by provider.
func (s *Store) ListAPIKeys(ctx context.Context, userID string) ([]APIKey, error) {
	keys := []APIKey{}
	if err := s.selectAll(ctx, &keys,
		`SELECT user_id, provider, api_key, updated_at FROM api_keys WHERE user_id = ? ORDER BY provider`, userID,
	); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// DeleteAPIKey removes a user's key for provider.
func (s *Store) DeleteAPIKey(ctx context.Context, userID, provider string) error {
	res, err := s.exec(ctx, `DELETE FROM api_keys WHERE user_id = ? AND provider = ?`, userID, provider)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if rowsAffected(res) == 0 {
		return ErrNotFound
	}
	return nil
}

// GetWorkspace returns the stored workspace for a user, or an empty workspace
// when none has been saved.
func (s *Store) GetWorkspace(ctx context.Context, userID string) (Workspace, error) {
	var raw string
	err := s.get(ctx, &raw, `SELECT workspace FROM user_settings WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Workspace{Panes: map[string]PaneState{}}, nil
	}
	if err != nil {
		return Workspace{}, fmt.Errorf("get workspace: %w", err)
	}
	ws := Workspace{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &ws); err != nil {
			return Workspace{}, fmt.Errorf("decode workspace: %w", err)
		}
	}
	if ws.Panes == nil {
		ws.Panes = map[string]PaneState{}
	}
	return ws, nil
}

// SaveWorkspace replaces the stored workspace for a user.
func (s *Store) SaveWorkspace(ctx context.Context, userID string, ws Workspace) error {
	if ws.Panes == nil {
		ws.Panes = map[string]PaneState{}
	}
	data, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("encode workspace: %w", err)
	}
	if _, err := s.exec(ctx,
		`INSERT INTO user_settings (user_id, workspace, updated_at) VALUES (?, ?, ?)
         ON CONFLICT (user_id) DO UPDATE SET workspace = excluded.workspace, updated_at = excluded.updated_at`,
		userID, string(data), Now(),
	); err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	return nil
}
