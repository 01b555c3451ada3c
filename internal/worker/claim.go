package worker

import (
	"context"
	"errors"

	"shotdeck/internal/logging"
	"shotdeck/internal/store"
)

// claimIfReady claims a dispatched task. It returns nil when the message is
// stale.
func (m *Manager) claimIfReady(ctx context.Context, id string) (*store.Task, error) {
	ready, err := m.store.TaskReady(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		m.logger.Debug("dispatched task no longer exists", logging.String(logging.FieldTaskID, id))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !ready {
		m.logger.Debug("dispatched task not ready", logging.String(logging.FieldTaskID, id))
		return nil, nil
	}
	task, err := m.store.ClaimTask(ctx, id)
	if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return task, err
}
