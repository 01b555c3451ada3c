package worker

import (
	"context"
	"errors"
	"time"

	"shotdeck/internal/events"
	"shotdeck/internal/logging"
	"shotdeck/internal/store"
)

func (m *Manager) runSweeper(ctx context.Context) {
	defer m.wg.Done()
	interval := m.sweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep reclaims stale tasks, cancels blocked dependants and, with a broker,
// re-dispatches every ready task.
func (m *Manager) Sweep(ctx context.Context) {
	result, err := m.heartbeat.ReclaimStaleTasks(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.WarnWithContext(m.logger, "reclaim stale tasks failed; stuck tasks may remain", "heartbeat_reclaim_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
	}
	if result.Requeued > 0 || result.Failed > 0 {
		// Reclaim reports counts only, so every subscriber refetches tasks.
		m.events.Publish(events.Event{Type: events.TypeTasks, Action: events.ActionUpdated, Timestamp: time.Now().UTC()})
		m.notifyReclaimed(ctx, result)
	}
	m.cancelBlocked(ctx)
	if m.cfg.BrokerEnabled() {
		m.redispatchReady(ctx)
	}
}

func (m *Manager) redispatchReady(ctx context.Context) {
	ids, err := m.store.ReadyTaskIDs(ctx, 0)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.Warn("list ready tasks failed", logging.Error(err))
		}
		return
	}
	for _, id := range ids {
		if err := m.dispatcher.Dispatch(ctx, &store.Task{ID: id}); err != nil {
			logging.WarnWithContext(m.logger, "re-dispatch failed", "dispatch_failed",
				logging.String(logging.FieldTaskID, id),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check redis connectivity"),
			)
			return
		}
	}
}
