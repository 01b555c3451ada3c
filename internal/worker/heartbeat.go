package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"shotdeck/internal/logging"
	"shotdeck/internal/store"
)

var errTaskAbandoned = errors.New("task is no longer in progress")

// HeartbeatMonitor manages task heartbeats and stale task reclamation.
type HeartbeatMonitor struct {
	store             *store.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	maxAttempts       int
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(st *store.Store, logger *slog.Logger, interval, timeout time.Duration, maxAttempts int) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:             st,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
		maxAttempts:       maxAttempts,
	}
}

// ReclaimStaleTasks requeues or fails In Progress tasks whose heartbeat is
// older than the timeout.
func (h *HeartbeatMonitor) ReclaimStaleTasks(ctx context.Context) (store.ReclaimResult, error) {
	if h.heartbeatTimeout <= 0 {
		return store.ReclaimResult{}, nil
	}
	cutoff := time.Now().Add(-h.heartbeatTimeout)
	result, err := h.store.ReclaimStaleTasks(ctx, cutoff, h.maxAttempts)
	if err != nil {
		return result, err
	}
	if result.Requeued > 0 || result.Failed > 0 {
		h.logger.Info("reclaimed stale tasks",
			logging.String(logging.FieldEventType, "heartbeat_reclaim"),
			logging.Int64("requeued", result.Requeued),
			logging.Int64("failed", result.Failed),
		)
	}
	return result, nil
}

// StartLoop refreshes the heartbeat for taskID until ctx is cancelled. When
// the task has left In Progress, abandon is called with errTaskAbandoned.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, taskID string, abandon context.CancelCauseFunc) {
	defer wg.Done()
	if h.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := h.store.UpdateHeartbeat(ctx, taskID)
			switch {
			case err == nil:
			case errors.Is(err, store.ErrTaskNotRunning):
				logger.Info("task left in progress; stopping handler",
					logging.String(logging.FieldEventType, "task_abandoned"),
				)
				abandon(errTaskAbandoned)
				return
			case errors.Is(err, context.Canceled):
				logger.Debug("heartbeat update cancelled")
			default:
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}
