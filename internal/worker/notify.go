package worker

import (
	"context"
	"errors"
	"time"

	"shotdeck/internal/logging"
	"shotdeck/internal/notifications"
	"shotdeck/internal/store"
)

func (m *Manager) notifyTaskCompleted(ctx context.Context, task *store.Task, project *store.Project, outputs int, shotName string) {
	m.publish(ctx, notifications.EventTaskCompleted, notifications.Payload{
		"taskType":    task.TaskType,
		"projectName": projectName(project),
		"outputs":     outputs,
		"shotName":    shotName,
	})
}

func (m *Manager) notifyTaskFailed(ctx context.Context, task *store.Task, project *store.Project, message string) {
	m.publish(ctx, notifications.EventTaskFailed, notifications.Payload{
		"taskType":    task.TaskType,
		"projectName": projectName(project),
		"error":       message,
	})
}

func (m *Manager) notifyReclaimed(ctx context.Context, result store.ReclaimResult) {
	m.publish(ctx, notifications.EventTasksReclaimed, notifications.Payload{
		"requeued": result.Requeued,
		"failed":   result.Failed,
	})
}

func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("shutting down, notification skipped", logging.String("notification", string(event)))
			return
		}
		m.logger.Debug("notification failed", logging.String("notification", string(event)), logging.Error(err))
	}
}

func (m *Manager) onTaskStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queueActive {
		return
	}
	m.queueActive = true
	m.queueStart = time.Now()
	m.processed = 0
	m.failed = 0
}

func (m *Manager) recordOutcome(failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed++
	if failed {
		m.failed++
	}
}

// checkQueueDrained sends a queue drained notification once no task is
// Pending or In Progress after this worker has handled at least one.
func (m *Manager) checkQueueDrained(ctx context.Context) {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("shutting down, could not check queue completion")
			return
		}
		logging.WarnWithContext(m.logger, "task stats unavailable; drained notification skipped", "task_stats_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
		return
	}
	if countActiveTasks(stats) > 0 {
		return
	}

	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	processed, failed := m.processed, m.failed
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()

	if processed == 0 {
		return
	}
	m.logger.Info("queue drained",
		logging.String(logging.FieldEventType, "queue_drained"),
		logging.Int("processed", processed),
		logging.Int("failed", failed),
	)
	m.publish(ctx, notifications.EventQueueDrained, notifications.Payload{
		"processed": processed,
		"failed":    failed,
		"duration":  time.Since(start),
	})
}

func countActiveTasks(stats map[store.Status]int) int {
	return stats[store.StatusPending] + stats[store.StatusInProgress]
}

func projectName(project *store.Project) string {
	if project == nil {
		return ""
	}
	return project.Name
}
