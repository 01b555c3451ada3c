package worker

import (
	"context"
	"errors"
	"strings"

	"shotdeck/internal/events"
	"shotdeck/internal/logging"
	"shotdeck/internal/services"
	"shotdeck/internal/store"
)

func (m *Manager) handleTaskFailure(ctx context.Context, task *store.Task, project *store.Project, taskErr error) {
	logger := logging.WithContext(ctx, m.logger)
	message := failureMessage(task.TaskType, taskErr)

	details := services.Details(taskErr)
	attrs := []logging.Attr{
		logging.String("error_message", message),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String("error_operation", details.Operation),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.Int("attempt", task.Attempts),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(taskErr))
	}
	logging.ErrorWithContext(logger, "task failed", "task_failure", attrs...)

	failed, err := m.store.FailTask(ctx, task.ID, message)
	switch {
	case errors.Is(err, store.ErrInvalidTransition):
		logger.Info("task changed state before failure was recorded")
		m.afterTask(ctx)
		return
	case err != nil:
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not record task failure")
		} else {
			logger.Error("failed to persist task failure", logging.Error(err))
		}
		return
	}

	m.setLastTask(failed)
	m.emit(project, events.TypeTasks, events.ActionUpdated, task.ProjectID, task.ID)
	m.cancelBlocked(ctx)
	m.recordOutcome(true)
	m.notifyTaskFailed(ctx, task, project, message)
	m.afterTask(ctx)
}

// cancelBlocked cancels Pending tasks that can never run because a
// dependency failed or was cancelled.
func (m *Manager) cancelBlocked(ctx context.Context) {
	cancelled, err := m.store.CancelBlockedTasks(ctx)
	if err != nil {
		logging.WarnWithContext(m.logger, "failed to cancel blocked tasks", "cancel_blocked_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
	}
	if len(cancelled) == 0 {
		return
	}
	owners := make(map[string]*store.Project)
	for _, task := range cancelled {
		project, ok := owners[task.ProjectID]
		if !ok {
			project = m.projectFor(ctx, task.ProjectID)
			owners[task.ProjectID] = project
		}
		m.emit(project, events.TypeTasks, events.ActionUpdated, task.ProjectID, task.ID)
	}
	m.logger.Info("cancelled blocked dependants",
		logging.String(logging.FieldEventType, "cancel_blocked"),
		logging.Int("count", len(cancelled)),
	)
}

func failureMessage(taskType string, taskErr error) string {
	if taskErr == nil {
		return taskType + " failed without error detail"
	}
	details := services.Details(taskErr)
	message := strings.TrimSpace(details.Message)
	if details.Cause != nil {
		cause := strings.TrimSpace(details.Cause.Error())
		switch {
		case message == "":
			message = cause
		case cause != "" && !strings.Contains(message, cause):
			message = message + ": " + cause
		}
	}
	if message == "" {
		message = taskType + " failed"
	}
	return message
}
