package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"shotdeck/internal/events"
	"shotdeck/internal/logging"
	"shotdeck/internal/services"
	"shotdeck/internal/stage"
	"shotdeck/internal/store"
)

// process runs a claimed task to completion, failure, or abandonment.
func (m *Manager) process(ctx context.Context, task *store.Task) {
	project := m.projectFor(ctx, task.ProjectID)
	taskCtx := withTaskContext(ctx, task, project)
	logger := logging.WithContext(taskCtx, m.logger)

	m.trackStart(task)
	defer m.trackDone(task.ID)
	m.setLastTask(task)
	m.onTaskStarted()
	m.emit(project, events.TypeTasks, events.ActionUpdated, task.ProjectID, task.ID)

	handler := m.handlers[task.TaskType]
	if handler == nil {
		err := services.Wrap(services.ErrConfiguration, component, "dispatch",
			fmt.Sprintf("no handler registered for task type %q", task.TaskType), nil)
		m.handleTaskFailure(taskCtx, task, project, err)
		return
	}

	started := time.Now()
	logger.Info("task started",
		logging.String(logging.FieldEventType, "task_start"),
		logging.Int("attempt", task.Attempts),
	)

	result, err := m.executeWithHeartbeat(taskCtx, handler, task)
	switch {
	case errors.Is(err, errTaskAbandoned):
		m.discardOutputs(taskCtx, result)
		logger.Info("task result discarded",
			logging.String(logging.FieldEventType, "task_abandoned"),
			logging.Duration("task_duration", time.Since(started)),
		)
		m.afterTask(ctx)
		return
	case err != nil && ctx.Err() != nil:
		logger.Debug("task interrupted by shutdown")
		return
	case err != nil:
		m.handleTaskFailure(taskCtx, task, project, err)
		m.setLastError(err)
		return
	}
	m.completeTask(taskCtx, task, project, result, time.Since(started))
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, task *store.Task) (*stage.Result, error) {
	execCtx, abandon := context.WithCancelCause(ctx)
	defer abandon(nil)

	hbCtx, hbCancel := context.WithCancel(execCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, task.ID, abandon)

	result, err := handler.Execute(execCtx, task)
	hbCancel()
	hbWG.Wait()
	if errors.Is(context.Cause(execCtx), errTaskAbandoned) {
		return result, errTaskAbandoned
	}
	return result, err
}

func (m *Manager) completeTask(ctx context.Context, task *store.Task, project *store.Project, result *stage.Result, elapsed time.Duration) {
	logger := logging.WithContext(ctx, m.logger)
	if result == nil {
		result = &stage.Result{}
	}
	done, err := m.store.CompleteTask(ctx, store.CompleteTaskInput{
		TaskID:         task.ID,
		OutputLocation: result.OutputLocation,
		Generations:    result.Generations,
	})
	if errors.Is(err, store.ErrInvalidTransition) {
		m.discardOutputs(ctx, result)
		logger.Info("task changed state before completion; result discarded",
			logging.String(logging.FieldEventType, "task_abandoned"),
		)
		m.afterTask(ctx)
		return
	}
	if err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(logger, "failed to persist task result", "task_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the task will be retried after its heartbeat expires"),
		)
		return
	}

	m.setLastTask(done.Task)
	m.emit(project, events.TypeTasks, events.ActionUpdated, task.ProjectID, task.ID)
	for _, gen := range done.Generations {
		m.emit(project, events.TypeGenerations, events.ActionCreated, task.ProjectID, gen.ID)
	}
	shotName := ""
	if done.ShotID != "" {
		m.emit(project, events.TypeShots, events.ActionUpdated, task.ProjectID, done.ShotID)
		if shot, err := m.store.GetShot(ctx, done.ShotID); err == nil {
			shotName = shot.Name
		}
	}

	logger.Info("task completed",
		logging.String(logging.FieldEventType, "task_complete"),
		logging.Int("generations", len(done.Generations)),
		logging.String("shot_id", done.ShotID),
		logging.String("output_location", result.OutputLocation),
		logging.Duration("task_duration", elapsed),
	)
	m.recordOutcome(false)
	m.notifyTaskCompleted(ctx, task, project, len(done.Generations), shotName)
	m.afterTask(ctx)
}

// discardOutputs deletes local media written for a result that will not be
// persisted.
func (m *Manager) discardOutputs(ctx context.Context, result *stage.Result) {
	if m.media == nil || result == nil {
		return
	}
	for _, gen := range result.Generations {
		if gen == nil {
			continue
		}
		if err := m.media.Remove(gen.Location); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, m.logger), "discarded output not removed", "media_cleanup_failed",
				logging.String("location", gen.Location),
				logging.Error(err),
			)
		}
	}
}

// afterTask hands newly unblocked dependants to the broker and checks
// whether the queue has drained.
func (m *Manager) afterTask(ctx context.Context) {
	if m.cfg.BrokerEnabled() {
		m.redispatchReady(ctx)
	}
	m.checkQueueDrained(ctx)
}

func (m *Manager) projectFor(ctx context.Context, projectID string) *store.Project {
	project, err := m.store.GetProject(ctx, projectID)
	if err != nil {
		m.logger.Debug("project lookup failed", logging.String(logging.FieldProjectID, projectID), logging.Error(err))
		return nil
	}
	return project
}

func withTaskContext(ctx context.Context, task *store.Task, project *store.Project) context.Context {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	ctx = services.WithProjectID(ctx, task.ProjectID)
	ctx = services.WithTaskID(ctx, task.ID)
	ctx = services.WithTaskType(ctx, task.TaskType)
	if project != nil {
		ctx = services.WithUserID(ctx, project.UserID)
	}
	return ctx
}

func (m *Manager) emit(project *store.Project, typ events.Type, action events.Action, projectID, entityID string) {
	userID := ""
	if project != nil {
		userID = project.UserID
	}
	m.events.Publish(events.Event{
		Type:      typ,
		Action:    action,
		ProjectID: projectID,
		EntityID:  entityID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	})
}
