package studio

import (
	"context"
	"slices"
	"strings"

	"shotdeck/internal/events"
	"shotdeck/internal/logging"
	"shotdeck/internal/store"
)

// TaskInput is the payload for queueing a task.
type TaskInput struct {
	ProjectID   string           `json:"projectId"`
	TaskType    string           `json:"taskType"`
	Params      store.JSONObject `json:"params"`
	DependantOn []string         `json:"dependantOn"`
}

// CreateTask validates and queues a task.
func (s *Service) CreateTask(ctx context.Context, userID string, input TaskInput) (*store.Task, error) {
	const op = "create task"
	if _, err := s.project(ctx, op, userID, input.ProjectID); err != nil {
		return nil, err
	}
	taskType := strings.TrimSpace(input.TaskType)
	if !slices.Contains(store.TaskTypes(), taskType) {
		return nil, invalid(op, "task type %q not one of %s", input.TaskType, strings.Join(store.TaskTypes(), ", "))
	}
	params := input.Params
	if params == nil {
		params = store.JSONObject{}
	}
	if shotID := params.String("shotId"); shotID != "" {
		shot, err := s.store.GetShot(ctx, shotID)
		if err != nil || shot.ProjectID != input.ProjectID {
			return nil, invalid(op, "params.shotId %q is not a shot in this project", shotID)
		}
	}
	if s.validate != nil {
		if err := s.validate(taskType, params); err != nil {
			return nil, err
		}
	}
	deps := make([]string, 0, len(input.DependantOn))
	for _, dep := range input.DependantOn {
		if dep = strings.TrimSpace(dep); dep != "" {
			deps = append(deps, dep)
		}
	}

	task := &store.Task{
		ProjectID:   input.ProjectID,
		TaskType:    taskType,
		Params:      params,
		DependantOn: deps,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, translate(op, err)
	}
	s.emit(userID, events.TypeTasks, events.ActionCreated, task.ProjectID, task.ID)
	s.dispatch(ctx, task)
	return task, nil
}

func (s *Service) dispatch(ctx context.Context, task *store.Task) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, task); err != nil {
		logging.WarnWithContext(s.logger, "task dispatch failed; the worker sweep will pick it up", "task_dispatch_failed",
			logging.String(logging.FieldTaskID, task.ID),
			logging.String(logging.FieldTaskType, task.TaskType),
			logging.Error(err),
		)
	}
}

// ListTasks returns a project's tasks, optionally filtered by status names.
func (s *Service) ListTasks(ctx context.Context, userID, projectID string, statusNames ...string) ([]store.Task, error) {
	const op = "list tasks"
	if _, err := s.project(ctx, op, userID, projectID); err != nil {
		return nil, err
	}
	statuses := make([]store.Status, 0, len(statusNames))
	for _, name := range statusNames {
		if strings.TrimSpace(name) == "" {
			continue
		}
		status, ok := store.ParseStatus(name)
		if !ok {
			return nil, invalid(op, "unknown status %q", name)
		}
		statuses = append(statuses, status)
	}
	tasks, err := s.store.ListTasks(ctx, projectID, statuses...)
	if err != nil {
		return nil, translate(op, err)
	}
	return tasks, nil
}

// GetTask returns one task.
func (s *Service) GetTask(ctx context.Context, userID, taskID string) (*store.Task, error) {
	return s.task(ctx, "get task", userID, taskID)
}

// TaskCounts returns the number of tasks per status in a project.
func (s *Service) TaskCounts(ctx context.Context, userID, projectID string) (map[store.Status]int, error) {
	const op = "task counts"
	if _, err := s.project(ctx, op, userID, projectID); err != nil {
		return nil, err
	}
	counts, err := s.store.TaskCounts(ctx, projectID)
	if err != nil {
		return nil, translate(op, err)
	}
	return counts, nil
}

// CancelTask cancels a Pending or In Progress task. Pending tasks that can no
// longer run because of it are cancelled too.
func (s *Service) CancelTask(ctx context.Context, userID, taskID string) (*store.Task, error) {
	const op = "cancel task"
	if _, err := s.task(ctx, op, userID, taskID); err != nil {
		return nil, err
	}
	task, err := s.store.CancelTask(ctx, taskID)
	if err != nil {
		return nil, translate(op, err)
	}
	s.emit(userID, events.TypeTasks, events.ActionUpdated, task.ProjectID, task.ID)
	s.cancelBlocked(ctx)
	return task, nil
}

// RetryTask requeues a Failed task.
func (s *Service) RetryTask(ctx context.Context, userID, taskID string) (*store.Task, error) {
	const op = "retry task"
	if _, err := s.task(ctx, op, userID, taskID); err != nil {
		return nil, err
	}
	task, err := s.store.RetryTask(ctx, taskID)
	if err != nil {
		return nil, translate(op, err)
	}
	s.emit(userID, events.TypeTasks, events.ActionUpdated, task.ProjectID, task.ID)
	s.dispatch(ctx, task)
	return task, nil
}

// CancelPendingTasks cancels every Pending task in a project.
func (s *Service) CancelPendingTasks(ctx context.Context, userID, projectID string) ([]string, error) {
	const op = "cancel pending tasks"
	if _, err := s.project(ctx, op, userID, projectID); err != nil {
		return nil, err
	}
	ids, err := s.store.CancelPendingTasks(ctx, projectID)
	if err != nil {
		return nil, translate(op, err)
	}
	for _, id := range ids {
		s.emit(userID, events.TypeTasks, events.ActionUpdated, projectID, id)
	}
	return ids, nil
}

// cancelBlocked sweeps every project, so events are addressed to each
// task's owner rather than the acting user.
func (s *Service) cancelBlocked(ctx context.Context) {
	cancelled, err := s.store.CancelBlockedTasks(ctx)
	if err != nil {
		logging.WarnWithContext(s.logger, "cancel blocked tasks failed", "cancel_blocked_failed", logging.Error(err))
		return
	}
	owners := map[string]string{}
	for _, task := range cancelled {
		owner, ok := owners[task.ProjectID]
		if !ok {
			if project, err := s.store.GetProject(ctx, task.ProjectID); err == nil {
				owner = project.UserID
			}
			owners[task.ProjectID] = owner
		}
		if owner != "" {
			s.emit(owner, events.TypeTasks, events.ActionUpdated, task.ProjectID, task.ID)
		}
	}
}
