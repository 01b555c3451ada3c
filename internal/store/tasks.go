package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const taskColumns = "id, project_id, task_type, params, status, dependant_on, output_location, error_message, attempts, created_at, updated_at, started_at, completed_at, last_heartbeat"

// readyScanLimit is the page size used when scanning pending tasks.
const readyScanLimit = 100

// CreateTask inserts a Pending task. Every dependency must already exist in
// the same project, which keeps the dependency graph acyclic.
func (s *Store) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("create task: nil task")
	}
	if strings.TrimSpace(task.ID) == "" {
		task.ID = uuid.NewString()
	}
	if task.Params == nil {
		task.Params = JSONObject{}
	}
	task.DependantOn = dedupeIDs(task.DependantOn)
	task.Status = StatusPending
	task.Attempts = 0
	now := Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	return s.withTx(ctx, func(t tx) error {
		if len(task.DependantOn) > 0 {
			query, args, err := t.in(
				`SELECT COUNT(*) FROM tasks WHERE project_id = ? AND id IN (?)`,
				task.ProjectID, []string(task.DependantOn),
			)
			if err != nil {
				return fmt.Errorf("expand dependency query: %w", err)
			}
			var found int
			if err := t.get(ctx, &found, query, args...); err != nil {
				return fmt.Errorf("check dependencies: %w", err)
			}
			if found != len(task.DependantOn) {
				return fmt.Errorf("%w: dependencies must be existing tasks in project %s", ErrInvalidReference, task.ProjectID)
			}
		}
		if _, err := t.exec(ctx,
			`INSERT INTO tasks (id, project_id, task_type, params, status, dependant_on, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			task.ID, task.ProjectID, task.TaskType, task.Params, task.Status, task.DependantOn, task.CreatedAt, task.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	})
}

// GetTask fetches a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	var task Task
	err := s.get(ctx, &task, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &task, nil
}

// ListTasks returns a project's tasks, newest first, optionally filtered by status.
func (s *Store) ListTasks(ctx context.Context, projectID string, statuses ...Status) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = ?`
	args := []any{projectID}
	if len(statuses) > 0 {
		query += ` AND status IN (?)`
		args = append(args, statusStrings(statuses))
	}
	query += ` ORDER BY created_at DESC, id`

	expanded, expandedArgs, err := s.in(query, args...)
	if err != nil {
		return nil, fmt.Errorf("expand task query: %w", err)
	}
	tasks := []Task{}
	if err := s.selectAll(ctx, &tasks, expanded, expandedArgs...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// TaskCounts returns the number of tasks per status within a project. Every
// status is present in the result.
func (s *Store) TaskCounts(ctx context.Context, projectID string) (map[Status]int, error) {
	return s.countByStatus(ctx, `SELECT status, COUNT(*) AS count FROM tasks WHERE project_id = ? GROUP BY status`, projectID)
}

// Stats returns the number of tasks per status across all projects.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	return s.countByStatus(ctx, `SELECT status, COUNT(*) AS count FROM tasks GROUP BY status`)
}

func (s *Store) countByStatus(ctx context.Context, query string, args ...any) (map[Status]int, error) {
	var rows []struct {
		Status Status `db:"status"`
		Count  int    `db:"count"`
	}
	if err := s.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	counts := make(map[Status]int, len(orderedStatuses))
	for _, status := range orderedStatuses {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// ReadyTaskIDs returns up to limit Pending tasks, oldest first, whose
// dependencies have all completed. Pending rows are read in pages so blocked
// tasks at the head of the queue never hide ready ones behind them.
func (s *Store) ReadyTaskIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = readyScanLimit
	}
	type candidate struct {
		ID          string    `db:"id"`
		DependantOn IDList    `db:"dependant_on"`
		CreatedAt   Timestamp `db:"created_at"`
	}

	var (
		ids   []string
		after *candidate
	)
	for {
		var page []candidate
		var err error
		if after == nil {
			err = s.selectAll(ctx, &page,
				`SELECT id, dependant_on, created_at FROM tasks WHERE status = ? ORDER BY created_at, id LIMIT ?`,
				StatusPending, readyScanLimit,
			)
		} else {
			err = s.selectAll(ctx, &page,
				`SELECT id, dependant_on, created_at FROM tasks
                 WHERE status = ? AND (created_at > ? OR (created_at = ? AND id > ?))
                 ORDER BY created_at, id LIMIT ?`,
				StatusPending, after.CreatedAt, after.CreatedAt, after.ID, readyScanLimit,
			)
		}
		if err != nil {
			return nil, fmt.Errorf("list pending tasks: %w", err)
		}

		for _, c := range page {
			ready, err := s.dependenciesCompleted(ctx, c.DependantOn)
			if err != nil {
				return nil, err
			}
			if !ready {
				continue
			}
			ids = append(ids, c.ID)
			if len(ids) >= limit {
				return ids, nil
			}
		}
		if len(page) < readyScanLimit {
			return ids, nil
		}
		after = &page[len(page)-1]
	}
}

// TaskReady reports whether a task is Pending with every dependency
// Completed.
func (s *Store) TaskReady(ctx context.Context, id string) (bool, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return false, err
	}
	if task.Status != StatusPending {
		return false, nil
	}
	return s.dependenciesCompleted(ctx, task.DependantOn)
}

func (s *Store) dependenciesCompleted(ctx context.Context, deps IDList) (bool, error) {
	if len(deps) == 0 {
		return true, nil
	}
	query, args, err := s.in(`SELECT COUNT(*) FROM tasks WHERE status = ? AND id IN (?)`, StatusCompleted, []string(deps))
	if err != nil {
		return false, fmt.Errorf("expand dependency query: %w", err)
	}
	var completed int
	if err := s.get(ctx, &completed, query, args...); err != nil {
		return false, fmt.Errorf("check dependencies: %w", err)
	}
	return completed == len(deps), nil
}

// ClaimNextTask moves the oldest ready Pending task to In Progress and returns
// it. It returns nil when nothing is ready.
func (s *Store) ClaimNextTask(ctx context.Context) (*Task, error) {
	ids, err := s.ReadyTaskIDs(ctx, readyScanLimit)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		task, err := s.ClaimTask(ctx, id)
		if errors.Is(err, ErrInvalidTransition) {
			// Claimed by another worker or cancelled since the scan.
			continue
		}
		if err != nil {
			return nil, err
		}
		return task, nil
	}
	return nil, nil
}

// ClaimTask moves a specific Pending task to In Progress. Concurrent claims
// race on the status predicate and exactly one wins.
func (s *Store) ClaimTask(ctx context.Context, id string) (*Task, error) {
	now := Now()
	res, err := s.exec(ctx,
		`UPDATE tasks
         SET status = ?, attempts = attempts + 1, started_at = ?, last_heartbeat = ?,
             completed_at = NULL, error_message = '', updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusInProgress, now, now, now, id, StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	if rowsAffected(res) == 0 {
		if _, getErr := s.GetTask(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidTransition
	}
	return s.GetTask(ctx, id)
}

// CompleteTask marks an In Progress task Completed, inserts its generations
// and appends them to params.shotId when that shot still exists in the same
// project.
func (s *Store) CompleteTask(ctx context.Context, input CompleteTaskInput) (*CompleteTaskResult, error) {
	result := &CompleteTaskResult{}
	err := s.withTx(ctx, func(t tx) error {
		var task Task
		if err := t.get(ctx, &task, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, input.TaskID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("load task: %w", err)
		}
		if task.Status != StatusInProgress {
			return fmt.Errorf("%w: task %s is %s", ErrInvalidTransition, task.ID, task.Status)
		}

		now := Now()
		if _, err := t.exec(ctx,
			`UPDATE tasks SET status = ?, output_location = ?, error_message = '', completed_at = ?, last_heartbeat = NULL, updated_at = ?
             WHERE id = ? AND status = ?`,
			StatusCompleted, input.OutputLocation, now, now, task.ID, StatusInProgress,
		); err != nil {
			return fmt.Errorf("complete task: %w", err)
		}

		generations := make([]*Generation, 0, len(input.Generations))
		for _, gen := range input.Generations {
			if gen == nil {
				continue
			}
			gen.ProjectID = task.ProjectID
			if !gen.Tasks.Contains(task.ID) {
				gen.Tasks = append(gen.Tasks, task.ID)
			}
			if err := insertGeneration(ctx, t, gen); err != nil {
				return err
			}
			generations = append(generations, gen)
		}

		shotID := task.ShotID()
		if shotID != "" && len(generations) > 0 {
			var shotProject string
			err := t.get(ctx, &shotProject, `SELECT project_id FROM shots WHERE id = ?`, shotID)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				shotID = ""
			case err != nil:
				return fmt.Errorf("load target shot: %w", err)
			case shotProject != task.ProjectID:
				shotID = ""
			default:
				for _, gen := range generations {
					if _, err := appendToShot(ctx, t, shotID, gen.ID, nil); err != nil {
						return err
					}
				}
			}
		} else {
			shotID = ""
		}

		task.Status = StatusCompleted
		task.OutputLocation = input.OutputLocation
		task.ErrorMessage = ""
		task.CompletedAt = timestampPtr(now)
		task.LastHeartbeat = nil
		task.UpdatedAt = now
		result.Task = &task
		result.Generations = generations
		result.ShotID = shotID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FailTask marks an In Progress task Failed with the supplied message.
func (s *Store) FailTask(ctx context.Context, id, message string) (*Task, error) {
	now := Now()
	return s.transition(ctx, id,
		`UPDATE tasks SET status = ?, error_message = ?, completed_at = ?, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusFailed, message, now, now, id, StatusInProgress,
	)
}

// CancelTask cancels a Pending or In Progress task. A worker holding an In
// Progress task notices on its next heartbeat.
func (s *Store) CancelTask(ctx context.Context, id string) (*Task, error) {
	now := Now()
	return s.transition(ctx, id,
		`UPDATE tasks SET status = ?, completed_at = ?, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusCancelled, now, now, id, StatusPending, StatusInProgress,
	)
}

// RetryTask moves a Failed task back to Pending and resets its attempts.
func (s *Store) RetryTask(ctx context.Context, id string) (*Task, error) {
	return s.transition(ctx, id,
		`UPDATE tasks SET status = ?, attempts = 0, error_message = '', output_location = '',
             started_at = NULL, completed_at = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusPending, Now(), id, StatusFailed,
	)
}

func (s *Store) transition(ctx context.Context, id, query string, args ...any) (*Task, error) {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if rowsAffected(res) == 0 {
		return task, fmt.Errorf("%w: task %s is %s", ErrInvalidTransition, id, task.Status)
	}
	return task, nil
}

// CancelPendingTasks cancels every Pending task in a project and returns the
// affected ids.
func (s *Store) CancelPendingTasks(ctx context.Context, projectID string) ([]string, error) {
	var ids []string
	err := s.withTx(ctx, func(t tx) error {
		ids = nil
		if err := t.selectAll(ctx, &ids, `SELECT id FROM tasks WHERE project_id = ? AND status = ?`, projectID, StatusPending); err != nil {
			return fmt.Errorf("list pending tasks: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		now := Now()
		if _, err := t.exec(ctx,
			`UPDATE tasks SET status = ?, completed_at = ?, updated_at = ? WHERE project_id = ? AND status = ?`,
			StatusCancelled, now, now, projectID, StatusPending,
		); err != nil {
			return fmt.Errorf("cancel pending tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateHeartbeat refreshes last_heartbeat for an In Progress task. It returns
// ErrTaskNotRunning once the task has moved on.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := Now()
	res, err := s.exec(ctx,
		`UPDATE tasks SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	if rowsAffected(res) == 0 {
		return ErrTaskNotRunning
	}
	return nil
}

// ReclaimStaleTasks handles In Progress tasks whose heartbeat is older than
// cutoff. Tasks with attempts left return to Pending, the rest fail.
func (s *Store) ReclaimStaleTasks(ctx context.Context, cutoff time.Time, maxAttempts int) (ReclaimResult, error) {
	var result ReclaimResult
	stale := NewTimestamp(cutoff)
	err := s.withTx(ctx, func(t tx) error {
		result = ReclaimResult{}
		now := Now()
		if maxAttempts > 0 {
			res, err := t.exec(ctx,
				`UPDATE tasks SET status = ?, error_message = ?, completed_at = ?, last_heartbeat = NULL, updated_at = ?
                 WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ? AND attempts >= ?`,
				StatusFailed, fmt.Sprintf("worker heartbeat expired after %d attempts", maxAttempts), now, now,
				StatusInProgress, stale, maxAttempts,
			)
			if err != nil {
				return fmt.Errorf("fail stale tasks: %w", err)
			}
			result.Failed = rowsAffected(res)
		}
		res, err := t.exec(ctx,
			`UPDATE tasks SET status = ?, started_at = NULL, last_heartbeat = NULL, updated_at = ?
             WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
			StatusPending, now, StatusInProgress, stale,
		)
		if err != nil {
			return fmt.Errorf("requeue stale tasks: %w", err)
		}
		result.Requeued = rowsAffected(res)
		return nil
	})
	return result, err
}

// CancelBlockedTasks cancels Pending tasks that depend on a Cancelled or
// Failed task, repeating until chains of dependants are resolved. It returns
// the cancelled tasks.
func (s *Store) CancelBlockedTasks(ctx context.Context) ([]Task, error) {
	var cancelled []Task
	for {
		var pending []Task
		if err := s.selectAll(ctx, &pending,
			`SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY created_at, id`, StatusPending,
		); err != nil {
			return cancelled, fmt.Errorf("list pending tasks: %w", err)
		}

		progressed := false
		for _, task := range pending {
			if len(task.DependantOn) == 0 {
				continue
			}
			blocker, status, err := s.firstBlockedDependency(ctx, task.DependantOn)
			if err != nil {
				return cancelled, err
			}
			if blocker == "" {
				continue
			}
			now := Now()
			message := fmt.Sprintf("dependency %s is %s", blocker, status)
			res, err := s.exec(ctx,
				`UPDATE tasks SET status = ?, error_message = ?, completed_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
				StatusCancelled, message, now, now, task.ID, StatusPending,
			)
			if err != nil {
				return cancelled, fmt.Errorf("cancel blocked task: %w", err)
			}
			if rowsAffected(res) == 0 {
				continue
			}
			task.Status = StatusCancelled
			task.ErrorMessage = message
			task.CompletedAt = timestampPtr(now)
			task.UpdatedAt = now
			cancelled = append(cancelled, task)
			progressed = true
		}
		if !progressed {
			return cancelled, nil
		}
	}
}

func (s *Store) firstBlockedDependency(ctx context.Context, deps IDList) (string, Status, error) {
	query, args, err := s.in(
		`SELECT id, status FROM tasks WHERE id IN (?) AND status IN (?) ORDER BY id LIMIT 1`,
		[]string(deps), []string{string(StatusCancelled), string(StatusFailed)},
	)
	if err != nil {
		return "", "", fmt.Errorf("expand blocker query: %w", err)
	}
	var rows []struct {
		ID     string `db:"id"`
		Status Status `db:"status"`
	}
	if err := s.selectAll(ctx, &rows, query, args...); err != nil {
		return "", "", fmt.Errorf("check blocked dependencies: %w", err)
	}
	if len(rows) == 0 {
		return "", "", nil
	}
	return rows[0].ID, rows[0].Status, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}

func dedupeIDs(ids IDList) IDList {
	seen := make(map[string]struct{}, len(ids))
	out := IDList{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
