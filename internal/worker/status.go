package worker

import (
	"context"
	"slices"
	"time"

	"shotdeck/internal/logging"
	"shotdeck/internal/stage"
	"shotdeck/internal/store"
)

// ActiveTask is a task currently executing in this process.
type ActiveTask struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	TaskType  string    `json:"taskType"`
	StartedAt time.Time `json:"startedAt"`
}

// StatusSummary represents lightweight worker diagnostics.
type StatusSummary struct {
	Running       bool                    `json:"running"`
	Mode          string                  `json:"mode"`
	Concurrency   int                     `json:"concurrency"`
	Active        []ActiveTask            `json:"active"`
	LastError     string                  `json:"lastError,omitempty"`
	LastTask      *store.Task             `json:"lastTask,omitempty"`
	TaskStats     map[store.Status]int    `json:"taskStats"`
	HandlerHealth map[string]stage.Health `json:"handlerHealth"`
}

// Status returns the latest worker information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastTask := m.lastTask
	active := make([]ActiveTask, 0, len(m.inFlight))
	for _, task := range m.inFlight {
		active = append(active, task)
	}
	m.mu.RUnlock()
	slices.SortFunc(active, func(a, b ActiveTask) int { return a.StartedAt.Compare(b.StartedAt) })

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read task stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(m.handlers))
	for taskType, handler := range m.handlers {
		if handler == nil {
			continue
		}
		health[taskType] = handler.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Running:       running,
		Mode:          m.Mode(),
		Concurrency:   m.concurrency,
		Active:        active,
		TaskStats:     stats,
		HandlerHealth: health,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastTask != nil {
		copy := *lastTask
		summary.LastTask = &copy
	}
	return summary
}

func (m *Manager) trackStart(task *store.Task) {
	m.mu.Lock()
	m.inFlight[task.ID] = ActiveTask{
		ID:        task.ID,
		ProjectID: task.ProjectID,
		TaskType:  task.TaskType,
		StartedAt: time.Now().UTC(),
	}
	m.mu.Unlock()
}

func (m *Manager) trackDone(id string) {
	m.mu.Lock()
	delete(m.inFlight, id)
	m.mu.Unlock()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastTask(task *store.Task) {
	m.mu.Lock()
	if task != nil {
		copy := *task
		m.lastTask = &copy
	} else {
		m.lastTask = nil
	}
	m.mu.Unlock()
}
