package stage

import (
	"context"

	"shotdeck/internal/store"
)

// Handler runs one task type for the worker.
//
// Execute must honour ctx: the worker cancels it when the task is cancelled
// by its owner or the process shuts down, and discards any result returned
// after that point.
type Handler interface {
	Execute(ctx context.Context, task *store.Task) (*Result, error)
	HealthCheck(ctx context.Context) Health
}

// Result is what a successful Execute hands back to the worker. Generations
// are inserted in order; ProjectID and Tasks are filled in by the store.
type Result struct {
	OutputLocation string
	Generations    []*store.Generation
}

// Health summarizes whether a handler can currently accept work.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs a Health record explaining why name cannot run.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
