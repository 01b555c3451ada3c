// Package worker runs queued generation tasks.
//
// The Manager claims ready tasks from the store, executes the stage.Handler
// registered for the task type, and records the outcome. Without a broker it
// polls the database from Worker.Concurrency goroutines and wakes early when
// the local dispatcher signals new work. With a Redis broker configured it
// consumes dispatch messages through an asynq server instead; each message is
// checked against the store before the task is claimed.
//
// While a handler runs, a heartbeat loop refreshes the task. If the task has
// been cancelled in the meantime the heartbeat fails, the handler context is
// cancelled, and whatever the handler produced is discarded. A periodic sweep
// reclaims tasks whose worker vanished, cancels tasks blocked on failed
// dependencies, and re-dispatches ready tasks when a broker is in use.
package worker
