// Package daemon coordinates the long-running shotdeck process.
//
// It ties the HTTP API and the task worker into a single lifecycle with
// flock-based locking so only one API server owns a data directory. Worker-only
// processes skip the lock and may run alongside each other when tasks are
// dispatched through Redis.
//
// Keep orchestration here: request handling lives in httpapi and task
// execution in worker, while the daemon focuses on startup, shutdown and
// status reporting.
package daemon
