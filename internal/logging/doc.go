// Package logging assembles structured slog loggers and formatting helpers used
// across shotdeck.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so handlers and the worker tag log lines
// with project ids, task ids and correlation ids automatically. A no-op logger
// is provided for tests and wiring code that cannot fail.
package logging
