// Package services defines shared utilities consumed by the studio layer, the
// task worker, and the external provider clients.
//
// Key responsibilities:
//   - Context helpers that stamp project, task, user and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that let the HTTP layer
//     pick status codes and the worker decide whether a failure is retryable.
//
// Use these helpers when wiring new handlers so error handling and
// observability stay uniform across the server.
package services
