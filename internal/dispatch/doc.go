// Package dispatch tells workers that a task is ready to run.
//
// Two transports exist. Local wakes the in-process worker through a channel
// and is used when no broker is configured. Asynq enqueues a message per task
// on Redis so separate worker processes can consume it; the message carries
// only the task id and the store stays the source of truth, so duplicate or
// stale messages are harmless.
package dispatch
