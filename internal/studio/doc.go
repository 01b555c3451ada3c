// Package studio is the domain layer shared by the HTTP API and the CLI.
//
// Every operation takes the acting user id. Projects belong to exactly one
// user; anything reached through another user's project reads as not found.
// Operations validate input, run the store mutation, and publish a cache
// invalidation event describing what changed. Mutations return the
// authoritative state so callers can reconcile optimistic updates.
//
// Errors carry services markers (validation, not found, conflict) so the
// transport layers can map them without inspecting store internals.
package studio
