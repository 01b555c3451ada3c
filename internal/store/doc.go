// Package store persists projects, tasks, generations, shots, API keys and
// workspaces over sqlx.
//
// Two dialects are supported: SQLite through modernc.org/sqlite (the default,
// one file under the data directory) and PostgreSQL through lib/pq. Schema is
// owned by golang-migrate with embedded per-dialect migrations; Open applies
// them, Connect leaves the schema alone for tooling such as `shotdeck migrate`.
//
// Queries are written with ? placeholders and rebound per dialect. SQLite busy
// errors are retried with capped exponential backoff, including whole
// transactions.
//
// Shot membership is the one ordered structure: positions inside a shot are
// unique and always form the dense sequence 0..n-1. Every mutation that
// touches shot_generations rewrites positions inside the same transaction.
//
// Task status moves Pending -> In Progress -> {Completed, Failed, Cancelled},
// Pending -> Cancelled, Failed -> Pending (retry) and In Progress -> Pending
// (stale heartbeat reclaim). Transitions are guarded by status predicates in
// the UPDATE so concurrent workers cannot double-claim a task.
package store
