// Package repositories implements SQLite persistence for sync run history.
//
// [SyncRunRepository] stores one row per pipeline invocation in sync_runs, with its counters
// and final status, and one row per reconciled source record in sync_outcomes.
// It satisfies tasks.RunRecorder so the engine can record runs without knowing about SQL.
//
// Sequence numbers provide stable, human-readable ordering (run #42) independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
