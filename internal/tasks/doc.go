// Package tasks synchronizes HubSpot contacts into MailerLite subscribers with real-time progress reporting.
//
// # Pipeline
//
// [SyncEngine.Run] chains three stages, each usable on its own:
//
//  1. [SourceFetcher.FetchAll] : page through every HubSpot contact with the mapped properties
//  2. [DestinationFetcher.FetchAll] : page through every MailerLite subscriber by cursor and index them by email
//     - a rate-limited page is retried after a fixed interval, without limit
//     - unauthorized and other failures stop the fetch and return what was indexed so far
//  3. [Reconciler.Reconcile] : update known emails by subscriber id, create the rest, skip records without email
//
// A fetch failure on either side aborts the run before any write. Write failures are per record:
// they are logged, counted as failed and the loop moves on.
//
// # Progress Reporting
//
// All stages use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters and a message.
// Updates use select with default to prevent blocking.
//
// # Dry Runs and History
//
// A dry run swaps the writer for a [RecordingWriter] and returns the planned writes.
// When a [RunRecorder] is configured (repositories.SyncRunRepository) every run is persisted
// with its counters and per-record outcomes; recording errors never fail a run.
package tasks
