// Package models defines the records exchanged between the CRM and the email platform and the
// persisted history of sync runs.
//
// Records fetched from the upstream services:
//   - [SourceRecord] : a HubSpot contact with its requested properties
//   - [DestinationRecord] : a MailerLite subscriber keyed by email
//
// The field mapping table ([FieldMappings]) is the single place that decides which source
// properties reach the destination and under which field name. Both the create and the update
// payloads are built from it with [FieldMappings.Apply].
//
// Persisted entities:
//   - [SyncRun] : one invocation of the pipeline with its counts and final status
//   - [RecordOutcome] : the action taken for one source record within a run
package models
