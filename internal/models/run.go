package models

import (
	"fmt"
	"time"
)

// Action is the reconciliation decision for one source record.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// RunStatus is the lifecycle state of a [SyncRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RecordOutcome is what happened to one source record. Error is set when the write was rejected.
type RecordOutcome struct {
	SourceID      string `json:"source_id"`
	Email         string `json:"email,omitempty"`
	Action        Action `json:"action"`
	DestinationID string `json:"destination_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Failed reports whether the write for this record was rejected.
func (o RecordOutcome) Failed() bool {
	return o.Error != ""
}

// SyncResult holds the reconciliation counters and the per-record outcomes in input order.
//
// Updated and Created count successful writes only; rejected writes are counted in Failed.
type SyncResult struct {
	Updated  int             `json:"updated"`
	Created  int             `json:"created"`
	Skipped  int             `json:"skipped"`
	Failed   int             `json:"failed"`
	Outcomes []RecordOutcome `json:"outcomes,omitempty"`
}

// Total is the number of source records reconciled.
func (r SyncResult) Total() int {
	return r.Updated + r.Created + r.Skipped + r.Failed
}

// SyncRun is one persisted pipeline invocation.
type SyncRun struct {
	ID               string     `json:"id"`
	Sequence         int        `json:"sequence"`
	Status           RunStatus  `json:"status"`
	DryRun           bool       `json:"dry_run"`
	SourceCount      int        `json:"source_count"`
	DestinationCount int        `json:"destination_count"`
	Result           SyncResult `json:"result"`
	ErrorMessage     string     `json:"error,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

// NewSyncRun returns a running run started now.
func NewSyncRun(dryRun bool) *SyncRun {
	return &SyncRun{
		Status:    RunRunning,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
	}
}

// Finish stamps the run with its final status. A nil err completes the run.
func (r *SyncRun) Finish(err error) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	if err != nil {
		r.Status = RunFailed
		r.ErrorMessage = err.Error()
		return
	}
	r.Status = RunCompleted
}

// Duration is the elapsed time of a finished run, or zero while running.
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Validate checks the run before it is persisted.
func (r *SyncRun) Validate() error {
	switch r.Status {
	case RunRunning, RunCompleted, RunFailed:
	default:
		return fmt.Errorf("invalid run status %q", r.Status)
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}
	if r.Status != RunRunning && r.FinishedAt == nil {
		return fmt.Errorf("finished run needs finished_at")
	}
	return nil
}
