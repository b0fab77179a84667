package tasks

import (
	"fmt"
	"time"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline stage
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, 0 when unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Pipeline stage enumeration
type Phase int

const (
	FetchSource Phase = iota
	FetchDest
	Reconcile
	RecordRun
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case FetchDest:
		return "fetch_dest"
	case Reconcile:
		return "reconcile"
	case RecordRun:
		return "record_run"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func sourcePageUpdate(page, fetched int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    page,
		Message: fmt.Sprintf("Fetched HubSpot contacts page %d (%d contacts so far)", page, fetched),
	}
}

func destPageUpdate(page, indexed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDest,
		Step:    page,
		Message: fmt.Sprintf("Fetched MailerLite subscribers page %d (%d indexed so far)", page, indexed),
	}
}

func rateLimitedUpdate(page int, wait time.Duration) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchDest,
		Step:    page,
		Message: fmt.Sprintf("Rate limited on page %d, retrying in %s...", page, wait),
	}
}

func reconcileUpdate(step, total int, email string) ProgressUpdate {
	if email == "" {
		return ProgressUpdate{
			Phase:   Reconcile,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] (no email)", step, total),
		}
	}
	return ProgressUpdate{
		Phase:   Reconcile,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, email),
	}
}

func recordRunUpdate(id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RecordRun,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Recorded sync run %s", id),
		Data:    id,
	}
}
