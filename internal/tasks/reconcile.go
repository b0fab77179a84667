package tasks

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hubsync/internal/models"
	"github.com/desertthunder/hubsync/internal/shared"
)

// DestinationWriter creates and updates destination subscribers.
type DestinationWriter interface {
	CreateSubscriber(ctx context.Context, email string, fields models.Payload) (*models.DestinationRecord, error)
	UpdateSubscriber(ctx context.Context, id string, fields models.Payload) (*models.DestinationRecord, error)
}

// ReconcilerOpts configures a [Reconciler].
type ReconcilerOpts struct {
	Mappings        models.FieldMappings // defaults to [models.DefaultFieldMappings]
	NormalizeEmails bool                 // must match the destination index
	Logger          *log.Logger
}

// Reconciler decides create or update for every source record and issues the write.
type Reconciler struct {
	writer    DestinationWriter
	mappings  models.FieldMappings
	normalize bool
	logger    *log.Logger
	progress  chan<- ProgressUpdate
}

// NewReconciler creates a reconciler writing through writer.
func NewReconciler(writer DestinationWriter, opts ReconcilerOpts) *Reconciler {
	if len(opts.Mappings) == 0 {
		opts.Mappings = models.DefaultFieldMappings()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Reconciler{
		writer:    writer,
		mappings:  opts.Mappings,
		normalize: opts.NormalizeEmails,
		logger:    opts.Logger,
	}
}

// Reconcile processes sources in order. A record without email is skipped; a record whose email
// is in destinations is updated by destination id; any other record is created. A rejected write
// is logged and counted as failed and the loop continues.
//
// Repeated source emails are not collapsed and destinations is never modified, so two records
// sharing an unknown email both produce a create. Reconcile stops before the next record once
// ctx is done; callers check ctx.Err() to tell a partial result apart.
func (r *Reconciler) Reconcile(ctx context.Context, sources []models.SourceRecord, destinations map[string]models.DestinationRecord) models.SyncResult {
	result := models.SyncResult{Outcomes: make([]models.RecordOutcome, 0, len(sources))}
	total := len(sources)

	for i, source := range sources {
		if ctx.Err() != nil {
			r.logger.Warn("reconciliation interrupted", "processed", i, "total", total)
			break
		}

		email := source.Email()
		sendProgress(r.progress, reconcileUpdate(i+1, total, email))

		if email == "" {
			r.logger.Warn("skipping source record without email", "id", source.ID)
			result.Skipped++
			result.Outcomes = append(result.Outcomes, models.RecordOutcome{SourceID: source.ID, Action: models.ActionSkip})
			continue
		}

		payload := r.mappings.Apply(source)
		outcome := models.RecordOutcome{SourceID: source.ID, Email: email}

		key := email
		if r.normalize {
			key = shared.NormalizeEmail(email)
		}

		var err error
		if dest, ok := destinations[key]; ok {
			outcome.Action = models.ActionUpdate
			outcome.DestinationID = dest.ID
			_, err = r.writer.UpdateSubscriber(ctx, dest.ID, payload)
		} else {
			outcome.Action = models.ActionCreate
			var created *models.DestinationRecord
			created, err = r.writer.CreateSubscriber(ctx, email, payload)
			if err == nil && created != nil {
				outcome.DestinationID = created.ID
			}
		}

		switch {
		case err != nil:
			r.logger.Error("failed to write subscriber", "action", outcome.Action, "id", source.ID, "email", email, "err", err)
			outcome.Error = err.Error()
			result.Failed++
		case outcome.Action == models.ActionUpdate:
			r.logger.Debug("updated subscriber", "email", email, "destination", outcome.DestinationID)
			result.Updated++
		default:
			r.logger.Debug("created subscriber", "email", email, "destination", outcome.DestinationID)
			result.Created++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	r.logger.Info("reconciliation finished",
		"created", result.Created, "updated", result.Updated, "skipped", result.Skipped, "failed", result.Failed)
	return result
}

// WriteCall is one write the reconciler issued.
type WriteCall struct {
	Action models.Action  `json:"action"`
	ID     string         `json:"id,omitempty"`
	Email  string         `json:"email,omitempty"`
	Fields models.Payload `json:"fields"`
}

// RecordingWriter is a [DestinationWriter] that records calls instead of sending them.
// It backs dry runs.
type RecordingWriter struct {
	mu    sync.Mutex
	calls []WriteCall
}

// NewRecordingWriter returns an empty recorder.
func NewRecordingWriter() *RecordingWriter {
	return &RecordingWriter{}
}

func (w *RecordingWriter) CreateSubscriber(ctx context.Context, email string, fields models.Payload) (*models.DestinationRecord, error) {
	w.record(WriteCall{Action: models.ActionCreate, Email: email, Fields: fields})
	return &models.DestinationRecord{Email: email, Fields: fields}, nil
}

func (w *RecordingWriter) UpdateSubscriber(ctx context.Context, id string, fields models.Payload) (*models.DestinationRecord, error) {
	w.record(WriteCall{Action: models.ActionUpdate, ID: id, Fields: fields})
	return &models.DestinationRecord{ID: id, Fields: fields}, nil
}

func (w *RecordingWriter) record(call WriteCall) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, call)
}

// Calls returns the recorded writes in call order.
func (w *RecordingWriter) Calls() []WriteCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]WriteCall(nil), w.calls...)
}
