// package tasks implements the HubSpot → MailerLite contact sync pipeline.
//
// The core abstraction is SyncEngine, which chains the source fetch, the destination fetch and
// reconciliation. Stages emit progress updates via channels for non-blocking status reporting.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hubsync/internal/models"
	"github.com/desertthunder/hubsync/internal/shared"
)

// Dump file names written through [Dumper].
const (
	SourceDumpName      = "hubspot_contacts.json"
	DestinationDumpName = "mailerlite_subscribers.json"
)

// RunRecorder persists sync run history.
type RunRecorder interface {
	StartRun(ctx context.Context, run *models.SyncRun) error
	FinishRun(ctx context.Context, run *models.SyncRun) error
}

// Dumper writes fetched data for debugging.
type Dumper interface {
	Dump(name string, data any) error
}

// EngineOpts contains the collaborators of a [SyncEngine].
type EngineOpts struct {
	Source          ContactLister
	Destination     SubscriberLister
	Writer          DestinationWriter
	Mappings        models.FieldMappings
	NormalizeEmails bool
	RetryInterval   time.Duration
	Recorder        RunRecorder // optional
	Logger          *log.Logger
}

// RunOpts selects per-invocation behavior.
type RunOpts struct {
	DryRun bool   // record planned writes instead of sending them
	Dumper Dumper // optional
}

// RunResult contains everything a sync run produced.
type RunResult struct {
	Run          *models.SyncRun
	Sources      []models.SourceRecord
	Destinations map[string]models.DestinationRecord
	Planned      []WriteCall // writes a dry run would have sent
}

// SyncEngine runs the three pipeline stages in order.
type SyncEngine struct {
	source        ContactLister
	destination   SubscriberLister
	writer        DestinationWriter
	mappings      models.FieldMappings
	normalize     bool
	retryInterval time.Duration
	recorder      RunRecorder
	logger        *log.Logger
}

// NewSyncEngine creates a new SyncEngine with the provided collaborators.
func NewSyncEngine(opts EngineOpts) *SyncEngine {
	if len(opts.Mappings) == 0 {
		opts.Mappings = models.DefaultFieldMappings()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &SyncEngine{
		source:        opts.Source,
		destination:   opts.Destination,
		writer:        opts.Writer,
		mappings:      opts.Mappings,
		normalize:     opts.NormalizeEmails,
		retryInterval: opts.RetryInterval,
		recorder:      opts.Recorder,
		logger:        opts.Logger,
	}
}

// Mappings returns the field mapping table the engine writes with.
func (e *SyncEngine) Mappings() models.FieldMappings {
	return e.mappings
}

// SourceFetcher returns a fetcher reporting to progress.
func (e *SyncEngine) SourceFetcher(progress chan<- ProgressUpdate) *SourceFetcher {
	f := NewSourceFetcher(e.source, shared.WithLogger(e.logger, "stage", FetchSource.String()))
	f.progress = progress
	return f
}

// DestinationFetcher returns a fetcher reporting to progress.
func (e *SyncEngine) DestinationFetcher(progress chan<- ProgressUpdate) *DestinationFetcher {
	f := NewDestinationFetcher(e.destination, DestinationFetcherOpts{
		RetryInterval:   e.retryInterval,
		NormalizeEmails: e.normalize,
		Logger:          shared.WithLogger(e.logger, "stage", FetchDest.String()),
	})
	f.progress = progress
	return f
}

// Run fetches both sides and reconciles them.
//
// A failed fetch of either side aborts the run before any write. The run is recorded when a
// recorder is configured; recording errors are logged and do not fail the run.
func (e *SyncEngine) Run(ctx context.Context, opts RunOpts, progress chan<- ProgressUpdate) (*RunResult, error) {
	if e.source == nil || e.destination == nil {
		return nil, fmt.Errorf("%w: source and destination clients are required", shared.ErrServiceUnavailable)
	}

	writer := e.writer
	var recording *RecordingWriter
	if opts.DryRun {
		recording = NewRecordingWriter()
		writer = recording
	}
	if writer == nil {
		return nil, fmt.Errorf("%w: destination writer not initialized", shared.ErrServiceUnavailable)
	}

	run := models.NewSyncRun(opts.DryRun)
	run.ID = shared.GenerateID()
	result := &RunResult{Run: run}
	logger := shared.WithLogger(e.logger, "dry_run", opts.DryRun)

	if e.recorder != nil {
		if err := e.recorder.StartRun(ctx, run); err != nil {
			logger.Warn("failed to record run start", "err", err)
		}
	}
	logger.Info("sync started", "run", run.ID)

	err := e.run(ctx, opts, writer, progress, result)
	run.Finish(err)
	if recording != nil {
		result.Planned = recording.Calls()
	}

	if e.recorder != nil {
		// the run context may already be cancelled
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if rerr := e.recorder.FinishRun(recordCtx, run); rerr != nil {
			logger.Warn("failed to record run", "run", run.ID, "err", rerr)
		} else {
			sendProgress(progress, recordRunUpdate(run.ID))
		}
	}

	if err != nil {
		logger.Error("sync failed", "run", run.ID, "err", err)
		return result, err
	}
	logger.Info("sync finished", "run", run.ID, "duration", run.Duration().Round(time.Millisecond))
	return result, nil
}

func (e *SyncEngine) run(ctx context.Context, opts RunOpts, writer DestinationWriter, progress chan<- ProgressUpdate, result *RunResult) error {
	sources, err := e.SourceFetcher(progress).FetchAll(ctx, e.mappings.SourceProperties())
	if err != nil {
		return err
	}
	result.Sources = sources
	result.Run.SourceCount = len(sources)
	e.dump(opts.Dumper, SourceDumpName, sources)

	destinations, err := e.DestinationFetcher(progress).FetchAll(ctx)
	result.Destinations = destinations
	result.Run.DestinationCount = len(destinations)
	e.dump(opts.Dumper, DestinationDumpName, destinations)
	if err != nil {
		return err
	}

	reconciler := NewReconciler(writer, ReconcilerOpts{
		Mappings:        e.mappings,
		NormalizeEmails: e.normalize,
		Logger:          shared.WithLogger(e.logger, "stage", Reconcile.String()),
	})
	reconciler.progress = progress

	result.Run.Result = reconciler.Reconcile(ctx, sources, destinations)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reconciliation interrupted: %w", err)
	}
	return nil
}

func (e *SyncEngine) dump(d Dumper, name string, data any) {
	if d == nil {
		return
	}
	if err := d.Dump(name, data); err != nil {
		e.logger.Warn("failed to write dump", "file", name, "err", err)
	}
}
