package tasks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/desertthunder/hubsync/internal/models"
	"github.com/desertthunder/hubsync/internal/services"
	"github.com/desertthunder/hubsync/internal/shared"
	tu "github.com/desertthunder/hubsync/internal/testing"
)

type mockRecorder struct {
	started  []*models.SyncRun
	finished []models.SyncRun
	err      error
}

func (m *mockRecorder) StartRun(ctx context.Context, run *models.SyncRun) error {
	m.started = append(m.started, run)
	return m.err
}

func (m *mockRecorder) FinishRun(ctx context.Context, run *models.SyncRun) error {
	m.finished = append(m.finished, *run)
	return m.err
}

type mockDumper struct {
	dumps map[string]any
	err   error
}

func (m *mockDumper) Dump(name string, data any) error {
	if m.dumps == nil {
		m.dumps = map[string]any{}
	}
	m.dumps[name] = data
	return m.err
}

func testContacts() *tu.ContactPages {
	return &tu.ContactPages{Pages: map[string]*services.ContactPage{
		"": {Records: []models.SourceRecord{
			tu.Source("1", "email", "a@x.com", "firstname", "A2"),
			tu.Source("2", "email", "new@x.com", "firstname", "N"),
		}, After: "p2"},
		"p2": {Records: []models.SourceRecord{tu.Source("3", "firstname", "Z")}},
	}}
}

func testSubscribers() *tu.ScriptedSubscribers {
	return &tu.ScriptedSubscribers{Responses: []tu.SubscriberResponse{
		{Page: &services.SubscriberPage{Records: []models.DestinationRecord{
			{ID: "d1", Email: "A@x.com", Fields: map[string]*string{"firstname": models.StringPtr("A1")}},
		}}},
	}}
}

func newTestEngine(opts EngineOpts) *SyncEngine {
	opts.NormalizeEmails = true
	opts.RetryInterval = time.Millisecond
	opts.Logger = shared.NewLogger(io.Discard)
	return NewSyncEngine(opts)
}

func TestSyncEngine_Run(t *testing.T) {
	t.Run("fetches both sides and reconciles", func(t *testing.T) {
		contacts := testContacts()
		writer := &tu.MockWriter{}
		recorder := &mockRecorder{}
		engine := newTestEngine(EngineOpts{Source: contacts, Destination: testSubscribers(), Writer: writer, Recorder: recorder})

		progress := make(chan ProgressUpdate, 50)
		result, err := engine.Run(context.Background(), RunOpts{}, progress)
		close(progress)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		run := result.Run
		if run.Status != models.RunCompleted || run.ID == "" {
			t.Errorf("unexpected run: %+v", run)
		}
		if run.SourceCount != 3 || run.DestinationCount != 1 {
			t.Errorf("unexpected counts: source=%d destination=%d", run.SourceCount, run.DestinationCount)
		}
		if run.Result.Updated != 1 || run.Result.Created != 1 || run.Result.Skipped != 1 {
			t.Errorf("unexpected result: %+v", run.Result)
		}
		if len(writer.Writes) != 2 || writer.Writes[0].ID != "d1" || writer.Writes[1].Email != "new@x.com" {
			t.Errorf("unexpected writes: %+v", writer.Writes)
		}

		want := engine.Mappings().SourceProperties()
		if got := contacts.Properties[0]; len(got) != len(want) || got[0] != models.EmailProperty {
			t.Errorf("expected mapped properties to be requested, got %v", got)
		}

		if len(recorder.started) != 1 || len(recorder.finished) != 1 {
			t.Fatalf("expected run to be recorded once, got %d/%d", len(recorder.started), len(recorder.finished))
		}
		if recorder.finished[0].Status != models.RunCompleted || recorder.finished[0].ID != run.ID {
			t.Errorf("unexpected recorded run: %+v", recorder.finished[0])
		}

		phases := map[Phase]int{}
		for update := range progress {
			phases[update.Phase]++
		}
		for _, p := range []Phase{FetchSource, FetchDest, Reconcile, RecordRun} {
			if phases[p] == 0 {
				t.Errorf("expected progress for %s", p)
			}
		}
	})

	t.Run("dry run plans without writing", func(t *testing.T) {
		writer := &tu.MockWriter{}
		engine := newTestEngine(EngineOpts{Source: testContacts(), Destination: testSubscribers(), Writer: writer})

		result, err := engine.Run(context.Background(), RunOpts{DryRun: true}, nil)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if len(writer.Writes) != 0 {
			t.Errorf("dry run must not write, got %+v", writer.Writes)
		}
		if len(result.Planned) != 2 {
			t.Fatalf("expected 2 planned writes, got %d", len(result.Planned))
		}
		if result.Planned[0].Action != models.ActionUpdate || result.Planned[1].Action != models.ActionCreate {
			t.Errorf("unexpected plan: %+v", result.Planned)
		}
		if !result.Run.DryRun {
			t.Error("expected run flagged as dry run")
		}
	})

	t.Run("dry run works without a writer", func(t *testing.T) {
		engine := newTestEngine(EngineOpts{Source: testContacts(), Destination: testSubscribers()})
		if _, err := engine.Run(context.Background(), RunOpts{DryRun: true}, nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("destination failure aborts before writing", func(t *testing.T) {
		writer := &tu.MockWriter{}
		recorder := &mockRecorder{}
		dests := &tu.ScriptedSubscribers{Responses: []tu.SubscriberResponse{
			{Page: &services.SubscriberPage{Records: subscribers("a@x.com"), NextCursor: "c2"}},
			{Err: &services.APIError{Service: "mailerlite", StatusCode: http.StatusUnauthorized}},
		}}
		dumper := &mockDumper{}
		engine := newTestEngine(EngineOpts{Source: testContacts(), Destination: dests, Writer: writer, Recorder: recorder})

		result, err := engine.Run(context.Background(), RunOpts{Dumper: dumper}, nil)
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if len(writer.Writes) != 0 {
			t.Errorf("expected no writes, got %+v", writer.Writes)
		}
		if result.Run.Status != models.RunFailed || result.Run.ErrorMessage == "" {
			t.Errorf("expected failed run, got %+v", result.Run)
		}
		if len(result.Destinations) != 1 {
			t.Errorf("expected partial destination index, got %d", len(result.Destinations))
		}
		if _, ok := dumper.dumps[DestinationDumpName]; !ok {
			t.Error("expected partial destination dump")
		}
		if len(recorder.finished) != 1 || recorder.finished[0].Status != models.RunFailed {
			t.Errorf("expected failed run to be recorded, got %+v", recorder.finished)
		}
	})

	t.Run("source failure aborts", func(t *testing.T) {
		contacts := &tu.ContactPages{Errs: map[string]error{"": &services.APIError{Service: "hubspot", StatusCode: http.StatusBadGateway}}}
		dests := &tu.ScriptedSubscribers{}
		engine := newTestEngine(EngineOpts{Source: contacts, Destination: dests, Writer: &tu.MockWriter{}})

		_, err := engine.Run(context.Background(), RunOpts{}, nil)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if len(dests.Cursors) != 0 {
			t.Error("destination must not be fetched after a source failure")
		}
	})

	t.Run("writes dumps", func(t *testing.T) {
		dumper := &mockDumper{}
		engine := newTestEngine(EngineOpts{Source: testContacts(), Destination: testSubscribers(), Writer: &tu.MockWriter{}})

		if _, err := engine.Run(context.Background(), RunOpts{Dumper: dumper}, nil); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		sources, ok := dumper.dumps[SourceDumpName].([]models.SourceRecord)
		if !ok || len(sources) != 3 {
			t.Errorf("unexpected source dump: %v", dumper.dumps[SourceDumpName])
		}
		if _, ok := dumper.dumps[DestinationDumpName].(map[string]models.DestinationRecord); !ok {
			t.Errorf("unexpected destination dump: %v", dumper.dumps[DestinationDumpName])
		}
	})

	t.Run("dump and recorder failures are not fatal", func(t *testing.T) {
		engine := newTestEngine(EngineOpts{
			Source:      testContacts(),
			Destination: testSubscribers(),
			Writer:      &tu.MockWriter{},
			Recorder:    &mockRecorder{err: errors.New("disk full")},
		})

		_, err := engine.Run(context.Background(), RunOpts{Dumper: &mockDumper{err: errors.New("read-only")}}, nil)
		if err != nil {
			t.Errorf("expected success, got %v", err)
		}
	})

	t.Run("write failures do not fail the run", func(t *testing.T) {
		writer := &tu.MockWriter{Fail: map[string]error{"d1": errors.New("rejected")}}
		engine := newTestEngine(EngineOpts{Source: testContacts(), Destination: testSubscribers(), Writer: writer})

		result, err := engine.Run(context.Background(), RunOpts{}, nil)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if result.Run.Result.Failed != 1 || result.Run.Status != models.RunCompleted {
			t.Errorf("unexpected run: %+v", result.Run)
		}
	})

	t.Run("missing clients", func(t *testing.T) {
		engine := newTestEngine(EngineOpts{})
		if _, err := engine.Run(context.Background(), RunOpts{}, nil); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}

		engine = newTestEngine(EngineOpts{Source: testContacts(), Destination: testSubscribers()})
		if _, err := engine.Run(context.Background(), RunOpts{}, nil); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable without writer, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		contacts := &tu.ContactPages{Errs: map[string]error{"": context.Canceled}}
		engine := newTestEngine(EngineOpts{Source: contacts, Destination: testSubscribers(), Writer: &tu.MockWriter{}})
		_, err := engine.Run(ctx, RunOpts{}, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestPhase_String(t *testing.T) {
	tests := map[Phase]string{
		FetchSource: "fetch_source",
		FetchDest:   "fetch_dest",
		Reconcile:   "reconcile",
		RecordRun:   "record_run",
		Phase(99):   "",
	}
	for phase, want := range tests {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", phase, got, want)
		}
	}
}

func TestSendProgress(t *testing.T) {
	t.Run("nil channel", func(t *testing.T) {
		sendProgress(nil, ProgressUpdate{})
	})

	t.Run("full channel does not block", func(t *testing.T) {
		ch := make(chan ProgressUpdate, 1)
		sendProgress(ch, reconcileUpdate(1, 2, "a@x.com"))
		sendProgress(ch, reconcileUpdate(2, 2, ""))

		if len(ch) != 1 {
			t.Fatalf("expected 1 buffered update, got %d", len(ch))
		}
		if got := (<-ch).Message; got != "[1/2] a@x.com" {
			t.Errorf("unexpected message %q", got)
		}
	})
}
