package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hubsync/internal/alert"
	"github.com/desertthunder/hubsync/internal/formatter"
	"github.com/desertthunder/hubsync/internal/models"
	"github.com/desertthunder/hubsync/internal/repositories"
	"github.com/desertthunder/hubsync/internal/services"
	"github.com/desertthunder/hubsync/internal/shared"
	"github.com/desertthunder/hubsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

const (
	defaultConfigPath = "config.toml"
	alertTimeout      = 15 * time.Second
)

// Destination reads and writes MailerLite subscribers.
type Destination interface {
	tasks.SubscriberLister
	tasks.DestinationWriter
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	source     tasks.ContactLister
	dest       Destination
	db         *sql.DB
	notifier   alert.Notifier
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Clients, database and notifier left nil are built from the loaded configuration on first use.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Source     tasks.ContactLister
	Dest       Destination
	DB         *sql.DB
	Notifier   alert.Notifier
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		source:     opts.Source,
		dest:       opts.Dest,
		db:         opts.DB,
		notifier:   opts.Notifier,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, historyCommand, hubspotCommand, mailerliteCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config, applies HUBSYNC_* overrides and sets the log level.
//
// A missing file is only an error when the path was given explicitly.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	r.configPath = path

	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return ctx, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
	} else if cmd.IsSet("config") {
		return ctx, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
	}

	if err := shared.ApplyEnv(config); err != nil {
		return ctx, err
	}
	if err := shared.SetLogLevel(r.logger, config.Logging.Level); err != nil {
		return ctx, fmt.Errorf("%w: logging.level: %v", shared.ErrInvalidConfig, err)
	}

	r.config = config
	return ctx, nil
}

// Fail logs a fatal command error and alerts operators through the configured notifiers.
// Usage errors are only logged.
func (r *Runner) Fail(ctx context.Context, err error) {
	r.logger.Error("hubsync failed", "err", err)

	if errors.Is(err, shared.ErrMissingArgument) || errors.Is(err, shared.ErrInvalidArgument) {
		return
	}
	alert.Send(ctx, r.alertNotifier(), r.logger, err, alertTimeout)
}

// Close releases the database handle opened on demand.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Runner) alertNotifier() alert.Notifier {
	if r.notifier == nil {
		r.notifier = alert.FromConfig(r.config.Alert, r.httpClient)
	}
	return r.notifier
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (r *Runner) sourceClient() (tasks.ContactLister, error) {
	if r.source != nil {
		return r.source, nil
	}

	cfg := r.config.HubSpot
	client, err := services.NewHubSpotClient(services.HubSpotOpts{
		Token:             cfg.Token,
		BaseURL:           cfg.BaseURL,
		PageSize:          cfg.PageSize,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           seconds(cfg.TimeoutSeconds),
		HTTPClient:        r.httpClient,
	})
	if err != nil {
		return nil, err
	}
	r.source = client
	return client, nil
}

func (r *Runner) destClient() (Destination, error) {
	if r.dest != nil {
		return r.dest, nil
	}

	cfg := r.config.MailerLite
	client, err := services.NewMailerLiteClient(services.MailerLiteOpts{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		PageSize:          cfg.PageSize,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           seconds(cfg.TimeoutSeconds),
		HTTPClient:        r.httpClient,
	})
	if err != nil {
		return nil, err
	}
	r.dest = client
	return client, nil
}

// database opens the run history database on first use.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	return db, nil
}

func (r *Runner) runRepository() (*repositories.SyncRunRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewSyncRunRepository(db), nil
}

// fieldMappings returns the configured mapping table, or the built-in one when none is configured.
func (r *Runner) fieldMappings() models.FieldMappings {
	if len(r.config.Mapping) == 0 {
		return models.DefaultFieldMappings()
	}
	m := make(models.FieldMappings, len(r.config.Mapping))
	for i, entry := range r.config.Mapping {
		m[i] = models.FieldMapping{Source: entry.Source, Destination: entry.Destination}
	}
	return m
}

// engine builds a sync engine from the configured clients. Run history is recorded when a
// database is configured; a database that cannot be opened is logged and skipped.
func (r *Runner) engine() (*tasks.SyncEngine, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	source, err := r.sourceClient()
	if err != nil {
		return nil, err
	}
	dest, err := r.destClient()
	if err != nil {
		return nil, err
	}

	opts := tasks.EngineOpts{
		Source:          source,
		Destination:     dest,
		Writer:          dest,
		Mappings:        r.fieldMappings(),
		NormalizeEmails: r.config.Sync.NormalizeEmails,
		RetryInterval:   seconds(r.config.Sync.RateLimitBackoffSeconds),
		Logger:          r.logger,
	}

	repo, err := r.runRepository()
	switch {
	case err == nil:
		opts.Recorder = repo
	case errors.Is(err, shared.ErrDatabaseDisabled):
		r.logger.Debug("run history disabled")
	default:
		r.logger.Warn("run history unavailable", "err", err)
	}

	return tasks.NewSyncEngine(opts), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := formatter.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
