package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/hubsync/internal/formatter"
	"github.com/desertthunder/hubsync/internal/models"
	"github.com/desertthunder/hubsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// HubSpotContacts fetches every contact with the mapped properties.
func (r *Runner) HubSpotContacts(ctx context.Context, cmd *cli.Command) error {
	client, err := r.sourceClient()
	if err != nil {
		return err
	}

	properties := r.fieldMappings().SourceProperties()
	records, err := tasks.NewSourceFetcher(client, r.logger).FetchAll(ctx, properties)
	if err != nil {
		return fmt.Errorf("failed to fetch contacts: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, cmd.Bool("pretty"))
	}

	r.logger.Infof("found %d contacts", len(records))
	return r.writePlain("%s\n", formatter.SourcesTable(records, previewColumns(properties)))
}

// MailerLiteSubscribers fetches the whole subscriber list.
func (r *Runner) MailerLiteSubscribers(ctx context.Context, cmd *cli.Command) error {
	client, err := r.destClient()
	if err != nil {
		return err
	}

	index, err := tasks.NewDestinationFetcher(client, tasks.DestinationFetcherOpts{
		RetryInterval:   seconds(r.config.Sync.RateLimitBackoffSeconds),
		NormalizeEmails: r.config.Sync.NormalizeEmails,
		Logger:          r.logger,
	}).FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch subscribers (%d indexed): %w", len(index), err)
	}

	records := make([]models.DestinationRecord, 0, len(index))
	for _, rec := range index {
		records = append(records, rec)
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, cmd.Bool("pretty"))
	}

	r.logger.Infof("found %d subscribers", len(records))
	return r.writePlain("%s\n", formatter.DestinationsTable(records, previewColumns(r.fieldMappings().DestinationFields())))
}

// previewColumns keeps the table readable; --json shows every field.
func previewColumns(names []string) []string {
	const max = 4
	if len(names) > max {
		return names[:max]
	}
	return names
}
