package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/hubsync/internal/models"
	"github.com/desertthunder/hubsync/internal/services"
	"github.com/desertthunder/hubsync/internal/shared"
)

// DefaultRetryInterval is how long the destination fetcher waits after being rate limited.
const DefaultRetryInterval = 60 * time.Second

// ContactLister pages through source contacts.
type ContactLister interface {
	ListContacts(ctx context.Context, properties []string, after string) (*services.ContactPage, error)
}

// SubscriberLister pages through destination subscribers.
type SubscriberLister interface {
	ListSubscribers(ctx context.Context, cursor string) (*services.SubscriberPage, error)
}

// SourceFetcher materializes the whole source collection.
type SourceFetcher struct {
	lister   ContactLister
	logger   *log.Logger
	progress chan<- ProgressUpdate
}

// NewSourceFetcher creates a fetcher over lister.
func NewSourceFetcher(lister ContactLister, logger *log.Logger) *SourceFetcher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SourceFetcher{lister: lister, logger: logger}
}

// FetchAll follows the after cursor until the last page, requesting fields on every page.
// Records are returned in page order. Any error aborts the fetch and no records are returned.
func (f *SourceFetcher) FetchAll(ctx context.Context, fields []string) ([]models.SourceRecord, error) {
	var records []models.SourceRecord
	after := ""

	for page := 1; ; page++ {
		result, err := f.lister.ListContacts(ctx, fields, after)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch source page %d: %w", page, err)
		}

		records = append(records, result.Records...)
		f.logger.Debug("fetched source page", "page", page, "records", len(result.Records))
		sendProgress(f.progress, sourcePageUpdate(page, len(records)))

		if result.After == "" {
			break
		}
		if result.After == after {
			return nil, fmt.Errorf("%w: source cursor %q did not advance", shared.ErrAPIRequest, after)
		}
		after = result.After
	}

	f.logger.Info("fetched source records", "count", len(records))
	return records, nil
}

// DestinationFetcherOpts configures a [DestinationFetcher].
type DestinationFetcherOpts struct {
	RetryInterval   time.Duration // wait after a rate-limited page, defaults to [DefaultRetryInterval]
	NormalizeEmails bool          // index by lowercased, trimmed email
	Logger          *log.Logger
}

// DestinationFetcher builds the email index of all destination subscribers.
type DestinationFetcher struct {
	lister        SubscriberLister
	retryInterval time.Duration
	normalize     bool
	logger        *log.Logger
	progress      chan<- ProgressUpdate
}

// NewDestinationFetcher creates a fetcher over lister.
func NewDestinationFetcher(lister SubscriberLister, opts DestinationFetcherOpts) *DestinationFetcher {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &DestinationFetcher{
		lister:        lister,
		retryInterval: opts.RetryInterval,
		normalize:     opts.NormalizeEmails,
		logger:        opts.Logger,
	}
}

// IndexKey is the key a destination email is stored under.
func (f *DestinationFetcher) IndexKey(email string) string {
	if f.normalize {
		return shared.NormalizeEmail(email)
	}
	return email
}

// FetchAll follows next_cursor until it is absent and indexes every subscriber by email.
//
// A rate-limited page is retried after the retry interval, without limit, until it succeeds or
// ctx is done. Any other error stops the fetch; the records indexed so far are returned with an
// error wrapping [shared.ErrUnauthorized] or [shared.ErrAPIRequest].
func (f *DestinationFetcher) FetchAll(ctx context.Context) (map[string]models.DestinationRecord, error) {
	index := make(map[string]models.DestinationRecord)
	cursor := ""

	for page := 1; ; page++ {
		result, err := f.fetchPage(ctx, page, cursor)
		if err != nil {
			switch {
			case errors.Is(err, shared.ErrUnauthorized):
				f.logger.Error("destination credentials rejected", "page", page, "indexed", len(index))
			case errors.Is(err, shared.ErrAPIRequest), ctx.Err() != nil:
			default:
				err = fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
			}
			return index, fmt.Errorf("failed to fetch destination page %d: %w", page, err)
		}

		for _, record := range result.Records {
			key := f.IndexKey(record.Email)
			if key == "" {
				f.logger.Warn("destination subscriber without email", "id", record.ID)
				continue
			}
			if prev, ok := index[key]; ok && prev.ID != record.ID {
				f.logger.Warn("duplicate destination email, keeping latest", "email", key, "previous", prev.ID, "id", record.ID)
			}
			index[key] = record
		}

		f.logger.Debug("fetched destination page", "page", page, "records", len(result.Records))
		sendProgress(f.progress, destPageUpdate(page, len(index)))

		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}

	f.logger.Info("fetched destination records", "count", len(index))
	return index, nil
}

// fetchPage requests one page, retrying while the platform reports a rate limit.
func (f *DestinationFetcher) fetchPage(ctx context.Context, page int, cursor string) (*services.SubscriberPage, error) {
	var result *services.SubscriberPage

	operation := func() error {
		p, err := f.lister.ListSubscribers(ctx, cursor)
		if err != nil {
			if errors.Is(err, shared.ErrRateLimited) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = p
		return nil
	}

	notify := func(err error, wait time.Duration) {
		f.logger.Warn("destination rate limited, waiting", "page", page, "wait", wait, "err", err)
		sendProgress(f.progress, rateLimitedUpdate(page, wait))
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(f.retryInterval), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return result, nil
}
