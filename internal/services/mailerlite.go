// MailerLite API client
//
// Response types based on https://developers.mailerlite.com/docs/subscribers.html
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/hubsync/internal/models"
	"github.com/desertthunder/hubsync/internal/shared"
)

const (
	defaultMailerLiteBaseURL  = "https://connect.mailerlite.com"
	mailerLiteSubscribersPath = "/api/subscribers"
	defaultMailerLitePageSize = 1000
)

// mailerLiteSubscriber is a subscriber object. Field values may be strings, numbers or null.
type mailerLiteSubscriber struct {
	ID     string         `json:"id"`
	Email  string         `json:"email"`
	Status string         `json:"status"`
	Fields map[string]any `json:"fields"`
}

type mailerLiteMeta struct {
	NextCursor *string `json:"next_cursor"`
}

// mailerLiteListResponse is either {data, meta} or {error: {code, message}}.
type mailerLiteListResponse struct {
	Data  []mailerLiteSubscriber `json:"data"`
	Meta  mailerLiteMeta         `json:"meta"`
	Error *envelopeError         `json:"error"`
}

type mailerLiteSingleResponse struct {
	Data mailerLiteSubscriber `json:"data"`
}

type createSubscriberRequest struct {
	Email  string         `json:"email"`
	Fields models.Payload `json:"fields"`
}

type updateSubscriberRequest struct {
	Fields models.Payload `json:"fields"`
}

// SubscriberPage is one page of destination records and the cursor for the next page ("" when done).
type SubscriberPage struct {
	Records    []models.DestinationRecord
	NextCursor string
}

// MailerLiteOpts configures a [MailerLiteClient].
type MailerLiteOpts struct {
	APIKey            string
	BaseURL           string
	PageSize          int
	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client // only its Transport and Timeout are used
}

// MailerLiteClient lists and writes MailerLite subscribers.
type MailerLiteClient struct {
	baseURL  string
	pageSize int
	req      *requester
}

// NewMailerLiteClient creates a client authenticated with an API key.
func NewMailerLiteClient(opts MailerLiteOpts) (*MailerLiteClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: mailerlite api key", shared.ErrMissingCredentials)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultMailerLiteBaseURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultMailerLitePageSize
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+opts.APIKey)

	return &MailerLiteClient{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		pageSize: opts.PageSize,
		req: &requester{
			service:    "mailerlite",
			httpClient: newHTTPClient(opts.HTTPClient, opts.Timeout),
			limiter:    newLimiter(opts.RequestsPerSecond),
			header:     header,
		},
	}, nil
}

// Name returns the platform name.
func (c *MailerLiteClient) Name() string {
	return "MailerLite"
}

// ListSubscribers fetches one page of subscribers starting at cursor ("" for the first page).
//
// An error envelope in a success response is reported the same way as an HTTP error status.
func (c *MailerLiteClient) ListSubscribers(ctx context.Context, cursor string) (*SubscriberPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var resp mailerLiteListResponse
	if err := c.req.do(ctx, http.MethodGet, c.baseURL+mailerLiteSubscribersPath+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &APIError{
			Service:    c.req.service,
			StatusCode: http.StatusOK,
			Code:       resp.Error.Code,
			Message:    resp.Error.Message,
		}
	}

	page := &SubscriberPage{Records: make([]models.DestinationRecord, 0, len(resp.Data))}
	for _, s := range resp.Data {
		page.Records = append(page.Records, s.toRecord())
	}
	if resp.Meta.NextCursor != nil {
		page.NextCursor = *resp.Meta.NextCursor
	}

	return page, nil
}

// CreateSubscriber creates a subscriber identified by email with the mapped fields.
func (c *MailerLiteClient) CreateSubscriber(ctx context.Context, email string, fields models.Payload) (*models.DestinationRecord, error) {
	var resp mailerLiteSingleResponse
	body := createSubscriberRequest{Email: email, Fields: fields}
	if err := c.req.do(ctx, http.MethodPost, c.baseURL+mailerLiteSubscribersPath, body, &resp); err != nil {
		return nil, err
	}
	record := resp.Data.toRecord()
	return &record, nil
}

// UpdateSubscriber replaces the mapped fields of the subscriber with the given id.
func (c *MailerLiteClient) UpdateSubscriber(ctx context.Context, id string, fields models.Payload) (*models.DestinationRecord, error) {
	var resp mailerLiteSingleResponse
	endpoint := fmt.Sprintf("%s%s/%s", c.baseURL, mailerLiteSubscribersPath, url.PathEscape(id))
	if err := c.req.do(ctx, http.MethodPut, endpoint, updateSubscriberRequest{Fields: fields}, &resp); err != nil {
		return nil, err
	}
	record := resp.Data.toRecord()
	return &record, nil
}

func (s mailerLiteSubscriber) toRecord() models.DestinationRecord {
	fields := make(map[string]*string, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = fieldString(v)
	}
	return models.DestinationRecord{ID: s.ID, Email: s.Email, Status: s.Status, Fields: fields}
}

// fieldString renders a decoded JSON field value as a string, keeping null as nil.
func fieldString(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return models.StringPtr(t)
	case float64:
		return models.StringPtr(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		return models.StringPtr(strconv.FormatBool(t))
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		return models.StringPtr(string(data))
	}
}
