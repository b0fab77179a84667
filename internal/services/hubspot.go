// HubSpot CRM API client
//
// Response types based on https://developers.hubspot.com/docs/api/crm/contacts
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/hubsync/internal/models"
	"github.com/desertthunder/hubsync/internal/shared"
	"golang.org/x/oauth2"
)

const (
	defaultHubSpotBaseURL  = "https://api.hubapi.com"
	hubSpotContactsPath    = "/crm/v3/objects/contacts"
	defaultHubSpotPageSize = 100
	maxHubSpotPageSize     = 100
)

// hubSpotContact is a contact object as returned by the objects API.
type hubSpotContact struct {
	ID         string             `json:"id"`
	Properties map[string]*string `json:"properties"`
	CreatedAt  string             `json:"createdAt"`
	UpdatedAt  string             `json:"updatedAt"`
	Archived   bool               `json:"archived"`
}

type hubSpotNext struct {
	After string `json:"after"`
}

type hubSpotPaging struct {
	Next *hubSpotNext `json:"next"`
}

// hubSpotContactsPage is one page of the contacts list endpoint.
type hubSpotContactsPage struct {
	Results []hubSpotContact `json:"results"`
	Paging  *hubSpotPaging   `json:"paging"`
}

// ContactPage is one page of source records and the cursor for the next page ("" when done).
type ContactPage struct {
	Records []models.SourceRecord
	After   string
}

// HubSpotOpts configures a [HubSpotClient].
type HubSpotOpts struct {
	Token             string
	BaseURL           string
	PageSize          int
	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client // only its Transport and Timeout are used
}

// HubSpotClient reads contacts from the HubSpot CRM.
type HubSpotClient struct {
	baseURL  string
	pageSize int
	req      *requester
}

// NewHubSpotClient creates a client authenticated with a private app access token.
func NewHubSpotClient(opts HubSpotOpts) (*HubSpotClient, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("%w: hubspot token", shared.ErrMissingCredentials)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultHubSpotBaseURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultHubSpotPageSize
	}
	if opts.PageSize > maxHubSpotPageSize {
		opts.PageSize = maxHubSpotPageSize
	}

	httpClient := newHTTPClient(opts.HTTPClient, opts.Timeout)
	httpClient.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"}),
		Base:   httpClient.Transport,
	}

	return &HubSpotClient{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		pageSize: opts.PageSize,
		req: &requester{
			service:    "hubspot",
			httpClient: httpClient,
			limiter:    newLimiter(opts.RequestsPerSecond),
		},
	}, nil
}

// Name returns the platform name.
func (c *HubSpotClient) Name() string {
	return "HubSpot"
}

// ListContacts fetches one page of contacts with the given properties, starting at the after cursor.
func (c *HubSpotClient) ListContacts(ctx context.Context, properties []string, after string) (*ContactPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("archived", "false")
	if len(properties) > 0 {
		q.Set("properties", strings.Join(properties, ","))
	}
	if after != "" {
		q.Set("after", after)
	}

	var page hubSpotContactsPage
	if err := c.req.do(ctx, http.MethodGet, c.baseURL+hubSpotContactsPath+"?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}

	result := &ContactPage{Records: make([]models.SourceRecord, 0, len(page.Results))}
	for _, contact := range page.Results {
		result.Records = append(result.Records, contact.toRecord())
	}
	if page.Paging != nil && page.Paging.Next != nil {
		result.After = page.Paging.Next.After
	}

	return result, nil
}

// toRecord converts the API object, copying the object-level timestamps and archived flag into
// the properties map when the contact does not already carry properties with those names.
func (c hubSpotContact) toRecord() models.SourceRecord {
	props := make(map[string]*string, len(c.Properties)+3)
	for k, v := range c.Properties {
		props[k] = v
	}

	promote := func(name, value string) {
		if _, ok := props[name]; ok || value == "" {
			return
		}
		props[name] = models.StringPtr(value)
	}
	promote("createdAt", c.CreatedAt)
	promote("updatedAt", c.UpdatedAt)
	promote("archived", strconv.FormatBool(c.Archived))

	return models.SourceRecord{ID: c.ID, Properties: props}
}
