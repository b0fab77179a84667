package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/hubsync/internal/models"
	"github.com/desertthunder/hubsync/internal/shared"
)

func newTestMailerLite(t *testing.T, handler http.HandlerFunc) *MailerLiteClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewMailerLiteClient(MailerLiteOpts{
		APIKey:     "ml-key",
		BaseURL:    server.URL,
		PageSize:   2,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestMailerLiteClient(t *testing.T) {
	t.Run("NewMailerLiteClient", func(t *testing.T) {
		t.Run("requires api key", func(t *testing.T) {
			if _, err := NewMailerLiteClient(MailerLiteOpts{}); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("applies defaults", func(t *testing.T) {
			client, err := NewMailerLiteClient(MailerLiteOpts{APIKey: "k"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.baseURL != defaultMailerLiteBaseURL {
				t.Errorf("expected default base URL, got %s", client.baseURL)
			}
			if client.pageSize != defaultMailerLitePageSize {
				t.Errorf("expected default page size, got %d", client.pageSize)
			}
			if client.Name() != "MailerLite" {
				t.Errorf("expected MailerLite, got %s", client.Name())
			}
		})
	})

	t.Run("ListSubscribers", func(t *testing.T) {
		client := newTestMailerLite(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.URL.Path != mailerLiteSubscribersPath {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer ml-key" {
				t.Errorf("expected bearer api key header")
			}
			if r.URL.Query().Get("limit") != "2" {
				t.Errorf("expected limit=2, got %s", r.URL.Query().Get("limit"))
			}
			if r.URL.Query().Get("cursor") != "abc" {
				t.Errorf("expected cursor=abc, got %s", r.URL.Query().Get("cursor"))
			}

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"data": [
					{"id": "s1", "email": "A@x.com", "status": "active", "fields": {"firstname": "A", "zip": 2000, "city": null}},
					{"id": "s2", "email": "b@x.com", "status": "unsubscribed", "fields": {}}
				],
				"meta": {"next_cursor": "def", "per_page": 2}
			}`))
		})

		page, err := client.ListSubscribers(context.Background(), "abc")
		if err != nil {
			t.Fatalf("ListSubscribers failed: %v", err)
		}
		if page.NextCursor != "def" {
			t.Errorf("expected next cursor def, got %q", page.NextCursor)
		}
		if len(page.Records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(page.Records))
		}

		s1 := page.Records[0]
		if s1.ID != "s1" || s1.Email != "A@x.com" || s1.Status != "active" {
			t.Errorf("unexpected record: %+v", s1)
		}
		if v := s1.Fields["zip"]; v == nil || *v != "2000" {
			t.Errorf("expected numeric field rendered as 2000, got %v", v)
		}
		if v, ok := s1.Fields["city"]; !ok || v != nil {
			t.Errorf("expected null city to be kept as nil")
		}
	})

	t.Run("ListSubscribers last page", func(t *testing.T) {
		client := newTestMailerLite(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Has("cursor") {
				t.Error("first page must not send a cursor")
			}
			w.Write([]byte(`{"data": [], "meta": {"next_cursor": null}}`))
		})

		page, err := client.ListSubscribers(context.Background(), "")
		if err != nil {
			t.Fatalf("ListSubscribers failed: %v", err)
		}
		if page.NextCursor != "" || len(page.Records) != 0 {
			t.Errorf("unexpected page: %+v", page)
		}
	})

	t.Run("ListSubscribers errors", func(t *testing.T) {
		tc := []struct {
			name    string
			status  int
			body    string
			wantErr error
			wantMsg string
		}{
			{name: "429 status", status: http.StatusTooManyRequests, body: `{"message":"Too Many Attempts."}`, wantErr: shared.ErrRateLimited, wantMsg: "Too Many Attempts."},
			{name: "401 status", status: http.StatusUnauthorized, body: `{"message":"Unauthenticated."}`, wantErr: shared.ErrUnauthorized, wantMsg: "Unauthenticated."},
			{name: "error envelope 429", status: http.StatusOK, body: `{"error":{"code":429,"message":"slow down"}}`, wantErr: shared.ErrRateLimited, wantMsg: "slow down"},
			{name: "error envelope 401", status: http.StatusOK, body: `{"error":{"code":401,"message":"bad key"}}`, wantErr: shared.ErrUnauthorized, wantMsg: "bad key"},
			{name: "other status", status: http.StatusInternalServerError, body: `{"error":{"code":500,"message":"boom"}}`, wantErr: shared.ErrAPIRequest, wantMsg: "boom"},
			{name: "malformed body", status: http.StatusOK, body: `{"data": [`, wantErr: shared.ErrAPIRequest},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				client := newTestMailerLite(t, func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					w.Write([]byte(tt.body))
				})

				_, err := client.ListSubscribers(context.Background(), "")
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				var apiErr *APIError
				if tt.wantMsg != "" && (!errors.As(err, &apiErr) || apiErr.Message != tt.wantMsg) {
					t.Errorf("expected message %q, got %v", tt.wantMsg, err)
				}
			})
		}
	})

	t.Run("CreateSubscriber", func(t *testing.T) {
		client := newTestMailerLite(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != mailerLiteSubscribersPath {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected JSON content type")
			}

			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body["email"] != "new@x.com" {
				t.Errorf("expected email new@x.com, got %v", body["email"])
			}
			fields, _ := body["fields"].(map[string]any)
			if fields["firstname"] != "N" {
				t.Errorf("expected firstname N, got %v", fields["firstname"])
			}
			if v, ok := fields["lastname"]; !ok || v != nil {
				t.Errorf("expected explicit null lastname, got %v (present=%v)", v, ok)
			}

			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"id":"s9","email":"new@x.com","fields":{"firstname":"N"}}}`))
		})

		record, err := client.CreateSubscriber(context.Background(), "new@x.com", models.Payload{
			"firstname": models.StringPtr("N"),
			"lastname":  nil,
		})
		if err != nil {
			t.Fatalf("CreateSubscriber failed: %v", err)
		}
		if record.ID != "s9" {
			t.Errorf("expected id s9, got %s", record.ID)
		}
	})

	t.Run("UpdateSubscriber", func(t *testing.T) {
		client := newTestMailerLite(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut || r.URL.Path != mailerLiteSubscribersPath+"/d1" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if _, ok := body["email"]; ok {
				t.Error("update must not send email")
			}
			w.Write([]byte(`{"data":{"id":"d1","email":"a@x.com","fields":{"firstname":"A2"}}}`))
		})

		record, err := client.UpdateSubscriber(context.Background(), "d1", models.Payload{"firstname": models.StringPtr("A2")})
		if err != nil {
			t.Fatalf("UpdateSubscriber failed: %v", err)
		}
		if v := record.Fields["firstname"]; v == nil || *v != "A2" {
			t.Errorf("unexpected record: %+v", record)
		}
	})

	t.Run("UpdateSubscriber rejected", func(t *testing.T) {
		client := newTestMailerLite(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message":"The given data was invalid.","errors":{"fields.zip":["must be a number"]}}`))
		})

		_, err := client.UpdateSubscriber(context.Background(), "d1", models.Payload{})
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 APIError, got %v", err)
		}
		if apiErr.Message != "The given data was invalid." {
			t.Errorf("unexpected message %q", apiErr.Message)
		}
	})
}
