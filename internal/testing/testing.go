// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/hubsync/internal/models"
	"github.com/desertthunder/hubsync/internal/services"
)

// ContactPages is a test double for the HubSpot contact lister.
//
// Pages are keyed by the after cursor that requests them ("" for the first page).
// Errs fails the request for a cursor instead.
type ContactPages struct {
	Pages map[string]*services.ContactPage
	Errs  map[string]error

	mu         sync.Mutex
	Properties [][]string // properties requested on each call
	Cursors    []string   // after cursor of each call
}

func (c *ContactPages) ListContacts(ctx context.Context, properties []string, after string) (*services.ContactPage, error) {
	c.mu.Lock()
	c.Properties = append(c.Properties, append([]string(nil), properties...))
	c.Cursors = append(c.Cursors, after)
	c.mu.Unlock()

	if err, ok := c.Errs[after]; ok {
		return nil, err
	}
	page, ok := c.Pages[after]
	if !ok {
		return nil, fmt.Errorf("no contact page for cursor %q", after)
	}
	return page, nil
}

// SubscriberResponse is one scripted reply of [ScriptedSubscribers].
type SubscriberResponse struct {
	Page *services.SubscriberPage
	Err  error
}

// ScriptedSubscribers is a test double for the MailerLite subscriber lister that replies with
// Responses in order, whatever the cursor.
type ScriptedSubscribers struct {
	Responses []SubscriberResponse

	mu      sync.Mutex
	Cursors []string // cursor of each call
}

func (s *ScriptedSubscribers) ListSubscribers(ctx context.Context, cursor string) (*services.SubscriberPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.Cursors)
	s.Cursors = append(s.Cursors, cursor)
	if n >= len(s.Responses) {
		return nil, fmt.Errorf("unexpected subscriber request %d (cursor %q)", n+1, cursor)
	}
	r := s.Responses[n]
	return r.Page, r.Err
}

// Write is one call received by [MockWriter].
type Write struct {
	Action models.Action
	ID     string
	Email  string
	Fields models.Payload
}

// MockWriter is a test double for the MailerLite writer. Writes for a key (email on create,
// id on update) listed in Fail are rejected with that error.
type MockWriter struct {
	Fail map[string]error

	mu     sync.Mutex
	Writes []Write
	nextID int
}

func (m *MockWriter) CreateSubscriber(ctx context.Context, email string, fields models.Payload) (*models.DestinationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Writes = append(m.Writes, Write{Action: models.ActionCreate, Email: email, Fields: fields})
	if err, ok := m.Fail[email]; ok {
		return nil, err
	}
	m.nextID++
	return &models.DestinationRecord{ID: fmt.Sprintf("new-%d", m.nextID), Email: email, Fields: fields}, nil
}

func (m *MockWriter) UpdateSubscriber(ctx context.Context, id string, fields models.Payload) (*models.DestinationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Writes = append(m.Writes, Write{Action: models.ActionUpdate, ID: id, Fields: fields})
	if err, ok := m.Fail[id]; ok {
		return nil, err
	}
	return &models.DestinationRecord{ID: id, Fields: fields}, nil
}

// Count returns the number of writes with the given action.
func (m *MockWriter) Count(action models.Action) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, w := range m.Writes {
		if w.Action == action {
			n++
		}
	}
	return n
}

// Source builds a source record from alternating property name/value pairs.
func Source(id string, kv ...string) models.SourceRecord {
	props := make(map[string]*string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		props[kv[i]] = models.StringPtr(kv[i+1])
	}
	return models.SourceRecord{ID: id, Properties: props}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
