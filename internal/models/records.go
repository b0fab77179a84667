package models

import "strings"

// EmailProperty is the source property used as the join key.
const EmailProperty = "email"

// SourceRecord is a contact fetched from the CRM. A nil property value is an explicit null.
type SourceRecord struct {
	ID         string             `json:"id"`
	Properties map[string]*string `json:"properties"`
}

// Property returns the named property and whether it is present and non-null.
func (r SourceRecord) Property(name string) (string, bool) {
	v, ok := r.Properties[name]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Email returns the trimmed join key, or "" when absent or null.
func (r SourceRecord) Email() string {
	email, _ := r.Property(EmailProperty)
	return strings.TrimSpace(email)
}

// DestinationRecord is a subscriber fetched from the email platform.
type DestinationRecord struct {
	ID     string             `json:"id"`
	Email  string             `json:"email"`
	Status string             `json:"status,omitempty"`
	Fields map[string]*string `json:"fields"`
}

// Payload is the flat field map sent on create and update, keyed by destination field name.
type Payload map[string]*string

// StringPtr returns a pointer to s, for building records and payloads.
func StringPtr(s string) *string {
	return &s
}
