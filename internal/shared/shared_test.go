package shared

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNormalizeEmail(t *testing.T) {
	tc := []struct {
		name  string
		email string
		want  string
	}{
		{name: "already normalized", email: "a@x.com", want: "a@x.com"},
		{name: "mixed case", email: "Alice@Example.COM", want: "alice@example.com"},
		{name: "surrounding whitespace", email: "  bob@x.com\t", want: "bob@x.com"},
		{name: "empty", email: "", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeEmail(tt.email); got != tt.want {
				t.Errorf("NormalizeEmail() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetLogLevel(t *testing.T) {
	t.Run("applies known level", func(t *testing.T) {
		l := NewLogger(&bytes.Buffer{})
		if err := SetLogLevel(l, "debug"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if l.GetLevel() != log.DebugLevel {
			t.Errorf("expected debug level, got %v", l.GetLevel())
		}
	})

	t.Run("empty level is a no-op", func(t *testing.T) {
		l := NewLogger(&bytes.Buffer{})
		before := l.GetLevel()
		if err := SetLogLevel(l, ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if l.GetLevel() != before {
			t.Errorf("level changed from %v to %v", before, l.GetLevel())
		}
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		l := NewLogger(&bytes.Buffer{})
		if err := SetLogLevel(l, "loud"); err == nil {
			t.Error("expected error for unknown level")
		}
	})
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", a, b)
	}
}
