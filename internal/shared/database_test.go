package shared

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenDatabase(t *testing.T) {
	t.Run("disabled without path", func(t *testing.T) {
		if _, err := OpenDatabase(DatabaseConfig{}); !errors.Is(err, ErrDatabaseDisabled) {
			t.Errorf("expected ErrDatabaseDisabled, got %v", err)
		}
	})

	t.Run("opens and migrates file database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "runs.db")
		db, err := OpenDatabase(DatabaseConfig{Path: path})
		if err != nil {
			t.Fatalf("OpenDatabase failed: %v", err)
		}
		defer db.Close()

		if stats := db.Stats(); stats.MaxOpenConnections != 1 {
			t.Errorf("expected pool default of 1, got %d", stats.MaxOpenConnections)
		}

		var value int
		if err := db.QueryRow("SELECT value FROM sync_runs_sequence WHERE id = 1").Scan(&value); err != nil {
			t.Fatalf("sequence row missing: %v", err)
		}
		if value != 0 {
			t.Errorf("expected fresh sequence 0, got %d", value)
		}
	})
}
