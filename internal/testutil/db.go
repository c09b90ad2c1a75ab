// Package testutil provides shared helpers for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/codr1/touchline/internal/db"
)

// NewTestDB opens a migrated SQLite database in a per-test temp directory
// and closes it when the test finishes.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(path)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := database.Close(); err != nil {
			t.Errorf("close test database: %v", err)
		}
	})
	return database
}
