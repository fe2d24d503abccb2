package sqlite

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// setupTestDB creates a temp-file database with the real schema applied from
// the migrations directory, so tests cannot drift from production DDL.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			t.Fatalf("failed to execute %q: %v", pragma, err)
		}
	}

	// From internal/trend/storage/sqlite, migrations live four levels up.
	schemaPath := filepath.Join("..", "..", "..", "..", "migrations", "000001_init.up.sql")
	schemaSQL, err := os.ReadFile(schemaPath)
	if err != nil {
		t.Fatalf("failed to read migration: %v", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		t.Fatalf("failed to apply migration: %v", err)
	}

	return db
}

// insertTestRun inserts a minimal run row and returns its generated ID.
func insertTestRun(t *testing.T, db *sql.DB) string {
	t.Helper()

	store := NewRunStore(db)
	run := &PipelineRun{
		AOI:           "test-aoi",
		SpectralIndex: "NBR",
		StartYear:     1985,
		EndYear:       2020,
	}
	if err := store.Insert(run); err != nil {
		t.Fatalf("failed to insert run: %v", err)
	}
	return run.RunID
}
