package database

import (
	"context"
	"path/filepath"
	"testing"
)

func testOpen(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestOpen_CreatesFile(t *testing.T) {
	db := testOpen(t)

	if db.Path() == "" {
		t.Error("Path() = empty, want database path")
	}
}

func TestHealthCheck(t *testing.T) {
	db := testOpen(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	db := testOpen(t)

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// Closing a closed database must not panic; sql.DB.Close is idempotent.
	if err := db.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
