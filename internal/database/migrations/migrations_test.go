package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// openTestDB opens an in-memory SQLite database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	// Keep every statement on the one connection that holds the schema.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableNames(t *testing.T, db *sql.DB) map[string]bool {
	t.Helper()

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scanning table name: %v", err)
		}
		names[name] = true
	}
	return names
}

func TestMigrateUp(t *testing.T) {
	t.Run("creates the full schema on a fresh database", func(t *testing.T) {
		db := openTestDB(t)

		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}

		tables := tableNames(t, db)
		for _, want := range []string{
			"project", "directory", "file", "citation",
			"favorite", "access_request", "user_activity",
		} {
			if !tables[want] {
				t.Errorf("table %q missing after migration", want)
			}
		}
	})

	t.Run("is a no-op on an up-to-date database", func(t *testing.T) {
		db := openTestDB(t)

		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() repeat error = %v", err)
		}
	})
}

func TestCheckStatus(t *testing.T) {
	t.Run("fails on an unmigrated database", func(t *testing.T) {
		db := openTestDB(t)

		if err := CheckStatus(db); err == nil {
			t.Fatal("CheckStatus() = nil for an empty database")
		}
	})

	t.Run("passes after migration", func(t *testing.T) {
		db := openTestDB(t)

		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}
		if err := CheckStatus(db); err != nil {
			t.Errorf("CheckStatus() error = %v", err)
		}
	})
}
