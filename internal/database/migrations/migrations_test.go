package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	err := MigrateUp(db)
	if err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// Verify tables were created
	tables := []string{"geocode_cache", "submissions", "list_cache", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Fresh database should need migration
	err := CheckDBMigrationStatus(db)
	if err == nil {
		t.Error("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}

	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	err := CheckDBMigrationStatus(db)
	if err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}

	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}

	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestSchema_GeocodeCacheKeyUnique(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec("INSERT INTO geocode_cache (key, address, cached_at) VALUES ('-12.0212,-76.9877', 'Av. Uno, Lima', datetime('now'))")
	if err != nil {
		t.Fatalf("Failed to insert geocode row: %v", err)
	}

	// Duplicate bucket key must violate the primary key.
	_, err = db.Exec("INSERT INTO geocode_cache (key, address, cached_at) VALUES ('-12.0212,-76.9877', 'Otra', datetime('now'))")
	if err == nil {
		t.Error("Expected primary key violation for duplicate bucket, but insert succeeded")
	}
}

func TestSchema_Submissions(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO submissions (id, codigo, tipo_caso_id, sub_tipo_caso_id, direccion, created_at)
		VALUES ('sub-1', 'PRE-2024-001', 5, 2127, 'Av. Gran Chimú 123', datetime('now'))
	`)
	if err != nil {
		t.Fatalf("Failed to insert submission: %v", err)
	}

	var codigo string
	err = db.QueryRow("SELECT codigo FROM submissions WHERE id = 'sub-1'").Scan(&codigo)
	if err != nil {
		t.Errorf("Failed to retrieve submission: %v", err)
	}
	if codigo != "PRE-2024-001" {
		t.Errorf("Retrieved codigo = %q, want %q", codigo, "PRE-2024-001")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	return db
}
