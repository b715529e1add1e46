package database

import (
	"path/filepath"
	"testing"
)

func TestOpenMemoryRunsMigrations(t *testing.T) {
	db, err := Open(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var versions int
	if err := db.Get(&versions, "SELECT COUNT(*) FROM schema_version"); err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if versions != 2 {
		t.Fatalf("applied %d migrations, want 2", versions)
	}

	var alarms int
	if err := db.Get(&alarms, "SELECT COUNT(*) FROM alarms"); err != nil {
		t.Fatalf("alarms table missing: %v", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "data", "test.db")

	db, err := Open(DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	db.Close()

	db, err = Open(DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db.Close()

	var versions int
	if err := db.Get(&versions, "SELECT COUNT(*) FROM schema_version"); err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if versions != 2 {
		t.Fatalf("applied %d migrations, want 2", versions)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "dsn"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("012_add_column.sql")
	if err != nil || v != 12 {
		t.Fatalf("parseMigrationVersion = %d, %v", v, err)
	}
	if _, err := parseMigrationVersion("nounderscore.sql"); err == nil {
		t.Fatal("expected error")
	}
}
