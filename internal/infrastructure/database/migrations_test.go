package database

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"
)

var testMigrations = fstest.MapFS{
	"sql/20260101_000000_widgets.up.sql":   {Data: []byte("CREATE TABLE widgets (id TEXT PRIMARY KEY);")},
	"sql/20260101_000000_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
	"sql/20260102_000000_gadgets.up.sql":   {Data: []byte("CREATE TABLE gadgets (id TEXT PRIMARY KEY);")},
	"sql/README.md":                        {Data: []byte("not a migration")},
}

func useMigrations(t *testing.T, fsys fs.FS, dir string) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	MigrationsFS, MigrationsDir = fsys, dir
	t.Cleanup(func() { MigrationsFS, MigrationsDir = origFS, origDir })
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations, "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"widgets", "gadgets"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("applied = %d, want 2", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260101_000000_widgets.up.sql":   testMigrations["sql/20260101_000000_widgets.up.sql"],
		"20260101_000000_widgets.down.sql": testMigrations["sql/20260101_000000_widgets.down.sql"],
	}, ".")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "widgets") {
		t.Error("table widgets should have been dropped")
	}

	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %d after rollback, want 0", len(applied))
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrateDown_NoDownSQL(t *testing.T) {
	useMigrations(t, testMigrations, "sql")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// gadgets is the latest and ships no down file.
	if err := db.MigrateDown(ctx); err == nil {
		t.Error("MigrateDown() expected error for missing down SQL")
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	useMigrations(t, nil, ".")
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() with no migrations error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20261019_090000_config_entries.up.sql", "20261019_090000", true, true},
		{"20261019_090000_config_entries.down.sql", "20261019_090000", false, true},
		{"20261019_090000_config_entries.sql", "", false, false},
		{"notes.txt", "", false, false},
		{"nounderscore.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.name)
			if ok != tt.wantOK || version != tt.wantVersion || isUp != tt.wantUp {
				t.Errorf("parseMigrationFilename(%q) = (%q, %v, %v), want (%q, %v, %v)",
					tt.name, version, isUp, ok, tt.wantVersion, tt.wantUp, tt.wantOK)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	if got := extractMigrationName("20261019_090000_flow_history.up.sql"); got != "flow_history" {
		t.Errorf("extractMigrationName() = %q, want %q", got, "flow_history")
	}
	if got := extractMigrationName("short.sql"); got != "short" {
		t.Errorf("extractMigrationName() = %q, want %q", got, "short")
	}
}
