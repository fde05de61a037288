package bigquery

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, 1, "init_schema_migrations"},
		{"0002_create_sales.sql", true, 2, "create_sales"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := ParseMigrationFilename(tt.filename)
			if ok != tt.valid {
				t.Fatalf("ParseMigrationFilename(%q) ok = %v, want %v", tt.filename, ok, tt.valid)
			}
			if version != tt.version || name != tt.name {
				t.Errorf("got (%d, %q), want (%d, %q)", version, name, tt.version, tt.name)
			}
		})
	}
}

func TestChecksumConsistency(t *testing.T) {
	a := Checksum([]byte("CREATE TABLE test (id INT64);"))
	b := Checksum([]byte("CREATE TABLE test (id INT64);"))
	c := Checksum([]byte("CREATE TABLE different (id INT64);"))
	if a != b {
		t.Error("same content should produce the same checksum")
	}
	if a == c {
		t.Error("different content should produce different checksums")
	}
}

func TestReadMigrations_Embedded(t *testing.T) {
	migrations, err := ReadMigrations("proj", "shop")
	if err != nil {
		t.Fatalf("ReadMigrations: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected at least 2 migrations, got %d", len(migrations))
	}
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration %d has version %d", i, m.Version)
		}
		if strings.Contains(m.SQL, "{{") {
			t.Errorf("%s still has placeholders", m.Filename)
		}
	}
	if !strings.Contains(migrations[1].SQL, "`proj.shop.sales`") {
		t.Errorf("sales migration not rendered for dataset: %s", migrations[1].SQL)
	}
}

func TestReadMigrations_SortsAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_b.sql":   {Data: []byte("B {{DATASET_ID}}")},
		"m/0001_a.sql":   {Data: []byte("A {{PROJECT_ID}}")},
		"m/README.md":    {Data: []byte("docs")},
		"m/0003_c.sql.x": {Data: []byte("ignored")},
	}
	got, err := readMigrations(fsys, "m", "p", "d")
	if err != nil {
		t.Fatalf("readMigrations: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Fatalf("unexpected migrations: %+v", got)
	}
	if got[0].SQL != "A p" || got[1].SQL != "B d" {
		t.Errorf("placeholders not replaced: %q %q", got[0].SQL, got[1].SQL)
	}
}

func TestPending(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	got := Pending(all, []AppliedMigration{{Version: 1}, {Version: 3}})
	if len(got) != 1 || got[0].Version != 2 {
		t.Errorf("Pending = %+v, want only version 2", got)
	}
}
