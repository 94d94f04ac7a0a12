package database

import (
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("iofs.New() error: %v", err)
	}
	defer src.Close()

	first, err := src.First()
	if err != nil {
		t.Fatalf("First() error: %v", err)
	}
	if first != 1 {
		t.Errorf("first migration version = %d, want 1", first)
	}

	r, ident, err := src.ReadUp(first)
	if err != nil {
		t.Fatalf("ReadUp(%d) error: %v", first, err)
	}
	defer r.Close()
	if ident != "progress" {
		t.Errorf("identifier = %q, want progress", ident)
	}

	body, err := migrationsFS.ReadFile("migrations/000001_progress.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	for _, table := range []string{"progress_roots", "progress_materials"} {
		if !strings.Contains(string(body), table) {
			t.Errorf("up migration does not create %s", table)
		}
	}

	down, _, err := src.ReadDown(first)
	if err != nil {
		t.Fatalf("ReadDown(%d) error: %v", first, err)
	}
	down.Close()
}
