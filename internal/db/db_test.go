package db

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "contrimap.db")
	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	var name string
	err = database.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name='repo_analyses'`,
	).Scan(&name)
	if err != nil {
		t.Fatalf("schema not created: %v", err)
	}
}

func TestOpenMemory(t *testing.T) {
	database, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer database.Close()

	if _, err := database.Exec(
		`INSERT INTO repo_analyses (id, repo_url, owner, name, full_name) VALUES ('x', 'u', 'o', 'n', 'o/n')`,
	); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var status string
	if err := database.QueryRow(
		`SELECT analysis_status FROM repo_analyses WHERE id = 'x'`,
	).Scan(&status); err != nil {
		t.Fatalf("select: %v", err)
	}
	if status != "pending" {
		t.Errorf("default status = %q, want pending", status)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	database, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer database.Close()

	if err := database.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestStatusCheckConstraint(t *testing.T) {
	database, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer database.Close()

	_, err = database.Exec(
		`INSERT INTO repo_analyses (id, repo_url, owner, name, full_name, analysis_status)
		 VALUES ('x', 'u', 'o', 'n', 'o/n', 'exploded')`,
	)
	if err == nil {
		t.Error("expected CHECK constraint violation for unknown status")
	}
}
