package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Star Index!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(filepath.Base(path), "_add_star_index.sql") {
		t.Fatalf("unexpected filename %q", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("ValidateDir on generated migration: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestValidateDirRequiresDownSection(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_only_up.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected missing down section error")
	}
}

func TestValidateDirRejectsDownBeforeUp(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Down\nDROP TABLE x;\n-- +goose Up\nCREATE TABLE x ();\n"
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_swapped.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected ordering error")
	}
}

func TestCreateSQLMigrationBumpsPastNewestVersion(t *testing.T) {
	dir := t.TempDir()
	future := "29991231235959_from_the_future.sql"
	if err := os.WriteFile(filepath.Join(dir, future), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	path, err := CreateSQLMigration(dir, "next")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if filepath.Base(path) != "29991231235960_next.sql" {
		t.Fatalf("expected bumped version, got %q", filepath.Base(path))
	}
}

func TestParseVersion(t *testing.T) {
	if _, err := ParseVersion("2026"); err == nil {
		t.Fatal("expected length error")
	}
	v, err := ParseVersion("20260301090000")
	if err != nil || v != 20260301090000 {
		t.Fatalf("ParseVersion = %d, %v", v, err)
	}
}

func TestEmbeddedMatchesDisk(t *testing.T) {
	disk, err := scan(os.DirFS("migrations"))
	if err != nil {
		t.Fatalf("scan disk: %v", err)
	}
	embedded, err := scan(Embedded())
	if err != nil {
		t.Fatalf("scan embedded: %v", err)
	}
	if len(disk) == 0 || len(disk) != len(embedded) {
		t.Fatalf("disk has %d migrations, embedded has %d", len(disk), len(embedded))
	}
	for i := range disk {
		if disk[i] != embedded[i] {
			t.Fatalf("mismatch at %d: %+v vs %+v", i, disk[i], embedded[i])
		}
	}
}
