package testing

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFile writes a file at rel below dir, creating parent directories.
// When mod is non-zero the file's modification time is pinned to it, so
// staleness comparisons in tests are deterministic. Returns the absolute
// path.
func WriteFile(t *testing.T, dir, rel, content string, mod time.Time) string {
	t.Helper()

	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create parent directories for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", rel, err)
	}
	if !mod.IsZero() {
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatalf("Failed to set mtime on %s: %v", rel, err)
		}
	}
	return path
}

// Touch creates an empty file at rel below dir (parents included) and pins
// its modification time. Returns the absolute path.
func Touch(t *testing.T, dir, rel string, mod time.Time) string {
	t.Helper()
	return WriteFile(t, dir, rel, "", mod)
}

// Symlink creates a symbolic link pointing at target. Tests that exercise
// link handling should create targets first, or leave them missing to get a
// dangling link.
func Symlink(t *testing.T, target, link string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		t.Fatalf("Failed to create parent directories for link %s: %v", link, err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("Failed to create symlink %s -> %s: %v", link, target, err)
	}
}

// StubGenerator writes an executable shell script into dir and returns its
// path. Tests use stubs in place of the external fuzzer generator binary.
func StubGenerator(t *testing.T, dir, name, script string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("Failed to write stub generator %s: %v", name, err)
	}
	return path
}
