// Package testutil provides shared filesystem fixtures for virtkit
// tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates a file named name in a fresh temp directory and
// returns its path. The content is a small placeholder payload.
func WriteFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("virtkit test fixture\n"), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteSparseFile creates a sparse file of sizeMB megabytes, the way
// disk images are usually laid out, and returns its path.
func WriteSparseFile(t *testing.T, name string, sizeMB int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := f.Truncate(sizeMB * 1024 * 1024); err != nil {
		t.Fatalf("truncate %s: %v", path, err)
	}
	return path
}

// WriteReadOnlyFile creates a file that the owner cannot write to and
// returns its path. Tests that rely on the permission bit should skip
// when running as root, which bypasses it.
func WriteReadOnlyFile(t *testing.T, name string) string {
	t.Helper()
	path := WriteFile(t, name)
	if err := os.Chmod(path, 0400); err != nil {
		t.Fatalf("chmod %s: %v", path, err)
	}
	return path
}
