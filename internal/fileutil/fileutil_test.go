package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"thumbsmith/internal/fileutil"
)

func TestWriteFileDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "artifact.webp")
	payload := []byte("payload")

	if err := fileutil.WriteFileDurable(path, payload, 0o644); err != nil {
		t.Fatalf("WriteFileDurable failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("unexpected content: %q", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the final file, found %d entries", len(entries))
	}
}

func TestWriteFileDurableOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.webp")
	if err := fileutil.WriteFileDurable(path, []byte("one"), 0o644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := fileutil.WriteFileDurable(path, []byte("two"), 0o644); err != nil {
		t.Fatalf("second write: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "two" {
		t.Fatalf("expected overwrite, got %q", got)
	}
}

func TestExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if fileutil.Exists(path) {
		t.Fatal("missing file reported as existing")
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !fileutil.Exists(path) {
		t.Fatal("existing file reported as missing")
	}
}
