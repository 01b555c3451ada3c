package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "nested", "out.bin")

	result, err := WriteAtomic(dst, strings.NewReader("hello world"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Size != 11 || len(result.SHA256) != 64 {
		t.Fatalf("unexpected result %+v", result)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("content mismatch: got %q", got)
	}

	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := CopyFileVerified(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if result.Size != int64(len(content)) {
		t.Fatalf("unexpected size %d", result.Size)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerified_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := CopyFileVerified(filepath.Join(dir, "nonexistent"), filepath.Join(dir, "dst.bin")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyFileVerified_Directory(t *testing.T) {
	dir := t.TempDir()
	if _, err := CopyFileVerified(dir, filepath.Join(dir, "dst.bin")); err == nil {
		t.Fatal("expected error for directory source")
	}
}
