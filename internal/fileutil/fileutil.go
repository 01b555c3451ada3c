package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteResult describes a file written by WriteAtomic.
type WriteResult struct {
	Size   int64
	SHA256 string
}

// WriteAtomic streams r into dst through a temporary sibling file that is
// renamed into place once fully written. Parent directories are created.
func WriteAtomic(dst string, r io.Reader) (WriteResult, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return WriteResult{}, fmt.Errorf("create parent: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".partial-*")
	if err != nil {
		return WriteResult{}, fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		return WriteResult{}, err
	}
	if err := tmp.Close(); err != nil {
		return WriteResult{}, err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return WriteResult{}, err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return WriteResult{}, fmt.Errorf("rename into place: %w", err)
	}
	return WriteResult{Size: written, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// CopyFileVerified copies src to dst with SHA256 + size integrity verification.
// Removes dst on mismatch.
func CopyFileVerified(src, dst string) (WriteResult, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return WriteResult{}, fmt.Errorf("stat source: %w", err)
	}
	if srcInfo.IsDir() {
		return WriteResult{}, fmt.Errorf("copy %s: is a directory", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return WriteResult{}, err
	}
	defer in.Close()

	srcHasher := sha256.New()
	result, err := WriteAtomic(dst, io.TeeReader(in, srcHasher))
	if err != nil {
		return WriteResult{}, err
	}
	if result.Size != srcInfo.Size() {
		_ = os.Remove(dst)
		return WriteResult{}, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), result.Size)
	}
	if hex.EncodeToString(srcHasher.Sum(nil)) != result.SHA256 {
		_ = os.Remove(dst)
		return WriteResult{}, fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return result, nil
}
