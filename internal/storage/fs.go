// Package storage provides root-anchored read access to the scanned tree.
package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// binarySniffLen is how many leading bytes are inspected for NUL when
// deciding whether a file is text.
const binarySniffLen = 8000

// FS reads files beneath a single root directory. Paths handed to it are
// relative, slash-normalized, and rejected if they escape the root.
type FS struct {
	root string // absolute path to the scan root
}

// NewFS creates an FS rooted at the given directory, which must exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute scan root.
func (f *FS) Root() string {
	return f.root
}

// Rel converts an absolute path inside the root to the canonical relative,
// slash-normalized form used everywhere else in the index.
func (f *FS) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil {
		return "", fmt.Errorf("storage: relativize %s: %w", abs, err)
	}
	return filepath.ToSlash(rel), nil
}

// safePath resolves a relative path against the root and rejects any result
// that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes scan root: %s", rel)
	}
	return abs, nil
}

// Read returns the raw bytes of a file under the root.
func (f *FS) Read(rel string) ([]byte, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", rel, err)
	}
	return data, nil
}

// Stat returns file info for a path under the root.
func (f *FS) Stat(rel string) (os.FileInfo, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat %s: %w", rel, err)
	}
	return info, nil
}

// IsBinary reports whether data looks like non-text content. The check is the
// usual one: a NUL byte within the leading window.
func IsBinary(data []byte) bool {
	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	return bytes.IndexByte(sniff, 0) >= 0
}
