// Package testutil provides shared test helpers for setting up scan trees.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ferrix/tagscan/internal/extract"
	"github.com/ferrix/tagscan/internal/scanner"
	"github.com/ferrix/tagscan/internal/storage"
)

// WriteTree writes files (relative path -> content) beneath dir, creating
// parent directories as needed.
func WriteTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// TestTree creates a temp scan root populated with files and returns it with
// a storage provider.
func TestTree(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	WriteTree(t, dir, files)
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Pattern compiles the default tag vocabulary.
func Pattern(t *testing.T) *extract.Pattern {
	t.Helper()
	pat, err := extract.NewPattern(extract.DefaultTags)
	if err != nil {
		t.Fatal(err)
	}
	return pat
}

// Policy compiles an exclusion policy, failing the test on bad patterns.
func Policy(t *testing.T, dirs, patterns []string) *scanner.Policy {
	t.Helper()
	pol, err := scanner.NewPolicy(dirs, patterns)
	if err != nil {
		t.Fatal(err)
	}
	return pol
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
