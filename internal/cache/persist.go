package cache

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ferrix/tagscan/internal/checksum"
)

// diskCache is the gob-encoded on-disk form.
type diskCache struct {
	ConfigHash string
	Entries    map[string]Entry
}

// Path returns the canonical cache file location for a repository root: a
// short digest of the absolute root path beneath the per-user cache dir, so
// the location is a pure function of the root.
func Path(root string) (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("cache: user cache dir: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("cache: resolve root: %w", err)
	}
	return filepath.Join(base, "tagscan", checksum.Short(abs, 16)+".cache"), nil
}

// Load reads the cache for root. Every failure mode — missing file,
// undecodable file, configuration hash mismatch — yields a fresh empty cache
// rather than an error; a scan must never fail because of a cache problem.
func Load(root, configHash string) *Cache {
	c := New(configHash)

	p, err := Path(root)
	if err != nil {
		return c
	}
	f, err := os.Open(p)
	if err != nil {
		return c
	}
	defer f.Close()

	var disk diskCache
	if err := gob.NewDecoder(f).Decode(&disk); err != nil {
		return c
	}
	if disk.ConfigHash != configHash || disk.Entries == nil {
		return c
	}
	c.entries = disk.Entries
	return c
}

// Save writes the cache for root atomically: temp file in the destination
// directory, fsync, then rename. An interrupted save never clobbers the
// previous cache file.
func (c *Cache) Save(root string) error {
	p, err := Path(root)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tagscan-tmp-*")
	if err != nil {
		return fmt.Errorf("cache: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	c.mu.Lock()
	disk := diskCache{ConfigHash: c.configHash, Entries: c.entries}
	err = gob.NewEncoder(tmp).Encode(disk)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("cache: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close temp: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("cache: rename: %w", err)
	}
	success = true
	return nil
}
