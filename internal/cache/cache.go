// Package cache persists per-file extraction results between scans so an
// unchanged tree is never re-parsed.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/ferrix/tagscan/internal/checksum"
	"github.com/ferrix/tagscan/internal/extract"
)

// Entry records one file's extraction at a known content state.
type Entry struct {
	Hash      string // sha256 of file bytes at extraction time
	Items     []extract.Item
	MtimeSec  int64
	MtimeNsec int64
}

// Cache maps relative file paths to prior extraction results. A stored
// configuration hash binds the whole cache to the tag vocabulary and
// exclusion rules it was built under. Methods are safe for concurrent use by
// scan workers.
type Cache struct {
	mu         sync.Mutex
	configHash string
	entries    map[string]Entry
}

// New returns an empty cache bound to the given configuration hash.
func New(configHash string) *Cache {
	return &Cache{
		configHash: configHash,
		entries:    make(map[string]Entry),
	}
}

// HashConfig digests the scan-affecting configuration. Each list is written
// with explicit labels and element separators, so element order matters and
// values cannot migrate between lists without changing the hash.
func HashConfig(tags, excludeDirs, excludePatterns []string) string {
	h := sha256.New()
	writeList := func(label string, list []string) {
		_, _ = io.WriteString(h, label)
		_, _ = io.WriteString(h, "\x1d")
		for _, v := range list {
			_, _ = io.WriteString(h, v)
			_, _ = io.WriteString(h, "\x1e")
		}
	}
	writeList("tags", tags)
	writeList("exclude_dirs", excludeDirs)
	writeList("exclude_patterns", excludePatterns)
	return hex.EncodeToString(h.Sum(nil))
}

// ConfigHash returns the configuration hash this cache is bound to.
func (c *Cache) ConfigHash() string {
	return c.configHash
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Check is the tier-1 lookup: it returns the stored items when the entry's
// recorded modification time (seconds and sub-second part) equals mtime,
// without any file read.
func (c *Cache) Check(path string, mtime time.Time) ([]extract.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok {
		return nil, false
	}
	if e.MtimeSec != mtime.Unix() || e.MtimeNsec != int64(mtime.Nanosecond()) {
		return nil, false
	}
	return e.Items, true
}

// CheckContent is the tier-2 lookup: it returns the stored items when the
// entry's content hash matches the supplied bytes. This catches files whose
// mtime changed (a fresh checkout, say) while the bytes did not.
func (c *Cache) CheckContent(path string, content []byte) ([]extract.Item, bool) {
	sum := checksum.Sum(content)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok || e.Hash != sum {
		return nil, false
	}
	return e.Items, true
}

// Insert replaces or creates the entry for path.
func (c *Cache) Insert(path string, content []byte, items []extract.Item, mtime time.Time) {
	e := Entry{
		Hash:      checksum.Sum(content),
		Items:     items,
		MtimeSec:  mtime.Unix(),
		MtimeNsec: int64(mtime.Nanosecond()),
	}
	c.mu.Lock()
	c.entries[path] = e
	c.mu.Unlock()
}

// Prune deletes every entry whose path is not in existing, so deleted files
// do not accumulate stale entries.
func (c *Cache) Prune(existing map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p := range c.entries {
		if _, ok := existing[p]; !ok {
			delete(c.entries, p)
		}
	}
}
