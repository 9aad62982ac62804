// Package scanner builds a full index snapshot by walking a source tree in
// parallel and running the extractor over every text file in scope.
package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/ferrix/tagscan/internal/cache"
	"github.com/ferrix/tagscan/internal/extract"
	"github.com/ferrix/tagscan/internal/storage"
)

// Result is one full scan of the tree: the extracted items plus the number of
// files examined. The item order is not defined; callers needing determinism
// call Sort.
type Result struct {
	Items        []extract.Item
	FilesScanned int
}

// Sort orders items by file, then line, then tag.
func (r *Result) Sort() {
	sort.Slice(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Tag < b.Tag
	})
}

// Walker runs full scans over one tree. The cache is optional; when present,
// unchanged files are answered from it instead of being re-parsed.
type Walker struct {
	store   *storage.FS
	policy  *Policy
	pattern *extract.Pattern
	cache   *cache.Cache
	logger  *slog.Logger
}

// New creates a Walker. c may be nil to scan without a cache.
func New(store *storage.FS, pol *Policy, pat *extract.Pattern, c *cache.Cache, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{store: store, policy: pol, pattern: pat, cache: c, logger: logger}
}

// Scan walks the tree once and returns a Result. Directory exclusion happens
// during traversal; per-file work fans out across a bounded worker pool.
// Unreadable and binary files are skipped without error. Failing to enumerate
// the root at all is the only fatal condition.
func (w *Walker) Scan(ctx context.Context) (*Result, error) {
	paths, err := w.collectPaths()
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		items   []extract.Item
		scanned atomic.Int64
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, rel := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			found, ok := w.scanFile(rel)
			if !ok {
				return nil
			}
			scanned.Add(1)
			if len(found) > 0 {
				mu.Lock()
				items = append(items, found...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if w.cache != nil {
		existing := make(map[string]struct{}, len(paths))
		for _, p := range paths {
			existing[p] = struct{}{}
		}
		w.cache.Prune(existing)
	}

	res := &Result{Items: items, FilesScanned: int(scanned.Load())}
	w.logger.Debug("scan: complete",
		slog.Int("files", res.FilesScanned),
		slog.Int("items", len(res.Items)))
	return res, nil
}

// collectPaths enumerates the candidate files: exclusion policy applied to
// directories and paths, version-control ignore rules honored when a
// .gitignore exists at the root.
func (w *Walker) collectPaths() ([]string, error) {
	root := w.store.Root()

	gi, giErr := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if giErr != nil {
		gi = nil // no ignore file, or unreadable: scan everything in scope
	}

	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == root {
				return walkErr
			}
			return nil // unreadable subtree: skip silently
		}
		rel, relErr := w.store.Rel(p)
		if relErr != nil || rel == "." {
			return nil
		}
		if d.IsDir() {
			if w.policy.ExcludesDir(d.Name()) || (gi != nil && gi.MatchesPath(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if w.policy.Excludes(rel) || (gi != nil && gi.MatchesPath(rel)) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// scanFile examines one file and returns its items. ok is false when the file
// was skipped (vanished, unreadable, or binary) and must not count as scanned.
func (w *Walker) scanFile(rel string) (found []extract.Item, ok bool) {
	info, err := w.store.Stat(rel)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}

	if w.cache != nil {
		if items, hit := w.cache.Check(rel, info.ModTime()); hit {
			return items, true
		}
	}

	data, err := w.store.Read(rel)
	if err != nil {
		w.logger.Debug("scan: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return nil, false
	}
	if storage.IsBinary(data) {
		return nil, false
	}

	if w.cache != nil {
		if items, hit := w.cache.CheckContent(rel, data); hit {
			w.cache.Insert(rel, data, items, info.ModTime())
			return items, true
		}
	}

	items := extract.Extract(string(data), rel, w.pattern)
	if w.cache != nil {
		w.cache.Insert(rel, data, items, info.ModTime())
	}
	return items, true
}
