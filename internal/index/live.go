// Package index maintains the in-memory mirror of a scan and keeps it
// synchronized with filesystem changes during a watch session.
package index

import (
	"github.com/ferrix/tagscan/internal/extract"
	"github.com/ferrix/tagscan/internal/scanner"
	"github.com/ferrix/tagscan/internal/storage"
)

// Live mirrors the most recent scan, keyed by relative path. A single watch
// loop owns it exclusively; methods are not safe for concurrent use.
type Live struct {
	store   *storage.FS
	pattern *extract.Pattern
	policy  *scanner.Policy
	files   map[string][]extract.Item
}

// Update is the diff produced by refreshing a single file.
type Update struct {
	Added   []extract.Item
	Removed []extract.Item
}

// NewLive seeds a live index from a full scan by grouping items per file.
func NewLive(store *storage.FS, res *scanner.Result, pat *extract.Pattern, pol *scanner.Policy) *Live {
	files := make(map[string][]extract.Item)
	for _, it := range res.Items {
		files[it.File] = append(files[it.File], it)
	}
	return &Live{store: store, pattern: pat, policy: pol, files: files}
}

// UpdateFile re-extracts the current contents at rel and diffs them against
// the stored items using match-key identity, so items that only shifted lines
// are reported as neither added nor removed. The stored list is replaced (or
// dropped when empty).
func (l *Live) UpdateFile(rel string) (Update, error) {
	data, err := l.store.Read(rel)
	if err != nil {
		return Update{}, err
	}
	var items []extract.Item
	if !storage.IsBinary(data) {
		items = extract.Extract(string(data), rel, l.pattern)
	}

	upd := diffItems(l.files[rel], items)
	if len(items) == 0 {
		delete(l.files, rel)
	} else {
		l.files[rel] = items
	}
	return upd, nil
}

// RemoveFile deletes the path's entry outright and returns its former items.
func (l *Live) RemoveFile(rel string) []extract.Item {
	former := l.files[rel]
	delete(l.files, rel)
	return former
}

// ShouldExclude applies the same exclusion policy the walker used.
func (l *Live) ShouldExclude(rel string) bool {
	return l.policy.Excludes(rel)
}

// TotalCount recomputes the total number of items across all files. Mutation
// frequency is bounded by editing speed, so the full recount stays cheap.
func (l *Live) TotalCount() int {
	n := 0
	for _, items := range l.files {
		n += len(items)
	}
	return n
}

// TagCounts recomputes the per-tag totals across all files.
func (l *Live) TagCounts() map[string]int {
	counts := make(map[string]int)
	for _, items := range l.files {
		for _, it := range items {
			counts[it.Tag]++
		}
	}
	return counts
}

// FileCount returns the number of files currently holding items.
func (l *Live) FileCount() int {
	return len(l.files)
}

// Items returns a copy of every current item, for consumers outside the
// watch loop. The copy keeps the loop the only reader of internal state.
func (l *Live) Items() []extract.Item {
	out := make([]extract.Item, 0, l.TotalCount())
	for _, items := range l.files {
		out = append(out, items...)
	}
	return out
}

// diffItems computes the multiset difference between old and new item lists
// keyed by MatchKey.
func diffItems(old, now []extract.Item) Update {
	oldCount := make(map[string]int, len(old))
	for _, it := range old {
		oldCount[it.MatchKey()]++
	}
	newCount := make(map[string]int, len(now))
	for _, it := range now {
		newCount[it.MatchKey()]++
	}

	var upd Update
	for _, it := range now {
		k := it.MatchKey()
		if oldCount[k] > 0 {
			oldCount[k]--
		} else {
			upd.Added = append(upd.Added, it)
		}
	}
	for _, it := range old {
		k := it.MatchKey()
		if newCount[k] > 0 {
			newCount[k]--
		} else {
			upd.Removed = append(upd.Removed, it)
		}
	}
	return upd
}
