// Package api exposes the current index over HTTP using chi.
package api

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ferrix/tagscan/internal/extract"
)

// Service holds a read-only mirror of the live index for HTTP consumers.
// The watch loop pushes snapshots into it; handlers only ever read copies,
// so the live index keeps its single-owner concurrency model.
type Service struct {
	mu           sync.RWMutex
	items        []extract.Item
	filesScanned int
	updatedAt    time.Time
}

// SummaryInfo is the aggregate view of the current index.
type SummaryInfo struct {
	FilesScanned int            `json:"files_scanned"`
	Total        int            `json:"total"`
	TagCounts    map[string]int `json:"tag_counts"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewService creates an empty service.
func NewService() *Service {
	return &Service{}
}

// SetSnapshot replaces the mirrored items. Call it from the watch loop (or
// once after the initial scan); items must already be a private copy.
func (s *Service) SetSnapshot(items []extract.Item, filesScanned int) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].File != items[j].File {
			return items[i].File < items[j].File
		}
		return items[i].Line < items[j].Line
	})
	s.mu.Lock()
	s.items = items
	s.filesScanned = filesScanned
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// Items returns the mirrored items, optionally filtered by tag and by path
// substring.
func (s *Service) Items(tag, pathContains string) []extract.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tag = strings.ToUpper(tag)
	out := make([]extract.Item, 0, len(s.items))
	for _, it := range s.items {
		if tag != "" && it.Tag != tag {
			continue
		}
		if pathContains != "" && !strings.Contains(it.File, pathContains) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Summary returns the aggregate view.
func (s *Service) Summary() SummaryInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, it := range s.items {
		counts[it.Tag]++
	}
	return SummaryInfo{
		FilesScanned: s.filesScanned,
		Total:        len(s.items),
		TagCounts:    counts,
		UpdatedAt:    s.updatedAt,
	}
}
