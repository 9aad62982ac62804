package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ferrix/tagscan/internal/extract"
)

// Event describes one accepted live-index mutation during a watch session.
type Event struct {
	Time          time.Time      `json:"time"`
	Path          string         `json:"path"`
	Added         []extract.Item `json:"added"`
	Removed       []extract.Item `json:"removed"`
	TagCounts     map[string]int `json:"tag_counts"`
	Total         int            `json:"total"`
	Delta         int            `json:"delta"`
	OverThreshold bool           `json:"over_threshold,omitempty"`
}

// EventCallback is called after each live-index mutation that changed items.
type EventCallback func(Event)

// Watch subscribes to filesystem notifications under the live index's root
// and drives the index until ctx is cancelled. Raw notifications are
// debounced per path: repeated events for one path within the window collapse
// into a single occurrence in the next dispatched batch.
//
// Notification kinds are not trusted; every event means "re-examine this
// path", and added/removed fall out of re-extraction. New directories are
// added to the watch set as they appear, and their files dispatched as
// updates. A maxTotal of 0 disables threshold flagging.
func Watch(ctx context.Context, live *Live, debounce time.Duration, maxTotal int, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := live.store.Root()
	if err := addDirsRecursive(w, live, root); err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	logger.Info("watcher: started",
		slog.String("root", root),
		slog.Duration("debounce", debounce))

	// Per-path debounce state: deadline per pending path, dispatch in
	// first-arrival order. One timer tracks the earliest deadline.
	deadlines := make(map[string]time.Time)
	var order []string
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	schedule := func(d time.Duration) {
		if d < 0 {
			d = 0
		}
		if flushTimer == nil {
			flushTimer = time.NewTimer(d)
			flushCh = flushTimer.C
		} else {
			if !flushTimer.Stop() {
				select {
				case <-flushTimer.C:
				default:
				}
			}
			flushTimer.Reset(d)
		}
	}

	enqueue := func(rel string) {
		if _, pending := deadlines[rel]; !pending {
			order = append(order, rel)
		}
		deadlines[rel] = time.Now().Add(debounce)
		schedule(debounce)
	}

	flush := func() {
		now := time.Now()
		var rest []string
		for _, rel := range order {
			deadline := deadlines[rel]
			if deadline.After(now) {
				rest = append(rest, rel)
				continue
			}
			delete(deadlines, rel)
			dispatch(live, rel, maxTotal, logger, cb)
		}
		order = rest
		if len(order) > 0 {
			earliest := deadlines[order[0]]
			for _, rel := range order[1:] {
				if d := deadlines[rel]; d.Before(earliest) {
					earliest = d
				}
			}
			schedule(time.Until(earliest))
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			flush()

		case ev, ok := <-w.Events:
			if !ok {
				logger.Warn("watcher: event channel closed")
				return nil
			}

			absPath := ev.Name

			// New directories join the watch set; anything already inside
			// them is queued as ordinary updates.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, live, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					enqueueDirFiles(live, absPath, enqueue)
					continue
				}
			}

			rel, relErr := live.store.Rel(absPath)
			if relErr != nil || rel == "." {
				continue
			}
			enqueue(rel)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// dispatch re-examines one debounced path and emits an event when items
// changed. Exclusion is checked here, against the same policy the walker
// used; read failures (a file mid-write, say) are swallowed for this cycle.
func dispatch(live *Live, rel string, maxTotal int, logger *slog.Logger, cb EventCallback) {
	if live.ShouldExclude(rel) {
		return
	}

	prevTotal := live.TotalCount()

	var added, removed []extract.Item
	if info, err := live.store.Stat(rel); err == nil && info.Mode().IsRegular() {
		upd, updErr := live.UpdateFile(rel)
		if updErr != nil {
			logger.Warn("watcher: read failed",
				slog.String("path", rel),
				slog.String("error", updErr.Error()))
			return
		}
		added, removed = upd.Added, upd.Removed
	} else {
		removed = live.RemoveFile(rel)
	}

	if len(added) == 0 && len(removed) == 0 {
		return
	}

	total := live.TotalCount()
	event := Event{
		Time:      time.Now(),
		Path:      rel,
		Added:     added,
		Removed:   removed,
		TagCounts: live.TagCounts(),
		Total:     total,
		Delta:     total - prevTotal,
	}
	if maxTotal > 0 && total >= maxTotal {
		event.OverThreshold = true
		logger.Warn("watcher: item total at or over limit",
			slog.Int("total", total),
			slog.Int("limit", maxTotal))
	}

	logger.Debug("watcher: updated",
		slog.String("path", rel),
		slog.Int("added", len(added)),
		slog.Int("removed", len(removed)),
		slog.Int("total", total))

	if cb != nil {
		cb(event)
	}
}

// enqueueDirFiles queues every file in a newly created directory.
func enqueueDirFiles(live *Live, dirPath string, enqueue func(string)) {
	_ = filepath.WalkDir(dirPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := live.store.Rel(p)
		if relErr != nil {
			return nil
		}
		enqueue(rel)
		return nil
	})
}

// addDirsRecursive adds root and all its non-excluded subdirectories to the
// watch set.
func addDirsRecursive(w *fsnotify.Watcher, live *Live, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && live.policy.ExcludesDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
