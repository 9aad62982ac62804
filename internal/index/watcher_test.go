package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ferrix/tagscan/internal/testutil"
)

// eventRecorder collects watch events under a lock.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) forPath(rel string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Path == rel {
			out = append(out, ev)
		}
	}
	return out
}

// startWatch runs Watch in the background with a short debounce.
func startWatch(t *testing.T, live *Live, maxTotal int, rec *eventRecorder) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go Watch(ctx, live, 50*time.Millisecond, maxTotal, quiet, rec.record)
	time.Sleep(100 * time.Millisecond)
}

func TestWatch_NewFileEmitsAdded(t *testing.T) {
	dir, live := liveEnv(t, map[string]string{"seed.go": "// TODO: seed\n"})
	rec := &eventRecorder{}
	startWatch(t, live, 0, rec)

	rewrite(t, dir, "new.go", "// FIXME: fresh\n")

	testutil.Eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		evs := rec.forPath("new.go")
		return len(evs) == 1 && len(evs[0].Added) == 1
	}, "expected one event with one added item for new.go")

	evs := rec.forPath("new.go")
	if len(evs) == 0 {
		return
	}
	ev := evs[0]
	if ev.Added[0].Tag != "FIXME" || ev.Total != 2 || ev.Delta != 1 {
		t.Errorf("event = %+v", ev)
	}
	if ev.TagCounts["TODO"] != 1 || ev.TagCounts["FIXME"] != 1 {
		t.Errorf("tag counts = %v", ev.TagCounts)
	}
}

func TestWatch_DebounceCoalesces(t *testing.T) {
	dir, live := liveEnv(t, map[string]string{"a.go": "package a\n"})
	rec := &eventRecorder{}
	startWatch(t, live, 0, rec)

	// Three rapid writes inside the debounce window; only the last survives.
	rewrite(t, dir, "a.go", "// TODO: v1\n")
	rewrite(t, dir, "a.go", "// TODO: v2\n")
	rewrite(t, dir, "a.go", "// TODO: v3\n")

	testutil.Eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return len(rec.forPath("a.go")) >= 1
	}, "expected a dispatched event for a.go")

	// Allow a late stray flush to surface before counting.
	time.Sleep(300 * time.Millisecond)
	evs := rec.forPath("a.go")
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1 coalesced dispatch", len(evs))
	}
	if len(evs[0].Added) != 1 || evs[0].Added[0].Message != "v3" {
		t.Errorf("added = %+v, want the final write", evs[0].Added)
	}
}

func TestWatch_DeleteEmitsRemoved(t *testing.T) {
	dir, live := liveEnv(t, map[string]string{"del.go": "// TODO: doomed\n"})
	rec := &eventRecorder{}
	startWatch(t, live, 0, rec)

	if err := os.Remove(filepath.Join(dir, "del.go")); err != nil {
		t.Fatal(err)
	}

	testutil.Eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		evs := rec.forPath("del.go")
		return len(evs) == 1 && len(evs[0].Removed) == 1 && len(evs[0].Added) == 0
	}, "expected a removal event for del.go")

	if live.TotalCount() != 0 {
		t.Errorf("total = %d after delete, want 0", live.TotalCount())
	}
}

func TestWatch_NoEventWhenItemsUnchanged(t *testing.T) {
	dir, live := liveEnv(t, map[string]string{"a.go": "package a\n// TODO: steady\n"})
	rec := &eventRecorder{}
	startWatch(t, live, 0, rec)

	// Touch the file without changing its items.
	rewrite(t, dir, "a.go", "package a\n\n// TODO: steady\n")

	time.Sleep(400 * time.Millisecond)
	if evs := rec.forPath("a.go"); len(evs) != 0 {
		t.Errorf("got %d events for unchanged items, want 0", len(evs))
	}
}

func TestWatch_ExcludedPathIgnored(t *testing.T) {
	dir, live := liveEnv(t, map[string]string{"a.go": "package a\n"})
	rec := &eventRecorder{}
	startWatch(t, live, 0, rec)

	testutil.WriteTree(t, dir, map[string]string{"ignored.lock": "// TODO: hidden\n"})
	// The default policy excludes nothing by pattern here, so use a dir name.
	testutil.WriteTree(t, dir, map[string]string{"vendor/dep.go": "// TODO: vendored\n"})

	time.Sleep(400 * time.Millisecond)
	if evs := rec.forPath("vendor/dep.go"); len(evs) != 0 {
		t.Errorf("excluded path produced events: %+v", evs)
	}
	if live.TotalCount() != 1 {
		// Only ignored.lock (not excluded) should have been indexed.
		t.Errorf("total = %d, want 1", live.TotalCount())
	}
}

func TestWatch_ThresholdFlag(t *testing.T) {
	dir, live := liveEnv(t, map[string]string{
		"a.go": "// TODO: one\n// TODO: two\n// TODO: three\n",
	})
	rec := &eventRecorder{}
	startWatch(t, live, 3, rec)

	rewrite(t, dir, "b.go", "// TODO: four\n")

	testutil.Eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		evs := rec.forPath("b.go")
		return len(evs) == 1
	}, "expected event for b.go")

	evs := rec.forPath("b.go")
	if len(evs) == 1 {
		if !evs[0].OverThreshold {
			t.Error("event should be flagged at total 4 with limit 3")
		}
		if evs[0].Total != 4 || evs[0].Delta != 1 {
			t.Errorf("event = %+v", evs[0])
		}
	}
}

func TestWatch_NoThresholdWhenUnconfigured(t *testing.T) {
	dir, live := liveEnv(t, map[string]string{
		"a.go": "// TODO: one\n// TODO: two\n// TODO: three\n",
	})
	rec := &eventRecorder{}
	startWatch(t, live, 0, rec)

	rewrite(t, dir, "b.go", "// TODO: four\n")

	testutil.Eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return len(rec.forPath("b.go")) == 1
	}, "expected event for b.go")

	evs := rec.forPath("b.go")
	if len(evs) == 1 && evs[0].OverThreshold {
		t.Error("threshold flag set with no configured maximum")
	}
}

func TestWatch_NewDirIndexed(t *testing.T) {
	dir, live := liveEnv(t, map[string]string{"a.go": "package a\n"})
	rec := &eventRecorder{}
	startWatch(t, live, 0, rec)

	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	rewrite(t, dir, "sub/deep.go", "// TODO: deep\n")

	testutil.Eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return len(rec.forPath("sub/deep.go")) >= 1
	}, "file in new subdirectory not indexed")
}

func TestWatch_CancelStopsLoop(t *testing.T) {
	_, live := liveEnv(t, map[string]string{"a.go": "package a\n"})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Watch(ctx, live, 50*time.Millisecond, 0, quiet, nil) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned error on cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}
