// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/ferrix/tagscan/internal/api"
	"github.com/ferrix/tagscan/internal/cache"
	"github.com/ferrix/tagscan/internal/extract"
	"github.com/ferrix/tagscan/internal/history"
	"github.com/ferrix/tagscan/internal/index"
	"github.com/ferrix/tagscan/internal/mcpserver"
	"github.com/ferrix/tagscan/internal/scanner"
	"github.com/ferrix/tagscan/internal/sse"
	"github.com/ferrix/tagscan/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{
		mode: ModeScan,
		out:  os.Stdout,
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Scan results go to stdout, so the logger writes to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("mode", app.mode),
		slog.String("scan_root", cfg.Scan.Root),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Scan.Root)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	pol, err := cfg.Scan.Policy()
	if err != nil {
		return fmt.Errorf("compile exclusions: %w", err)
	}
	pat, err := cfg.Scan.Pattern()
	if err != nil {
		return fmt.Errorf("compile tag pattern: %w", err)
	}

	var c *cache.Cache
	if cfg.Scan.Cache {
		c = cache.Load(store.Root(), cfg.Scan.Hash())
		logger.Debug("scan cache loaded", slog.Int("entries", c.Len()))
	}

	walker := scanner.New(store, pol, pat, c, logger)

	switch app.mode {
	case ModeScan:
		return app.runScan(ctx, walker, c, store, logger)
	case ModeWatch, ModeServe:
		return app.runWatch(ctx, walker, c, store, pat, pol, logger)
	case ModeMCP:
		return mcpserver.New(walker).ServeStdio()
	default:
		return fmt.Errorf("unknown mode %q", app.mode)
	}
}

func (app *application) runScan(ctx context.Context, walker *scanner.Walker, c *cache.Cache, store *storage.FS, logger *slog.Logger) error {
	if app.history > 0 {
		return app.listHistory()
	}

	res, err := walker.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	res.Sort()

	saveCache(c, store, logger)

	if app.record && app.config.History.Path != "" {
		db, err := history.Open(app.config.History.Path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer db.Close()
		if err := db.RecordScan(res, time.Now()); err != nil {
			return fmt.Errorf("record scan: %w", err)
		}
	}

	if app.json {
		return writeScanJSON(app, res)
	}
	return writeScanText(app, res)
}

func (app *application) listHistory() error {
	if app.config.History.Path == "" {
		return fmt.Errorf("history: no database path configured")
	}
	db, err := history.Open(app.config.History.Path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(app.history)
	if err != nil {
		return err
	}

	if app.json {
		enc := json.NewEncoder(app.out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	for _, r := range runs {
		fmt.Fprintf(app.out, "%s  %d items in %d files\n",
			r.ScannedAt.Format(time.RFC3339), r.TotalItems, r.FilesScanned)
	}
	return nil
}

func writeScanJSON(app *application, res *scanner.Result) error {
	doc := map[string]any{
		"items":         res.Items,
		"total":         len(res.Items),
		"files_scanned": res.FilesScanned,
		"tag_counts":    tagCounts(res.Items),
	}
	enc := json.NewEncoder(app.out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writeScanText(app *application, res *scanner.Result) error {
	for _, it := range res.Items {
		if _, err := fmt.Fprintln(app.out, formatItem(it)); err != nil {
			return err
		}
	}

	counts := tagCounts(res.Items)
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	fmt.Fprintf(app.out, "\n%d items in %d files scanned\n", len(res.Items), res.FilesScanned)
	for _, tag := range tags {
		fmt.Fprintf(app.out, "  %-8s %d\n", tag, counts[tag])
	}
	return nil
}

func formatItem(it extract.Item) string {
	head := it.Tag
	if it.Author != "" {
		head += "(" + it.Author + ")"
	}
	switch it.Priority {
	case extract.PriorityHigh:
		head += "!"
	case extract.PriorityUrgent:
		head += "!!"
	}
	line := fmt.Sprintf("%s:%d: %s: %s", it.File, it.Line, head, it.Message)
	if it.Issue != "" {
		line += " [" + it.Issue + "]"
	}
	return line
}

func tagCounts(items []extract.Item) map[string]int {
	counts := make(map[string]int)
	for _, it := range items {
		counts[it.Tag]++
	}
	return counts
}

func (app *application) runWatch(ctx context.Context, walker *scanner.Walker, c *cache.Cache, store *storage.FS, pat *extract.Pattern, pol *scanner.Policy, logger *slog.Logger) error {
	cfg := app.config

	res, err := walker.Scan(ctx)
	if err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}
	res.Sort()
	saveCache(c, store, logger)

	logger.Info("initial scan complete",
		slog.Int("items", len(res.Items)),
		slog.Int("files_scanned", res.FilesScanned))

	live := index.NewLive(store, res, pat, pol)

	serve := app.mode == ModeServe
	filesScanned := res.FilesScanned

	var broker *sse.Broker
	var svc *api.Service
	var httpServer *http.Server

	if !serve {
		fmt.Fprintf(app.out, "watching: %d items in %d files scanned\n", live.TotalCount(), filesScanned)
	}

	if serve {
		broker = sse.NewBroker(2 * time.Second)
		svc = api.NewService()
		svc.SetSnapshot(res.Items, filesScanned)
		broker.PublishSummary(filesScanned, live.TotalCount(), live.TagCounts())

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})

		r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

		httpServer = &http.Server{
			Addr:    cfg.App.HTTP.Address(),
			Handler: r,
		}
	}

	// The callback runs on the watcher goroutine, which owns the live index,
	// so reading live here is race-free.
	onEvent := func(ev index.Event) {
		if serve {
			svc.SetSnapshot(live.Items(), filesScanned)
			broker.PublishChange(ev)
			return
		}
		app.printWatchEvent(ev)
	}

	// The group context alone cannot end the session: its goroutines all
	// return nil on shutdown. A shutdown signal cancels this context instead,
	// which the watcher observes.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := index.Watch(gCtx, live, cfg.Watch.Debounce(), cfg.Watch.MaxTotal, logger, onEvent)
		if serve {
			broker.PublishTerminated()
		}
		return err
	})

	if serve {
		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}

		if httpServer != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
		}

		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	saveCache(c, store, logger)

	if !serve {
		fmt.Fprintln(app.out, "watch terminated")
	}
	logger.Info("Stopped")
	return nil
}

func (app *application) printWatchEvent(ev index.Event) {
	for _, it := range ev.Removed {
		fmt.Fprintf(app.out, "- %s\n", formatItem(it))
	}
	for _, it := range ev.Added {
		fmt.Fprintf(app.out, "+ %s\n", formatItem(it))
	}
	suffix := ""
	if ev.OverThreshold {
		suffix = " [over threshold]"
	}
	fmt.Fprintf(app.out, "= %s: %d items (%+d)%s\n", ev.Path, ev.Total, ev.Delta, suffix)
}

// saveCache persists the scan cache, logging rather than failing on error.
func saveCache(c *cache.Cache, store *storage.FS, logger *slog.Logger) {
	if c == nil {
		return
	}
	if err := c.Save(store.Root()); err != nil {
		logger.Warn("cache save failed", slog.String("error", err.Error()))
	}
}
