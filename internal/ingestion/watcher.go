package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before a
// rebuild starts.
const DefaultDebounce = 2 * time.Second

// BuildHandler receives every successful watch build.
type BuildHandler func(ctx context.Context, res *Result) error

// WatchRepo builds root once, then rebuilds it after every settled batch of
// source changes, handing each result to onBuild. Rebuilds are always
// full builds. Build and handler failures are logged and watching
// continues. Blocks until the context is cancelled.
func WatchRepo(ctx context.Context, root string, opts Options, onBuild BuildHandler) error {
	opts = opts.withDefaults()

	patterns, err := loadGitignore(root)
	if err != nil {
		return fmt.Errorf("loading .gitignore: %w", err)
	}
	f := newFilter(patterns, opts.SkipDirs)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchTree(watcher, root, root, f); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	rebuild := func() {
		res, err := BuildGraph(ctx, root, opts)
		if err != nil {
			opts.Logger.Warn("watch.build_failed", "root", root, "err", err)
			return
		}
		if err := onBuild(ctx, res); err != nil {
			opts.Logger.Warn("watch.handler_failed", "root", root, "err", err)
		}
	}
	rebuild()

	// Batch changes until the debounce timer fires.
	timer := time.NewTimer(opts.Debounce)
	timer.Stop()
	pending := 0

	opts.Logger.Info("watch.started", "root", root)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			rel, ok := relativeTo(root, event.Name)
			if !ok || !relevant(watcher, root, event, rel, f) {
				continue
			}
			pending++
			timer.Reset(opts.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			opts.Logger.Warn("watch.error", "err", err)

		case <-timer.C:
			opts.Logger.Info("watch.rebuild", "changes", pending)
			pending = 0
			rebuild()
		}
	}
}

// relevant reports whether an event should trigger a rebuild. New
// directories are added to the watch set.
func relevant(watcher *fsnotify.Watcher, root string, event fsnotify.Event, rel string, f *filter) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if f.skipDir(rel) {
				return false
			}
			_ = watchTree(watcher, root, event.Name, f)
			return true
		}
	}
	if f.keepFile(rel) {
		return true
	}
	// A removed or renamed directory takes its sources with it.
	removed := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	return removed && LanguageFor(rel) == "" && !f.skipDir(rel)
}

// watchTree adds dir and every non-skipped directory below it.
func watchTree(watcher *fsnotify.Watcher, root, dir string, f *filter) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := relativeTo(root, p); ok && rel != "." && f.skipDir(rel) {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
}

func relativeTo(root, p string) (string, bool) {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}
