package source

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Notifier watches a bundle root with fsnotify and reports which bundle
// changed, debounced. It complements the poll-based watcher for local
// authoring: a change event triggers an immediate poll tick instead of
// waiting out the interval.
type Notifier struct {
	root     string
	logger   *slog.Logger
	debounce time.Duration
}

// NewNotifier creates a notifier for the given bundle root.
func NewNotifier(root string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{root: root, logger: logger, debounce: 100 * time.Millisecond}
}

// Run watches until the context is cancelled, invoking onChange with the
// bundle id for each debounced change.
func (n *Notifier) Run(ctx context.Context, onChange func(bundleID string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := n.watchTree(watcher); err != nil {
		return err
	}

	var mu sync.Mutex
	var debounceTimer *time.Timer
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			id := n.bundleID(event.Name)
			if id == "" {
				continue
			}
			mu.Lock()
			pending[id] = struct{}{}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(n.debounce, func() {
				mu.Lock()
				ids := make([]string, 0, len(pending))
				for id := range pending {
					ids = append(ids, id)
					delete(pending, id)
				}
				mu.Unlock()
				for _, id := range ids {
					n.logger.Debug("bundle change detected", "bundle", id)
					onChange(id)
				}
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			n.logger.Warn("watcher error", "error", err)
		}
	}
}

// watchTree adds the root and each bundle directory to the watcher.
func (n *Notifier) watchTree(watcher *fsnotify.Watcher) error {
	return filepath.Walk(n.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != n.root {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

// bundleID maps a changed file path to the bundle directory it lives in.
func (n *Notifier) bundleID(path string) string {
	rel, err := filepath.Rel(n.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}
