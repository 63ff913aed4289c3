// Package watch polls an external source-of-truth for bundle content
// changes and triggers re-validation and recompilation when the source's
// last-modified timestamp advances.
//
// Polling never stops on failure: a fetch or compile error leaves the
// previous compiled artifact live and the next tick tries again, so an
// author fix recovers automatically without manual intervention.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/frameloom-labs/frameloom/internal/compiler"
	"github.com/frameloom-labs/frameloom/pkg/component"
)

// FetchResult is the current state of a bundle at its source.
type FetchResult struct {
	// Files is the full file set.
	Files []component.File
	// LastModified is the source's modification timestamp.
	LastModified time.Time
}

// Source fetches bundle content from wherever bundles live. The withDeps
// flag asks the source to include transitive local dependencies in the
// same response.
type Source interface {
	Fetch(ctx context.Context, id string, withDeps bool) (*FetchResult, error)
}

// ReloadFunc is notified after each successful reload with the bundle id
// and the new artifact version. Rendering surfaces use the version as a
// remount key so replaced components drop all transient runtime state.
type ReloadFunc func(id string, version int)

// ErrorFunc is notified when a reload attempt compiled the changed
// content and failed. The previous artifact stays live; the callback
// exists so hosts can persist and display the failure.
type ErrorFunc func(id string, errs []component.CompileError)

// Watcher polls registered bundles on a single repeating timer.
type Watcher struct {
	source   Source
	compiler *compiler.Compiler
	logger   *slog.Logger
	interval time.Duration
	onReload ReloadFunc
	onError  ErrorFunc

	mu      sync.Mutex
	wg      sync.WaitGroup
	bundles map[string]*watched
}

// watched is the per-bundle poll state. lastSeen is the last observed
// source timestamp; inFlight guards against overlapping fetches for the
// same bundle when a tick fires while the previous fetch is still running.
type watched struct {
	bundle   *component.Bundle
	lastSeen time.Time
	inFlight bool
}

// Config holds watcher construction options.
type Config struct {
	Source   Source
	Compiler *compiler.Compiler
	// Interval is the poll period; defaults to 2s.
	Interval time.Duration
	// OnReload is called after each successful recompile (optional).
	OnReload ReloadFunc
	// OnError is called when a reload attempt fails to compile (optional).
	OnError ErrorFunc
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// New creates a watcher.
func New(cfg Config) *Watcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		source:   cfg.Source,
		compiler: cfg.Compiler,
		logger:   logger,
		interval: interval,
		onReload: cfg.OnReload,
		onError:  cfg.OnError,
		bundles:  make(map[string]*watched),
	}
}

// Watch registers a bundle for polling. The bundle's current UpdatedAt is
// taken as the last observed timestamp, so registration itself does not
// trigger a reload.
func (w *Watcher) Watch(b *component.Bundle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bundles[b.ID] = &watched{bundle: b, lastSeen: b.UpdatedAt}
}

// Unwatch stops polling a bundle.
func (w *Watcher) Unwatch(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.bundles, id)
}

// Run polls until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick checks every registered bundle once. Bundles with a fetch already
// in flight are skipped this round.
func (w *Watcher) Tick(ctx context.Context) {
	w.mu.Lock()
	var due []*watched
	for _, entry := range w.bundles {
		if entry.inFlight {
			continue
		}
		entry.inFlight = true
		due = append(due, entry)
	}
	w.mu.Unlock()

	for _, entry := range due {
		w.wg.Add(1)
		go func(entry *watched) {
			defer w.wg.Done()
			w.check(ctx, entry)
		}(entry)
	}
}

// Flush waits for in-flight checks to finish.
func (w *Watcher) Flush() {
	w.wg.Wait()
}

// check fetches one bundle's source state and recompiles if it advanced.
func (w *Watcher) check(ctx context.Context, entry *watched) {
	defer func() {
		w.mu.Lock()
		entry.inFlight = false
		w.mu.Unlock()
	}()

	id := entry.bundle.ID
	result, err := w.source.Fetch(ctx, id, true)
	if err != nil {
		// Stale-but-working: the previous artifact stays live and the next
		// tick retries.
		w.logger.Warn("bundle fetch failed", "bundle", id, "error", err)
		return
	}

	if !result.LastModified.After(entry.lastSeen) {
		return
	}

	w.logger.Info("bundle changed", "bundle", id,
		"observed", entry.lastSeen, "current", result.LastModified)
	entry.lastSeen = result.LastModified

	// New content clears prior error state regardless of whether the last
	// compile succeeded.
	entry.bundle.Files = result.Files
	entry.bundle.UpdatedAt = result.LastModified
	entry.bundle.Status = component.StatusDraft
	entry.bundle.Errors = nil

	mod, err := w.compiler.Compile(entry.bundle)
	if err != nil {
		w.logger.Warn("reload compile failed", "bundle", id, "error", err)
		if w.onError != nil {
			w.onError(id, entry.bundle.Errors)
		}
		return
	}

	if w.onReload != nil {
		w.onReload(id, mod.Version)
	}
}
