// Package engine wires the component pipeline together: bundle source,
// manifest store, compiler cache, handle registry wiring, and the hot
// reload watcher. It is the narrow surface the CLI and preview server
// talk to.
package engine

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/frameloom-labs/frameloom/internal/compiler"
	"github.com/frameloom-labs/frameloom/internal/prerender"
	"github.com/frameloom-labs/frameloom/internal/raster"
	"github.com/frameloom-labs/frameloom/internal/registry"
	"github.com/frameloom-labs/frameloom/internal/sandbox"
	"github.com/frameloom-labs/frameloom/internal/source"
	"github.com/frameloom-labs/frameloom/internal/store"
	"github.com/frameloom-labs/frameloom/internal/watch"
	"github.com/frameloom-labs/frameloom/pkg/component"
	"golang.org/x/sync/errgroup"
)

// Config holds engine configuration.
type Config struct {
	// BundlesDir is the path to the bundle source directory.
	BundlesDir string
	// StatePath is the path to the SQLite manifest database.
	StatePath string
	// Viewport is the default output size for components that declare none.
	Viewport sandbox.Viewport
	// PollInterval is the hot-reload poll period.
	PollInterval time.Duration
	// OnReload is notified after each successful hot reload (optional).
	OnReload watch.ReloadFunc
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Engine orchestrates compilation, caching, and hot reload of component
// bundles.
type Engine struct {
	store       component.Store
	source      *source.DirSource
	compiler    *compiler.Compiler
	registry    *registry.Registry
	watcher     *watch.Watcher
	prerenderer *prerender.Prerenderer
	notifier    *source.Notifier
	logger      *slog.Logger
	viewport    sandbox.Viewport

	mu        sync.RWMutex
	reloadFns []watch.ReloadFunc
}

// New creates an engine: opens and migrates the manifest store, builds
// the sandbox capability set, and assembles the pipeline.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	vp := cfg.Viewport
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = sandbox.Viewport{Width: 1280, Height: 720}
	}

	logger.Debug("initializing engine", "bundles_dir", cfg.BundlesDir, "state_path", cfg.StatePath)

	st := store.New(logger)
	if err := st.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open manifest store: %w", err)
	}
	if err := st.Migrate(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to migrate manifest store: %w", err)
	}

	sb := sandbox.New(sandbox.Default(vp))
	comp := compiler.New(compiler.Config{Sandbox: sb, Logger: logger})
	reg := registry.New()
	src := source.NewDirSource(cfg.BundlesDir)

	eng := &Engine{
		store:       st,
		source:      src,
		compiler:    comp,
		registry:    reg,
		prerenderer: prerender.New(comp, logger),
		notifier:    source.NewNotifier(cfg.BundlesDir, logger),
		logger:      logger,
		viewport:    vp,
	}

	if cfg.OnReload != nil {
		eng.reloadFns = append(eng.reloadFns, cfg.OnReload)
	}

	eng.watcher = watch.New(watch.Config{
		Source:   src,
		Compiler: comp,
		Interval: cfg.PollInterval,
		Logger:   logger,
		OnError: eng.afterReloadError,
		OnReload: func(id string, version int) {
			eng.afterReload(id, version)
			eng.mu.RLock()
			fns := eng.reloadFns
			eng.mu.RUnlock()
			for _, fn := range fns {
				fn(id, version)
			}
		},
	})

	return eng, nil
}

// Close releases the engine's resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// LoadBundles discovers every bundle in the source directory, persists
// its manifest, compiles it, and registers the handle. A bundle that
// fails to compile is recorded with its errors and does not stop the
// rest from loading.
func (e *Engine) LoadBundles() error {
	ids, err := e.source.List()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := e.CompileBundle(id); err != nil {
			e.logger.Warn("bundle failed to load", "bundle", id, "error", err)
		}
	}

	e.logger.Info("bundles loaded", "discovered", len(ids), "compiled", e.registry.Count())
	return nil
}

// CompileBundle loads a bundle from source, compiles it, registers the
// handle, and persists the manifest with its compile outcome.
func (e *Engine) CompileBundle(id string) (*compiler.CompiledModule, error) {
	b, err := e.source.Load(id)
	if err != nil {
		// Load failure is recoverable; it does not poison the cache.
		return nil, fmt.Errorf("failed to load bundle %s: %w", id, err)
	}

	mod, cerr := e.compiler.Compile(b)
	if saveErr := e.store.SaveBundle(b); saveErr != nil {
		e.logger.Warn("failed to persist bundle manifest", "bundle", b.ID, "error", saveErr)
	}

	// Polling starts whether or not this compile worked: a bundle that
	// arrives broken recovers automatically once the author fixes it.
	e.watcher.Watch(b)

	if cerr != nil {
		return nil, cerr
	}

	e.registry.Register(mod)
	return mod, nil
}

// Lookup returns the compiled handle and meta for a component id.
func (e *Engine) Lookup(id string) (*compiler.CompiledModule, bool) {
	return e.registry.Lookup(id)
}

// Bundles returns all persisted bundle manifests.
func (e *Engine) Bundles() ([]*component.Bundle, error) {
	return e.store.ListBundles()
}

// DeleteBundle removes a bundle: manifest, cache entry, handle, and poll.
func (e *Engine) DeleteBundle(id string) error {
	e.watcher.Unwatch(id)
	e.compiler.Invalidate(id)
	e.registry.Remove(id)
	return e.store.DeleteBundle(id)
}

// Invalidate clears compiled artifacts; with no ids, all of them.
func (e *Engine) Invalidate(ids ...string) {
	e.compiler.Invalidate(ids...)
}

// Compiler exposes the compiler for invocation by rendering collaborators.
func (e *Engine) Compiler() *compiler.Compiler {
	return e.compiler
}

// Watch runs the hot-reload poller and the filesystem notifier until the
// context is cancelled. A filesystem event triggers an immediate poll
// tick instead of waiting out the interval.
func (e *Engine) Watch(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return e.watcher.Run(egctx)
	})
	eg.Go(func() error {
		return e.notifier.Run(egctx, func(_ string) {
			e.watcher.Tick(egctx)
		})
	})

	return eg.Wait()
}

// Prerender renders a compiled component to an ordered frame snapshot
// cache at the bundle's natural size (falling back to the engine
// viewport).
func (e *Engine) Prerender(ctx context.Context, id string, opts prerender.Options) (prerender.Frames, error) {
	mod, ok := e.registry.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("no compiled component %q", id)
	}

	width, height := mod.Meta.Width, mod.Meta.Height
	if width <= 0 || height <= 0 {
		width, height = e.viewport.Width, e.viewport.Height
	}
	if opts.Duration <= 0 {
		opts.Duration = mod.Meta.DefaultDuration
	}

	surface := raster.New(width, height)
	defer func() { _ = surface.Close() }()

	return e.prerenderer.Render(ctx, mod, surface, opts)
}

// RenderFrame renders one frame of a compiled component at elapsed time
// t. Used by the preview server's scrubber, which fetches frames on
// demand instead of pre-rendering whole clips.
func (e *Engine) RenderFrame(ctx context.Context, id string, t, fps float64, props map[string]any) (image.Image, error) {
	mod, ok := e.registry.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("no compiled component %q", id)
	}

	width, height := mod.Meta.Width, mod.Meta.Height
	if width <= 0 || height <= 0 {
		width, height = e.viewport.Width, e.viewport.Height
	}
	duration := mod.Meta.DefaultDuration
	if duration <= 0 {
		duration = 1
	}

	node, err := e.compiler.Invoke(mod, props, compiler.Frame{
		Index:    int(t * fps),
		Time:     t,
		FPS:      fps,
		Duration: duration,
	})
	if err != nil {
		return nil, err
	}

	surface := raster.New(width, height)
	defer func() { _ = surface.Close() }()

	if err := surface.Apply(ctx, node); err != nil {
		return nil, err
	}
	return surface.Capture(ctx)
}

// OnReload registers a callback notified after each successful hot
// reload. Callbacks run on the watcher goroutine and must not block.
func (e *Engine) OnReload(fn watch.ReloadFunc) {
	e.mu.Lock()
	e.reloadFns = append(e.reloadFns, fn)
	e.mu.Unlock()
}

// afterReload swaps the registry handle and persists the new status once
// the watcher has recompiled a changed bundle.
func (e *Engine) afterReload(id string, version int) {
	mod, ok := e.compiler.Get(id)
	if !ok {
		return
	}
	e.registry.Register(mod)
	if err := e.store.SetStatus(id, component.StatusCompiled, nil); err != nil {
		e.logger.Warn("failed to persist reload status", "bundle", id, "error", err)
	}
	e.logger.Info("bundle reloaded", "bundle", id, "version", version)
}

// afterReloadError persists a failed reload's status and errors. The
// registry keeps the previous handle so rendering stays on the last
// working artifact.
func (e *Engine) afterReloadError(id string, errs []component.CompileError) {
	if err := e.store.SetStatus(id, component.StatusError, errs); err != nil {
		e.logger.Warn("failed to persist reload errors", "bundle", id, "error", err)
	}
}
