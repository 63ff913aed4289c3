// Package compiler owns the bundle compile pipeline and the compiled
// artifact cache: validate every file, resolve and execute the module
// graph, and store the resulting handle keyed by bundle id with
// content-freshness invalidation.
package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/frameloom-labs/frameloom/internal/resolver"
	"github.com/frameloom-labs/frameloom/internal/sandbox"
	"github.com/frameloom-labs/frameloom/internal/translate"
	"github.com/frameloom-labs/frameloom/internal/validate"
	"github.com/frameloom-labs/frameloom/pkg/component"
	"go.starlark.net/starlark"
)

// CompiledModule is the durable artifact of a successful compile pass.
// Instances are immutable once stored; recompilation replaces them
// wholesale so concurrent readers never observe a torn artifact.
type CompiledModule struct {
	// BundleID identifies the source bundle.
	BundleID string
	// CompiledAt is when this artifact was produced; compared against the
	// bundle's UpdatedAt for cache freshness.
	CompiledAt time.Time
	// Component is the invokable entry handle.
	Component starlark.Callable
	// Exports is the entry module's full export surface.
	Exports *starlark.Dict
	// Meta carries the bundle's property descriptors and timing defaults.
	Meta component.Meta
	// Version increments on every successful recompile of the bundle and
	// serves as the remount key for rendering surfaces.
	Version int
	// Warnings lists unresolved imports observed during resolution.
	Warnings []string
}

// Error aggregates every failure of one compile attempt. It is reported
// as a whole, never partially applied.
type Error struct {
	BundleID   string
	Violations []component.Violation
	Errors     []component.CompileError
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "bundle %s failed to compile", e.BundleID)
	for _, v := range e.Violations {
		sb.WriteString("\n  " + v.String())
	}
	for _, ce := range e.Errors {
		sb.WriteString("\n  " + ce.Error())
	}
	return sb.String()
}

// CompileErrors flattens violations and compile errors into the shape
// stored on the bundle.
func (e *Error) CompileErrors() []component.CompileError {
	out := make([]component.CompileError, 0, len(e.Violations)+len(e.Errors))
	for _, v := range e.Violations {
		out = append(out, component.CompileError{File: v.File, Line: v.Line, Message: v.Reason})
	}
	out = append(out, e.Errors...)
	return out
}

// Config holds compiler construction options.
type Config struct {
	// Sandbox executes module bodies; required.
	Sandbox *sandbox.Sandbox
	// Translator converts author syntax; defaults to the loomscript translator.
	Translator translate.Translator
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Compiler compiles bundles and caches the artifacts.
type Compiler struct {
	sandbox    *sandbox.Sandbox
	translator translate.Translator
	resolver   *resolver.Resolver
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.RWMutex
	cache    map[string]*CompiledModule
	versions map[string]int
}

// New creates a compiler.
func New(cfg Config) *Compiler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tr := cfg.Translator
	if tr == nil {
		tr = translate.New()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Compiler{
		sandbox:    cfg.Sandbox,
		translator: tr,
		resolver:   resolver.New(cfg.Sandbox, tr, logger),
		logger:     logger,
		now:        now,
		cache:      make(map[string]*CompiledModule),
		versions:   make(map[string]int),
	}
}

// Compile compiles a bundle, or returns the cached artifact when it is
// still fresh. On failure the bundle's status and error list are updated
// and the prior cache entry, if any, is left untouched.
func (c *Compiler) Compile(b *component.Bundle) (*CompiledModule, error) {
	if err := b.Validate(); err != nil {
		return nil, c.fail(b, &Error{
			BundleID: b.ID,
			Errors:   []component.CompileError{{File: b.EntryPoint, Message: err.Error()}},
		})
	}

	// At-most-once compile per unchanged bundle: an artifact at least as
	// new as the bundle's last update is returned as-is.
	c.mu.RLock()
	cached, ok := c.cache[b.ID]
	c.mu.RUnlock()
	if ok && !cached.CompiledAt.Before(b.UpdatedAt) {
		c.logger.Debug("compile cache hit", "bundle", b.ID, "version", cached.Version)
		return cached, nil
	}

	if violations := validate.Bundle(b); len(violations) > 0 {
		return nil, c.fail(b, &Error{BundleID: b.ID, Violations: violations})
	}

	files := make(map[string]component.File, len(b.Files))
	for _, f := range b.Files {
		files[f.Path] = f
	}

	result, err := c.resolver.Resolve(files, b.EntryPoint)
	if err != nil {
		return nil, c.fail(b, &Error{BundleID: b.ID, Errors: []component.CompileError{asCompileError(b, err)}})
	}

	c.mu.Lock()
	c.versions[b.ID]++
	mod := &CompiledModule{
		BundleID:   b.ID,
		CompiledAt: c.now(),
		Component:  result.Component,
		Exports:    result.Exports,
		Meta:       b.Meta,
		Version:    c.versions[b.ID],
		Warnings:   result.Warnings,
	}
	c.cache[b.ID] = mod
	c.mu.Unlock()

	b.Status = component.StatusCompiled
	b.Errors = nil
	c.logger.Info("bundle compiled", "bundle", b.ID, "version", mod.Version, "warnings", len(mod.Warnings))
	return mod, nil
}

// Get returns the cached artifact for a bundle id.
func (c *Compiler) Get(bundleID string) (*CompiledModule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mod, ok := c.cache[bundleID]
	return mod, ok
}

// Invalidate clears cache entries. With no arguments the whole cache is
// cleared; with ids, only those entries. Version counters survive so a
// later recompile still advances the remount key.
func (c *Compiler) Invalidate(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(ids) == 0 {
		c.cache = make(map[string]*CompiledModule)
		return
	}
	for _, id := range ids {
		delete(c.cache, id)
	}
}

// Sandbox returns the sandbox artifacts execute in, for invocation.
func (c *Compiler) Sandbox() *sandbox.Sandbox {
	return c.sandbox
}

func (c *Compiler) fail(b *component.Bundle, cerr *Error) error {
	b.Status = component.StatusError
	b.Errors = cerr.CompileErrors()
	c.logger.Warn("bundle failed to compile", "bundle", b.ID,
		"violations", len(cerr.Violations), "errors", len(cerr.Errors))
	return cerr
}

// asCompileError maps resolver and translator failures to the bundle
// error shape, keeping the offending file path when one is known.
func asCompileError(b *component.Bundle, err error) component.CompileError {
	var serr *translate.SyntaxError
	if errors.As(err, &serr) {
		return serr.CompileError()
	}
	var xerr *resolver.ExecError
	if errors.As(err, &xerr) {
		return component.CompileError{File: xerr.Path, Message: xerr.Err.Error()}
	}
	return component.CompileError{File: b.EntryPoint, Message: err.Error()}
}
