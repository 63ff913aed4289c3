// Package resolver builds and executes a bundle's module dependency graph.
//
// Modules reference siblings by relative path through a require function.
// Resolution is memoized per compile pass, and circular references are
// broken with placeholder exports objects: a module that is requested
// while its body is still executing hands out its live, possibly partial,
// exports object instead of recursing. No topological reordering or
// deferred binding is attempted; first-use order rules.
package resolver

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/frameloom-labs/frameloom/internal/sandbox"
	"github.com/frameloom-labs/frameloom/internal/translate"
	"github.com/frameloom-labs/frameloom/pkg/component"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// sourceExtensions are stripped during module name normalization.
var sourceExtensions = []string{".loom", ".star", ".json", ".css"}

// conventionalExport is the named export the default-export fallback chain
// tries when a module declares no default.
const conventionalExport = "Component"

// Resolver resolves module graphs for compile passes.
type Resolver struct {
	sandbox    *sandbox.Sandbox
	translator translate.Translator
	logger     *slog.Logger
}

// New creates a resolver that translates with tr and executes in sb.
func New(sb *sandbox.Sandbox, tr translate.Translator, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{sandbox: sb, translator: tr, logger: logger}
}

// Result is a successfully resolved entry module.
type Result struct {
	// Component is the invokable default export of the entry module.
	Component starlark.Callable
	// Exports is the entry module's full export surface.
	Exports *starlark.Dict
	// Warnings lists unresolved imports that degraded to empty exports.
	Warnings []string
}

// ExecError wraps a module body execution failure with the offending path.
type ExecError struct {
	Path string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("module %s: %v", e.Path, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Resolve compiles the module graph rooted at entry. The files map is
// keyed by bundle-relative path; entry must name one of them.
func (r *Resolver) Resolve(files map[string]component.File, entry string) (*Result, error) {
	p := &pass{
		resolver: r,
		files:    make(map[string]component.File, len(files)),
		cache:    make(map[string]*moduleEntry, len(files)),
	}
	for path, f := range files {
		p.files[Normalize(path)] = f
	}

	normEntry := Normalize(entry)
	if _, ok := p.files[normEntry]; !ok {
		return nil, fmt.Errorf("entry module %q not found in bundle", entry)
	}

	exportsVal, err := p.require(normEntry)
	if err != nil {
		return nil, err
	}
	exports, ok := exportsVal.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("entry module %q produced no export object", entry)
	}

	comp, err := defaultExport(exports)
	if err != nil {
		return nil, fmt.Errorf("entry module %q: %w", entry, err)
	}

	return &Result{Component: comp, Exports: exports, Warnings: p.warnings}, nil
}

// Normalize strips a leading ./ or ../ and a known source extension from
// a module reference, yielding the flat per-bundle module name.
func Normalize(name string) string {
	for strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../") {
		name = strings.TrimPrefix(name, "./")
		name = strings.TrimPrefix(name, "../")
	}
	for _, ext := range sourceExtensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// moduleEntry is the per-pass cache record for one module. The exports
// object is created before the body executes; compiled flips to true only
// after execution completes.
type moduleEntry struct {
	exports  *starlark.Dict
	compiled bool
}

// pass carries the mutable state of a single graph resolution.
type pass struct {
	resolver *Resolver
	files    map[string]component.File
	cache    map[string]*moduleEntry
	warnings []string
}

// require resolves one module reference. It is re-entered recursively by
// module bodies through the injected require builtin, so every step closes
// over the same cache.
func (p *pass) require(name string) (starlark.Value, error) {
	// Built-in virtual modules are always available, whatever the file set.
	if v, ok := p.resolver.sandbox.Capabilities().Virtual(Normalize(name)); ok {
		return v, nil
	}

	norm := Normalize(name)

	// A hit covers both finished modules (memoization) and modules still
	// mid-execution: the latter is the cycle-breaking path and returns the
	// live placeholder exports object as it exists right now.
	if entry, ok := p.cache[norm]; ok {
		return entry.exports, nil
	}

	file, ok := p.files[norm]
	if !ok {
		// Unresolved peer/external import: degrade to empty exports.
		p.warnings = append(p.warnings, fmt.Sprintf("unresolved import %q", name))
		p.resolver.logger.Warn("unresolved import", "module", name)
		entry := &moduleEntry{exports: starlark.NewDict(0), compiled: true}
		p.cache[norm] = entry
		return entry.exports, nil
	}

	entry := &moduleEntry{exports: starlark.NewDict(8)}
	p.cache[norm] = entry

	src, err := p.resolver.translator.Translate(file)
	if err != nil {
		return nil, err
	}

	requireFn := starlark.NewBuiltin("require", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var ref string
		var wantDefault bool
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "module", &ref, "default?", &wantDefault); err != nil {
			return nil, err
		}
		v, err := p.require(ref)
		if err != nil || !wantDefault {
			return v, err
		}
		return importDefault(v), nil
	})

	if _, err := p.resolver.sandbox.Execute(norm, src, requireFn, entry.exports); err != nil {
		return nil, &ExecError{Path: file.Path, Err: err}
	}

	entry.compiled = true
	return entry.exports, nil
}

// importDefault picks the binding for default-import sugar: the module's
// explicit default export when it has one, otherwise the export surface
// itself. A virtual capability module answers with itself this way too,
// since it is neither a dict nor carries a default key.
func importDefault(v starlark.Value) starlark.Value {
	if d, ok := v.(*starlark.Dict); ok {
		if l := probe(d, "default"); l.found {
			return l.value
		}
	}
	return v
}

// lookup is the tagged result of one export probe.
type lookup struct {
	value starlark.Value
	found bool
}

func probe(exports *starlark.Dict, key string) lookup {
	v, found, err := exports.Get(starlark.String(key))
	if err != nil || !found {
		return lookup{}
	}
	return lookup{value: v, found: true}
}

// defaultExport extracts the invokable component from an entry module's
// exports via the ordered fallback chain: explicit default export, the
// conventional Component name, then one level of nested default unwrap.
func defaultExport(exports *starlark.Dict) (starlark.Callable, error) {
	candidate := probe(exports, "default")
	if !candidate.found {
		candidate = probe(exports, conventionalExport)
	}
	if !candidate.found {
		return nil, fmt.Errorf("no component found: module has no default or %s export", conventionalExport)
	}

	// A wrapper object exposing its own default is unwrapped exactly once.
	candidate = unwrap(candidate)

	fn, ok := candidate.value.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("no component found: default export is %s, not a function", candidate.value.Type())
	}
	return fn, nil
}

func unwrap(l lookup) lookup {
	switch v := l.value.(type) {
	case *starlark.Dict:
		if inner := probe(v, "default"); inner.found {
			return inner
		}
	case *starlarkstruct.Module:
		// A virtual capability module answers a default-export request
		// with itself.
		return l
	}
	return l
}
