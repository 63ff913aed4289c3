// Package sandbox constructs isolated Starlark evaluation scopes for
// component module bodies. Each scope sees exactly the curated capability
// set plus its module-local require and exports bindings, never the
// host's real globals, network, or storage.
package sandbox

import (
	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Viewport is the narrow read-only window the allow-list grants:
// components may read the output dimensions and nothing else about the
// host environment.
type Viewport struct {
	Width  int
	Height int
}

// Capabilities is the explicit, enumerated capability set injected into
// every module scope. It is configuration passed into the sandbox, not a
// patched global environment.
type Capabilities struct {
	// Motion exposes the animation/timing primitives.
	Motion *starlarkstruct.Module
	// UI exposes the element-tree composition primitives.
	UI *starlarkstruct.Module
	// JSON, Math, and Time are the approved standard modules. Time is
	// durations and timestamps only; the wall clock is disabled per
	// thread so frame output stays deterministic.
	JSON starlark.Value
	Math starlark.Value
	Time starlark.Value
	// Viewport is readable by components for layout.
	Viewport Viewport
}

// Default returns the standard capability set for the given viewport.
func Default(vp Viewport) *Capabilities {
	return &Capabilities{
		Motion:   MotionModule(),
		UI:       UIModule(),
		JSON:     starlarkjson.Module,
		Math:     starlarkmath.Module,
		Time:     starlarktime.Module,
		Viewport: vp,
	}
}

// Predeclared builds the full predeclared scope for one module body:
// the fixed capability set plus the module-scoped require function and
// mutable exports container.
func (c *Capabilities) Predeclared(require *starlark.Builtin, exports *starlark.Dict) starlark.StringDict {
	return starlark.StringDict{
		"require":  require,
		"exports":  exports,
		"motion":   c.Motion,
		"ui":       c.UI,
		"json":     c.JSON,
		"math":     c.Math,
		"time":     c.Time,
		"viewport": c.viewportValue(),
	}
}

// Virtual returns the built-in virtual module for the given import name.
// These two modules are always requirable regardless of the bundle's
// file set.
func (c *Capabilities) Virtual(name string) (starlark.Value, bool) {
	switch name {
	case "motion":
		return c.Motion, true
	case "ui":
		return c.UI, true
	}
	return nil, false
}

func (c *Capabilities) viewportValue() starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String("viewport"), starlark.StringDict{
		"width":  starlark.MakeInt(c.Viewport.Width),
		"height": starlark.MakeInt(c.Viewport.Height),
	})
}
