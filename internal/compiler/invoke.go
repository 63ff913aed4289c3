package compiler

import (
	"fmt"

	"github.com/frameloom-labs/frameloom/internal/sandbox"
	"github.com/frameloom-labs/frameloom/internal/scene"
	"go.starlark.net/starlark"
)

// Frame holds the runtime parameters injected into every component
// invocation. Together with the author-configured properties these are
// the only dynamic inputs a component may depend on, which is what makes
// frame output deterministic.
type Frame struct {
	// Index is the discrete frame number, starting at 0.
	Index int
	// Time is the component's internal elapsed time in seconds.
	Time float64
	// FPS is the target frame rate.
	FPS float64
	// Duration is the total clip duration in seconds.
	Duration float64
}

// Invoke calls a compiled component for one frame and converts the result
// into a scene tree. Runtime faults inside the component surface as the
// returned error and never escape as panics; callers substitute fallback
// output rather than rethrowing past the component boundary.
func (c *Compiler) Invoke(mod *CompiledModule, props map[string]any, frame Frame) (*scene.Node, error) {
	kwargs := make([]starlark.Tuple, 0, len(props)+4)
	for k, v := range props {
		sv, err := sandbox.ToStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		kwargs = append(kwargs, starlark.Tuple{starlark.String(k), sv})
	}
	timing := []starlark.Tuple{
		{starlark.String("frame"), starlark.MakeInt(frame.Index)},
		{starlark.String("t"), starlark.Float(frame.Time)},
		{starlark.String("fps"), starlark.Float(frame.FPS)},
		{starlark.String("duration"), starlark.Float(frame.Duration)},
	}
	for _, kv := range timing {
		if acceptsKwarg(mod.Component, string(kv[0].(starlark.String))) {
			kwargs = append(kwargs, kv)
		}
	}

	result, err := c.sandbox.Call(mod.Component, kwargs)
	if err != nil {
		return nil, fmt.Errorf("component %s frame %d: %w", mod.BundleID, frame.Index, err)
	}

	return scene.FromValue(result)
}

// acceptsKwarg reports whether the component callable can take the named
// injected parameter. Timing-agnostic components, a bare lambda for one,
// simply never see the timing kwargs. Non-function callables get every
// kwarg since their signature cannot be inspected.
func acceptsKwarg(fn starlark.Callable, name string) bool {
	f, ok := fn.(*starlark.Function)
	if !ok || f.HasKwargs() {
		return true
	}
	for i := 0; i < f.NumParams(); i++ {
		param, _ := f.Param(i)
		if param == name {
			return true
		}
	}
	return false
}
