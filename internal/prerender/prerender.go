// Package prerender produces deterministic per-frame snapshots of a
// compiled component: one invocation per discrete frame index, captured
// after the rendering surface has fully settled, assembled into an
// ordered snapshot cache for later compositing.
package prerender

import (
	"context"
	"image"
	"log/slog"
	"math"

	"github.com/frameloom-labs/frameloom/internal/compiler"
	"github.com/frameloom-labs/frameloom/internal/scene"
)

// Surface is the rendering-surface contract the prerenderer consumes:
// apply a scene tree, wait for it to settle, and read back pixels on
// demand. Surfaces are single-owner; one component instance per surface.
type Surface interface {
	// Apply renders the tree and returns once it is fully applied.
	Apply(ctx context.Context, root *scene.Node) error
	// Capture returns an immutable snapshot of the current pixels.
	Capture(ctx context.Context) (image.Image, error)
	// Close releases the surface.
	Close() error
}

// Frames is the snapshot cache: frame index to captured bitmap. A missing
// index means "nothing to draw this frame", never a fatal condition. The
// cache belongs to the caller that requested pre-rendering and is
// discarded after export.
type Frames map[int]image.Image

// Options configures one pre-render run.
type Options struct {
	// FPS is the target frame rate; must be positive.
	FPS float64
	// Duration is the total clip duration in seconds.
	Duration float64
	// TrimOffset shifts the component's internal elapsed time, so a clip
	// trimmed at its start still renders the right frames.
	TrimOffset float64
	// Props are the author-configured component properties.
	Props map[string]any
	// Progress, when set, receives the completed fraction after each
	// captured frame.
	Progress func(fraction float64)
}

// FrameCount returns the number of discrete frames a run will produce.
func (o Options) FrameCount() int {
	if o.FPS <= 0 || o.Duration <= 0 {
		return 0
	}
	return int(math.Ceil(o.Duration * o.FPS))
}

// Prerenderer renders components frame by frame.
type Prerenderer struct {
	compiler *compiler.Compiler
	logger   *slog.Logger
}

// New creates a prerenderer over the given compiler.
func New(c *compiler.Compiler, logger *slog.Logger) *Prerenderer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Prerenderer{compiler: c, logger: logger}
}

// Render invokes the component once per frame index in strictly increasing
// order and captures each settled result. Frame N's capture completes
// before frame N+1 begins, so visual state never interleaves.
//
// Cancellation is checked between frames; on cancellation the captured
// prefix is returned along with ctx.Err(). A runtime fault inside the
// component becomes a substitute rendered output describing the failure; a
// capture fault simply omits that index from the result.
func (p *Prerenderer) Render(ctx context.Context, mod *compiler.CompiledModule, surface Surface, opts Options) (Frames, error) {
	total := opts.FrameCount()
	frames := make(Frames, total)

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			p.logger.Debug("prerender cancelled", "bundle", mod.BundleID, "frame", i)
			return frames, err
		}

		frame := compiler.Frame{
			Index:    i,
			Time:     opts.TrimOffset + float64(i)/opts.FPS,
			FPS:      opts.FPS,
			Duration: opts.Duration,
		}

		root, err := p.compiler.Invoke(mod, opts.Props, frame)
		if err != nil {
			// Runtime errors stay inside the component boundary: render a
			// visible failure card instead of propagating.
			p.logger.Warn("component runtime error", "bundle", mod.BundleID, "frame", i, "error", err)
			root = errorCard(err)
		}

		if err := surface.Apply(ctx, root); err != nil {
			p.logger.Warn("surface apply failed", "bundle", mod.BundleID, "frame", i, "error", err)
			continue
		}

		snapshot, err := surface.Capture(ctx)
		if err != nil {
			// Omitted frame; the compositor treats the gap as empty.
			p.logger.Warn("frame capture failed", "bundle", mod.BundleID, "frame", i, "error", err)
			continue
		}
		frames[i] = snapshot

		if opts.Progress != nil {
			opts.Progress(float64(i+1) / float64(total))
		}
	}

	return frames, nil
}

// errorCard is the substitute output for a faulted component instance.
func errorCard(err error) *scene.Node {
	return &scene.Node{
		Type:  "frame",
		Props: map[string]any{"fill": "#7f1d1d"},
		Children: []*scene.Node{
			{
				Type:  "text",
				Props: map[string]any{"x": 8.0, "y": 8.0, "size": 14.0, "fill": "#ffffff", "content": err.Error()},
			},
		},
	}
}
