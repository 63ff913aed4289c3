package commands

import (
	"fmt"
	"path/filepath"

	"github.com/frameloom-labs/frameloom/internal/export"
	"github.com/frameloom-labs/frameloom/internal/prerender"
	"github.com/spf13/cobra"
)

// RenderOptions holds options for the render command.
type RenderOptions struct {
	FPS      float64
	Duration float64
	Trim     float64
	OutDir   string
	Jobs     int
}

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	opts := &RenderOptions{}
	cmd := &cobra.Command{
		Use:   "render [bundle-id...]",
		Short: "Pre-render bundles to PNG frame sequences",
		Long: `Compile the named bundles and render every frame of each to a PNG
sequence under the output directory. Frames within one bundle render
sequentially; distinct bundles render concurrently.

Duration and frame rate default to the bundle's declared metadata, falling
back to the project configuration.`,
		Example: `  # Render one bundle at its declared duration
  frameloom render bouncing-ball

  # Render two seconds at 60fps into ./frames
  frameloom render bouncing-ball --fps 60 --duration 2 --out-dir frames`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.FPS, "fps", 0, "Frames per second (default: project config)")
	cmd.Flags().Float64Var(&opts.Duration, "duration", 0, "Clip duration in seconds (default: bundle metadata)")
	cmd.Flags().Float64Var(&opts.Trim, "trim", 0, "Trim offset in seconds")
	cmd.Flags().StringVar(&opts.OutDir, "out-dir", "", "Output directory (default: project output dir)")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", 0, "Concurrent bundle renders (default: 4)")

	return cmd
}

func runRender(cmd *cobra.Command, args []string, opts *RenderOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	fps := opts.FPS
	if fps <= 0 {
		fps = float64(cmdCtx.Cfg.FPS)
	}
	outDir := opts.OutDir
	if outDir == "" {
		outDir = cmdCtx.Cfg.OutputDir
	}

	for _, id := range args {
		if _, err := eng.CompileBundle(id); err != nil {
			return err
		}
	}

	jobs := make([]export.Job, 0, len(args))
	for _, id := range args {
		var progress func(float64)
		if r.IsTTY() && len(args) == 1 {
			progress = func(fraction float64) {
				r.Printf("\rrendering %s %3.0f%%", id, fraction*100)
				if fraction >= 1 {
					r.Println("")
				}
			}
		}
		jobs = append(jobs, export.Job{
			BundleID: id,
			OutDir:   filepath.Join(outDir, id),
			Options: prerender.Options{
				FPS:        fps,
				Duration:   opts.Duration,
				TrimOffset: opts.Trim,
				Progress:   progress,
			},
		})
	}

	exporter := export.New(eng, opts.Jobs, cmdCtx.Logger)
	if err := exporter.Export(cmd.Context(), jobs); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	for _, job := range jobs {
		r.Success(fmt.Sprintf("%s rendered to %s", job.BundleID, job.OutDir))
	}
	return nil
}
