// Package export writes pre-rendered frame caches to disk as PNG
// sequences. Distinct components export concurrently, each pre-render
// owning an independent surface, while frames within one component stay
// strictly sequential.
package export

import (
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/frameloom-labs/frameloom/internal/engine"
	"github.com/frameloom-labs/frameloom/internal/prerender"
	"golang.org/x/sync/errgroup"
)

// Job is one component to export.
type Job struct {
	// BundleID selects the compiled component.
	BundleID string
	// Options configures the pre-render run.
	Options prerender.Options
	// OutDir receives the PNG sequence (frame_00000.png, ...).
	OutDir string
}

// Exporter renders and writes frame sequences.
type Exporter struct {
	engine      *engine.Engine
	logger      *slog.Logger
	concurrency int
}

// New creates an exporter. Concurrency bounds how many components render
// at once; zero means 4.
func New(eng *engine.Engine, concurrency int, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Exporter{engine: eng, logger: logger, concurrency: concurrency}
}

// Export runs every job. The first failing job cancels the rest; frames
// omitted by capture failures are simply absent from the sequence.
func (x *Exporter) Export(ctx context.Context, jobs []Job) error {
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(x.concurrency)

	for _, job := range jobs {
		eg.Go(func() error {
			return x.exportOne(egctx, job)
		})
	}
	return eg.Wait()
}

func (x *Exporter) exportOne(ctx context.Context, job Job) error {
	if err := os.MkdirAll(job.OutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	frames, err := x.engine.Prerender(ctx, job.BundleID, job.Options)
	if err != nil {
		return fmt.Errorf("prerender %s: %w", job.BundleID, err)
	}

	for idx, img := range frames {
		path := filepath.Join(job.OutDir, fmt.Sprintf("frame_%05d.png", idx))
		f, err := os.Create(path) //nolint:gosec // G304: path is rooted in the job's output dir
		if err != nil {
			return fmt.Errorf("frame %d: %w", idx, err)
		}
		if err := png.Encode(f, img); err != nil {
			_ = f.Close()
			return fmt.Errorf("frame %d: %w", idx, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("frame %d: %w", idx, err)
		}
	}

	x.logger.Info("component exported", "bundle", job.BundleID, "frames", len(frames), "dir", job.OutDir)
	return nil
}
