package export

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/frameloom-labs/frameloom/internal/engine"
	"github.com/frameloom-labs/frameloom/internal/prerender"
	"github.com/frameloom-labs/frameloom/internal/sandbox"
	"github.com/frameloom-labs/frameloom/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExportEngine(t *testing.T, ids ...string) *engine.Engine {
	t.Helper()

	bundlesDir := t.TempDir()
	for _, id := range ids {
		dir := filepath.Join(bundlesDir, id)
		require.NoError(t, os.MkdirAll(dir, 0o750))
		manifest := fmt.Sprintf("id: %s\nname: %s\nentry: index\nmeta:\n  duration: 0.5\n  width: 8\n  height: 8\nfiles:\n  - path: index\n    language: component\n", id, id)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bundle.yaml"), []byte(manifest), 0o600))
		src := "def Fill(frame=0, t=0.0, fps=30.0, duration=1.0):\n    return ui.frame(fill=\"#112233\")\n\nexport default Fill\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.loom"), []byte(src), 0o600))
	}

	eng, err := engine.New(engine.Config{
		BundlesDir: bundlesDir,
		StatePath:  filepath.Join(t.TempDir(), "state.db"),
		Viewport:   sandbox.Viewport{Width: 8, Height: 8},
		Logger:     testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	require.NoError(t, eng.LoadBundles())
	return eng
}

func TestExport_WritesFrameSequence(t *testing.T) {
	eng := newExportEngine(t, "fill")
	outDir := filepath.Join(t.TempDir(), "out", "fill")

	x := New(eng, 0, testutil.NewTestLogger(t))
	err := x.Export(context.Background(), []Job{{
		BundleID: "fill",
		Options:  prerender.Options{FPS: 10, Duration: 0.5},
		OutDir:   outDir,
	}})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		path := filepath.Join(outDir, fmt.Sprintf("frame_%05d.png", i))
		f, err := os.Open(path)
		require.NoError(t, err, "frame %d", i)
		img, err := png.Decode(f)
		_ = f.Close()
		require.NoError(t, err)
		assert.Equal(t, 8, img.Bounds().Dx())
	}

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestExport_MultipleJobs(t *testing.T) {
	eng := newExportEngine(t, "a", "b", "c")
	outRoot := t.TempDir()

	var jobs []Job
	for _, id := range []string{"a", "b", "c"} {
		jobs = append(jobs, Job{
			BundleID: id,
			Options:  prerender.Options{FPS: 4, Duration: 0.5},
			OutDir:   filepath.Join(outRoot, id),
		})
	}

	x := New(eng, 2, testutil.NewTestLogger(t))
	require.NoError(t, x.Export(context.Background(), jobs))

	for _, id := range []string{"a", "b", "c"} {
		entries, err := os.ReadDir(filepath.Join(outRoot, id))
		require.NoError(t, err)
		assert.Len(t, entries, 2, "bundle %s", id)
	}
}

func TestExport_UnknownBundleFails(t *testing.T) {
	eng := newExportEngine(t, "fill")

	x := New(eng, 1, testutil.NewTestLogger(t))
	err := x.Export(context.Background(), []Job{{
		BundleID: "ghost",
		Options:  prerender.Options{FPS: 10, Duration: 1},
		OutDir:   filepath.Join(t.TempDir(), "ghost"),
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestExport_CancelledContext(t *testing.T) {
	eng := newExportEngine(t, "fill")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	x := New(eng, 1, testutil.NewTestLogger(t))
	err := x.Export(ctx, []Job{{
		BundleID: "fill",
		Options:  prerender.Options{FPS: 10, Duration: 0.5},
		OutDir:   filepath.Join(t.TempDir(), "fill"),
	}})
	assert.Error(t, err)
}
