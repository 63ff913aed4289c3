package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/frameloom-labs/frameloom/internal/prerender"
	"github.com/frameloom-labs/frameloom/internal/sandbox"
	"github.com/frameloom-labs/frameloom/internal/testutil"
	"github.com/frameloom-labs/frameloom/pkg/component"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dotManifest = `id: dot
name: Dot
entry: index
meta:
  duration: 1
  width: 16
  height: 16
files:
  - path: index
    language: component
`

const dotSource = `
def Dot(frame=0, t=0.0, fps=30.0, duration=1.0):
    return ui.circle(cx=8, cy=8, r=4, fill="#fff")

export default Dot
`

func writeDotBundle(t *testing.T, bundlesDir, id, src string) string {
	t.Helper()

	dir := filepath.Join(bundlesDir, id)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bundle.yaml"), []byte(dotManifest), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.loom"), []byte(src), 0o600))
	return dir
}

func newTestEngine(t *testing.T, bundlesDir string) *Engine {
	t.Helper()

	eng, err := New(Config{
		BundlesDir: bundlesDir,
		StatePath:  filepath.Join(t.TempDir(), "state.db"),
		Viewport:   sandbox.Viewport{Width: 16, Height: 16},
		Logger:     testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestEngine_LoadBundles(t *testing.T) {
	bundlesDir := t.TempDir()
	writeDotBundle(t, bundlesDir, "dot", dotSource)
	eng := newTestEngine(t, bundlesDir)

	require.NoError(t, eng.LoadBundles())

	mod, ok := eng.Lookup("dot")
	require.True(t, ok)
	assert.Equal(t, 1, mod.Version)

	bundles, err := eng.Bundles()
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, component.StatusCompiled, bundles[0].Status)
}

func TestEngine_BrokenBundleRecordedNotFatal(t *testing.T) {
	bundlesDir := t.TempDir()
	writeDotBundle(t, bundlesDir, "dot", dotSource)
	writeDotBundle(t, bundlesDir, "bad", `x = fetch("https://example.com")`)
	// The manifest id field still says "dot"; give the bad copy its own.
	badManifest := []byte("id: bad\nname: Bad\nentry: index\nfiles:\n  - path: index\n    language: component\n")
	require.NoError(t, os.WriteFile(filepath.Join(bundlesDir, "bad", "bundle.yaml"), badManifest, 0o600))

	eng := newTestEngine(t, bundlesDir)
	require.NoError(t, eng.LoadBundles())

	_, ok := eng.Lookup("dot")
	assert.True(t, ok)
	_, ok = eng.Lookup("bad")
	assert.False(t, ok)

	bundles, err := eng.Bundles()
	require.NoError(t, err)
	statuses := map[string]component.BundleStatus{}
	for _, b := range bundles {
		statuses[b.ID] = b.Status
	}
	assert.Equal(t, component.StatusCompiled, statuses["dot"])
	assert.Equal(t, component.StatusError, statuses["bad"])
}

func TestEngine_Prerender(t *testing.T) {
	bundlesDir := t.TempDir()
	writeDotBundle(t, bundlesDir, "dot", dotSource)
	eng := newTestEngine(t, bundlesDir)
	require.NoError(t, eng.LoadBundles())

	frames, err := eng.Prerender(context.Background(), "dot", prerender.Options{FPS: 10})
	require.NoError(t, err)
	require.Len(t, frames, 10)

	img := frames[0]
	bounds := img.Bounds()
	assert.Equal(t, 16, bounds.Dx())
	assert.Equal(t, 16, bounds.Dy())

	_, _, _, a := img.At(8, 8).RGBA()
	assert.NotZero(t, a, "circle center painted")
}

func TestEngine_PrerenderUnknownBundle(t *testing.T) {
	eng := newTestEngine(t, t.TempDir())

	_, err := eng.Prerender(context.Background(), "ghost", prerender.Options{FPS: 10, Duration: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestEngine_RenderFrame(t *testing.T) {
	bundlesDir := t.TempDir()
	writeDotBundle(t, bundlesDir, "dot", dotSource)
	eng := newTestEngine(t, bundlesDir)
	require.NoError(t, eng.LoadBundles())

	img, err := eng.RenderFrame(context.Background(), "dot", 0.5, 30, nil)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())

	_, _, _, a := img.At(8, 8).RGBA()
	assert.NotZero(t, a)
}

func TestEngine_DeleteBundle(t *testing.T) {
	bundlesDir := t.TempDir()
	writeDotBundle(t, bundlesDir, "dot", dotSource)
	eng := newTestEngine(t, bundlesDir)
	require.NoError(t, eng.LoadBundles())

	require.NoError(t, eng.DeleteBundle("dot"))

	_, ok := eng.Lookup("dot")
	assert.False(t, ok)
	bundles, err := eng.Bundles()
	require.NoError(t, err)
	assert.Empty(t, bundles)
}

func TestEngine_InvalidateForcesRecompile(t *testing.T) {
	bundlesDir := t.TempDir()
	writeDotBundle(t, bundlesDir, "dot", dotSource)
	eng := newTestEngine(t, bundlesDir)
	require.NoError(t, eng.LoadBundles())

	eng.Invalidate("dot")
	mod, err := eng.CompileBundle("dot")
	require.NoError(t, err)
	assert.Equal(t, 2, mod.Version)
}

func TestEngine_WatchPicksUpEdit(t *testing.T) {
	bundlesDir := t.TempDir()
	dir := writeDotBundle(t, bundlesDir, "dot", dotSource)

	eng, err := New(Config{
		BundlesDir:   bundlesDir,
		StatePath:    filepath.Join(t.TempDir(), "state.db"),
		Viewport:     sandbox.Viewport{Width: 16, Height: 16},
		PollInterval: 20 * time.Millisecond,
		Logger:       testutil.NewTestLoggerAt(t, slog.LevelWarn), // poll ticks are chatty at debug
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	require.NoError(t, eng.LoadBundles())

	var mu sync.Mutex
	var got []int
	eng.OnReload(func(_ string, version int) {
		mu.Lock()
		got = append(got, version)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = eng.Watch(ctx)
		close(done)
	}()

	// Edit the source with a future mtime so the poll sees an advance.
	edited := dotSource + "\nexport tweak = 1\n"
	path := filepath.Join(dir, "index.loom")
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o600))
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 2, got[0])
	mu.Unlock()

	mod, ok := eng.Lookup("dot")
	require.True(t, ok)
	assert.Equal(t, 2, mod.Version)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}

func TestEngine_WatchRecoversFromInitialFailure(t *testing.T) {
	bundlesDir := t.TempDir()
	dir := writeDotBundle(t, bundlesDir, "dot", `x = fetch("https://example.com")`)

	eng, err := New(Config{
		BundlesDir:   bundlesDir,
		StatePath:    filepath.Join(t.TempDir(), "state.db"),
		Viewport:     sandbox.Viewport{Width: 16, Height: 16},
		PollInterval: 20 * time.Millisecond,
		Logger:       testutil.NewTestLoggerAt(t, slog.LevelWarn),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	require.NoError(t, eng.LoadBundles())

	_, ok := eng.Lookup("dot")
	require.False(t, ok, "broken bundle must not compile at load")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = eng.Watch(ctx)
		close(done)
	}()

	// The author fixes the bundle; polling must still be running for it.
	path := filepath.Join(dir, "index.loom")
	require.NoError(t, os.WriteFile(path, []byte(dotSource), 0o600))
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.Eventually(t, func() bool {
		_, ok := eng.Lookup("dot")
		return ok
	}, 5*time.Second, 20*time.Millisecond, "bundle never recovered after author fix")

	b, err := eng.store.GetBundle("dot")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, component.StatusCompiled, b.Status)
	assert.Empty(t, b.Errors)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}

func TestEngine_WatchPersistsBreakage(t *testing.T) {
	bundlesDir := t.TempDir()
	dir := writeDotBundle(t, bundlesDir, "dot", dotSource)

	eng, err := New(Config{
		BundlesDir:   bundlesDir,
		StatePath:    filepath.Join(t.TempDir(), "state.db"),
		Viewport:     sandbox.Viewport{Width: 16, Height: 16},
		PollInterval: 20 * time.Millisecond,
		Logger:       testutil.NewTestLoggerAt(t, slog.LevelWarn),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	require.NoError(t, eng.LoadBundles())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = eng.Watch(ctx)
		close(done)
	}()

	path := filepath.Join(dir, "index.loom")
	require.NoError(t, os.WriteFile(path, []byte(`x = eval("1+1")`), 0o600))
	future := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	// The manifest catches up with the breakage while the registry keeps
	// serving the last working artifact.
	require.Eventually(t, func() bool {
		b, err := eng.store.GetBundle("dot")
		return err == nil && b != nil && b.Status == component.StatusError
	}, 5*time.Second, 20*time.Millisecond, "breakage never persisted")

	b, err := eng.store.GetBundle("dot")
	require.NoError(t, err)
	assert.NotEmpty(t, b.Errors)

	mod, ok := eng.Lookup("dot")
	require.True(t, ok)
	assert.Equal(t, 1, mod.Version)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}
