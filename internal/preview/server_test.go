package preview

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/frameloom-labs/frameloom/internal/engine"
	"github.com/frameloom-labs/frameloom/internal/sandbox"
	"github.com/frameloom-labs/frameloom/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const previewManifest = `id: dot
name: Dot
entry: index
meta:
  duration: 2
  width: 16
  height: 16
files:
  - path: index
    language: component
`

const previewSource = `
def Dot(frame=0, t=0.0, fps=30.0, duration=1.0):
    return ui.circle(cx=8, cy=8, r=4, fill="#fff")

export default Dot
`

func newPreviewServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	bundlesDir := t.TempDir()
	dir := filepath.Join(bundlesDir, "dot")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bundle.yaml"), []byte(previewManifest), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.loom"), []byte(previewSource), 0o600))

	eng, err := engine.New(engine.Config{
		BundlesDir: bundlesDir,
		StatePath:  filepath.Join(t.TempDir(), "state.db"),
		Viewport:   sandbox.Viewport{Width: 16, Height: 16},
		Logger:     testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	require.NoError(t, eng.LoadBundles())

	srv := NewServer(Config{
		Engine:        eng,
		Port:          0,
		SessionSecret: "test-secret",
		FPS:           30,
		Logger:        testutil.NewTestLogger(t),
	})

	mux := chi.NewMux()
	srv.routes(mux)
	return srv, mux
}

func TestHandleBundles(t *testing.T) {
	_, mux := newPreviewServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bundles", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var out struct {
		Bundles []BundleMeta `json:"bundles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Bundles, 1)

	b := out.Bundles[0]
	assert.Equal(t, "dot", b.ID)
	assert.Equal(t, 1, b.Version)
	assert.Equal(t, 16, b.Width)
	assert.InDelta(t, 2, b.Duration, 1e-9)
	assert.InDelta(t, 30, b.FPS, 1e-9)
}

func TestHandleFrame(t *testing.T) {
	_, mux := newPreviewServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bundles/dot/frame?t=0.5&fps=30", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
}

func TestHandleFrame_UnknownBundle(t *testing.T) {
	_, mux := newPreviewServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bundles/ghost/frame?t=0", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleView_RemembersSelection(t *testing.T) {
	_, mux := newPreviewServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/view/dot", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	// A later index request with the session cookie renders the selection
	// into the shell.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-selected="dot"`)
}

func TestHandleIndex_NoSession(t *testing.T) {
	_, mux := newPreviewServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `data-selected=""`)
}

func TestHandlePlayer(t *testing.T) {
	_, mux := newPreviewServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/player.js", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	assert.NotEmpty(t, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "export ", "player is bundled as an IIFE")
}

func TestNotifier_BroadcastReachesSubscribers(t *testing.T) {
	n := newNotifier()

	ch := n.subscribe()
	defer n.unsubscribe(ch)

	n.broadcast()
	select {
	case <-ch:
	default:
		t.Fatal("subscriber did not receive broadcast")
	}

	// A full buffer never blocks the broadcaster.
	n.broadcast()
	n.broadcast()
}

func TestBuildPlayer_Minified(t *testing.T) {
	js, err := buildPlayer(true)
	require.NoError(t, err)
	assert.NotEmpty(t, js)
	assert.False(t, strings.Contains(js, "  //"), "minified output keeps no comments")
}
