package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/frameloom-labs/frameloom/pkg/component"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pulseManifest = `id: pulse
name: Pulse
entry: index
meta:
  duration: 2.5
  width: 800
  height: 600
  properties:
    - name: speed
      type: number
      default: 1.0
      min: 0.1
      max: 10.0
files:
  - path: index
    language: component
  - path: theme
    language: style
  - path: config
    language: data
`

func writeBundle(t *testing.T, root, id string) string {
	t.Helper()

	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o750))

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	write(ManifestName, pulseManifest)
	write("index.loom", "def Pulse():\n    return ui.rect()\n\nexport default Pulse\n")
	write("theme.css", ".pulse { opacity: 1; }")
	write("config.json", `{"speed": 1}`)
	return dir
}

func TestDirSource_List(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "pulse")
	writeBundle(t, root, "wave")

	// Directories without a manifest and loose files are skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "scratch"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o600))

	ids, err := NewDirSource(root).List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pulse", "wave"}, ids)
}

func TestDirSource_Load(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "pulse")

	b, err := NewDirSource(root).Load("pulse")
	require.NoError(t, err)

	assert.Equal(t, "pulse", b.ID)
	assert.Equal(t, "Pulse", b.Name)
	assert.Equal(t, "index", b.EntryPoint)
	assert.Equal(t, component.SourceAuthor, b.Source)
	assert.Equal(t, component.StatusDraft, b.Status)
	assert.InDelta(t, 2.5, b.Meta.DefaultDuration, 1e-9)
	assert.Equal(t, 800, b.Meta.Width)
	assert.Equal(t, 600, b.Meta.Height)

	require.Len(t, b.Meta.Properties, 1)
	prop := b.Meta.Properties[0]
	assert.Equal(t, "speed", prop.Name)
	assert.Equal(t, "number", prop.Type)
	require.NotNil(t, prop.Min)
	assert.InDelta(t, 0.1, *prop.Min, 1e-9)

	require.Len(t, b.Files, 3)
	byPath := map[string]component.File{}
	for _, f := range b.Files {
		byPath[f.Path] = f
	}
	assert.Equal(t, component.LanguageComponent, byPath["index"].Language)
	assert.Contains(t, byPath["index"].Content, "export default Pulse")
	assert.Equal(t, component.LanguageStyle, byPath["theme"].Language)
	assert.Equal(t, component.LanguageData, byPath["config"].Language)
}

func TestDirSource_LoadMissingBundle(t *testing.T) {
	_, err := NewDirSource(t.TempDir()).Load("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest not found")
}

func TestDirSource_LoadMissingContentFile(t *testing.T) {
	root := t.TempDir()
	dir := writeBundle(t, root, "pulse")
	require.NoError(t, os.Remove(filepath.Join(dir, "theme.css")))

	_, err := NewDirSource(root).Load("pulse")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "theme")
}

func TestDirSource_FetchTracksLatestModTime(t *testing.T) {
	root := t.TempDir()
	dir := writeBundle(t, root, "pulse")
	src := NewDirSource(root)

	first, err := src.Fetch(context.Background(), "pulse", true)
	require.NoError(t, err)
	require.Len(t, first.Files, 3)

	// Touch one content file into the future; the bundle's last-modified
	// stamp follows the newest file.
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "index.loom"), future, future))

	second, err := src.Fetch(context.Background(), "pulse", true)
	require.NoError(t, err)
	assert.True(t, second.LastModified.After(first.LastModified))
}

func TestDirSource_FetchWithoutDeps(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "pulse")

	res, err := NewDirSource(root).Fetch(context.Background(), "pulse", false)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "index", res.Files[0].Path)
}

func TestExtFor(t *testing.T) {
	assert.Equal(t, ".loom", ExtFor(component.LanguageComponent))
	assert.Equal(t, ".loom", ExtFor(component.LanguageScript))
	assert.Equal(t, ".css", ExtFor(component.LanguageStyle))
	assert.Equal(t, ".json", ExtFor(component.LanguageData))
}
