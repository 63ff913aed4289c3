package resolver

import (
	"testing"

	"github.com/frameloom-labs/frameloom/internal/sandbox"
	"github.com/frameloom-labs/frameloom/internal/testutil"
	"github.com/frameloom-labs/frameloom/internal/translate"
	"github.com/frameloom-labs/frameloom/pkg/component"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()

	sb := sandbox.New(sandbox.Default(sandbox.Viewport{Width: 320, Height: 240}))
	return New(sb, translate.New(), testutil.NewTestLogger(t))
}

func loomFile(path, content string) component.File {
	return component.File{Path: path, Content: content, Language: component.LanguageComponent}
}

func callNoArgs(t *testing.T, fn starlark.Callable) starlark.Value {
	t.Helper()

	v, err := starlark.Call(&starlark.Thread{Name: "test"}, fn, nil, nil)
	require.NoError(t, err)
	return v
}

func TestResolve_SingleModule(t *testing.T) {
	r := newTestResolver(t)
	files := map[string]component.File{
		"main": loomFile("main", `
def Card():
    return ui.rect(w=10)

export default Card
`),
	}

	res, err := r.Resolve(files, "main")
	require.NoError(t, err)
	require.NotNil(t, res.Component)
	assert.Empty(t, res.Warnings)

	elem := callNoArgs(t, res.Component)
	got, err := sandbox.ToGo(elem)
	require.NoError(t, err)
	assert.Equal(t, "rect", got.(map[string]any)["type"])
}

func TestResolve_CrossModuleImport(t *testing.T) {
	r := newTestResolver(t)
	files := map[string]component.File{
		"main": loomFile("main", `
import ease from "./util/ease"

def Box():
    return ease(1.0)

export default Box
`),
		"util/ease": loomFile("util/ease", `
def ease(t):
    return motion.clamp(t, 0.0, 1.0) * 2

export default ease
`),
	}

	res, err := r.Resolve(files, "main")
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	v := callNoArgs(t, res.Component)
	f, err := sandbox.Float(v)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, f, 1e-9)
}

func TestResolve_CircularImportGetsLiveExports(t *testing.T) {
	r := newTestResolver(t)

	// a requires b at load time; b requires a back but only touches a's
	// exports from inside a function body, after both loads finished.
	files := map[string]component.File{
		"a": loomFile("a", `
b = require("./b")

def ping():
    return "ping:" + b["label"]

export label = "a"
export default ping
`),
		"b": loomFile("b", `
a = require("./a")

def tag():
    return a["label"]

export label = "b"
export default tag
`),
	}

	res, err := r.Resolve(files, "a")
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	v := callNoArgs(t, res.Component)
	s, ok := starlark.AsString(v)
	require.True(t, ok)
	assert.Equal(t, "ping:b", s)
}

func TestResolve_CycleUseBeforeDefinitionFails(t *testing.T) {
	r := newTestResolver(t)

	// b reads a's export at load time, but a has not reached its export
	// statement yet when b's body runs. First-use order rules: this is a
	// runtime key error, not a deadlock or reordering.
	files := map[string]component.File{
		"a": loomFile("a", `
b = require("./b")
export label = "a"
export default b
`),
		"b": loomFile("b", `
a = require("./a")
early = a["label"]
export default early
`),
	}

	_, err := r.Resolve(files, "a")
	require.Error(t, err)

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "b", execErr.Path)
}

func TestResolve_UnresolvedImportWarnsAndDegrades(t *testing.T) {
	r := newTestResolver(t)
	files := map[string]component.File{
		"main": loomFile("main", `
missing = require("./no/such/module")

def Shell():
    return len(missing)

export default Shell
`),
	}

	res, err := r.Resolve(files, "main")
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "no/such/module")

	v := callNoArgs(t, res.Component)
	f, err := sandbox.Float(v)
	require.NoError(t, err)
	assert.InDelta(t, 0, f, 1e-9)
}

func TestResolve_VirtualModulesAlwaysAvailable(t *testing.T) {
	r := newTestResolver(t)
	files := map[string]component.File{
		"main": loomFile("main", `
m = require("motion")

def Pulse():
    return m.lerp(0.0, 1.0, 0.5)

export default Pulse
`),
	}

	res, err := r.Resolve(files, "main")
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	v := callNoArgs(t, res.Component)
	f, err := sandbox.Float(v)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, f, 1e-9)
}

func TestResolve_EntryNotFound(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Resolve(map[string]component.File{}, "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in bundle")
}

func TestResolve_ConventionalComponentFallback(t *testing.T) {
	r := newTestResolver(t)
	files := map[string]component.File{
		"main": loomFile("main", `
export Component = lambda: "conventional"
`),
	}

	res, err := r.Resolve(files, "main")
	require.NoError(t, err)

	v := callNoArgs(t, res.Component)
	s, _ := starlark.AsString(v)
	assert.Equal(t, "conventional", s)
}

func TestResolve_NestedDefaultUnwrap(t *testing.T) {
	r := newTestResolver(t)
	files := map[string]component.File{
		"main": loomFile("main", `
def Inner():
    return "inner"

export default {"default": Inner}
`),
	}

	res, err := r.Resolve(files, "main")
	require.NoError(t, err)

	v := callNoArgs(t, res.Component)
	s, _ := starlark.AsString(v)
	assert.Equal(t, "inner", s)
}

func TestResolve_NoComponentExport(t *testing.T) {
	r := newTestResolver(t)
	files := map[string]component.File{
		"main": loomFile("main", `export answer = 42`),
	}

	_, err := r.Resolve(files, "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no component found")
}

func TestResolve_NonCallableDefault(t *testing.T) {
	r := newTestResolver(t)
	files := map[string]component.File{
		"main": loomFile("main", `export default 42`),
	}

	_, err := r.Resolve(files, "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a function")
}

func TestResolve_StyleAndDataImports(t *testing.T) {
	r := newTestResolver(t)
	files := map[string]component.File{
		"main": loomFile("main", `
import theme from "./theme"
import palette from "./palette"

def Styled():
    return theme + ":" + palette["primary"]

export default Styled
`),
		"theme":   {Path: "theme", Content: ".card { padding: 4px; }", Language: component.LanguageStyle},
		"palette": {Path: "palette", Content: `{"primary": "#38bdf8"}`, Language: component.LanguageData},
	}

	res, err := r.Resolve(files, "main")
	require.NoError(t, err)

	v := callNoArgs(t, res.Component)
	s, _ := starlark.AsString(v)
	assert.Equal(t, ".card { padding: 4px; }:#38bdf8", s)
}

func TestResolve_MemoizesModuleExecution(t *testing.T) {
	r := newTestResolver(t)

	// shared mutates its own exports on load; if both importers triggered
	// a fresh execution, the counter would not be shared between them.
	files := map[string]component.File{
		"main": loomFile("main", `
a = require("./left")
b = require("./right")

def Count():
    return a() + b()

export default Count
`),
		"left": loomFile("left", `
shared = require("./shared")
export default lambda: shared["hits"]
`),
		"right": loomFile("right", `
shared = require("./shared")
export default lambda: shared["hits"]
`),
		"shared": loomFile("shared", `
exports["hits"] = 1
`),
	}

	res, err := r.Resolve(files, "main")
	require.NoError(t, err)

	v := callNoArgs(t, res.Component)
	f, err := sandbox.Float(v)
	require.NoError(t, err)
	assert.InDelta(t, 2, f, 1e-9)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"./util/ease", "util/ease"},
		{"../shared", "shared"},
		{"main.loom", "main"},
		{"lib.star", "lib"},
		{"palette.json", "palette"},
		{"theme.css", "theme"},
		{"./nested/mod.loom", "nested/mod"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}
