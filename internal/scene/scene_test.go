package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func elementDict(typ string, props map[string]starlark.Value, children ...starlark.Value) *starlark.Dict {
	p := starlark.NewDict(len(props))
	for k, v := range props {
		_ = p.SetKey(starlark.String(k), v)
	}
	d := starlark.NewDict(3)
	_ = d.SetKey(starlark.String("type"), starlark.String(typ))
	_ = d.SetKey(starlark.String("props"), p)
	_ = d.SetKey(starlark.String("children"), starlark.NewList(children))
	return d
}

func TestFromValue_None(t *testing.T) {
	node, err := FromValue(starlark.None)
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestFromValue_Element(t *testing.T) {
	v := elementDict("rect", map[string]starlark.Value{
		"x":    starlark.MakeInt(10),
		"fill": starlark.String("#fff"),
	})

	node, err := FromValue(v)
	require.NoError(t, err)
	assert.Equal(t, "rect", node.Type)
	assert.Equal(t, int64(10), node.Props["x"])
	assert.Equal(t, "#fff", node.Props["fill"])
	assert.Empty(t, node.Children)
}

func TestFromValue_NestedChildren(t *testing.T) {
	child := elementDict("circle", map[string]starlark.Value{"r": starlark.Float(4)})
	root := elementDict("group", nil, child, starlark.None)

	node, err := FromValue(root)
	require.NoError(t, err)
	require.Len(t, node.Children, 1)
	assert.Equal(t, "circle", node.Children[0].Type)
}

func TestFromValue_NonElement(t *testing.T) {
	_, err := FromValue(starlark.MakeInt(42))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected an element")
}

func TestFromValue_MissingType(t *testing.T) {
	d := starlark.NewDict(1)
	_ = d.SetKey(starlark.String("props"), starlark.NewDict(0))

	_, err := FromValue(d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no type")
}

func TestNode_FloatAndString(t *testing.T) {
	n := &Node{Props: map[string]any{
		"w":     int64(20),
		"h":     12.5,
		"label": "hi",
	}}

	assert.InDelta(t, 20, n.Float("w", 0), 1e-9)
	assert.InDelta(t, 12.5, n.Float("h", 0), 1e-9)
	assert.InDelta(t, 7, n.Float("missing", 7), 1e-9)
	assert.InDelta(t, 3, n.Float("label", 3), 1e-9)
	assert.Equal(t, "hi", n.String("label", "?"))
	assert.Equal(t, "?", n.String("missing", "?"))
}
