package registry

import (
	"testing"

	"github.com/frameloom-labs/frameloom/internal/compiler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := New()

	mod := &compiler.CompiledModule{BundleID: "bouncing-ball", Version: 1}
	r.Register(mod)

	assert.Equal(t, 1, r.Count())

	got, ok := r.Lookup("bouncing-ball")
	require.True(t, ok)
	assert.Equal(t, mod, got)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistry_RegisterReplacesHandle(t *testing.T) {
	r := New()

	r.Register(&compiler.CompiledModule{BundleID: "clip", Version: 1})
	r.Register(&compiler.CompiledModule{BundleID: "clip", Version: 2})

	got, ok := r.Lookup("clip")
	require.True(t, ok)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_ReplaceLeavesNeighborsAlone(t *testing.T) {
	r := New()

	r.Register(&compiler.CompiledModule{BundleID: "a", Version: 1})
	r.Register(&compiler.CompiledModule{BundleID: "b", Version: 1})

	r.Register(&compiler.CompiledModule{BundleID: "a", Version: 2})

	got, ok := r.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, 1, got.Version)
	assert.Len(t, r.All(), 2)
}

func TestRegistry_RemoveAndReset(t *testing.T) {
	r := New()

	r.Register(&compiler.CompiledModule{BundleID: "a"})
	r.Register(&compiler.CompiledModule{BundleID: "b"})

	r.Remove("a")
	_, ok := r.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Count())

	r.Reset()
	assert.Equal(t, 0, r.Count())
}
