package sandbox

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Element keys used by every constructor. A rendered element is a plain
// dict so component code can inspect and rewrap children freely.
const (
	elemTypeKey     = "type"
	elemPropsKey    = "props"
	elemChildrenKey = "children"
)

// UIModule builds the element-tree composition primitive set exposed to
// components as the `ui` capability. Every constructor returns a dict of
// the shape {type, props, children}; the rendering surface walks that
// tree when the component handle is invoked.
func UIModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "ui",
		Members: starlark.StringDict{
			"frame":  elementBuiltin("frame"),
			"group":  elementBuiltin("group"),
			"rect":   elementBuiltin("rect"),
			"circle": elementBuiltin("circle"),
			"text":   elementBuiltin("text"),
			"path":   elementBuiltin("path"),
			"img":    elementBuiltin("img"),
		},
	}
}

// elementBuiltin creates a constructor for one element type. All keyword
// arguments become props except `children`, which becomes the child list.
// Positional arguments are rejected so call sites stay self-describing.
func elementBuiltin(typ string) *starlark.Builtin {
	return starlark.NewBuiltin("ui."+typ, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) > 0 {
			return nil, fmt.Errorf("%s: accepts keyword arguments only", b.Name())
		}

		props := starlark.NewDict(len(kwargs))
		children := starlark.NewList(nil)

		for _, kv := range kwargs {
			name, _ := starlark.AsString(kv[0])
			if name == elemChildrenKey {
				if lst, ok := kv[1].(*starlark.List); ok {
					children = lst
					continue
				}
				// A single child is accepted and wrapped.
				children = starlark.NewList([]starlark.Value{kv[1]})
				continue
			}
			if err := props.SetKey(kv[0], kv[1]); err != nil {
				return nil, err
			}
		}

		elem := starlark.NewDict(3)
		_ = elem.SetKey(starlark.String(elemTypeKey), starlark.String(typ))
		_ = elem.SetKey(starlark.String(elemPropsKey), props)
		_ = elem.SetKey(starlark.String(elemChildrenKey), children)
		return elem, nil
	})
}
